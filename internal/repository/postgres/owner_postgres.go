package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"citydesk/internal/model"
	"citydesk/internal/repository"
)

// ownerTables maps every owner kind (including comments, which own documents
// but carry no workflow) to its backing table.
var ownerTables = map[model.OwnerKind]string{
	model.OwnerEvent:         "events",
	model.OwnerDemande:       "demandes",
	model.OwnerAuthorization: "authorizations",
	model.OwnerComment:       "comments",
}

// OwnerPostgres resolves document owners against their tables.
type OwnerPostgres struct {
	db *sql.DB
}

// NewOwnerPostgres creates a new OwnerPostgres resolver.
func NewOwnerPostgres(db *sql.DB) *OwnerPostgres {
	return &OwnerPostgres{db: db}
}

var _ repository.OwnerResolver = (*OwnerPostgres)(nil)

// Resolve returns nil when the owner row exists, sql.ErrNoRows when it does
// not, and a plain error for kinds outside the closed set.
func (r *OwnerPostgres) Resolve(ctx context.Context, kind model.OwnerKind, id int64) error {
	table, ok := ownerTables[kind]
	if !ok {
		return fmt.Errorf("no owner table for kind %q", kind)
	}
	q := fmt.Sprintf(`SELECT 1 FROM %s WHERE id = $1`, table)
	var one int
	return r.db.QueryRowContext(ctx, q, id).Scan(&one)
}
