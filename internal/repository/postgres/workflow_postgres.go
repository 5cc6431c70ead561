package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"citydesk/internal/model"
	"citydesk/internal/repository"
)

// workflowTables maps each workflow-carrying kind to its backing table.
// The three tables share one column shape, so a single implementation covers them.
var workflowTables = map[model.OwnerKind]string{
	model.OwnerEvent:         "events",
	model.OwnerDemande:       "demandes",
	model.OwnerAuthorization: "authorizations",
}

// WorkflowPostgres is a PostgreSQL implementation of repository.WorkflowRepository.
type WorkflowPostgres struct {
	db *sql.DB
}

// NewWorkflowPostgres creates a new WorkflowPostgres repository.
func NewWorkflowPostgres(db *sql.DB) *WorkflowPostgres {
	return &WorkflowPostgres{db: db}
}

var _ repository.WorkflowRepository = (*WorkflowPostgres)(nil)

func workflowTable(kind model.OwnerKind) (string, error) {
	table, ok := workflowTables[kind]
	if !ok {
		return "", fmt.Errorf("no workflow table for kind %q", kind)
	}
	return table, nil
}

// FindByID fetches an entity with its creator joined in.
func (r *WorkflowPostgres) FindByID(ctx context.Context, kind model.OwnerKind, id int64) (*model.WorkflowEntity, error) {
	table, err := workflowTable(kind)
	if err != nil {
		return nil, err
	}
	// Table names come from the closed map above, never from input.
	q := fmt.Sprintf(`
		SELECT e.id, e.name, e.description, e.location, e.date, e.type, e.status, e.created_by_user_id,
		       u.id, u.first_name, u.last_name, u.email
		FROM %s e
		JOIN users u ON u.id = e.created_by_user_id
		WHERE e.id = $1
	`, table)

	row := r.db.QueryRowContext(ctx, q, id)
	e := model.WorkflowEntity{Kind: kind, CreatedBy: &model.User{}}
	if err := row.Scan(
		&e.ID,
		&e.Name,
		&e.Description,
		&e.Location,
		&e.Date,
		&e.Type,
		&e.Status,
		&e.CreatedByUserID,
		&e.CreatedBy.ID,
		&e.CreatedBy.FirstName,
		&e.CreatedBy.LastName,
		&e.CreatedBy.Email,
	); err != nil {
		return nil, err
	}
	return &e, nil
}

// Update persists the entity's domain fields and status.
func (r *WorkflowPostgres) Update(ctx context.Context, e *model.WorkflowEntity) (*model.WorkflowEntity, error) {
	table, err := workflowTable(e.Kind)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
		UPDATE %s
		SET name = $1, description = $2, location = $3, date = $4, type = $5, status = $6
		WHERE id = $7
		RETURNING id, name, description, location, date, type, status, created_by_user_id
	`, table)

	row := r.db.QueryRowContext(ctx, q,
		e.Name,
		e.Description,
		e.Location,
		e.Date,
		e.Type,
		e.Status,
		e.ID,
	)
	out := model.WorkflowEntity{Kind: e.Kind, CreatedBy: e.CreatedBy}
	if err := row.Scan(
		&out.ID,
		&out.Name,
		&out.Description,
		&out.Location,
		&out.Date,
		&out.Type,
		&out.Status,
		&out.CreatedByUserID,
	); err != nil {
		return nil, err
	}
	return &out, nil
}

// commentRefColumns maps each workflow kind to the comments column that
// references it.
var commentRefColumns = map[model.OwnerKind]string{
	model.OwnerEvent:         "event_id",
	model.OwnerDemande:       "demande_id",
	model.OwnerAuthorization: "authorization_id",
}

// ListCommentIDs returns the IDs of comments referencing the entity.
func (r *WorkflowPostgres) ListCommentIDs(ctx context.Context, kind model.OwnerKind, id int64) ([]int64, error) {
	col, ok := commentRefColumns[kind]
	if !ok {
		return nil, fmt.Errorf("no comment reference for kind %q", kind)
	}
	q := fmt.Sprintf(`SELECT id FROM comments WHERE %s = $1`, col)

	rows, err := r.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var cid int64
		if err := rows.Scan(&cid); err != nil {
			return nil, err
		}
		ids = append(ids, cid)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// Delete removes the entity row. Comment rows hanging off it cascade in the
// schema; documents do not and must be purged by the caller first.
func (r *WorkflowPostgres) Delete(ctx context.Context, kind model.OwnerKind, id int64) error {
	table, err := workflowTable(kind)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table)
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
