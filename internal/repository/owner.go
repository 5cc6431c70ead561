package repository

import (
	"context"

	"citydesk/internal/model"
)

// OwnerResolver checks that the entity a document is being attached to
// actually exists. Implementations return sql.ErrNoRows (or an error wrapping
// it) when the owner is absent, and a plain error for unknown kinds.
type OwnerResolver interface {
	Resolve(ctx context.Context, kind model.OwnerKind, id int64) error
}
