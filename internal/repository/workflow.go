package repository

import (
	"context"

	"citydesk/internal/model"
)

// WorkflowRepository defines data access for events, demandes and
// authorizations. The kind argument selects the backing table; the three
// tables share an identical column shape.
type WorkflowRepository interface {
	// FindByID returns the entity with its creator joined in.
	FindByID(ctx context.Context, kind model.OwnerKind, id int64) (*model.WorkflowEntity, error)

	// Update persists the entity's domain fields and status, returning the
	// stored row. The creator is not re-fetched.
	Update(ctx context.Context, e *model.WorkflowEntity) (*model.WorkflowEntity, error)

	// ListCommentIDs returns the IDs of comments attached to the entity.
	ListCommentIDs(ctx context.Context, kind model.OwnerKind, id int64) ([]int64, error)

	// Delete removes the entity row. Dependent comment rows cascade in the
	// schema; documents are the caller's concern.
	Delete(ctx context.Context, kind model.OwnerKind, id int64) error
}
