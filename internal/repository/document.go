package repository

import (
	"context"

	"citydesk/internal/model"
)

// DocumentRepository defines data access for attachment metadata.
type DocumentRepository interface {
	// Create inserts a new document record.
	// The caller provides required fields (ID, UploadedAt, owner reference).
	// Returns the stored document (may include values set by the DB).
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns a document by its ID.
	FindByID(ctx context.Context, id string) (*model.Document, error)

	// ListByOwner returns every document attached to the given owner,
	// oldest first. Empty slice when the owner has none.
	ListByOwner(ctx context.Context, kind model.OwnerKind, ownerID int64) ([]model.Document, error)

	// SumSizeByOwner returns the aggregate stored byte size across all
	// documents of the given owner. Zero when the owner has none.
	SumSizeByOwner(ctx context.Context, kind model.OwnerKind, ownerID int64) (int64, error)

	// Delete removes a document by ID. It returns nil if the row was deleted or did not exist.
	Delete(ctx context.Context, id string) error
}
