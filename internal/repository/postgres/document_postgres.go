package postgres

import (
	"context"
	"database/sql"

	"citydesk/internal/model"
	"citydesk/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

// Create inserts a new document row and returns the stored record.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	const q = `
		INSERT INTO documents (id, owner_kind, owner_id, original_filename, storage_path, size, content_type, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, owner_kind, owner_id, original_filename, storage_path, size, content_type, uploaded_at
	`
	row := r.db.QueryRowContext(ctx, q,
		doc.ID,
		doc.OwnerKind,
		doc.OwnerID,
		doc.OriginalFilename,
		doc.StoragePath,
		doc.Size,
		doc.ContentType,
		doc.UploadedAt,
	)
	var out model.Document
	if err := row.Scan(
		&out.ID,
		&out.OwnerKind,
		&out.OwnerID,
		&out.OriginalFilename,
		&out.StoragePath,
		&out.Size,
		&out.ContentType,
		&out.UploadedAt,
	); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindByID fetches a single document by its ID.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.Document, error) {
	const q = `
		SELECT id, owner_kind, owner_id, original_filename, storage_path, size, content_type, uploaded_at
		FROM documents
		WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, q, id)
	var d model.Document
	if err := row.Scan(
		&d.ID,
		&d.OwnerKind,
		&d.OwnerID,
		&d.OriginalFilename,
		&d.StoragePath,
		&d.Size,
		&d.ContentType,
		&d.UploadedAt,
	); err != nil {
		return nil, err
	}
	return &d, nil
}

// ListByOwner returns every document attached to the given owner, oldest first.
func (r *DocumentPostgres) ListByOwner(ctx context.Context, kind model.OwnerKind, ownerID int64) ([]model.Document, error) {
	const q = `
		SELECT id, owner_kind, owner_id, original_filename, storage_path, size, content_type, uploaded_at
		FROM documents
		WHERE owner_kind = $1 AND owner_id = $2
		ORDER BY uploaded_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, q, kind, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(
			&d.ID,
			&d.OwnerKind,
			&d.OwnerID,
			&d.OriginalFilename,
			&d.StoragePath,
			&d.Size,
			&d.ContentType,
			&d.UploadedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// SumSizeByOwner computes the aggregate stored size for an owner directly
// from the persisted rows, so the quota check never drifts from reality.
func (r *DocumentPostgres) SumSizeByOwner(ctx context.Context, kind model.OwnerKind, ownerID int64) (int64, error) {
	const q = `SELECT COALESCE(SUM(size), 0) FROM documents WHERE owner_kind = $1 AND owner_id = $2`
	var total int64
	if err := r.db.QueryRowContext(ctx, q, kind, ownerID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// Delete removes a document by ID. It does not return an error if the row does not exist.
func (r *DocumentPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM documents WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	_, _ = res.RowsAffected()
	return nil
}
