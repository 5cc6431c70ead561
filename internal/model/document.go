package model

import "time"

// Document represents a stored file attached to an owning entity.
// Exactly one (OwnerKind, OwnerID) pair per document; the owner must exist
// when the document is created. Rows are never mutated after creation.
type Document struct {
	ID               string    `json:"id"`
	OwnerKind        OwnerKind `json:"owner_kind"`
	OwnerID          int64     `json:"owner_id"`
	OriginalFilename string    `json:"original_filename"`
	StoragePath      string    `json:"storage_path"`
	Size             int64     `json:"size"`
	ContentType      string    `json:"content_type"`
	UploadedAt       time.Time `json:"uploaded_at"`
}
