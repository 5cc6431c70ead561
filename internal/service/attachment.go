package service

import (
	"archive/zip"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"citydesk/internal/model"
	"citydesk/internal/repository"
	"citydesk/internal/storage"
)

var (
	ErrIDRequired       = errors.New("id is required")
	ErrNoFiles          = errors.New("no files provided")
	ErrInvalidOwnerKind = errors.New("invalid owner kind")
	ErrOwnerNotFound    = errors.New("owner entity not found")
	ErrQuotaExceeded    = errors.New("owner storage quota exceeded")
	ErrDocumentNotFound = errors.New("document not found")
	ErrBlobMissing      = errors.New("document content missing from storage")
)

// FileUpload is one file in an upload batch.
type FileUpload struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	Size        int64
}

// AttachmentService defines the use cases for handling documents attached to
// events, demandes, authorizations and comments.
type AttachmentService interface {
	// Upload stores the given files for an owner, in order. The batch is not
	// atomic: files accepted before a failure stay stored and are returned
	// alongside the error.
	Upload(ctx context.Context, kind model.OwnerKind, ownerID int64, files []FileUpload) ([]model.Document, error)

	// ListByOwner returns all documents of an owner; empty slice when none.
	ListByOwner(ctx context.Context, kind model.OwnerKind, ownerID int64) ([]model.Document, error)

	// FetchContent streams a document's bytes along with its metadata.
	FetchContent(ctx context.Context, id string) (io.ReadCloser, *model.Document, error)

	// ExportArchive writes a zip of every retrievable document of an owner to
	// w and returns the number of entries written. Documents whose blob is
	// missing are skipped.
	ExportArchive(ctx context.Context, kind model.OwnerKind, ownerID int64, w io.Writer) (int, error)

	// Delete removes a document's blob and metadata by ID.
	Delete(ctx context.Context, id string) error

	// DeleteByOwner removes every document of an owner. Blob deletion is
	// best-effort: a failed blob delete is logged and the metadata row is
	// removed regardless.
	DeleteByOwner(ctx context.Context, kind model.OwnerKind, ownerID int64) error
}

type ownerKey struct {
	kind model.OwnerKind
	id   int64
}

// ownerLock is reference-counted so the lock map can drop entries once the
// last holder releases; the owner space is unbounded.
type ownerLock struct {
	mu   sync.Mutex
	refs int
}

// attachmentService is a concrete implementation of AttachmentService.
type attachmentService struct {
	store  storage.Storage
	docs   repository.DocumentRepository
	owners repository.OwnerResolver
	quota  int64

	mu         sync.Mutex
	ownerLocks map[ownerKey]*ownerLock
}

// NewAttachmentService constructs a new AttachmentService with the given
// per-owner quota in bytes.
func NewAttachmentService(store storage.Storage, docs repository.DocumentRepository, owners repository.OwnerResolver, quota int64) AttachmentService {
	return &attachmentService{
		store:      store,
		docs:       docs,
		owners:     owners,
		quota:      quota,
		ownerLocks: make(map[ownerKey]*ownerLock),
	}
}

// lockOwner serializes the quota check-then-insert sequence per owner, so two
// concurrent uploads cannot both pass the check against a stale aggregate.
// The entry is evicted once the last holder releases it.
func (s *attachmentService) lockOwner(k ownerKey) func() {
	s.mu.Lock()
	l, ok := s.ownerLocks[k]
	if !ok {
		l = &ownerLock{}
		s.ownerLocks[k] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.ownerLocks, k)
		}
		s.mu.Unlock()
	}
}

func (s *attachmentService) Upload(ctx context.Context, kind model.OwnerKind, ownerID int64, files []FileUpload) ([]model.Document, error) {
	if !kind.Valid() {
		return nil, ErrInvalidOwnerKind
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	unlock := s.lockOwner(ownerKey{kind: kind, id: ownerID})
	defer unlock()

	created := make([]model.Document, 0, len(files))
	for _, f := range files {
		if err := s.owners.Resolve(ctx, kind, ownerID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return created, fmt.Errorf("%s %d: %w", kind, ownerID, ErrOwnerNotFound)
			}
			return created, fmt.Errorf("resolve owner: %w", err)
		}

		used, err := s.docs.SumSizeByOwner(ctx, kind, ownerID)
		if err != nil {
			return created, fmt.Errorf("aggregate size: %w", err)
		}
		if used+f.Size > s.quota {
			return created, fmt.Errorf("file %q: %w", f.Filename, ErrQuotaExceeded)
		}

		// Stored object name is UUID + original extension, teacher-style.
		ext := filepath.Ext(f.Filename)
		key := filepath.ToSlash(filepath.Join("documents", uuid.New().String()+ext))

		objInfo, err := s.store.Put(ctx, key, f.Reader, storage.PutObjectOptions{
			Size:        f.Size,
			ContentType: f.ContentType,
			Metadata: map[string]string{
				"original-filename": f.Filename,
			},
		})
		if err != nil {
			return created, fmt.Errorf("upload to storage: %w", err)
		}

		doc := &model.Document{
			ID:               uuid.New().String(),
			OwnerKind:        kind,
			OwnerID:          ownerID,
			OriginalFilename: f.Filename,
			StoragePath:      objInfo.Key,
			Size:             objInfo.Size,
			ContentType:      f.ContentType,
			UploadedAt:       time.Now().UTC(),
		}
		stored, err := s.docs.Create(ctx, doc)
		if err != nil {
			// Rollback: delete the object from storage
			if delErr := s.store.Delete(ctx, key); delErr != nil {
				return created, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
			}
			return created, fmt.Errorf("db save failed: %w", err)
		}
		created = append(created, *stored)
	}
	return created, nil
}

func (s *attachmentService) ListByOwner(ctx context.Context, kind model.OwnerKind, ownerID int64) ([]model.Document, error) {
	if !kind.Valid() {
		return nil, ErrInvalidOwnerKind
	}
	return s.docs.ListByOwner(ctx, kind, ownerID)
}

func (s *attachmentService) FetchContent(ctx context.Context, id string) (io.ReadCloser, *model.Document, error) {
	if id == "" {
		return nil, nil, ErrIDRequired
	}
	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrDocumentNotFound
		}
		return nil, nil, err
	}
	rc, _, err := s.store.Get(ctx, doc.StoragePath)
	if err != nil {
		// Metadata exists but the blob does not: a reportable integrity
		// fault, surfaced as not-found since the content is gone either way.
		logJSON(map[string]any{
			"component":    "attachment",
			"event":        "blob_missing",
			"level":        "error",
			"document_id":  doc.ID,
			"storage_path": doc.StoragePath,
			"error":        err.Error(),
		})
		return nil, nil, fmt.Errorf("%s: %w", doc.StoragePath, ErrBlobMissing)
	}
	return rc, doc, nil
}

func (s *attachmentService) ExportArchive(ctx context.Context, kind model.OwnerKind, ownerID int64, w io.Writer) (int, error) {
	docs, err := s.ListByOwner(ctx, kind, ownerID)
	if err != nil {
		return 0, err
	}

	zw := zip.NewWriter(w)
	n := 0
	for _, d := range docs {
		rc, _, err := s.store.Get(ctx, d.StoragePath)
		if err != nil {
			// Unreadable blobs are skipped, not fatal to the archive.
			logJSON(map[string]any{
				"component":    "attachment",
				"event":        "archive_skip",
				"level":        "warn",
				"document_id":  d.ID,
				"storage_path": d.StoragePath,
				"error":        err.Error(),
			})
			continue
		}
		// Entries are named by original filename; duplicate names within one
		// owner produce duplicate entries and most extractors keep the last.
		entry, err := zw.Create(d.OriginalFilename)
		if err != nil {
			rc.Close()
			zw.Close()
			return n, fmt.Errorf("create archive entry: %w", err)
		}
		if _, err := io.Copy(entry, rc); err != nil {
			rc.Close()
			zw.Close()
			return n, fmt.Errorf("write archive entry: %w", err)
		}
		rc.Close()
		n++
	}
	if err := zw.Close(); err != nil {
		return n, fmt.Errorf("close archive: %w", err)
	}
	return n, nil
}

// Delete removes the blob first, then the metadata row. Blobs are released at
// delete time; there is no separate reconciliation pass.
func (s *attachmentService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrIDRequired
	}
	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDocumentNotFound
		}
		return err
	}
	// Delete from storage first; if this fails, keep DB row to avoid orphaned storage reference loss
	if err := s.store.Delete(ctx, doc.StoragePath); err != nil {
		return fmt.Errorf("delete storage: %w", err)
	}
	return s.docs.Delete(ctx, id)
}

// DeleteByOwner purges an owner's documents when the owner itself is being
// removed. Unlike Delete, a failed blob delete does not keep the metadata
// row; the failure is logged and the row goes.
func (s *attachmentService) DeleteByOwner(ctx context.Context, kind model.OwnerKind, ownerID int64) error {
	if !kind.Valid() {
		return ErrInvalidOwnerKind
	}

	unlock := s.lockOwner(ownerKey{kind: kind, id: ownerID})
	defer unlock()

	docs, err := s.docs.ListByOwner(ctx, kind, ownerID)
	if err != nil {
		return fmt.Errorf("list owner documents: %w", err)
	}
	for _, d := range docs {
		if err := s.store.Delete(ctx, d.StoragePath); err != nil {
			logJSON(map[string]any{
				"component":    "attachment",
				"event":        "purge_blob_failed",
				"level":        "error",
				"document_id":  d.ID,
				"storage_path": d.StoragePath,
				"error":        err.Error(),
			})
		}
		if err := s.docs.Delete(ctx, d.ID); err != nil {
			return fmt.Errorf("delete document %s: %w", d.ID, err)
		}
	}
	return nil
}
