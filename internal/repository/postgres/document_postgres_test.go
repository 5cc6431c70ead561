package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"citydesk/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var docColumns = []string{
	"id", "owner_kind", "owner_id", "original_filename",
	"storage_path", "size", "content_type", "uploaded_at",
}

func docRow(d model.Document) *sqlmock.Rows {
	return sqlmock.NewRows(docColumns).AddRow(
		d.ID, d.OwnerKind, d.OwnerID, d.OriginalFilename,
		d.StoragePath, d.Size, d.ContentType, d.UploadedAt,
	)
}

func sampleDoc() model.Document {
	return model.Document{
		ID:               "6b4a2c9e-1d3f-4f5a-9c8b-2e1d0a7f6e5d",
		OwnerKind:        model.OwnerEvent,
		OwnerID:          7,
		OriginalFilename: "permit.pdf",
		StoragePath:      "documents/6b4a2c9e.pdf",
		Size:             2048,
		ContentType:      "application/pdf",
		UploadedAt:       time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC),
	}
}

func TestDocumentPostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDocumentPostgres(db)
	doc := sampleDoc()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO documents")).
		WithArgs(doc.ID, doc.OwnerKind, doc.OwnerID, doc.OriginalFilename,
			doc.StoragePath, doc.Size, doc.ContentType, doc.UploadedAt).
		WillReturnRows(docRow(doc))

	out, err := repo.Create(context.Background(), &doc)
	require.NoError(t, err)
	assert.Equal(t, doc, *out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_FindByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewDocumentPostgres(db)
		doc := sampleDoc()

		mock.ExpectQuery(regexp.QuoteMeta("FROM documents")).
			WithArgs(doc.ID).
			WillReturnRows(docRow(doc))

		out, err := repo.FindByID(context.Background(), doc.ID)
		require.NoError(t, err)
		assert.Equal(t, doc.OriginalFilename, out.OriginalFilename)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewDocumentPostgres(db)

		mock.ExpectQuery(regexp.QuoteMeta("FROM documents")).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err = repo.FindByID(context.Background(), "missing")
		assert.True(t, errors.Is(err, sql.ErrNoRows))
	})
}

func TestDocumentPostgres_ListByOwner(t *testing.T) {
	t.Run("returns owner documents oldest first", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewDocumentPostgres(db)
		a := sampleDoc()
		b := sampleDoc()
		b.ID = "7c5b3d0f-2e4a-5a6b-0d9c-3f2e1b8a7f6e"
		b.OriginalFilename = "photo.jpg"

		rows := sqlmock.NewRows(docColumns).
			AddRow(a.ID, a.OwnerKind, a.OwnerID, a.OriginalFilename, a.StoragePath, a.Size, a.ContentType, a.UploadedAt).
			AddRow(b.ID, b.OwnerKind, b.OwnerID, b.OriginalFilename, b.StoragePath, b.Size, b.ContentType, b.UploadedAt)

		mock.ExpectQuery(regexp.QuoteMeta("WHERE owner_kind = $1 AND owner_id = $2")).
			WithArgs(model.OwnerEvent, int64(7)).
			WillReturnRows(rows)

		out, err := repo.ListByOwner(context.Background(), model.OwnerEvent, 7)
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, "permit.pdf", out[0].OriginalFilename)
		assert.Equal(t, "photo.jpg", out[1].OriginalFilename)
	})

	t.Run("empty result is an empty slice", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewDocumentPostgres(db)

		mock.ExpectQuery(regexp.QuoteMeta("WHERE owner_kind = $1 AND owner_id = $2")).
			WithArgs(model.OwnerComment, int64(3)).
			WillReturnRows(sqlmock.NewRows(docColumns))

		out, err := repo.ListByOwner(context.Background(), model.OwnerComment, 3)
		require.NoError(t, err)
		assert.NotNil(t, out)
		assert.Empty(t, out)
	})
}

func TestDocumentPostgres_SumSizeByOwner(t *testing.T) {
	t.Run("sums sizes", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewDocumentPostgres(db)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(size), 0) FROM documents")).
			WithArgs(model.OwnerEvent, int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(4096)))

		total, err := repo.SumSizeByOwner(context.Background(), model.OwnerEvent, 7)
		require.NoError(t, err)
		assert.Equal(t, int64(4096), total)
	})

	t.Run("no rows sums to zero", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewDocumentPostgres(db)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(size), 0) FROM documents")).
			WithArgs(model.OwnerDemande, int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(0)))

		total, err := repo.SumSizeByOwner(context.Background(), model.OwnerDemande, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)
	})
}

func TestDocumentPostgres_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDocumentPostgres(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM documents WHERE id = $1")).
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Delete(context.Background(), "doc-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
