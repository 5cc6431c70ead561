package handler

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"citydesk/internal/http/middleware"
	"citydesk/internal/model"
	"citydesk/internal/service"
	svcMocks "citydesk/internal/service/mocks"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestApp(db *sql.DB, attachSvc service.AttachmentService, wfSvc service.WorkflowService) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Use(middleware.RequestID())
	RegisterRoutes(app, db, attachSvc, wfSvc)
	return app
}

func decodeError(t *testing.T, resp *http.Response) errorPayload {
	t.Helper()
	var p errorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	return p
}

func multipartBody(t *testing.T, field string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := w.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

const docID = "6b4a2c9e-1d3f-4f5a-9c8b-2e1d0a7f6e5d"

func TestHealthEndpoints(t *testing.T) {
	t.Run("health ok", func(t *testing.T) {
		db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()
		dbMock.ExpectPing()

		app := newTestApp(db, nil, nil)
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("health degrades to 503", func(t *testing.T) {
		db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()
		dbMock.ExpectPing().WillReturnError(fmt.Errorf("connection refused"))

		app := newTestApp(db, nil, nil)
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "SERVICE_UNAVAILABLE", decodeError(t, resp).Error.Code)
	})

	t.Run("liveness", func(t *testing.T) {
		app := newTestApp(nil, nil, nil)
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestUploadDocuments(t *testing.T) {
	t.Run("stores a batch", func(t *testing.T) {
		mSvc := new(svcMocks.MockAttachmentService)
		created := []model.Document{
			{ID: docID, OwnerKind: model.OwnerEvent, OwnerID: 7, OriginalFilename: "a.txt"},
			{ID: docID, OwnerKind: model.OwnerEvent, OwnerID: 7, OriginalFilename: "b.txt"},
		}
		mSvc.On("Upload", mock.Anything, model.OwnerEvent, int64(7), mock.Anything).Return(created, nil)

		app := newTestApp(nil, mSvc, nil)
		body, ct := multipartBody(t, "files", map[string]string{"a.txt": "aaa", "b.txt": "bbb"})
		req := httptest.NewRequest(http.MethodPost, "/documents/upload/event/7", body)
		req.Header.Set("Content-Type", ct)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var out struct {
			Documents []model.Document `json:"documents"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Len(t, out.Documents, 2)
		mSvc.AssertExpectations(t)
	})

	t.Run("single file field still works", func(t *testing.T) {
		mSvc := new(svcMocks.MockAttachmentService)
		mSvc.On("Upload", mock.Anything, model.OwnerComment, int64(3), mock.Anything).
			Return([]model.Document{{ID: docID}}, nil)

		app := newTestApp(nil, mSvc, nil)
		body, ct := multipartBody(t, "file", map[string]string{"a.txt": "aaa"})
		req := httptest.NewRequest(http.MethodPost, "/documents/upload/comment/3", body)
		req.Header.Set("Content-Type", ct)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("quota exceeded returns stored partial batch", func(t *testing.T) {
		mSvc := new(svcMocks.MockAttachmentService)
		partial := []model.Document{{ID: docID, OriginalFilename: "a.txt"}}
		mSvc.On("Upload", mock.Anything, model.OwnerEvent, int64(7), mock.Anything).
			Return(partial, fmt.Errorf("file %q: %w", "b.txt", service.ErrQuotaExceeded))

		app := newTestApp(nil, mSvc, nil)
		body, ct := multipartBody(t, "files", map[string]string{"a.txt": "aaa", "b.txt": "bbb"})
		req := httptest.NewRequest(http.MethodPost, "/documents/upload/event/7", body)
		req.Header.Set("Content-Type", ct)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var out struct {
			Documents []model.Document `json:"documents"`
			Error     errorEnvelope    `json:"error"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, "QUOTA_EXCEEDED", out.Error.Code)
		assert.Len(t, out.Documents, 1)
	})

	t.Run("owner not found", func(t *testing.T) {
		mSvc := new(svcMocks.MockAttachmentService)
		mSvc.On("Upload", mock.Anything, model.OwnerDemande, int64(99), mock.Anything).
			Return([]model.Document{}, fmt.Errorf("demande 99: %w", service.ErrOwnerNotFound))

		app := newTestApp(nil, mSvc, nil)
		body, ct := multipartBody(t, "files", map[string]string{"a.txt": "aaa"})
		req := httptest.NewRequest(http.MethodPost, "/documents/upload/demande/99", body)
		req.Header.Set("Content-Type", ct)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "OWNER_NOT_FOUND", decodeError(t, resp).Error.Code)
	})

	t.Run("unknown owner kind rejected before service", func(t *testing.T) {
		mSvc := new(svcMocks.MockAttachmentService)
		app := newTestApp(nil, mSvc, nil)

		body, ct := multipartBody(t, "files", map[string]string{"a.txt": "aaa"})
		req := httptest.NewRequest(http.MethodPost, "/documents/upload/user/7", body)
		req.Header.Set("Content-Type", ct)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_OWNER_KIND", decodeError(t, resp).Error.Code)
		mSvc.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing file", func(t *testing.T) {
		app := newTestApp(nil, new(svcMocks.MockAttachmentService), nil)
		req := httptest.NewRequest(http.MethodPost, "/documents/upload/event/7", nil)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "FILE_REQUIRED", decodeError(t, resp).Error.Code)
	})
}

func TestListDocuments(t *testing.T) {
	mSvc := new(svcMocks.MockAttachmentService)
	mSvc.On("ListByOwner", mock.Anything, model.OwnerAuthorization, int64(4)).
		Return([]model.Document{{ID: docID, OriginalFilename: "permit.pdf"}}, nil)

	app := newTestApp(nil, mSvc, nil)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/documents/authorization/4", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Documents []model.Document `json:"documents"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Documents, 1)
	assert.Equal(t, "permit.pdf", out.Documents[0].OriginalFilename)
}

func TestDownloadDocument(t *testing.T) {
	t.Run("streams content with original filename", func(t *testing.T) {
		mSvc := new(svcMocks.MockAttachmentService)
		doc := &model.Document{ID: docID, OriginalFilename: "permit.pdf", ContentType: "application/pdf"}
		mSvc.On("FetchContent", mock.Anything, docID).
			Return(io.NopCloser(strings.NewReader("pdf-bytes")), doc, nil)

		app := newTestApp(nil, mSvc, nil)
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+docID+"/content", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/pdf", resp.Header.Get(fiber.HeaderContentType))
		assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), `filename="permit.pdf"`)

		b, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "pdf-bytes", string(b))
	})

	t.Run("invalid id", func(t *testing.T) {
		app := newTestApp(nil, new(svcMocks.MockAttachmentService), nil)
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/documents/not-a-uuid/content", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_ID", decodeError(t, resp).Error.Code)
	})

	t.Run("missing blob reads as not found", func(t *testing.T) {
		mSvc := new(svcMocks.MockAttachmentService)
		mSvc.On("FetchContent", mock.Anything, docID).
			Return(nil, nil, fmt.Errorf("documents/x: %w", service.ErrBlobMissing))

		app := newTestApp(nil, mSvc, nil)
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+docID+"/content", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Error.Code)
	})
}

func TestExportDocumentsArchive(t *testing.T) {
	mSvc := new(svcMocks.MockAttachmentService)
	zipBytes := []byte("PK\x03\x04fake-zip")
	mSvc.On("ExportArchive", mock.Anything, model.OwnerEvent, int64(7), mock.Anything).
		Return(func(w io.Writer) int {
			_, _ = w.Write(zipBytes)
			return 2
		}, nil)

	app := newTestApp(nil, mSvc, nil)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/documents/event/7/archive", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/zip", resp.Header.Get(fiber.HeaderContentType))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "event-7-documents.zip")

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, zipBytes, b)
}

func TestDeleteDocument(t *testing.T) {
	t.Run("deletes", func(t *testing.T) {
		mSvc := new(svcMocks.MockAttachmentService)
		mSvc.On("Delete", mock.Anything, docID).Return(nil)

		app := newTestApp(nil, mSvc, nil)
		resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/documents/"+docID, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	t.Run("not found", func(t *testing.T) {
		mSvc := new(svcMocks.MockAttachmentService)
		mSvc.On("Delete", mock.Anything, docID).Return(service.ErrDocumentNotFound)

		app := newTestApp(nil, mSvc, nil)
		resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/documents/"+docID, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestUpdateRequest(t *testing.T) {
	t.Run("applies status patch", func(t *testing.T) {
		mSvc := new(svcMocks.MockWorkflowService)
		updated := &model.WorkflowEntity{
			ID:     12,
			Kind:   model.OwnerEvent,
			Name:   "مهرجان الربيع",
			Status: model.StatusAccepted,
			Date:   time.Date(2026, 4, 10, 18, 0, 0, 0, time.UTC),
		}
		mSvc.On("ApplyUpdate", mock.Anything, model.OwnerEvent, int64(12), mock.MatchedBy(func(p service.WorkflowPatch) bool {
			return p.Status != nil && *p.Status == model.StatusAccepted && p.Name == nil
		})).Return(updated, nil)

		app := newTestApp(nil, nil, mSvc)
		req := httptest.NewRequest(http.MethodPatch, "/requests/event/12",
			strings.NewReader(`{"status":"ACCEPTED"}`))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var out model.WorkflowEntity
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, model.StatusAccepted, out.Status)
		mSvc.AssertExpectations(t)
	})

	t.Run("invalid status rejected before service", func(t *testing.T) {
		mSvc := new(svcMocks.MockWorkflowService)
		app := newTestApp(nil, nil, mSvc)

		req := httptest.NewRequest(http.MethodPatch, "/requests/event/12",
			strings.NewReader(`{"status":"APPROVED"}`))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_STATUS", decodeError(t, resp).Error.Code)
		mSvc.AssertNotCalled(t, "ApplyUpdate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("comments have no workflow", func(t *testing.T) {
		app := newTestApp(nil, nil, new(svcMocks.MockWorkflowService))
		req := httptest.NewRequest(http.MethodPatch, "/requests/comment/1",
			strings.NewReader(`{"name":"x"}`))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_OWNER_KIND", decodeError(t, resp).Error.Code)
	})

	t.Run("not found", func(t *testing.T) {
		mSvc := new(svcMocks.MockWorkflowService)
		mSvc.On("ApplyUpdate", mock.Anything, model.OwnerDemande, int64(99), mock.Anything).
			Return(nil, service.ErrNotFound)

		app := newTestApp(nil, nil, mSvc)
		req := httptest.NewRequest(http.MethodPatch, "/requests/demande/99",
			strings.NewReader(`{"name":"x"}`))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestDeleteRequest(t *testing.T) {
	t.Run("deletes pending entity", func(t *testing.T) {
		mSvc := new(svcMocks.MockWorkflowService)
		mSvc.On("GuardedDelete", mock.Anything, model.OwnerEvent, int64(12)).Return(nil)

		app := newTestApp(nil, nil, mSvc)
		resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/requests/event/12", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	t.Run("terminal status conflicts", func(t *testing.T) {
		mSvc := new(svcMocks.MockWorkflowService)
		mSvc.On("GuardedDelete", mock.Anything, model.OwnerEvent, int64(12)).
			Return(fmt.Errorf("event 12 is ACCEPTED: %w", service.ErrTerminalStatus))

		app := newTestApp(nil, nil, mSvc)
		resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/requests/event/12", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "TERMINAL_STATUS", decodeError(t, resp).Error.Code)
	})

	t.Run("not found", func(t *testing.T) {
		mSvc := new(svcMocks.MockWorkflowService)
		mSvc.On("GuardedDelete", mock.Anything, model.OwnerAuthorization, int64(5)).
			Return(service.ErrNotFound)

		app := newTestApp(nil, nil, mSvc)
		resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/requests/authorization/5", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestErrorHandler(t *testing.T) {
	app := newTestApp(nil, nil, nil)

	t.Run("unknown route", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/nope", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Error.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodPut, "/health", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, "METHOD_NOT_ALLOWED", decodeError(t, resp).Error.Code)
	})
}
