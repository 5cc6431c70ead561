package handler

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"mime/multipart"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"citydesk/internal/model"
	"citydesk/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers stay thin: parse, call the service, translate the error kind.
func RegisterRoutes(app *fiber.App, db *sql.DB, attachSvc service.AttachmentService, wfSvc service.WorkflowService) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	app.Post("/documents/upload/:ownerKind/:ownerId", UploadDocuments(attachSvc))
	// Static "content"/"archive" segments are registered before the generic
	// owner listing so they win the match.
	app.Get("/documents/:id/content", DownloadDocument(attachSvc))
	app.Get("/documents/:ownerKind/:ownerId/archive", ExportDocumentsArchive(attachSvc))
	app.Get("/documents/:ownerKind/:ownerId", ListDocuments(attachSvc))
	app.Delete("/documents/:id", DeleteDocument(attachSvc))

	app.Patch("/requests/:ownerKind/:id", UpdateRequest(wfSvc))
	app.Delete("/requests/:ownerKind/:id", DeleteRequest(wfSvc))
}

// HealthCheck reports readiness; it checks DB connectivity only.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a simple liveness endpoint.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

func parseOwner(c *fiber.Ctx) (model.OwnerKind, int64, bool) {
	kind, ok := model.ParseOwnerKind(c.Params("ownerKind"))
	if !ok {
		writeError(c, fiber.StatusBadRequest, "INVALID_OWNER_KIND", "unknown owner kind")
		return "", 0, false
	}
	idParam := c.Params("ownerId")
	if idParam == "" {
		idParam = c.Params("id")
	}
	id, err := strconv.ParseInt(idParam, 10, 64)
	if err != nil {
		writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		return "", 0, false
	}
	return kind, id, true
}

// UploadDocuments stores one or more multipart files (field name: files, with
// file accepted as a fallback) for an owner. A quota rejection mid-batch
// returns 400 along with the documents that were stored before it.
func UploadDocuments(svc service.AttachmentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		kind, ownerID, ok := parseOwner(c)
		if !ok {
			return nil
		}

		form, err := c.MultipartForm()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}
		headers := form.File["files"]
		if len(headers) == 0 {
			headers = form.File["file"]
		}
		if len(headers) == 0 {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		files := make([]service.FileUpload, 0, len(headers))
		opened := make([]multipart.File, 0, len(headers))
		defer func() {
			for _, f := range opened {
				f.Close()
			}
		}()
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
			}
			opened = append(opened, f)

			ct := fh.Header.Get("Content-Type")
			if ct == "" {
				ct = "application/octet-stream"
			}
			files = append(files, service.FileUpload{
				Reader:      f,
				Filename:    fh.Filename,
				ContentType: ct,
				Size:        fh.Size,
			})
		}

		created, err := svc.Upload(c.UserContext(), kind, ownerID, files)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrOwnerNotFound):
				return writeError(c, fiber.StatusNotFound, "OWNER_NOT_FOUND", "owner entity not found")
			case errors.Is(err, service.ErrInvalidOwnerKind):
				return writeError(c, fiber.StatusBadRequest, "INVALID_OWNER_KIND", "unknown owner kind")
			case errors.Is(err, service.ErrQuotaExceeded):
				// Partial result: earlier files in the batch stay committed.
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"request_id": requestIDFromCtx(c),
					"documents":  created,
					"error": errorEnvelope{
						Code:    "QUOTA_EXCEEDED",
						Message: fmt.Sprintf("storage quota exceeded; %d of %d files stored", len(created), len(files)),
					},
				})
			default:
				return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"documents": created})
	}
}

// ListDocuments returns all documents attached to an owner.
func ListDocuments(svc service.AttachmentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		kind, ownerID, ok := parseOwner(c)
		if !ok {
			return nil
		}
		docs, err := svc.ListByOwner(c.UserContext(), kind, ownerID)
		if err != nil {
			if errors.Is(err, service.ErrInvalidOwnerKind) {
				return writeError(c, fiber.StatusBadRequest, "INVALID_OWNER_KIND", "unknown owner kind")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(fiber.Map{"documents": docs})
	}
}

// DownloadDocument streams a document's content under its original filename.
func DownloadDocument(svc service.AttachmentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		rc, doc, err := svc.FetchContent(c.UserContext(), id)
		if err != nil {
			// A missing blob is indistinguishable from a missing document to
			// the caller; the integrity fault is already logged downstream.
			if errors.Is(err, service.ErrDocumentNotFound) || errors.Is(err, service.ErrBlobMissing) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		c.Set(fiber.HeaderContentType, doc.ContentType)
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+doc.OriginalFilename+`"`)
		return c.SendStream(rc)
	}
}

// ExportDocumentsArchive sends a zip of every retrievable document of an owner.
func ExportDocumentsArchive(svc service.AttachmentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		kind, ownerID, ok := parseOwner(c)
		if !ok {
			return nil
		}
		var buf bytes.Buffer
		if _, err := svc.ExportArchive(c.UserContext(), kind, ownerID, &buf); err != nil {
			if errors.Is(err, service.ErrInvalidOwnerKind) {
				return writeError(c, fiber.StatusBadRequest, "INVALID_OWNER_KIND", "unknown owner kind")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		c.Set(fiber.HeaderContentType, "application/zip")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s-%d-documents.zip"`, kind, ownerID))
		return c.Send(buf.Bytes())
	}
}

// DeleteDocument removes a document's blob and metadata.
func DeleteDocument(svc service.AttachmentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := svc.Delete(c.UserContext(), id); err != nil {
			if errors.Is(err, service.ErrDocumentNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// updateRequestBody is the wire shape of a workflow patch. Status is
// validated against the closed set before it reaches the service.
type updateRequestBody struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Location    *string    `json:"location"`
	Date        *time.Time `json:"date"`
	Type        *string    `json:"type"`
	Status      *string    `json:"status"`
}

// UpdateRequest applies a partial update to an event, demande or authorization.
func UpdateRequest(svc service.WorkflowService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		kind, id, ok := parseOwner(c)
		if !ok {
			return nil
		}
		if !kind.HasWorkflow() {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OWNER_KIND", "kind has no workflow")
		}

		var body updateRequestBody
		if err := c.BodyParser(&body); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "cannot parse request body")
		}

		patch := service.WorkflowPatch{
			Name:        body.Name,
			Description: body.Description,
			Location:    body.Location,
			Date:        body.Date,
			Type:        body.Type,
		}
		if body.Status != nil {
			st, ok := model.ParseStatus(*body.Status)
			if !ok {
				return writeError(c, fiber.StatusBadRequest, "INVALID_STATUS", "status must be PENDING, ACCEPTED or REJECTED")
			}
			patch.Status = &st
		}

		entity, err := svc.ApplyUpdate(c.UserContext(), kind, id, patch)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "entity not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(entity)
	}
}

// DeleteRequest removes an event, demande or authorization unless its status
// is terminal.
func DeleteRequest(svc service.WorkflowService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		kind, id, ok := parseOwner(c)
		if !ok {
			return nil
		}
		if !kind.HasWorkflow() {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OWNER_KIND", "kind has no workflow")
		}
		if err := svc.GuardedDelete(c.UserContext(), kind, id); err != nil {
			switch {
			case errors.Is(err, service.ErrNotFound):
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "entity not found")
			case errors.Is(err, service.ErrTerminalStatus):
				return writeError(c, fiber.StatusConflict, "TERMINAL_STATUS", "cannot delete an entity with ACCEPTED or REJECTED status")
			default:
				return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
