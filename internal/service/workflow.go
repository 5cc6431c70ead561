package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"citydesk/internal/model"
	"citydesk/internal/notify"
	"citydesk/internal/repository"
)

var (
	ErrNotFound       = errors.New("entity not found")
	ErrTerminalStatus = errors.New("cannot delete an entity with ACCEPTED or REJECTED status")
)

// WorkflowPatch is a field-level partial update. Nil fields are left
// untouched; non-nil fields overwrite.
type WorkflowPatch struct {
	Name        *string       `json:"name"`
	Description *string       `json:"description"`
	Location    *string       `json:"location"`
	Date        *time.Time    `json:"date"`
	Type        *string       `json:"type"`
	Status      *model.Status `json:"status"`
}

// WorkflowService moves events, demandes and authorizations through the
// PENDING → ACCEPTED/REJECTED lifecycle.
type WorkflowService interface {
	// ApplyUpdate merges the patch onto the entity and persists it. A status
	// change into a terminal state triggers a best-effort notification after
	// persistence; delivery failure never surfaces to the caller.
	ApplyUpdate(ctx context.Context, kind model.OwnerKind, id int64, patch WorkflowPatch) (*model.WorkflowEntity, error)

	// GuardedDelete removes the entity unless its status is terminal. The
	// entity's documents, and those of its comments, are purged with it;
	// comment rows themselves cascade in the schema.
	GuardedDelete(ctx context.Context, kind model.OwnerKind, id int64) error
}

// DocumentPurger is the slice of the attachment service the workflow engine
// needs when an owner goes away.
type DocumentPurger interface {
	DeleteByOwner(ctx context.Context, kind model.OwnerKind, ownerID int64) error
}

// workflowService is a concrete implementation of WorkflowService.
type workflowService struct {
	repo        repository.WorkflowRepository
	notifier    notify.Notifier
	attachments DocumentPurger
}

// NewWorkflowService constructs a new WorkflowService.
func NewWorkflowService(repo repository.WorkflowRepository, notifier notify.Notifier, attachments DocumentPurger) WorkflowService {
	return &workflowService{repo: repo, notifier: notifier, attachments: attachments}
}

// Mail subjects per entity kind, as sent to request creators.
var statusMailSubjects = map[model.OwnerKind]string{
	model.OwnerEvent:         "تحديث حالة الحدث",
	model.OwnerDemande:       "تحديث حالة الطلب",
	model.OwnerAuthorization: "تحديث حالة التصريح",
}

func (s *workflowService) ApplyUpdate(ctx context.Context, kind model.OwnerKind, id int64, patch WorkflowPatch) (*model.WorkflowEntity, error) {
	if !kind.HasWorkflow() {
		return nil, ErrInvalidOwnerKind
	}

	e, err := s.repo.FindByID(ctx, kind, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	prev := e.Status
	applyPatch(e, patch)

	updated, err := s.repo.Update(ctx, e)
	if err != nil {
		return nil, err
	}

	// Notify only on a genuine transition into a terminal state; re-sending
	// the current status is a no-op.
	if updated.Status != prev && updated.Status.Terminal() {
		s.sendStatusMail(ctx, updated)
	}
	return updated, nil
}

func applyPatch(e *model.WorkflowEntity, patch WorkflowPatch) {
	if patch.Name != nil {
		e.Name = *patch.Name
	}
	if patch.Description != nil {
		e.Description = *patch.Description
	}
	if patch.Location != nil {
		e.Location = *patch.Location
	}
	if patch.Date != nil {
		e.Date = *patch.Date
	}
	if patch.Type != nil {
		e.Type = *patch.Type
	}
	if patch.Status != nil {
		e.Status = *patch.Status
	}
}

// sendStatusMail is fire-and-forget from the caller's perspective: failures
// are logged and swallowed so a mail outage never reads as a failed update.
func (s *workflowService) sendStatusMail(ctx context.Context, e *model.WorkflowEntity) {
	if e.CreatedBy == nil || e.CreatedBy.Email == "" {
		logJSON(map[string]any{
			"component": "workflow",
			"event":     "notify_skipped",
			"level":     "warn",
			"kind":      string(e.Kind),
			"entity_id": e.ID,
			"reason":    "no recipient address",
		})
		return
	}

	msg := notify.Message{
		TemplateKey: string(e.Kind) + "-status-change",
		To:          e.CreatedBy.Email,
		Subject:     statusMailSubjects[e.Kind],
		Context: map[string]string{
			"name":           e.CreatedBy.FirstName + " " + e.CreatedBy.LastName,
			"entityName":     e.Name,
			"status":         string(e.Status),
			"entityDate":     notify.FormatArabicDate(e.Date),
			"entityLocation": e.Location,
		},
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		logJSON(map[string]any{
			"component": "workflow",
			"event":     "notify_failed",
			"level":     "error",
			"kind":      string(e.Kind),
			"entity_id": e.ID,
			"error":     err.Error(),
		})
	}
}

func (s *workflowService) GuardedDelete(ctx context.Context, kind model.OwnerKind, id int64) error {
	if !kind.HasWorkflow() {
		return ErrInvalidOwnerKind
	}

	e, err := s.repo.FindByID(ctx, kind, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if e.Status.Terminal() {
		return fmt.Errorf("%s %d is %s: %w", kind, id, e.Status, ErrTerminalStatus)
	}

	// Documents reference owners by (kind, id) without a foreign key, so the
	// schema cannot cascade them; purge them here before the row goes. That
	// includes documents attached to comments the row's deletion will cascade.
	commentIDs, err := s.repo.ListCommentIDs(ctx, kind, id)
	if err != nil {
		return fmt.Errorf("list comments: %w", err)
	}
	for _, cid := range commentIDs {
		if err := s.attachments.DeleteByOwner(ctx, model.OwnerComment, cid); err != nil {
			return fmt.Errorf("purge comment %d documents: %w", cid, err)
		}
	}
	if err := s.attachments.DeleteByOwner(ctx, kind, id); err != nil {
		return fmt.Errorf("purge documents: %w", err)
	}

	return s.repo.Delete(ctx, kind, id)
}
