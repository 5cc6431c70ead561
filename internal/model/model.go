package model

// Package model contains domain models/data structures.
// No business logic and no database-specific tags here; these types cross
// the HTTP, service and persistence layers freely.

import "time"

// OwnerKind identifies which entity a document is attached to.
// The set is closed; anything else is rejected before reaching persistence.
type OwnerKind string

const (
	OwnerEvent         OwnerKind = "event"
	OwnerDemande       OwnerKind = "demande"
	OwnerAuthorization OwnerKind = "authorization"
	OwnerComment       OwnerKind = "comment"
)

// ParseOwnerKind maps a path segment to an OwnerKind.
func ParseOwnerKind(s string) (OwnerKind, bool) {
	switch OwnerKind(s) {
	case OwnerEvent, OwnerDemande, OwnerAuthorization, OwnerComment:
		return OwnerKind(s), true
	}
	return "", false
}

// Valid reports whether k is one of the four known owner kinds.
func (k OwnerKind) Valid() bool {
	_, ok := ParseOwnerKind(string(k))
	return ok
}

// HasWorkflow reports whether entities of this kind carry a status lifecycle.
// Comments can own documents but have no status.
func (k OwnerKind) HasWorkflow() bool {
	return k == OwnerEvent || k == OwnerDemande || k == OwnerAuthorization
}

// Status is the shared request lifecycle status. Every workflow entity starts
// PENDING and is resolved to ACCEPTED or REJECTED by an administrator.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
)

// ParseStatus maps a request payload value to a Status.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusAccepted, StatusRejected:
		return Status(s), true
	}
	return "", false
}

// Terminal reports whether the status blocks deletion of its entity.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// User is the creator of a workflow entity, loaded alongside it so the
// notification layer knows who to address.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// WorkflowEntity is the common shape of events, demandes and authorizations.
// Kind selects the backing table; the domain fields are identical across the three.
type WorkflowEntity struct {
	ID              int64     `json:"id"`
	Kind            OwnerKind `json:"kind"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Location        string    `json:"location"`
	Date            time.Time `json:"date"`
	Type            string    `json:"type"`
	Status          Status    `json:"status"`
	CreatedByUserID int64     `json:"created_by_user_id"`
	CreatedBy       *User     `json:"created_by,omitempty"`
}

// Comment is a remark left on a workflow entity. It can own documents but has
// no status of its own.
type Comment struct {
	ID          int64     `json:"id"`
	CommentText string    `json:"comment_text"`
	CreatedAt   time.Time `json:"created_at"`
	UserID      int64     `json:"user_id"`
}
