package model

import "time"

// AuditAction is the kind of state change an audit event records.
type AuditAction string

const (
	ActionCreate AuditAction = "CREATE"
	ActionUpdate AuditAction = "UPDATE"
	ActionDelete AuditAction = "DELETE"
	ActionSync   AuditAction = "SYNC"
)

// SubjectType tells whether an event concerns one product or the whole system.
type SubjectType string

const (
	SubjectProduct SubjectType = "PRODUCT"
	SubjectSystem  SubjectType = "SYSTEM"
)

// AuditEvent is an immutable record of a state-changing operation.
type AuditEvent struct {
	ID          int64       `json:"id,omitempty" bson:"-"`
	Action      AuditAction `json:"action" bson:"action"`
	SubjectType SubjectType `json:"subject_type" bson:"subject_type"`
	Target      *string     `json:"target,omitempty" bson:"target,omitempty"`
	Payload     string      `json:"payload" bson:"payload"`
	Succeeded   bool        `json:"succeeded" bson:"succeeded"`
	OccurredAt  time.Time   `json:"occurred_at" bson:"occurred_at"`
}

// AuditLogPage is a page of the audit trail, newest first.
type AuditLogPage struct {
	Items           []AuditEvent `json:"items"`
	CurrentPage     int          `json:"current_page"`
	TotalPages      int          `json:"total_pages"`
	PerPage         int          `json:"per_page"`
	Total           int64        `json:"total"`
	HasNextPage     bool         `json:"has_next_page"`
	HasPreviousPage bool         `json:"has_previous_page"`
}

// NewProductEvent builds a successful PRODUCT-scoped event.
func NewProductEvent(action AuditAction, productID, payload string) AuditEvent {
	return AuditEvent{
		Action:      action,
		SubjectType: SubjectProduct,
		Target:      StringPtr(productID),
		Payload:     payload,
		Succeeded:   true,
	}
}

// NewSystemEvent builds a successful SYSTEM-scoped event.
func NewSystemEvent(action AuditAction, payload string) AuditEvent {
	return AuditEvent{
		Action:      action,
		SubjectType: SubjectSystem,
		Payload:     payload,
		Succeeded:   true,
	}
}
