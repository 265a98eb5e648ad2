package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventBatchCreated      EventType = "batch_created"
	EventBatchStarted      EventType = "batch_started"
	EventStepCompleted     EventType = "step_completed"
	EventBatchCompleted    EventType = "batch_completed"
	EventExceptionFlagged  EventType = "exception_flagged"
	EventExceptionApproved EventType = "exception_approved"
)

// BatchEvent is one immutable entry of a batch's audit trail. Events are
// only ever appended; derived figures are recomputed from them, never
// written back.
type BatchEvent struct {
	EventID uuid.UUID `json:"event_id"`
	Type    EventType `json:"type"`
	At      time.Time `json:"at"`
	UserID  uuid.UUID `json:"user_id"`
	Station string    `json:"station,omitempty"`
	Step    string    `json:"step,omitempty"`
	Data    EventData `json:"data,omitempty"`
}

// EventData is a closed union of known payload shapes plus an unstructured
// fallback, keyed by which member is set. Unknown generic key/value data
// lands in Fields so forward compatibility is preserved without giving up
// typed access to the shapes the system understands.
type EventData struct {
	MassCheck *MassCheckData   `json:"mass_check,omitempty"`
	Signature *SignatureData   `json:"signature,omitempty"`
	Exception *ExceptionDetail `json:"exception,omitempty"`
	Fields    map[string]any   `json:"fields,omitempty"`
}

// MassCheckData records a mass reconciliation at a check node.
type MassCheckData struct {
	ExpectedG float64 `json:"expected_g"`
	MeasuredG float64 `json:"measured_g"`
	VarianceG float64 `json:"variance_g"`
}

// SignatureData records a human sign-off captured with a step.
type SignatureData struct {
	SignedBy string `json:"signed_by"`
	Method   string `json:"method,omitempty"`
}

// ExceptionDetail mirrors the flag that raised or cleared an exception.
type ExceptionDetail struct {
	Type      string `json:"type"`
	Reason    string `json:"reason,omitempty"`
	Notes     string `json:"notes,omitempty"`
	FlagIndex int    `json:"flag_index"`
}

// EventList is persisted as a jsonb array on the batch row.
type EventList []BatchEvent
