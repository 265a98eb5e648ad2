package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BatchStatus string

const (
	BatchCreated    BatchStatus = "created"
	BatchInProgress BatchStatus = "in_progress"
	BatchFlagged    BatchStatus = "flagged"
	BatchCompleted  BatchStatus = "completed"
)

type BatchPriority string

const (
	PriorityNormal BatchPriority = "normal"
	PriorityHigh   BatchPriority = "high"
)

// UUIDList is persisted as a jsonb array.
type UUIDList []uuid.UUID

// Contains reports whether id is present.
func (l UUIDList) Contains(id uuid.UUID) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

// Batch is one physical unit of material traversing a flow. It is bound to
// the flow id+version at creation and not revalidated if the flow changes
// later. The batch exclusively owns its events and flags; Version is an
// optimistic concurrency counter checked on every save.
type Batch struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BatchNumber string    `gorm:"column:batch_number;not null;uniqueIndex" json:"batch_number"`
	Pipeline    string    `gorm:"column:pipeline;not null;index" json:"pipeline"`

	FlowID      uuid.UUID `gorm:"type:uuid;column:flow_id;not null;index" json:"flow_id"`
	FlowVersion string    `gorm:"column:flow_version;not null" json:"flow_version"`

	CurrentNodeID    *uuid.UUID `gorm:"type:uuid;column:current_node_id" json:"current_node_id,omitempty"`
	CompletedNodeIDs UUIDList   `gorm:"column:completed_node_ids;type:jsonb;serializer:json" json:"completed_node_ids"`

	Status   BatchStatus   `gorm:"column:status;type:text;not null;default:'created';index" json:"status"`
	Priority BatchPriority `gorm:"column:priority;type:text;not null;default:'normal'" json:"priority"`
	Version  int           `gorm:"column:version;not null;default:0" json:"version"`

	CreatedBy uuid.UUID `gorm:"type:uuid;column:created_by;not null;index" json:"created_by"`

	// Analytics fields, all optional; derived ones are recomputed from the
	// inputs on every per-step update, never accumulated.
	ReceivedWeightG        *float64 `gorm:"column:received_weight_g" json:"received_weight_g,omitempty"`
	FineContentPercent     *float64 `gorm:"column:fine_content_percent" json:"fine_content_percent,omitempty"`
	FineGramsReceived      *float64 `gorm:"column:fine_grams_received" json:"fine_grams_received,omitempty"`
	ExpectedOutputG        *float64 `gorm:"column:expected_output_g" json:"expected_output_g,omitempty"`
	ActualOutputG          *float64 `gorm:"column:actual_output_g" json:"actual_output_g,omitempty"`
	LossGainG              *float64 `gorm:"column:loss_gain_g" json:"loss_gain_g,omitempty"`
	LossGainPercent        *float64 `gorm:"column:loss_gain_percent" json:"loss_gain_percent,omitempty"`
	OverallRecoveryPercent *float64 `gorm:"column:overall_recovery_percent" json:"overall_recovery_percent,omitempty"`
	FTTHours               *int     `gorm:"column:ftt_hours" json:"ftt_hours,omitempty"`

	ReceivedAt    *time.Time `gorm:"column:received_at" json:"received_at,omitempty"`
	FirstExportAt *time.Time `gorm:"column:first_export_at" json:"first_export_at,omitempty"`

	StartedAt       *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt     *time.Time `gorm:"column:completed_at;index" json:"completed_at,omitempty"`
	DurationMinutes *int       `gorm:"column:duration_minutes" json:"duration_minutes,omitempty"`

	Events EventList `gorm:"column:events;type:jsonb;serializer:json" json:"events"`
	Flags  FlagList  `gorm:"column:flags;type:jsonb;serializer:json" json:"flags"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Batch) TableName() string { return "batch" }

// AppendEvent appends to the audit trail. Events are never mutated or
// removed after this point.
func (b *Batch) AppendEvent(eventType EventType, userID uuid.UUID, station, step string, data EventData) {
	b.Events = append(b.Events, BatchEvent{
		EventID: uuid.New(),
		Type:    eventType,
		At:      time.Now().UTC(),
		UserID:  userID,
		Station: station,
		Step:    step,
		Data:    data,
	})
}

// MarkNodeCompleted adds nodeID to the completed set. The add is idempotent
// so completed_node_ids only ever grows.
func (b *Batch) MarkNodeCompleted(nodeID uuid.UUID) {
	if !b.CompletedNodeIDs.Contains(nodeID) {
		b.CompletedNodeIDs = append(b.CompletedNodeIDs, nodeID)
	}
}
