package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type FlowStatus string

const (
	FlowDraft    FlowStatus = "draft"
	FlowActive   FlowStatus = "active"
	FlowArchived FlowStatus = "archived"
)

type NodeType string

const (
	NodeStation NodeType = "station"
	NodeCheck   NodeType = "check"
)

// Flow is a versioned directed graph template describing the sequence of
// stations and checks batches of one pipeline must pass. Only draft flows
// may be structurally edited; at most one flow per pipeline is active.
type Flow struct {
	ID       uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name     string     `gorm:"column:name;not null" json:"name"`
	Pipeline string     `gorm:"column:pipeline;not null;index:idx_flow_pipeline_status,priority:1" json:"pipeline"`
	Version  string     `gorm:"column:version;not null" json:"version"`
	Status   FlowStatus `gorm:"column:status;type:text;not null;default:'draft';index:idx_flow_pipeline_status,priority:2" json:"status"`

	Nodes []FlowNode `gorm:"foreignKey:FlowID;references:ID" json:"nodes,omitempty"`
	Edges []FlowEdge `gorm:"foreignKey:FlowID;references:ID" json:"edges,omitempty"`

	Metadata datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`

	ActivatedAt *time.Time     `gorm:"column:activated_at" json:"activated_at,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Flow) TableName() string { return "flow" }

type FlowNode struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	FlowID uuid.UUID `gorm:"type:uuid;not null;index" json:"flow_id"`

	Type       NodeType  `gorm:"column:type;type:text;not null" json:"type"`
	TemplateID uuid.UUID `gorm:"type:uuid;column:template_id;not null;index" json:"template_id"`
	Name       string    `gorm:"column:name;not null" json:"name"`
	Index      int       `gorm:"column:index;not null" json:"index"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (FlowNode) TableName() string { return "flow_node" }

type FlowEdge struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	FlowID uuid.UUID `gorm:"type:uuid;not null;index" json:"flow_id"`

	SourceNodeID uuid.UUID `gorm:"type:uuid;column:source_node_id;not null;index" json:"source_node_id"`
	TargetNodeID uuid.UUID `gorm:"type:uuid;column:target_node_id;not null" json:"target_node_id"`
	Index        int       `gorm:"column:index;not null" json:"index"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (FlowEdge) TableName() string { return "flow_edge" }
