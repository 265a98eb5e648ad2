package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TemplateKind string

const (
	TemplateStation TemplateKind = "station"
	TemplateCheck   TemplateKind = "check"
)

// TemplateCategory drives which analytics a completed step contributes:
// receiving steps stamp the received milestone and carry incoming weight,
// assay steps carry fine content, casting steps carry output weight, and
// export steps stamp the first-export milestone.
type TemplateCategory string

const (
	CategoryReceiving TemplateCategory = "receiving"
	CategoryAssay     TemplateCategory = "assay"
	CategoryMelt      TemplateCategory = "melt"
	CategoryCasting   TemplateCategory = "casting"
	CategoryExport    TemplateCategory = "export"
	CategoryGeneric   TemplateCategory = "generic"
)

// Template is a catalog entry for a station or quality check.
type Template struct {
	ID       uuid.UUID        `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Kind     TemplateKind     `gorm:"column:kind;type:text;not null;index" json:"kind"`
	Category TemplateCategory `gorm:"column:category;type:text;not null;default:'generic'" json:"category"`
	Name     string           `gorm:"column:name;not null" json:"name"`

	SOPSteps   datatypes.JSON `gorm:"column:sop_steps;type:jsonb" json:"sop_steps,omitempty"`
	ToleranceG *float64       `gorm:"column:tolerance_g" json:"tolerance_g,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Template) TableName() string { return "template" }
