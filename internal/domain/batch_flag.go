package domain

import (
	"time"

	"github.com/google/uuid"
)

type FlagType string

const (
	FlagMassVariance  FlagType = "mass_variance"
	FlagContamination FlagType = "contamination"
	FlagEquipment     FlagType = "equipment"
	FlagDocumentation FlagType = "documentation"
	FlagOther         FlagType = "other"
)

// BatchFlag is an exception raised against a batch. Only the approval
// fields ever mutate, exactly once, via the approval operation. Pending
// state is derived from ApprovedBy being unset rather than stored, so the
// two can never diverge.
type BatchFlag struct {
	Type      FlagType  `json:"type"`
	Reason    string    `json:"reason"`
	FlaggedAt time.Time `json:"flagged_at"`
	FlaggedBy uuid.UUID `json:"flagged_by"`

	ApprovedBy *uuid.UUID `json:"approved_by,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

func (f BatchFlag) Pending() bool { return f.ApprovedBy == nil }

// FlagList is persisted as a jsonb array on the batch row.
type FlagList []BatchFlag

// AnyPending reports whether at least one flag awaits approval.
func (fl FlagList) AnyPending() bool {
	for _, f := range fl {
		if f.Pending() {
			return true
		}
	}
	return false
}
