package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrNotFound marks a missing batch, flow, template, or flag index.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict marks an optimistic-concurrency save rejection;
	// the caller should reload and retry.
	ErrVersionConflict = errors.New("version conflict")
	// ErrForbidden marks an operation the caller's role does not permit.
	ErrForbidden = errors.New("forbidden")
	// ErrFlagAlreadyApproved marks a second approval attempt on one flag;
	// approval fields are set exactly once.
	ErrFlagAlreadyApproved = errors.New("flag already approved")
)

// InvalidTransitionError rejects a state-machine operation that is not
// legal from the batch's current status. The message names the failed
// precondition so operators can self-correct.
type InvalidTransitionError struct {
	Op   string
	From BatchStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s rejected: batch is %s", e.Op, e.From)
}

// GraphError marks a flow whose structure cannot answer a traversal query:
// zero or ambiguous start nodes, or an edge pointing at a missing node.
type GraphError struct {
	FlowID uuid.UUID
	Reason string
}

func (e *GraphError) Error() string {
	if e.FlowID == uuid.Nil {
		return fmt.Sprintf("flow graph error: %s", e.Reason)
	}
	return fmt.Sprintf("flow graph error (%s): %s", e.FlowID, e.Reason)
}

// AnalyticsError wraps a failed derivation. It is always absorbed at the
// call site: analytics must never block physical batch progress.
type AnalyticsError struct {
	Stage string
	Err   error
}

func (e *AnalyticsError) Error() string {
	return fmt.Sprintf("analytics %s failed: %v", e.Stage, e.Err)
}

func (e *AnalyticsError) Unwrap() error { return e.Err }
