package services

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/meridianrefining/refinery-backend/internal/data/repos"
	types "github.com/meridianrefining/refinery-backend/internal/domain"
	"github.com/meridianrefining/refinery-backend/internal/flowgraph"
	"github.com/meridianrefining/refinery-backend/internal/observability"
	"github.com/meridianrefining/refinery-backend/internal/pkg/ctxutil"
	"github.com/meridianrefining/refinery-backend/internal/pkg/dbctx"
	"github.com/meridianrefining/refinery-backend/internal/pkg/logger"
)

type CreateBatchInput struct {
	BatchNumber     string              `json:"batch_number" binding:"required"`
	Pipeline        string              `json:"pipeline" binding:"required"`
	InitialWeightG  *float64            `json:"initial_weight_g,omitempty"`
	Priority        types.BatchPriority `json:"priority,omitempty"`
}

type FlagBatchInput struct {
	Type   types.FlagType `json:"type" binding:"required"`
	Reason string         `json:"reason" binding:"required"`
	Notes  string         `json:"notes,omitempty"`
}

// BatchDetail is the read-side join of a batch with its resolved position
// in the bound flow.
type BatchDetail struct {
	Batch       *types.Batch    `json:"batch"`
	CurrentNode *types.FlowNode `json:"current_node,omitempty"`
	NextNode    *types.FlowNode `json:"next_node,omitempty"`
}

type BatchService interface {
	Create(dbc dbctx.Context, input CreateBatchInput) (*types.Batch, error)
	Get(dbc dbctx.Context, id uuid.UUID) (*BatchDetail, error)
	Start(dbc dbctx.Context, id uuid.UUID) (*types.Batch, error)
	CompleteStep(dbc dbctx.Context, id uuid.UUID, sd StepData) (*types.Batch, error)
	Flag(dbc dbctx.Context, id uuid.UUID, input FlagBatchInput) (*types.Batch, error)
	ApproveException(dbc dbctx.Context, id uuid.UUID, flagIndex *int, notes string) (*types.Batch, error)
}

type batchService struct {
	db        *gorm.DB
	log       *logger.Logger
	batches   repos.BatchRepo
	flows     repos.FlowRepo
	templates repos.TemplateRepo
	calc      *AnalyticsCalculator
	metrics   *observability.Metrics

	// requireAllFlags keeps a batch flagged until every flag is approved.
	// Off by default: approving any single flag releases the batch, which
	// matches the historical behavior operators are used to.
	requireAllFlags bool
}

func NewBatchService(
	db *gorm.DB,
	baseLog *logger.Logger,
	batches repos.BatchRepo,
	flows repos.FlowRepo,
	templates repos.TemplateRepo,
	calc *AnalyticsCalculator,
	metrics *observability.Metrics,
	requireAllFlags bool,
) BatchService {
	return &batchService{
		db:              db,
		log:             baseLog.With("service", "BatchService"),
		batches:         batches,
		flows:           flows,
		templates:       templates,
		calc:            calc,
		metrics:         metrics,
		requireAllFlags: requireAllFlags,
	}
}

func (s *batchService) requestUser(dbc dbctx.Context) (uuid.UUID, types.Role) {
	rd := ctxutil.GetRequestData(dbc.Ctx)
	if rd == nil {
		return uuid.Nil, ""
	}
	return rd.UserID, types.Role(rd.Role)
}

func (s *batchService) Create(dbc dbctx.Context, input CreateBatchInput) (*types.Batch, error) {
	if input.BatchNumber == "" {
		return nil, fmt.Errorf("missing batch_number")
	}
	if input.Pipeline == "" {
		return nil, fmt.Errorf("missing pipeline")
	}
	if existing, err := s.batches.GetByNumber(dbc, input.BatchNumber); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, fmt.Errorf("batch number %s already exists", input.BatchNumber)
	}

	flow, err := s.flows.GetActiveByPipeline(dbc, input.Pipeline)
	if err != nil {
		return nil, err
	}
	if flow == nil {
		return nil, fmt.Errorf("no active flow for pipeline %s: %w", input.Pipeline, types.ErrNotFound)
	}
	start, err := flowgraph.StartNode(flow)
	if err != nil {
		return nil, err
	}

	userID, _ := s.requestUser(dbc)
	priority := input.Priority
	if priority == "" {
		priority = types.PriorityNormal
	}

	batch := &types.Batch{
		ID:               uuid.New(),
		BatchNumber:      input.BatchNumber,
		Pipeline:         input.Pipeline,
		FlowID:           flow.ID,
		FlowVersion:      flow.Version,
		CurrentNodeID:    &start.ID,
		CompletedNodeIDs: types.UUIDList{},
		Status:           types.BatchCreated,
		Priority:         priority,
		CreatedBy:        userID,
		ReceivedWeightG:  input.InitialWeightG,
		Events:           types.EventList{},
		Flags:            types.FlagList{},
	}
	batch.AppendEvent(types.EventBatchCreated, userID, start.Name, "", types.EventData{})

	if _, err := s.batches.Create(dbc, batch); err != nil {
		return nil, err
	}
	s.log.Info("Batch created",
		"batch_id", batch.ID, "batch_number", batch.BatchNumber,
		"pipeline", batch.Pipeline, "flow_id", flow.ID, "flow_version", flow.Version)
	return batch, nil
}

func (s *batchService) Get(dbc dbctx.Context, id uuid.UUID) (*BatchDetail, error) {
	batch, err := s.batches.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, types.ErrNotFound
	}
	detail := &BatchDetail{Batch: batch}
	if batch.CurrentNodeID == nil {
		return detail, nil
	}
	flow, err := s.flows.GetByID(dbc, batch.FlowID)
	if err != nil || flow == nil {
		// The read still succeeds; position just cannot be resolved.
		return detail, nil
	}
	detail.CurrentNode = flowgraph.NodeByID(flow, *batch.CurrentNodeID)
	if next, err := flowgraph.NextNode(flow, *batch.CurrentNodeID); err == nil {
		detail.NextNode = next
	}
	return detail, nil
}

func (s *batchService) Start(dbc dbctx.Context, id uuid.UUID) (*types.Batch, error) {
	batch, err := s.loadForUpdate(dbc, id)
	if err != nil {
		return nil, err
	}
	switch batch.Status {
	case types.BatchInProgress:
		// Idempotent re-start.
		return batch, nil
	case types.BatchCreated:
	default:
		return nil, &types.InvalidTransitionError{Op: "start", From: batch.Status}
	}

	userID, _ := s.requestUser(dbc)
	now := time.Now().UTC()
	if batch.StartedAt == nil {
		batch.StartedAt = &now
	}
	from := batch.Status
	batch.Status = types.BatchInProgress
	batch.AppendEvent(types.EventBatchStarted, userID, s.stationName(dbc, batch), "", types.EventData{})

	if err := s.save(dbc, batch); err != nil {
		return nil, err
	}
	s.metrics.BatchTransition(string(from), string(batch.Status))
	return batch, nil
}

func (s *batchService) CompleteStep(dbc dbctx.Context, id uuid.UUID, sd StepData) (*types.Batch, error) {
	batch, err := s.loadForUpdate(dbc, id)
	if err != nil {
		return nil, err
	}
	if batch.Status == types.BatchCompleted {
		return nil, &types.InvalidTransitionError{Op: "complete_step", From: batch.Status}
	}
	if batch.CurrentNodeID == nil {
		return nil, &types.GraphError{FlowID: batch.FlowID, Reason: "batch has no current node"}
	}

	flow, err := s.flows.GetByID(dbc, batch.FlowID)
	if err != nil {
		return nil, err
	}
	if flow == nil {
		return nil, fmt.Errorf("flow %s bound to batch %s: %w", batch.FlowID, batch.BatchNumber, types.ErrNotFound)
	}

	currentID := *batch.CurrentNodeID
	node := flowgraph.NodeByID(flow, currentID)
	if node == nil {
		// Flows can be edited while batches are in flight; the step still
		// completes against the recorded node id.
		s.log.Warn("Current node missing from bound flow",
			"batch_id", batch.ID, "flow_id", flow.ID, "node_id", currentID)
	}

	// Resolve the next hop before mutating, so a broken graph rejects the
	// operation with the stored batch untouched.
	next, err := flowgraph.NextNode(flow, currentID)
	if err != nil {
		return nil, err
	}

	userID, _ := s.requestUser(dbc)
	now := time.Now().UTC()
	from := batch.Status

	terminal := next == nil
	if terminal && batch.Status == types.BatchFlagged {
		// Pending exceptions gate final completion; every path to
		// completed goes through in_progress.
		return nil, &types.InvalidTransitionError{Op: "complete_final_step", From: batch.Status}
	}

	batch.MarkNodeCompleted(currentID)

	station, category := s.nodeStation(dbc, node)
	batch.AppendEvent(types.EventStepCompleted, userID, station, string(category), sd.EventData())

	if batch.Status == types.BatchCreated {
		batch.Status = types.BatchInProgress
		if batch.StartedAt == nil {
			batch.StartedAt = &now
		}
	}

	if aerr := s.calc.ApplyStep(batch, category, sd, now); aerr != nil {
		// Analytics must never block physical progress.
		s.log.Error("Per-step analytics failed, continuing", "batch_id", batch.ID, "error", aerr)
		s.metrics.AnalyticsFailure("per-step")
	}

	if terminal {
		batch.Status = types.BatchCompleted
		batch.CompletedAt = &now
		if batch.StartedAt != nil {
			mins := int(math.Round(now.Sub(*batch.StartedAt).Minutes()))
			batch.DurationMinutes = &mins
		}
		if aerr := s.calc.Finalize(batch); aerr != nil {
			s.log.Error("Terminal analytics failed, continuing", "batch_id", batch.ID, "error", aerr)
			s.metrics.AnalyticsFailure("finalize")
		}
		batch.AppendEvent(types.EventBatchCompleted, userID, station, "", types.EventData{})
	} else {
		batch.CurrentNodeID = &next.ID
	}

	if err := s.save(dbc, batch); err != nil {
		return nil, err
	}
	s.metrics.StepCompleted(batch.Pipeline, station)
	if from != batch.Status {
		s.metrics.BatchTransition(string(from), string(batch.Status))
	}
	s.log.Info("Step completed",
		"batch_id", batch.ID, "station", station, "status", batch.Status,
		"completed_nodes", len(batch.CompletedNodeIDs))
	return batch, nil
}

func (s *batchService) Flag(dbc dbctx.Context, id uuid.UUID, input FlagBatchInput) (*types.Batch, error) {
	batch, err := s.loadForUpdate(dbc, id)
	if err != nil {
		return nil, err
	}
	if batch.Status == types.BatchCompleted {
		return nil, &types.InvalidTransitionError{Op: "flag", From: batch.Status}
	}

	userID, _ := s.requestUser(dbc)
	now := time.Now().UTC()
	flag := types.BatchFlag{
		Type:      input.Type,
		Reason:    input.Reason,
		FlaggedAt: now,
		FlaggedBy: userID,
		Notes:     input.Notes,
	}
	batch.Flags = append(batch.Flags, flag)
	batch.AppendEvent(types.EventExceptionFlagged, userID, s.stationName(dbc, batch), "", types.EventData{
		Exception: &types.ExceptionDetail{
			Type:      string(input.Type),
			Reason:    input.Reason,
			Notes:     input.Notes,
			FlagIndex: len(batch.Flags) - 1,
		},
	})

	from := batch.Status
	batch.Status = types.BatchFlagged

	if err := s.save(dbc, batch); err != nil {
		return nil, err
	}
	if from != batch.Status {
		s.metrics.BatchTransition(string(from), string(batch.Status))
	}
	s.log.Warn("Batch flagged",
		"batch_id", batch.ID, "type", input.Type, "reason", input.Reason,
		"pending_flags", len(batch.Flags))
	return batch, nil
}

func (s *batchService) ApproveException(dbc dbctx.Context, id uuid.UUID, flagIndex *int, notes string) (*types.Batch, error) {
	userID, role := s.requestUser(dbc)
	if !role.CanApproveExceptions() {
		return nil, fmt.Errorf("role %s cannot approve exceptions: %w", role, types.ErrForbidden)
	}

	batch, err := s.loadForUpdate(dbc, id)
	if err != nil {
		return nil, err
	}
	if batch.Status != types.BatchFlagged {
		return nil, &types.InvalidTransitionError{Op: "approve_exception", From: batch.Status}
	}
	if len(batch.Flags) == 0 {
		return nil, fmt.Errorf("batch %s has no flags: %w", batch.BatchNumber, types.ErrNotFound)
	}

	idx := len(batch.Flags) - 1
	if flagIndex != nil {
		idx = *flagIndex
	}
	if idx < 0 || idx >= len(batch.Flags) {
		return nil, fmt.Errorf("flag index %d: %w", idx, types.ErrNotFound)
	}
	if !batch.Flags[idx].Pending() {
		return nil, fmt.Errorf("flag %d: %w", idx, types.ErrFlagAlreadyApproved)
	}

	now := time.Now().UTC()
	batch.Flags[idx].ApprovedBy = &userID
	batch.Flags[idx].ApprovedAt = &now
	if notes != "" {
		batch.Flags[idx].Notes = notes
	}
	batch.AppendEvent(types.EventExceptionApproved, userID, s.stationName(dbc, batch), "", types.EventData{
		Exception: &types.ExceptionDetail{
			Type:      string(batch.Flags[idx].Type),
			Reason:    batch.Flags[idx].Reason,
			Notes:     notes,
			FlagIndex: idx,
		},
	})

	from := batch.Status
	if !s.requireAllFlags || !batch.Flags.AnyPending() {
		batch.Status = types.BatchInProgress
	}

	if err := s.save(dbc, batch); err != nil {
		return nil, err
	}
	if from != batch.Status {
		s.metrics.BatchTransition(string(from), string(batch.Status))
	}
	s.log.Info("Exception approved",
		"batch_id", batch.ID, "flag_index", idx, "status", batch.Status)
	return batch, nil
}

func (s *batchService) loadForUpdate(dbc dbctx.Context, id uuid.UUID) (*types.Batch, error) {
	batch, err := s.batches.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, types.ErrNotFound
	}
	return batch, nil
}

func (s *batchService) save(dbc dbctx.Context, batch *types.Batch) error {
	err := s.batches.UpdateWithVersion(dbc, batch)
	if err == types.ErrVersionConflict {
		s.metrics.VersionConflict()
		s.log.Warn("Concurrent batch update rejected", "batch_id", batch.ID, "version", batch.Version)
	}
	return err
}

// nodeStation resolves the display station name and analytics category for
// a node, tolerating missing nodes and templates.
func (s *batchService) nodeStation(dbc dbctx.Context, node *types.FlowNode) (string, types.TemplateCategory) {
	if node == nil {
		return "", types.CategoryGeneric
	}
	tpl, err := s.templates.GetByID(dbc, node.TemplateID)
	if err != nil || tpl == nil {
		if err != nil {
			s.log.Warn("Template lookup failed", "template_id", node.TemplateID, "error", err)
		}
		return node.Name, types.CategoryGeneric
	}
	return node.Name, tpl.Category
}

func (s *batchService) stationName(dbc dbctx.Context, batch *types.Batch) string {
	if batch.CurrentNodeID == nil {
		return ""
	}
	flow, err := s.flows.GetByID(dbc, batch.FlowID)
	if err != nil || flow == nil {
		return ""
	}
	if node := flowgraph.NodeByID(flow, *batch.CurrentNodeID); node != nil {
		return node.Name
	}
	return ""
}
