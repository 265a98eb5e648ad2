package services

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/meridianrefining/refinery-backend/internal/data/repos"
	types "github.com/meridianrefining/refinery-backend/internal/domain"
	"github.com/meridianrefining/refinery-backend/internal/flowgraph"
	"github.com/meridianrefining/refinery-backend/internal/pkg/dbctx"
	"github.com/meridianrefining/refinery-backend/internal/pkg/logger"
)

type FlowNodeInput struct {
	Type       types.NodeType `json:"type" binding:"required"`
	TemplateID uuid.UUID      `json:"template_id" binding:"required"`
	Name       string         `json:"name" binding:"required"`
}

type FlowEdgeInput struct {
	SourceIndex int `json:"source_index"`
	TargetIndex int `json:"target_index"`
}

type CreateFlowInput struct {
	Name     string          `json:"name" binding:"required"`
	Pipeline string          `json:"pipeline" binding:"required"`
	Version  string          `json:"version" binding:"required"`
	Nodes    []FlowNodeInput `json:"nodes" binding:"required"`
	Edges    []FlowEdgeInput `json:"edges"`
}

type FlowService interface {
	Create(dbc dbctx.Context, input CreateFlowInput) (*types.Flow, error)
	Get(dbc dbctx.Context, id uuid.UUID) (*types.Flow, error)
	List(dbc dbctx.Context, pipeline string) ([]*types.Flow, error)
	GetActive(dbc dbctx.Context, pipeline string) (*types.Flow, error)
	UpdateStructure(dbc dbctx.Context, id uuid.UUID, nodes []FlowNodeInput, edges []FlowEdgeInput) (*types.Flow, error)
	Activate(dbc dbctx.Context, id uuid.UUID) (*types.Flow, error)
	Archive(dbc dbctx.Context, id uuid.UUID) error
}

type flowService struct {
	db        *gorm.DB
	log       *logger.Logger
	flows     repos.FlowRepo
	templates repos.TemplateRepo
}

func NewFlowService(db *gorm.DB, baseLog *logger.Logger, flows repos.FlowRepo, templates repos.TemplateRepo) FlowService {
	return &flowService{
		db:        db,
		log:       baseLog.With("service", "FlowService"),
		flows:     flows,
		templates: templates,
	}
}

// buildStructure materializes input nodes/edges and validates the result as
// a graph before anything is persisted. Edge inputs reference nodes by list
// position since the node ids do not exist yet.
func (s *flowService) buildStructure(dbc dbctx.Context, flowID uuid.UUID, nodeInputs []FlowNodeInput, edgeInputs []FlowEdgeInput) ([]types.FlowNode, []types.FlowEdge, error) {
	if len(nodeInputs) == 0 {
		return nil, nil, &types.GraphError{FlowID: flowID, Reason: "flow has no nodes"}
	}

	templateIDs := make([]uuid.UUID, 0, len(nodeInputs))
	for _, n := range nodeInputs {
		templateIDs = append(templateIDs, n.TemplateID)
	}
	templates, err := s.templates.GetByIDs(dbc, templateIDs)
	if err != nil {
		return nil, nil, err
	}
	known := make(map[uuid.UUID]*types.Template, len(templates))
	for _, t := range templates {
		known[t.ID] = t
	}

	nodes := make([]types.FlowNode, 0, len(nodeInputs))
	for i, n := range nodeInputs {
		tpl, ok := known[n.TemplateID]
		if !ok {
			return nil, nil, fmt.Errorf("node %d references template %s: %w", i, n.TemplateID, types.ErrNotFound)
		}
		if (n.Type == types.NodeStation) != (tpl.Kind == types.TemplateStation) {
			return nil, nil, fmt.Errorf("node %d type %s does not match template kind %s", i, n.Type, tpl.Kind)
		}
		nodes = append(nodes, types.FlowNode{
			ID:         uuid.New(),
			FlowID:     flowID,
			Type:       n.Type,
			TemplateID: n.TemplateID,
			Name:       n.Name,
			Index:      i,
		})
	}

	// Omitted edges default to the linear chain in node order.
	if len(edgeInputs) == 0 && len(nodes) > 1 {
		for i := 0; i < len(nodes)-1; i++ {
			edgeInputs = append(edgeInputs, FlowEdgeInput{SourceIndex: i, TargetIndex: i + 1})
		}
	}

	edges := make([]types.FlowEdge, 0, len(edgeInputs))
	for i, e := range edgeInputs {
		if e.SourceIndex < 0 || e.SourceIndex >= len(nodes) || e.TargetIndex < 0 || e.TargetIndex >= len(nodes) {
			return nil, nil, &types.GraphError{FlowID: flowID, Reason: fmt.Sprintf("edge %d references node out of range", i)}
		}
		edges = append(edges, types.FlowEdge{
			ID:           uuid.New(),
			FlowID:       flowID,
			SourceNodeID: nodes[e.SourceIndex].ID,
			TargetNodeID: nodes[e.TargetIndex].ID,
			Index:        i,
		})
	}

	probe := &types.Flow{ID: flowID, Nodes: nodes, Edges: edges}
	if err := flowgraph.Validate(probe); err != nil {
		return nil, nil, err
	}
	return nodes, edges, nil
}

func (s *flowService) Create(dbc dbctx.Context, input CreateFlowInput) (*types.Flow, error) {
	flow := &types.Flow{
		ID:       uuid.New(),
		Name:     input.Name,
		Pipeline: input.Pipeline,
		Version:  input.Version,
		Status:   types.FlowDraft,
	}
	nodes, edges, err := s.buildStructure(dbc, flow.ID, input.Nodes, input.Edges)
	if err != nil {
		return nil, err
	}
	flow.Nodes = nodes
	flow.Edges = edges

	if _, err := s.flows.Create(dbc, flow); err != nil {
		return nil, err
	}
	s.log.Info("Flow created",
		"flow_id", flow.ID, "pipeline", flow.Pipeline, "version", flow.Version,
		"nodes", len(nodes), "edges", len(edges))
	return flow, nil
}

func (s *flowService) Get(dbc dbctx.Context, id uuid.UUID) (*types.Flow, error) {
	flow, err := s.flows.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if flow == nil {
		return nil, types.ErrNotFound
	}
	return flow, nil
}

func (s *flowService) List(dbc dbctx.Context, pipeline string) ([]*types.Flow, error) {
	return s.flows.ListByPipeline(dbc, pipeline)
}

func (s *flowService) GetActive(dbc dbctx.Context, pipeline string) (*types.Flow, error) {
	flow, err := s.flows.GetActiveByPipeline(dbc, pipeline)
	if err != nil {
		return nil, err
	}
	if flow == nil {
		return nil, types.ErrNotFound
	}
	return flow, nil
}

func (s *flowService) UpdateStructure(dbc dbctx.Context, id uuid.UUID, nodes []FlowNodeInput, edges []FlowEdgeInput) (*types.Flow, error) {
	flow, err := s.Get(dbc, id)
	if err != nil {
		return nil, err
	}
	if flow.Status != types.FlowDraft {
		// Active and archived flows are frozen; publish a new version instead.
		return nil, fmt.Errorf("flow %s is %s and cannot be edited: %w", flow.ID, flow.Status, types.ErrForbidden)
	}
	newNodes, newEdges, err := s.buildStructure(dbc, flow.ID, nodes, edges)
	if err != nil {
		return nil, err
	}
	if err := s.flows.ReplaceStructure(dbc, flow.ID, newNodes, newEdges); err != nil {
		return nil, err
	}
	flow.Nodes = newNodes
	flow.Edges = newEdges
	s.log.Info("Flow structure replaced", "flow_id", flow.ID, "nodes", len(newNodes), "edges", len(newEdges))
	return flow, nil
}

func (s *flowService) Activate(dbc dbctx.Context, id uuid.UUID) (*types.Flow, error) {
	flow, err := s.Get(dbc, id)
	if err != nil {
		return nil, err
	}
	if flow.Status == types.FlowArchived {
		return nil, fmt.Errorf("flow %s is archived: %w", flow.ID, types.ErrForbidden)
	}
	// Re-validate at activation time so a draft that predates validation
	// tightening cannot go live broken.
	if err := flowgraph.Validate(flow); err != nil {
		return nil, err
	}
	activated, err := s.flows.Activate(dbc, id)
	if err != nil {
		return nil, err
	}
	s.log.Info("Flow activated", "flow_id", id, "pipeline", activated.Pipeline, "version", activated.Version)
	return activated, nil
}

func (s *flowService) Archive(dbc dbctx.Context, id uuid.UUID) error {
	if _, err := s.Get(dbc, id); err != nil {
		return err
	}
	if err := s.flows.Archive(dbc, id); err != nil {
		return err
	}
	s.log.Info("Flow archived", "flow_id", id)
	return nil
}
