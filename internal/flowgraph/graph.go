// Package flowgraph answers traversal queries over an in-memory flow.
// All functions are pure; the flow is loaded by the caller.
package flowgraph

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	types "github.com/meridianrefining/refinery-backend/internal/domain"
)

// NodeByID returns the node with the given id, or nil.
func NodeByID(flow *types.Flow, id uuid.UUID) *types.FlowNode {
	if flow == nil {
		return nil
	}
	for i := range flow.Nodes {
		if flow.Nodes[i].ID == id {
			return &flow.Nodes[i]
		}
	}
	return nil
}

// StartNode resolves the structural start: the single node with no incoming
// edge. Zero or multiple candidates is a GraphError — the graph is never
// guessed at.
func StartNode(flow *types.Flow) (*types.FlowNode, error) {
	if flow == nil {
		return nil, &types.GraphError{Reason: "flow is nil"}
	}
	hasIncoming := make(map[uuid.UUID]bool, len(flow.Nodes))
	for _, e := range flow.Edges {
		hasIncoming[e.TargetNodeID] = true
	}
	var start *types.FlowNode
	for i := range flow.Nodes {
		if hasIncoming[flow.Nodes[i].ID] {
			continue
		}
		if start != nil {
			return nil, &types.GraphError{FlowID: flow.ID, Reason: "multiple start nodes"}
		}
		start = &flow.Nodes[i]
	}
	if start == nil {
		return nil, &types.GraphError{FlowID: flow.ID, Reason: "no start node"}
	}
	return start, nil
}

// NextNode follows the first outgoing edge (lowest index) from nodeID.
// Returns (nil, nil) when the node is terminal. An edge pointing at a
// missing node is a GraphError.
func NextNode(flow *types.Flow, nodeID uuid.UUID) (*types.FlowNode, error) {
	if flow == nil {
		return nil, &types.GraphError{Reason: "flow is nil"}
	}
	var out []types.FlowEdge
	for _, e := range flow.Edges {
		if e.SourceNodeID == nodeID {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	next := NodeByID(flow, out[0].TargetNodeID)
	if next == nil {
		return nil, &types.GraphError{
			FlowID: flow.ID,
			Reason: fmt.Sprintf("edge target %s is not a node of this flow", out[0].TargetNodeID),
		}
	}
	return next, nil
}

// Validate checks a flow before creation or activation: a unique start node,
// edge endpoints that exist, and the linear-flow assertion that no node has
// more than one outgoing edge.
func Validate(flow *types.Flow) error {
	if flow == nil {
		return &types.GraphError{Reason: "flow is nil"}
	}
	if len(flow.Nodes) == 0 {
		return &types.GraphError{FlowID: flow.ID, Reason: "flow has no nodes"}
	}
	if _, err := StartNode(flow); err != nil {
		return err
	}
	outgoing := make(map[uuid.UUID]int, len(flow.Nodes))
	for _, e := range flow.Edges {
		if NodeByID(flow, e.SourceNodeID) == nil {
			return &types.GraphError{FlowID: flow.ID, Reason: fmt.Sprintf("edge source %s is not a node of this flow", e.SourceNodeID)}
		}
		if NodeByID(flow, e.TargetNodeID) == nil {
			return &types.GraphError{FlowID: flow.ID, Reason: fmt.Sprintf("edge target %s is not a node of this flow", e.TargetNodeID)}
		}
		outgoing[e.SourceNodeID]++
	}
	for id, n := range outgoing {
		if n > 1 {
			return &types.GraphError{FlowID: flow.ID, Reason: fmt.Sprintf("node %s has %d outgoing edges; linear flows allow at most one", id, n)}
		}
	}
	return nil
}
