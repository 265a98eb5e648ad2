package flowgraph

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	types "github.com/meridianrefining/refinery-backend/internal/domain"
)

func linearFlow(names ...string) (*types.Flow, []uuid.UUID) {
	flow := &types.Flow{ID: uuid.New()}
	ids := make([]uuid.UUID, len(names))
	for i, name := range names {
		ids[i] = uuid.New()
		flow.Nodes = append(flow.Nodes, types.FlowNode{
			ID:     ids[i],
			FlowID: flow.ID,
			Type:   types.NodeStation,
			Name:   name,
			Index:  i,
		})
	}
	for i := 0; i+1 < len(ids); i++ {
		flow.Edges = append(flow.Edges, types.FlowEdge{
			ID:           uuid.New(),
			FlowID:       flow.ID,
			SourceNodeID: ids[i],
			TargetNodeID: ids[i+1],
			Index:        i,
		})
	}
	return flow, ids
}

func TestStartNodeLinear(t *testing.T) {
	flow, ids := linearFlow("receiving", "casting", "shipping")
	start, err := StartNode(flow)
	if err != nil {
		t.Fatalf("StartNode: %v", err)
	}
	if start.ID != ids[0] {
		t.Fatalf("StartNode: got %s, want %s", start.ID, ids[0])
	}
}

func TestStartNodeAmbiguous(t *testing.T) {
	// Two disconnected chains: two nodes with no incoming edge.
	flow, _ := linearFlow("a", "b")
	orphan := types.FlowNode{ID: uuid.New(), FlowID: flow.ID, Name: "orphan"}
	flow.Nodes = append(flow.Nodes, orphan)

	var gerr *types.GraphError
	if _, err := StartNode(flow); !errors.As(err, &gerr) {
		t.Fatalf("StartNode on ambiguous graph: got %v, want GraphError", err)
	}
}

func TestStartNodeCycle(t *testing.T) {
	flow, ids := linearFlow("a", "b")
	// Close the loop: every node now has an incoming edge.
	flow.Edges = append(flow.Edges, types.FlowEdge{
		ID: uuid.New(), FlowID: flow.ID, SourceNodeID: ids[1], TargetNodeID: ids[0], Index: 1,
	})
	var gerr *types.GraphError
	if _, err := StartNode(flow); !errors.As(err, &gerr) {
		t.Fatalf("StartNode on cycle: got %v, want GraphError", err)
	}
}

func TestNextNodeWalk(t *testing.T) {
	flow, ids := linearFlow("receiving", "casting", "shipping")

	next, err := NextNode(flow, ids[0])
	if err != nil || next == nil || next.ID != ids[1] {
		t.Fatalf("NextNode(receiving): got %v err=%v, want casting", next, err)
	}
	next, err = NextNode(flow, ids[1])
	if err != nil || next == nil || next.ID != ids[2] {
		t.Fatalf("NextNode(casting): got %v err=%v, want shipping", next, err)
	}
	next, err = NextNode(flow, ids[2])
	if err != nil || next != nil {
		t.Fatalf("NextNode(shipping): got %v err=%v, want terminal", next, err)
	}
}

func TestNextNodeFirstEdgeWins(t *testing.T) {
	flow, ids := linearFlow("a", "b")
	branch := types.FlowNode{ID: uuid.New(), FlowID: flow.ID, Name: "branch"}
	flow.Nodes = append(flow.Nodes, branch)
	// Higher-index edge from a; the index-0 edge to b must win.
	flow.Edges = append(flow.Edges, types.FlowEdge{
		ID: uuid.New(), FlowID: flow.ID, SourceNodeID: ids[0], TargetNodeID: branch.ID, Index: 5,
	})

	next, err := NextNode(flow, ids[0])
	if err != nil || next == nil || next.ID != ids[1] {
		t.Fatalf("NextNode with branch: got %v err=%v, want lowest-index target", next, err)
	}
}

func TestNextNodeDanglingEdge(t *testing.T) {
	flow, ids := linearFlow("a", "b")
	flow.Edges[0].TargetNodeID = uuid.New()

	var gerr *types.GraphError
	if _, err := NextNode(flow, ids[0]); !errors.As(err, &gerr) {
		t.Fatalf("NextNode over dangling edge: got %v, want GraphError", err)
	}
}

func TestValidate(t *testing.T) {
	flow, ids := linearFlow("receiving", "casting", "shipping")
	if err := Validate(flow); err != nil {
		t.Fatalf("Validate(linear): %v", err)
	}

	// Branching violates the linear assertion.
	branch := types.FlowNode{ID: uuid.New(), FlowID: flow.ID, Name: "branch"}
	flow.Nodes = append(flow.Nodes, branch)
	flow.Edges = append(flow.Edges, types.FlowEdge{
		ID: uuid.New(), FlowID: flow.ID, SourceNodeID: ids[0], TargetNodeID: branch.ID, Index: 1,
	})
	var gerr *types.GraphError
	if err := Validate(flow); !errors.As(err, &gerr) {
		t.Fatalf("Validate(branching): got %v, want GraphError", err)
	}

	if err := Validate(&types.Flow{ID: uuid.New()}); err == nil {
		t.Fatalf("Validate(empty): expected error")
	}
}
