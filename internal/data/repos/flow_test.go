package repos

import (
	"context"
	"testing"

	"github.com/meridianrefining/refinery-backend/internal/data/repos/testutil"
	types "github.com/meridianrefining/refinery-backend/internal/domain"
	"github.com/meridianrefining/refinery-backend/internal/pkg/dbctx"
)

func TestFlowRepoActivate(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewFlowRepo(db, testutil.Logger(t))

	f1 := testutil.SeedLinearFlow(t, ctx, tx, "gold", "receiving", "casting")
	f2 := testutil.SeedLinearFlow(t, ctx, tx, "gold", "receiving", "casting", "shipping")
	other := testutil.SeedLinearFlow(t, ctx, tx, "silver", "receiving", "shipping")

	if _, err := repo.Activate(dbc, f1.ID); err != nil {
		t.Fatalf("Activate f1: %v", err)
	}
	if _, err := repo.Activate(dbc, other.ID); err != nil {
		t.Fatalf("Activate other pipeline: %v", err)
	}

	// Activating f2 must archive f1 in the same operation.
	if _, err := repo.Activate(dbc, f2.ID); err != nil {
		t.Fatalf("Activate f2: %v", err)
	}

	got1, err := repo.GetByID(dbc, f1.ID)
	if err != nil || got1 == nil {
		t.Fatalf("GetByID f1: %v", err)
	}
	if got1.Status != types.FlowArchived {
		t.Fatalf("f1 status after supersede: got %s, want archived", got1.Status)
	}

	active, err := repo.GetActiveByPipeline(dbc, "gold")
	if err != nil || active == nil {
		t.Fatalf("GetActiveByPipeline: %v", err)
	}
	if active.ID != f2.ID {
		t.Fatalf("active gold flow: got %s, want %s", active.ID, f2.ID)
	}
	if len(active.Nodes) != 3 || len(active.Edges) != 2 {
		t.Fatalf("active flow structure: %d nodes %d edges", len(active.Nodes), len(active.Edges))
	}

	// Other pipelines are untouched.
	silver, err := repo.GetActiveByPipeline(dbc, "silver")
	if err != nil || silver == nil || silver.ID != other.ID {
		t.Fatalf("silver active flow disturbed: %v err=%v", silver, err)
	}
}

func TestFlowRepoReplaceStructure(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewFlowRepo(db, testutil.Logger(t))

	flow := testutil.SeedLinearFlow(t, ctx, tx, "gold", "receiving", "casting")
	tpl := testutil.SeedTemplate(t, ctx, tx, "assay", types.CategoryAssay)

	nodes := []types.FlowNode{
		{Type: types.NodeCheck, TemplateID: tpl.ID, Name: "assay", Index: 0},
	}
	if err := repo.ReplaceStructure(dbc, flow.ID, nodes, nil); err != nil {
		t.Fatalf("ReplaceStructure: %v", err)
	}

	got, err := repo.GetByID(dbc, flow.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(got.Nodes) != 1 || got.Nodes[0].Name != "assay" || len(got.Edges) != 0 {
		t.Fatalf("structure after replace: %d nodes %d edges", len(got.Nodes), len(got.Edges))
	}
}
