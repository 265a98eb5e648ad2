package repos

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/meridianrefining/refinery-backend/internal/data/repos/testutil"
	types "github.com/meridianrefining/refinery-backend/internal/domain"
	"github.com/meridianrefining/refinery-backend/internal/pkg/dbctx"
)

func seedBatch(t *testing.T, dbc dbctx.Context, repo BatchRepo, user *types.User, flow *types.Flow, number string) *types.Batch {
	t.Helper()
	b := &types.Batch{
		ID:          uuid.New(),
		BatchNumber: number,
		Pipeline:    flow.Pipeline,
		FlowID:      flow.ID,
		FlowVersion: flow.Version,
		Status:      types.BatchCreated,
		Priority:    types.PriorityNormal,
		CreatedBy:   user.ID,
	}
	b.CurrentNodeID = &flow.Nodes[0].ID
	if _, err := repo.Create(dbc, b); err != nil {
		t.Fatalf("create batch: %v", err)
	}
	return b
}

func TestBatchRepoVersionConflict(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewBatchRepo(db, testutil.Logger(t))

	user := testutil.SeedUser(t, ctx, tx, "op@refinery.test", types.RoleOperator)
	flow := testutil.SeedLinearFlow(t, ctx, tx, "gold", "receiving", "casting")
	b := seedBatch(t, dbc, repo, user, flow, "B-1001")

	// First writer wins.
	first, err := repo.GetByID(dbc, b.ID)
	if err != nil || first == nil {
		t.Fatalf("GetByID: %v", err)
	}
	second, err := repo.GetByID(dbc, b.ID)
	if err != nil || second == nil {
		t.Fatalf("GetByID: %v", err)
	}

	first.Status = types.BatchInProgress
	if err := repo.UpdateWithVersion(dbc, first); err != nil {
		t.Fatalf("UpdateWithVersion(first): %v", err)
	}
	if first.Version != second.Version+1 {
		t.Fatalf("version after save: got %d, want %d", first.Version, second.Version+1)
	}

	second.Status = types.BatchFlagged
	if err := repo.UpdateWithVersion(dbc, second); !errors.Is(err, types.ErrVersionConflict) {
		t.Fatalf("stale save: got %v, want ErrVersionConflict", err)
	}

	stored, err := repo.GetByID(dbc, b.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetByID after conflict: %v", err)
	}
	if stored.Status != types.BatchInProgress {
		t.Fatalf("stale writer overwrote status: got %s", stored.Status)
	}
}

func TestBatchRepoEventRoundTrip(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewBatchRepo(db, testutil.Logger(t))

	user := testutil.SeedUser(t, ctx, tx, "op2@refinery.test", types.RoleOperator)
	flow := testutil.SeedLinearFlow(t, ctx, tx, "gold", "receiving")
	b := seedBatch(t, dbc, repo, user, flow, "B-1002")

	b.AppendEvent(types.EventStepCompleted, user.ID, "receiving", "receiving", types.EventData{
		MassCheck: &types.MassCheckData{ExpectedG: 100, MeasuredG: 99.8, VarianceG: -0.2},
		Fields:    map[string]any{"crucible": "C-7"},
	})
	if err := repo.UpdateWithVersion(dbc, b); err != nil {
		t.Fatalf("UpdateWithVersion: %v", err)
	}

	got, err := repo.GetByID(dbc, b.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(got.Events) != 1 {
		t.Fatalf("events: got %d, want 1", len(got.Events))
	}
	ev := got.Events[0]
	if ev.Type != types.EventStepCompleted || ev.Data.MassCheck == nil || ev.Data.MassCheck.MeasuredG != 99.8 {
		t.Fatalf("event payload did not round-trip: %+v", ev)
	}
	if ev.Data.Fields["crucible"] != "C-7" {
		t.Fatalf("fallback fields did not round-trip: %+v", ev.Data.Fields)
	}
}

func TestBatchRepoListCompletedFilters(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewBatchRepo(db, testutil.Logger(t))

	user := testutil.SeedUser(t, ctx, tx, "op3@refinery.test", types.RoleOperator)
	flow := testutil.SeedLinearFlow(t, ctx, tx, "gold", "receiving")

	mkCompleted := func(number string, completedAt time.Time) {
		b := seedBatch(t, dbc, repo, user, flow, number)
		b.Status = types.BatchCompleted
		b.CompletedAt = &completedAt
		if err := repo.UpdateWithVersion(dbc, b); err != nil {
			t.Fatalf("complete %s: %v", number, err)
		}
	}
	mkCompleted("B-2001", time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC))
	mkCompleted("B-2002", time.Date(2025, time.July, 4, 12, 0, 0, 0, time.UTC))
	mkCompleted("B-2003", time.Date(2024, time.December, 31, 23, 0, 0, 0, time.UTC))

	year := 2025
	rows, err := repo.ListCompleted(dbc, BatchFilter{Year: &year, Pipeline: "gold"})
	if err != nil {
		t.Fatalf("ListCompleted: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("ListCompleted(2025): got %d, want 2", len(rows))
	}
	if !rows[0].CompletedAt.Before(*rows[1].CompletedAt) {
		t.Fatalf("ListCompleted not ordered by completion time")
	}
}
