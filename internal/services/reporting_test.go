package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/meridianrefining/refinery-backend/internal/data/repos"
	types "github.com/meridianrefining/refinery-backend/internal/domain"
	"github.com/meridianrefining/refinery-backend/internal/pkg/dbctx"
)

func newReportTestEnv(t *testing.T) (ReportService, *fakeBatchRepo, *fakeFlowRepo, *fakeUserRepo) {
	t.Helper()
	log := testLogger(t)
	batches := newFakeBatchRepo()
	flows := newFakeFlowRepo()
	users := newFakeUserRepo()
	svc := NewReportService(nil, log, batches, flows, users, nil, 0)
	return svc, batches, flows, users
}

func completedBatch(number string, completedAt time.Time, creator uuid.UUID, fine, lossGain, recovery float64, ftt int) *types.Batch {
	return &types.Batch{
		ID:                     uuid.New(),
		BatchNumber:            number,
		Pipeline:               "gold",
		Status:                 types.BatchCompleted,
		CreatedBy:              creator,
		CompletedAt:            &completedAt,
		FineGramsReceived:      &fine,
		LossGainG:              &lossGain,
		OverallRecoveryPercent: &recovery,
		FTTHours:               &ftt,
		CompletedNodeIDs:       types.UUIDList{},
		Events:                 types.EventList{},
		Flags:                  types.FlagList{},
	}
}

func TestYTDStats(t *testing.T) {
	svc, batches, _, _ := newReportTestEnv(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	creator := uuid.New()

	jan := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	mar1 := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	mar2 := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)

	batches.rows[uuid.New()] = completedBatch("B-1", jan, creator, 1000, 10, 101, 20)
	batches.rows[uuid.New()] = completedBatch("B-2", mar1, creator, 2000, -30, 98.5, 40)
	batches.rows[uuid.New()] = completedBatch("B-3", mar2, creator, 3000, 5, 100.2, 30)
	// Outside the requested year.
	batches.rows[uuid.New()] = completedBatch("B-old", jan.AddDate(-1, 0, 0), creator, 9999, 999, 50, 99)

	stats, err := svc.YTDStats(dbc, 2026, "")
	if err != nil {
		t.Fatalf("ytd: %v", err)
	}
	if stats.BatchCount != 3 {
		t.Fatalf("batch count = %d, want 3", stats.BatchCount)
	}
	if !approxEq(stats.TotalFineGrams, 6000) {
		t.Fatalf("total fine = %v", stats.TotalFineGrams)
	}
	if !approxEq(stats.TotalLossGainG, -15) {
		t.Fatalf("total loss/gain = %v", stats.TotalLossGainG)
	}
	if !approxEq(stats.MinLossGainG, -30) || !approxEq(stats.MaxLossGainG, 10) {
		t.Fatalf("spread = [%v, %v]", stats.MinLossGainG, stats.MaxLossGainG)
	}
	if stats.MonthlyBatchCount[0] != 1 || stats.MonthlyBatchCount[2] != 2 {
		t.Fatalf("monthly buckets = %v", stats.MonthlyBatchCount)
	}
	if !approxEq(stats.AvgFTTHours, 30) {
		t.Fatalf("avg ftt = %v", stats.AvgFTTHours)
	}

	// Series ordered by completion with a running cumulative loss/gain.
	if len(stats.Series) != 3 {
		t.Fatalf("series = %d points", len(stats.Series))
	}
	wantCumulative := []float64{10, -20, -15}
	for i, p := range stats.Series {
		if !approxEq(p.CumulativeLossGain, wantCumulative[i]) {
			t.Fatalf("series[%d] cumulative = %v, want %v", i, p.CumulativeLossGain, wantCumulative[i])
		}
	}
}

func TestOperatorLeaderboard(t *testing.T) {
	svc, batches, _, users := newReportTestEnv(t)
	dbc := dbctx.Context{Ctx: context.Background()}

	fast := uuid.New()
	slow := uuid.New()
	users.rows[fast] = &types.User{ID: fast, FirstName: "Ada", LastName: "Quick"}
	users.rows[slow] = &types.User{ID: slow, FirstName: "Bob", LastName: "Late"}

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	// fast: both on time, avg ftt 30, avg recovery 100.
	batches.rows[uuid.New()] = completedBatch("F-1", at, fast, 1000, 0, 100, 24)
	batches.rows[uuid.New()] = completedBatch("F-2", at.Add(time.Hour), fast, 1000, 0, 100, 36)
	// slow: none on time, avg ftt 72, avg recovery 90.
	batches.rows[uuid.New()] = completedBatch("S-1", at, slow, 1000, 0, 90, 72)

	rows, err := svc.OperatorPerformance(dbc, repos.BatchFilter{})
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].UserID != fast {
		t.Fatal("leaderboard should rank the faster operator first")
	}

	// fast: (1.0 + 100/100 + 36/30) / 3
	if !approxEq(rows[0].EfficiencyScore, (1.0+1.0+36.0/30)/3) {
		t.Fatalf("fast score = %v", rows[0].EfficiencyScore)
	}
	if rows[0].Name != "Ada Quick" {
		t.Fatalf("name = %q", rows[0].Name)
	}
	// slow: (0 + 90/100 + 36/72) / 3
	if !approxEq(rows[1].EfficiencyScore, (0+0.9+0.5)/3) {
		t.Fatalf("slow score = %v", rows[1].EfficiencyScore)
	}
}

func TestEfficiencyScoreGuards(t *testing.T) {
	if got := efficiencyScore(1, 100, 0); !approxEq(got, 2.0/3) {
		t.Fatalf("zero ftt score = %v, want speed factor dropped", got)
	}
}

func TestStationThroughputDwellScan(t *testing.T) {
	svc, batches, flows, _ := newReportTestEnv(t)
	dbc := dbctx.Context{Ctx: context.Background()}

	base := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	completed := completedBatch("D-1", base.Add(5*time.Hour), uuid.New(), 1000, 0, 100, 10)
	completed.Events = types.EventList{
		{EventID: uuid.New(), Type: types.EventBatchStarted, At: base, Station: "Receiving"},
		{EventID: uuid.New(), Type: types.EventStepCompleted, At: base.Add(30 * time.Minute), Station: "Receiving"},
		{EventID: uuid.New(), Type: types.EventStepCompleted, At: base.Add(90 * time.Minute), Station: "Melt"},
		{EventID: uuid.New(), Type: types.EventStepCompleted, At: base.Add(150 * time.Minute), Station: "Melt"},
		// Back at Receiving for rework; a separate contiguous run.
		{EventID: uuid.New(), Type: types.EventStepCompleted, At: base.Add(180 * time.Minute), Station: "Receiving"},
		{EventID: uuid.New(), Type: types.EventStepCompleted, At: base.Add(200 * time.Minute), Station: "Receiving"},
	}
	batches.rows[completed.ID] = completed

	// One in-flight batch currently at the Melt node.
	flow := &types.Flow{ID: uuid.New(), Pipeline: "gold", Status: types.FlowActive}
	meltNode := types.FlowNode{ID: uuid.New(), FlowID: flow.ID, Name: "Melt", Type: types.NodeStation, TemplateID: uuid.New()}
	flow.Nodes = []types.FlowNode{meltNode}
	flows.rows[flow.ID] = flow

	active := &types.Batch{
		ID:            uuid.New(),
		BatchNumber:   "D-2",
		Pipeline:      "gold",
		Status:        types.BatchInProgress,
		FlowID:        flow.ID,
		CurrentNodeID: &meltNode.ID,
		Events:        types.EventList{},
		Flags:         types.FlagList{},
	}
	batches.rows[active.ID] = active

	rows, err := svc.StationThroughput(dbc, repos.BatchFilter{Pipeline: "gold"})
	if err != nil {
		t.Fatalf("throughput: %v", err)
	}

	byStation := map[string]StationStats{}
	for _, r := range rows {
		byStation[r.Station] = r
	}

	// Receiving: 30min first run + 20min rework run, summed per batch.
	recv, ok := byStation["Receiving"]
	if !ok {
		t.Fatal("missing Receiving row")
	}
	if recv.BatchCount != 1 || !approxEq(recv.AvgDwellMin, 50) {
		t.Fatalf("Receiving = %+v, want 50min over 1 batch", recv)
	}

	melt, ok := byStation["Melt"]
	if !ok {
		t.Fatal("missing Melt row")
	}
	if !approxEq(melt.AvgDwellMin, 60) {
		t.Fatalf("Melt dwell = %v, want 60", melt.AvgDwellMin)
	}
	if melt.ActiveNow != 1 {
		t.Fatalf("Melt active = %d, want 1", melt.ActiveNow)
	}
}
