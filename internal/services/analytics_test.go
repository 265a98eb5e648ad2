package services

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	types "github.com/meridianrefining/refinery-backend/internal/domain"
	"github.com/meridianrefining/refinery-backend/internal/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func f64(v float64) *float64 { return &v }

func approxEq(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestAnalyticsDerivation(t *testing.T) {
	calc := NewAnalyticsCalculator(testLogger(t), nil)
	b := &types.Batch{Status: types.BatchInProgress}
	now := time.Now().UTC()

	if err := calc.ApplyStep(b, types.CategoryReceiving, StepData{
		ReceivedWeightG:    f64(100000),
		FineContentPercent: f64(99.5),
	}, now); err != nil {
		t.Fatalf("receiving step: %v", err)
	}
	if b.FineGramsReceived == nil || !approxEq(*b.FineGramsReceived, 99500) {
		t.Fatalf("fine grams = %v, want 99500", b.FineGramsReceived)
	}
	if b.ReceivedAt == nil {
		t.Fatal("receiving step should stamp received_at")
	}

	if err := calc.ApplyStep(b, types.CategoryCasting, StepData{
		ActualOutputG: f64(99600),
	}, now.Add(time.Hour)); err != nil {
		t.Fatalf("casting step: %v", err)
	}
	if b.LossGainG == nil || !approxEq(*b.LossGainG, 100) {
		t.Fatalf("loss/gain = %v, want +100", b.LossGainG)
	}
	if b.LossGainPercent == nil || !approxEq(*b.LossGainPercent, 100.0/99500*100) {
		t.Fatalf("loss/gain %% = %v", b.LossGainPercent)
	}
	if b.OverallRecoveryPercent == nil || !approxEq(*b.OverallRecoveryPercent, 99600.0/99500*100) {
		t.Fatalf("recovery %% = %v", b.OverallRecoveryPercent)
	}
}

func TestAnalyticsIdempotentReplay(t *testing.T) {
	calc := NewAnalyticsCalculator(testLogger(t), nil)
	b := &types.Batch{Status: types.BatchInProgress}
	now := time.Now().UTC()
	sd := StepData{
		ReceivedWeightG:    f64(5000),
		FineContentPercent: f64(80),
		ActualOutputG:      f64(3900),
	}

	if err := calc.ApplyStep(b, types.CategoryGeneric, sd, now); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	firstLoss := *b.LossGainG
	firstRecovery := *b.OverallRecoveryPercent

	if err := calc.ApplyStep(b, types.CategoryGeneric, sd, now.Add(time.Minute)); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if *b.LossGainG != firstLoss || *b.OverallRecoveryPercent != firstRecovery {
		t.Fatalf("replay changed derived values: loss %v -> %v, recovery %v -> %v",
			firstLoss, *b.LossGainG, firstRecovery, *b.OverallRecoveryPercent)
	}
	if !approxEq(*b.FineGramsReceived, 4000) {
		t.Fatalf("fine grams = %v, want 4000", *b.FineGramsReceived)
	}
}

func TestAnalyticsExplicitExpectedOutput(t *testing.T) {
	calc := NewAnalyticsCalculator(testLogger(t), nil)
	b := &types.Batch{Status: types.BatchInProgress}

	err := calc.ApplyStep(b, types.CategoryGeneric, StepData{
		ReceivedWeightG:    f64(1000),
		FineContentPercent: f64(90),
		ExpectedOutputG:    f64(850),
		ActualOutputG:      f64(840),
	}, time.Now())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	// Loss/gain measures against the explicit expectation, recovery against
	// fine grams.
	if !approxEq(*b.LossGainG, -10) {
		t.Fatalf("loss/gain = %v, want -10", *b.LossGainG)
	}
	if !approxEq(*b.OverallRecoveryPercent, 840.0/900*100) {
		t.Fatalf("recovery = %v", *b.OverallRecoveryPercent)
	}
}

func TestAnalyticsZeroFineGuards(t *testing.T) {
	calc := NewAnalyticsCalculator(testLogger(t), nil)
	b := &types.Batch{Status: types.BatchInProgress}

	err := calc.ApplyStep(b, types.CategoryGeneric, StepData{
		ReceivedWeightG:    f64(0),
		FineContentPercent: f64(50),
		ActualOutputG:      f64(10),
	}, time.Now())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if *b.LossGainPercent != 0 || *b.OverallRecoveryPercent != 0 {
		t.Fatalf("zero fine grams must yield zero ratios, got %v / %v",
			*b.LossGainPercent, *b.OverallRecoveryPercent)
	}
}

func TestAnalyticsRejectsBadInputs(t *testing.T) {
	calc := NewAnalyticsCalculator(testLogger(t), nil)
	b := &types.Batch{Status: types.BatchInProgress}

	cases := []StepData{
		{ReceivedWeightG: f64(-1)},
		{ActualOutputG: f64(-5)},
		{FineContentPercent: f64(101)},
		{FineContentPercent: f64(-0.1)},
	}
	for i, sd := range cases {
		err := calc.ApplyStep(b, types.CategoryGeneric, sd, time.Now())
		if err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
		var aerr *types.AnalyticsError
		if !errors.As(err, &aerr) {
			t.Fatalf("case %d: error %v is not an AnalyticsError", i, err)
		}
	}
}

func TestBusinessHoursWeekendSkip(t *testing.T) {
	cal := NewCalendar()
	// Friday 2026-01-02 22:00 UTC to Monday 2026-01-05 10:00 UTC.
	from := time.Date(2026, 1, 2, 22, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	if got := cal.BusinessHoursBetween(from, to); got != 12 {
		t.Fatalf("business hours = %d, want 12", got)
	}
}

func TestBusinessHoursHolidayExcluded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "holidays.yaml")
	if err := os.WriteFile(path, []byte("holidays:\n  - \"2026-01-05\"\n"), 0o644); err != nil {
		t.Fatalf("write calendar: %v", err)
	}
	cal, err := LoadCalendar(path, testLogger(t))
	if err != nil {
		t.Fatalf("load calendar: %v", err)
	}

	from := time.Date(2026, 1, 2, 22, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	// Monday is a holiday, leaving only Friday's two evening hours.
	if got := cal.BusinessHoursBetween(from, to); got != 2 {
		t.Fatalf("business hours = %d, want 2", got)
	}
}

func TestFinalizeFTTFromMilestones(t *testing.T) {
	calc := NewAnalyticsCalculator(testLogger(t), nil)
	received := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) // Monday
	exported := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC) // Tuesday
	b := &types.Batch{
		Status:        types.BatchCompleted,
		ReceivedAt:    &received,
		FirstExportAt: &exported,
	}
	if err := calc.Finalize(b); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if b.FTTHours == nil || *b.FTTHours != 24 {
		t.Fatalf("ftt = %v, want 24", b.FTTHours)
	}
}

func TestFinalizeFallsBackToCreatedAt(t *testing.T) {
	calc := NewAnalyticsCalculator(testLogger(t), nil)
	created := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC) // Monday
	exported := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	b := &types.Batch{
		Status:        types.BatchCompleted,
		CreatedAt:     created,
		FirstExportAt: &exported,
	}
	if err := calc.Finalize(b); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if b.FTTHours == nil || *b.FTTHours != 10 {
		t.Fatalf("ftt = %v, want 10", b.FTTHours)
	}
}
