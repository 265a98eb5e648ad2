package services

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	types "github.com/meridianrefining/refinery-backend/internal/domain"
	"github.com/meridianrefining/refinery-backend/internal/pkg/logger"
)

// StepData carries the operator-entered measurements for one completed
// step. Every field is optional; derivations apply whatever is present.
type StepData struct {
	ReceivedWeightG    *float64 `json:"received_weight_g,omitempty"`
	FineContentPercent *float64 `json:"fine_content_percent,omitempty"`
	ExpectedOutputG    *float64 `json:"expected_output_g,omitempty"`
	ActualOutputG      *float64 `json:"actual_output_g,omitempty"`

	MassCheck *types.MassCheckData `json:"mass_check,omitempty"`
	Signature *types.SignatureData `json:"signature,omitempty"`
	Fields    map[string]any       `json:"fields,omitempty"`
}

// EventData converts the step measurements into the audit payload union.
func (sd StepData) EventData() types.EventData {
	return types.EventData{
		MassCheck: sd.MassCheck,
		Signature: sd.Signature,
		Fields:    sd.Fields,
	}
}

// Calendar decides which hours count toward FTT. Weekends never count;
// holidays can be added from a YAML file.
type Calendar struct {
	holidays map[string]bool
}

type calendarFile struct {
	Holidays []string `yaml:"holidays"`
}

func NewCalendar() *Calendar {
	return &Calendar{holidays: map[string]bool{}}
}

// LoadCalendar reads a holiday list (YYYY-MM-DD entries) from path. An
// empty path yields the plain weekday calendar.
func LoadCalendar(path string, log *logger.Logger) (*Calendar, error) {
	cal := NewCalendar()
	if path == "" {
		return cal, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read holiday calendar: %w", err)
	}
	var file calendarFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse holiday calendar: %w", err)
	}
	for _, d := range file.Holidays {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return nil, fmt.Errorf("holiday %q: %w", d, err)
		}
		cal.holidays[d] = true
	}
	if log != nil {
		log.Info("Holiday calendar loaded", "path", path, "holidays", len(cal.holidays))
	}
	return cal, nil
}

func (c *Calendar) workingDay(t time.Time) bool {
	wd := t.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !c.holidays[t.Format("2006-01-02")]
}

// BusinessHoursBetween counts working hours strictly between from and to
// by stepping hour-by-hour. Hour granularity is the documented intended
// behavior, not minute-exact accounting.
func (c *Calendar) BusinessHoursBetween(from, to time.Time) int {
	count := 0
	for t := from; t.Before(to); t = t.Add(time.Hour) {
		if c.workingDay(t) {
			count++
		}
	}
	return count
}

// AnalyticsCalculator derives the batch's numeric fields from step inputs.
// Per-step updates recompute from the current inputs rather than
// accumulating, so replaying identical step data cannot double-count.
type AnalyticsCalculator struct {
	log *logger.Logger
	cal *Calendar
}

func NewAnalyticsCalculator(baseLog *logger.Logger, cal *Calendar) *AnalyticsCalculator {
	if cal == nil {
		cal = NewCalendar()
	}
	return &AnalyticsCalculator{
		log: baseLog.With("service", "AnalyticsCalculator"),
		cal: cal,
	}
}

// ApplyStep folds one completed step's measurements into the batch. The
// completed node's template category decides which milestone the step
// stamps; measurement fields apply whenever present.
func (a *AnalyticsCalculator) ApplyStep(b *types.Batch, category types.TemplateCategory, sd StepData, at time.Time) error {
	if b == nil {
		return &types.AnalyticsError{Stage: "per-step", Err: fmt.Errorf("batch is nil")}
	}
	if err := validateStepData(sd); err != nil {
		return &types.AnalyticsError{Stage: "per-step", Err: err}
	}

	if sd.ReceivedWeightG != nil {
		b.ReceivedWeightG = sd.ReceivedWeightG
	}
	if sd.FineContentPercent != nil {
		b.FineContentPercent = sd.FineContentPercent
	}
	if sd.ExpectedOutputG != nil {
		b.ExpectedOutputG = sd.ExpectedOutputG
	}
	if sd.ActualOutputG != nil {
		b.ActualOutputG = sd.ActualOutputG
	}

	switch category {
	case types.CategoryReceiving:
		if b.ReceivedAt == nil {
			t := at
			b.ReceivedAt = &t
		}
	case types.CategoryExport:
		if b.FirstExportAt == nil {
			t := at
			b.FirstExportAt = &t
		}
	}

	a.recompute(b)
	return nil
}

// Finalize computes the terminal figures once the batch completes.
func (a *AnalyticsCalculator) Finalize(b *types.Batch) error {
	if b == nil {
		return &types.AnalyticsError{Stage: "finalize", Err: fmt.Errorf("batch is nil")}
	}
	a.recompute(b)

	received := b.ReceivedAt
	if received == nil {
		// No receiving step in the flow; the batch entered the building
		// when it was registered.
		t := b.CreatedAt
		received = &t
	}
	if b.FirstExportAt != nil {
		hours := a.cal.BusinessHoursBetween(received.UTC(), b.FirstExportAt.UTC())
		b.FTTHours = &hours
	}
	return nil
}

func validateStepData(sd StepData) error {
	if sd.ReceivedWeightG != nil && *sd.ReceivedWeightG < 0 {
		return fmt.Errorf("received weight %.2fg is negative", *sd.ReceivedWeightG)
	}
	if sd.ActualOutputG != nil && *sd.ActualOutputG < 0 {
		return fmt.Errorf("actual output %.2fg is negative", *sd.ActualOutputG)
	}
	if sd.FineContentPercent != nil && (*sd.FineContentPercent < 0 || *sd.FineContentPercent > 100) {
		return fmt.Errorf("fine content %.2f%% out of range", *sd.FineContentPercent)
	}
	return nil
}

// recompute rebuilds every derived field from the current inputs.
func (a *AnalyticsCalculator) recompute(b *types.Batch) {
	if b.ReceivedWeightG != nil && b.FineContentPercent != nil {
		fine := *b.ReceivedWeightG * (*b.FineContentPercent / 100)
		b.FineGramsReceived = &fine
	}

	expected := b.ExpectedOutputG
	if expected == nil {
		expected = b.FineGramsReceived
	}

	if b.ActualOutputG != nil && expected != nil {
		diff := *b.ActualOutputG - *expected
		b.LossGainG = &diff

		if b.FineGramsReceived != nil {
			pct := 0.0
			if *b.FineGramsReceived != 0 {
				pct = diff / *b.FineGramsReceived * 100
			}
			b.LossGainPercent = &pct
		}
	}

	if b.ActualOutputG != nil && b.FineGramsReceived != nil {
		recovery := 0.0
		if *b.FineGramsReceived != 0 {
			recovery = *b.ActualOutputG / *b.FineGramsReceived * 100
		}
		b.OverallRecoveryPercent = &recovery
	}
}
