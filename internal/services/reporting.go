package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/meridianrefining/refinery-backend/internal/clients/redis"
	"github.com/meridianrefining/refinery-backend/internal/data/repos"
	types "github.com/meridianrefining/refinery-backend/internal/domain"
	"github.com/meridianrefining/refinery-backend/internal/pkg/dbctx"
	"github.com/meridianrefining/refinery-backend/internal/pkg/logger"
)

// YTDStats is the year-to-date rollup over completed batches.
type YTDStats struct {
	Year     int    `json:"year"`
	Pipeline string `json:"pipeline,omitempty"`

	BatchCount        int     `json:"batch_count"`
	TotalFineGrams    float64 `json:"total_fine_grams"`
	TotalLossGainG    float64 `json:"total_loss_gain_g"`
	AvgRecoveryPct    float64 `json:"avg_recovery_percent"`
	AvgFTTHours       float64 `json:"avg_ftt_hours"`
	MinLossGainG      float64 `json:"min_loss_gain_g"`
	MaxLossGainG      float64 `json:"max_loss_gain_g"`
	MonthlyBatchCount [12]int `json:"monthly_batch_count"`

	Series []YTDSeriesPoint `json:"series"`
}

// YTDSeriesPoint is one completed batch in completion order, carrying the
// cumulative loss/gain for trend charts.
type YTDSeriesPoint struct {
	BatchNumber        string    `json:"batch_number"`
	CompletedAt        time.Time `json:"completed_at"`
	FineGrams          float64   `json:"fine_grams"`
	LossGainG          float64   `json:"loss_gain_g"`
	CumulativeLossGain float64   `json:"cumulative_loss_gain_g"`
	RecoveryPercent    float64   `json:"recovery_percent,omitempty"`
}

// StationStats describes one station's historical dwell and current load.
type StationStats struct {
	Station     string  `json:"station"`
	BatchCount  int     `json:"batch_count"`
	MinDwellMin float64 `json:"min_dwell_minutes"`
	AvgDwellMin float64 `json:"avg_dwell_minutes"`
	MaxDwellMin float64 `json:"max_dwell_minutes"`
	ActiveNow   int     `json:"active_now"`
}

// OperatorStats is one leaderboard row, grouped by batch creator.
type OperatorStats struct {
	UserID          uuid.UUID `json:"user_id"`
	Name            string    `json:"name,omitempty"`
	BatchCount      int       `json:"batch_count"`
	OnTimeRatio     float64   `json:"on_time_ratio"`
	AvgRecoveryPct  float64   `json:"avg_recovery_percent"`
	AvgFTTHours     float64   `json:"avg_ftt_hours"`
	EfficiencyScore float64   `json:"efficiency_score"`
}

// onTimeThresholdHours is the FTT target a batch must meet to count as
// on time, and the numerator of the leaderboard's speed factor.
const onTimeThresholdHours = 36.0

type ReportService interface {
	YTDStats(dbc dbctx.Context, year int, pipeline string) (*YTDStats, error)
	StationThroughput(dbc dbctx.Context, filter repos.BatchFilter) ([]StationStats, error)
	OperatorPerformance(dbc dbctx.Context, filter repos.BatchFilter) ([]OperatorStats, error)
}

type reportService struct {
	db      *gorm.DB
	log     *logger.Logger
	batches repos.BatchRepo
	flows   repos.FlowRepo
	users   repos.UserRepo
	cache   redis.Cache
	ttl     time.Duration
}

func NewReportService(
	db *gorm.DB,
	baseLog *logger.Logger,
	batches repos.BatchRepo,
	flows repos.FlowRepo,
	users repos.UserRepo,
	cache redis.Cache,
	cacheTTL time.Duration,
) ReportService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &reportService{
		db:      db,
		log:     baseLog.With("service", "ReportService"),
		batches: batches,
		flows:   flows,
		users:   users,
		cache:   cache,
		ttl:     cacheTTL,
	}
}

// cached wraps a report computation with the optional Redis cache. Cache
// failures are logged and fall through to recompute.
func cached[T any](s *reportService, dbc dbctx.Context, key string, compute func() (T, error)) (T, error) {
	var zero T
	if s.cache != nil {
		var hit T
		ok, err := s.cache.GetJSON(dbc.Ctx, key, &hit)
		if err != nil {
			s.log.Warn("Report cache read failed", "key", key, "error", err)
		} else if ok {
			return hit, nil
		}
	}
	out, err := compute()
	if err != nil {
		return zero, err
	}
	if s.cache != nil {
		if err := s.cache.SetJSON(dbc.Ctx, key, out, s.ttl); err != nil {
			s.log.Warn("Report cache write failed", "key", key, "error", err)
		}
	}
	return out, nil
}

func (s *reportService) YTDStats(dbc dbctx.Context, year int, pipeline string) (*YTDStats, error) {
	key := fmt.Sprintf("report:ytd:%d:%s", year, pipeline)
	return cached(s, dbc, key, func() (*YTDStats, error) {
		batches, err := s.batches.ListCompleted(dbc, repos.BatchFilter{Year: &year, Pipeline: pipeline})
		if err != nil {
			return nil, err
		}

		stats := &YTDStats{Year: year, Pipeline: pipeline}
		var recoverySum, fttSum float64
		var recoveryN, fttN int
		cumulative := 0.0
		first := true

		for _, b := range batches {
			stats.BatchCount++
			if b.CompletedAt != nil {
				stats.MonthlyBatchCount[b.CompletedAt.Month()-1]++
			}

			point := YTDSeriesPoint{BatchNumber: b.BatchNumber}
			if b.CompletedAt != nil {
				point.CompletedAt = *b.CompletedAt
			}
			if b.FineGramsReceived != nil {
				stats.TotalFineGrams += *b.FineGramsReceived
				point.FineGrams = *b.FineGramsReceived
			}
			if b.LossGainG != nil {
				lg := *b.LossGainG
				stats.TotalLossGainG += lg
				cumulative += lg
				point.LossGainG = lg
				if first || lg < stats.MinLossGainG {
					stats.MinLossGainG = lg
				}
				if first || lg > stats.MaxLossGainG {
					stats.MaxLossGainG = lg
				}
				first = false
			}
			point.CumulativeLossGain = cumulative
			if b.OverallRecoveryPercent != nil {
				recoverySum += *b.OverallRecoveryPercent
				recoveryN++
				point.RecoveryPercent = *b.OverallRecoveryPercent
			}
			if b.FTTHours != nil {
				fttSum += float64(*b.FTTHours)
				fttN++
			}
			stats.Series = append(stats.Series, point)
		}

		if recoveryN > 0 {
			stats.AvgRecoveryPct = recoverySum / float64(recoveryN)
		}
		if fttN > 0 {
			stats.AvgFTTHours = fttSum / float64(fttN)
		}
		return stats, nil
	})
}

func (s *reportService) StationThroughput(dbc dbctx.Context, filter repos.BatchFilter) ([]StationStats, error) {
	key := fmt.Sprintf("report:throughput:%s:%s:%s", filter.Pipeline, fmtTime(filter.From), fmtTime(filter.To))
	return cached(s, dbc, key, func() ([]StationStats, error) {
		var completed, active []*types.Batch

		g, gctx := errgroup.WithContext(dbc.Ctx)
		g.Go(func() error {
			rows, err := s.batches.ListCompleted(dbctx.Context{Ctx: gctx, Tx: dbc.Tx}, filter)
			if err != nil {
				return err
			}
			completed = rows
			return nil
		})
		g.Go(func() error {
			rows, err := s.batches.ListActive(dbctx.Context{Ctx: gctx, Tx: dbc.Tx}, filter.Pipeline)
			if err != nil {
				return err
			}
			active = rows
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		type acc struct {
			count int
			min   float64
			sum   float64
			max   float64
		}
		dwell := map[string]*acc{}

		for _, b := range completed {
			for station, minutes := range stationDwells(b.Events) {
				a := dwell[station]
				if a == nil {
					a = &acc{min: minutes, max: minutes}
					dwell[station] = a
				}
				a.count++
				a.sum += minutes
				if minutes < a.min {
					a.min = minutes
				}
				if minutes > a.max {
					a.max = minutes
				}
			}
		}

		activeAt, err := s.activeStationCounts(dbc, active)
		if err != nil {
			return nil, err
		}

		names := make(map[string]bool, len(dwell)+len(activeAt))
		for k := range dwell {
			names[k] = true
		}
		for k := range activeAt {
			names[k] = true
		}

		out := make([]StationStats, 0, len(names))
		for name := range names {
			row := StationStats{Station: name, ActiveNow: activeAt[name]}
			if a := dwell[name]; a != nil {
				row.BatchCount = a.count
				row.MinDwellMin = a.min
				row.AvgDwellMin = a.sum / float64(a.count)
				row.MaxDwellMin = a.max
			}
			out = append(out, row)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Station < out[j].Station })
		return out, nil
	})
}

func (s *reportService) OperatorPerformance(dbc dbctx.Context, filter repos.BatchFilter) ([]OperatorStats, error) {
	key := fmt.Sprintf("report:operators:%s:%s:%s", filter.Pipeline, fmtTime(filter.From), fmtTime(filter.To))
	return cached(s, dbc, key, func() ([]OperatorStats, error) {
		batches, err := s.batches.ListCompleted(dbc, filter)
		if err != nil {
			return nil, err
		}

		type acc struct {
			count       int
			onTime      int
			recoverySum float64
			recoveryN   int
			fttSum      float64
			fttN        int
		}
		byUser := map[uuid.UUID]*acc{}
		for _, b := range batches {
			a := byUser[b.CreatedBy]
			if a == nil {
				a = &acc{}
				byUser[b.CreatedBy] = a
			}
			a.count++
			if b.FTTHours != nil {
				a.fttSum += float64(*b.FTTHours)
				a.fttN++
				if float64(*b.FTTHours) <= onTimeThresholdHours {
					a.onTime++
				}
			}
			if b.OverallRecoveryPercent != nil {
				a.recoverySum += *b.OverallRecoveryPercent
				a.recoveryN++
			}
		}

		userIDs := make([]uuid.UUID, 0, len(byUser))
		for id := range byUser {
			userIDs = append(userIDs, id)
		}
		names := map[uuid.UUID]string{}
		if len(userIDs) > 0 {
			users, err := s.users.GetByIDs(dbc, userIDs)
			if err != nil {
				s.log.Warn("Operator name lookup failed", "error", err)
			} else {
				for _, u := range users {
					names[u.ID] = u.FirstName + " " + u.LastName
				}
			}
		}

		out := make([]OperatorStats, 0, len(byUser))
		for id, a := range byUser {
			row := OperatorStats{
				UserID:     id,
				Name:       names[id],
				BatchCount: a.count,
			}
			if a.count > 0 {
				row.OnTimeRatio = float64(a.onTime) / float64(a.count)
			}
			if a.recoveryN > 0 {
				row.AvgRecoveryPct = a.recoverySum / float64(a.recoveryN)
			}
			if a.fttN > 0 {
				row.AvgFTTHours = a.fttSum / float64(a.fttN)
			}
			row.EfficiencyScore = efficiencyScore(row.OnTimeRatio, row.AvgRecoveryPct, row.AvgFTTHours)
			out = append(out, row)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].EfficiencyScore > out[j].EfficiencyScore })
		return out, nil
	})
}

// efficiencyScore averages three normalized factors: the on-time ratio, the
// recovery fraction, and a speed factor that is 1.0 at the 36h target. The
// speed factor is zero (not infinite) when no FTT data exists.
func efficiencyScore(onTimeRatio, avgRecoveryPct, avgFTTHours float64) float64 {
	speed := 0.0
	if avgFTTHours > 0 {
		speed = onTimeThresholdHours / avgFTTHours
	}
	return (onTimeRatio + avgRecoveryPct/100 + speed) / 3
}

// stationDwells scans an event list for contiguous runs at the same station
// and returns minutes between each run's first and last timestamp, summed
// per station. Events without a station label are skipped.
func stationDwells(events types.EventList) map[string]float64 {
	out := map[string]float64{}
	var runStation string
	var runStart, runEnd time.Time

	flush := func() {
		if runStation != "" {
			out[runStation] += runEnd.Sub(runStart).Minutes()
		}
	}
	for _, ev := range events {
		if ev.Station == "" {
			continue
		}
		if ev.Station != runStation {
			flush()
			runStation = ev.Station
			runStart = ev.At
		}
		runEnd = ev.At
	}
	flush()
	return out
}

// activeStationCounts resolves each in-flight batch's current node to a
// station name via its bound flow.
func (s *reportService) activeStationCounts(dbc dbctx.Context, active []*types.Batch) (map[string]int, error) {
	counts := map[string]int{}
	if len(active) == 0 {
		return counts, nil
	}

	flowIDs := make([]uuid.UUID, 0, len(active))
	seen := map[uuid.UUID]bool{}
	for _, b := range active {
		if !seen[b.FlowID] {
			seen[b.FlowID] = true
			flowIDs = append(flowIDs, b.FlowID)
		}
	}
	flows, err := s.flows.GetByIDs(dbc, flowIDs)
	if err != nil {
		return nil, err
	}
	nodeName := map[uuid.UUID]string{}
	for _, f := range flows {
		for _, n := range f.Nodes {
			nodeName[n.ID] = n.Name
		}
	}
	for _, b := range active {
		if b.CurrentNodeID == nil {
			continue
		}
		if name, ok := nodeName[*b.CurrentNodeID]; ok {
			counts[name]++
		}
	}
	return counts, nil
}

func fmtTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
