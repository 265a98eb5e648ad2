package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meridianrefining/refinery-backend/internal/pkg/envutil"
	"github.com/meridianrefining/refinery-backend/internal/pkg/logger"
)

// Metrics bundles the Prometheus instruments for the HTTP surface and the
// batch domain. Nil *Metrics is a valid no-op receiver so call sites don't
// have to guard on the metrics flag.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	batchTransitions  *prometheus.CounterVec
	stepCompletions   *prometheus.CounterVec
	analyticsFailures *prometheus.CounterVec
	versionConflicts  prometheus.Counter
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Init builds the shared metrics instance when METRICS_ENABLED is set;
// otherwise returns nil and every instrument call becomes a no-op.
func Init(log *logger.Logger) *Metrics {
	if !envutil.GetEnvAsBool("METRICS_ENABLED", false, log) {
		return nil
	}
	initOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		m := &Metrics{
			registry: reg,
			apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "refinery_api_requests_total",
				Help: "Total API requests by method/route/status.",
			}, []string{"method", "route", "status"}),
			apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "refinery_api_request_duration_seconds",
				Help:    "API request latency in seconds by method/route.",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			}, []string{"method", "route"}),
			apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "refinery_api_inflight_requests",
				Help: "In-flight API requests.",
			}),
			batchTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "refinery_batch_transitions_total",
				Help: "Batch status transitions by from/to status.",
			}, []string{"from", "to"}),
			stepCompletions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "refinery_batch_step_completions_total",
				Help: "Completed steps by pipeline and station.",
			}, []string{"pipeline", "station"}),
			analyticsFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "refinery_analytics_failures_total",
				Help: "Swallowed analytics derivation failures by stage.",
			}, []string{"stage"}),
			versionConflicts: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "refinery_batch_version_conflicts_total",
				Help: "Optimistic-concurrency save rejections.",
			}),
		}
		reg.MustRegister(
			m.apiRequests, m.apiLatency, m.apiInflight,
			m.batchTransitions, m.stepCompletions, m.analyticsFailures,
			m.versionConflicts,
		)
		instance = m
		if log != nil {
			log.Info("Prometheus metrics enabled")
		}
	})
	return instance
}

// Handler serves the scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) BatchTransition(from, to string) {
	if m == nil {
		return
	}
	m.batchTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) StepCompleted(pipeline, station string) {
	if m == nil {
		return
	}
	m.stepCompletions.WithLabelValues(pipeline, station).Inc()
}

func (m *Metrics) AnalyticsFailure(stage string) {
	if m == nil {
		return
	}
	m.analyticsFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) VersionConflict() {
	if m == nil {
		return
	}
	m.versionConflicts.Inc()
}
