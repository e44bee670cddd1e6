package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus RED (Rate, Errors, Duration) metrics for
// the discovery service's HTTP surface and background pipeline.
// Grounded on the metric-registration style in the pack's consensus
// metrics package (prometheus.NewCounterVec/HistogramVec registered
// against a Registerer at construction time), adapted here to the
// teacher's RED naming scheme from observability.go rather than that
// package's averager abstraction.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ErrorsTotal     *prometheus.CounterVec
	SessionsActive  prometheus.Gauge

	DiscoveryLevelDuration *prometheus.HistogramVec
	ROIRoundsTotal         *prometheus.CounterVec
}

// NewMetrics registers and returns the service's Prometheus metrics
// against the given registerer. Pass prometheus.DefaultRegisterer in
// production, or prometheus.NewRegistry() for isolated tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "incentive_discovery_http_requests_total",
			Help: "Total HTTP requests processed, by route, method, and status code.",
		}, []string{"route", "method", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "incentive_discovery_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "incentive_discovery_errors_total",
			Help: "Total errors recorded, by component.",
		}, []string{"component"}),
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "incentive_discovery_sessions_active",
			Help: "Number of discovery sessions currently in flight.",
		}),
		DiscoveryLevelDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "incentive_discovery_level_duration_seconds",
			Help:    "Duration of a single jurisdiction-level discovery worker run.",
			Buckets: prometheus.DefBuckets,
		}, []string{"level"}),
		ROIRoundsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "incentive_discovery_roi_rounds_total",
			Help: "Total ROI refinement rounds run, by completion outcome.",
		}, []string{"outcome"}),
	}
}

// Handler exposes the registered metrics in Prometheus exposition
// format for a /metrics scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequest records one HTTP request's outcome and latency.
func (m *Metrics) ObserveRequest(route, method, status string, d time.Duration) {
	m.RequestsTotal.WithLabelValues(route, method, status).Inc()
	m.RequestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// ObserveError increments the error counter for a named component
// (e.g. "router", "discovery", "roi").
func (m *Metrics) ObserveError(component string) {
	m.ErrorsTotal.WithLabelValues(component).Inc()
}

// ObserveLevelDuration records a jurisdiction-level worker's run time.
func (m *Metrics) ObserveLevelDuration(level string, d time.Duration) {
	m.DiscoveryLevelDuration.WithLabelValues(level).Observe(d.Seconds())
}

// ObserveROIRound records one ROI refinement round's outcome, either
// "complete" or "continued".
func (m *Metrics) ObserveROIRound(outcome string) {
	m.ROIRoundsTotal.WithLabelValues(outcome).Inc()
}
