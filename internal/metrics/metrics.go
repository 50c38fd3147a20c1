// Package metrics exposes Prometheus metrics for the control plane.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for stream orchestration.
type Metrics struct {
	registry *prometheus.Registry

	streamStartsTotal   *prometheus.CounterVec
	streamStopsTotal    prometheus.Counter
	streamFailuresTotal *prometheus.CounterVec
	quotaRejectsTotal   prometheus.Counter
	dispatchSeconds     prometheus.Histogram
	activeStreams       prometheus.Gauge
	onlineWorkers       prometheus.Gauge
	workersLostTotal    prometheus.Counter
	assetsCleanedTotal  prometheus.Counter
}

// New creates and registers the metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		streamStartsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ezstream_stream_starts_total",
			Help: "Stream start attempts by outcome",
		}, []string{"outcome"}),
		streamStopsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ezstream_stream_stops_total",
			Help: "Completed stop cycles",
		}),
		streamFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ezstream_stream_failures_total",
			Help: "Stream failures by reason",
		}, []string{"reason"}),
		quotaRejectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ezstream_quota_rejects_total",
			Help: "Start requests rejected by the quota enforcer",
		}),
		dispatchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ezstream_dispatch_duration_seconds",
			Help:    "Time from start request to worker acknowledgement",
			Buckets: prometheus.DefBuckets,
		}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ezstream_active_streams",
			Help: "Streams currently in an active status",
		}),
		onlineWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ezstream_online_workers",
			Help: "Workers with a fresh heartbeat",
		}),
		workersLostTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ezstream_workers_lost_total",
			Help: "Workers declared lost after missing heartbeats",
		}),
		assetsCleanedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ezstream_assets_cleaned_total",
			Help: "Ephemeral streams whose assets were removed",
		}),
	}

	registry.MustRegister(
		m.streamStartsTotal,
		m.streamStopsTotal,
		m.streamFailuresTotal,
		m.quotaRejectsTotal,
		m.dispatchSeconds,
		m.activeStreams,
		m.onlineWorkers,
		m.workersLostTotal,
		m.assetsCleanedTotal,
	)
	return m
}

// IncStreamStart records a start attempt outcome: "accepted", "rejected",
// or "failed".
func (m *Metrics) IncStreamStart(outcome string) {
	m.streamStartsTotal.WithLabelValues(outcome).Inc()
}

// IncStreamStop records a completed stop cycle.
func (m *Metrics) IncStreamStop() {
	m.streamStopsTotal.Inc()
}

// IncStreamFailure records a stream failure by reason.
func (m *Metrics) IncStreamFailure(reason string) {
	m.streamFailuresTotal.WithLabelValues(reason).Inc()
}

// IncQuotaReject records a quota rejection.
func (m *Metrics) IncQuotaReject() {
	m.quotaRejectsTotal.Inc()
}

// ObserveDispatch records the start-to-acknowledgement latency in seconds.
func (m *Metrics) ObserveDispatch(seconds float64) {
	m.dispatchSeconds.Observe(seconds)
}

// SetActiveStreams sets the active streams gauge.
func (m *Metrics) SetActiveStreams(n int) {
	m.activeStreams.Set(float64(n))
}

// SetOnlineWorkers sets the online workers gauge.
func (m *Metrics) SetOnlineWorkers(n int) {
	m.onlineWorkers.Set(float64(n))
}

// IncWorkerLost records a worker declared lost.
func (m *Metrics) IncWorkerLost() {
	m.workersLostTotal.Inc()
}

// IncAssetsCleaned records a cleaned-up ephemeral stream.
func (m *Metrics) IncAssetsCleaned() {
	m.assetsCleanedTotal.Inc()
}

// Handler serves the metrics endpoint. updateGauges is called before each
// scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
