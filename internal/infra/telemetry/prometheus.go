package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wuyuepku/ssfscg/internal/domain"
)

type PrometheusMetrics struct {
	registrations       *prometheus.CounterVec
	pruned              *prometheus.CounterVec
	sweepDuration       *prometheus.HistogramVec
	checkpointOps       *prometheus.CounterVec
	accesses            *prometheus.CounterVec
	entries             *prometheus.GaugeVec
	retainedCheckpoints *prometheus.GaugeVec
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		registrations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssfs_registrations_total",
				Help: "Total number of client registration attempts",
			},
			[]string{"registry", "result"},
		),
		pruned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssfs_pruned_entries_total",
				Help: "Total number of dead client entries removed",
			},
			[]string{"registry", "reason"},
		),
		sweepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ssfs_sweep_duration_seconds",
				Help:    "Duration of registry sweeps in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"registry"},
		),
		checkpointOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssfs_checkpoint_operations_total",
				Help: "Total number of checkpoint operations",
			},
			[]string{"registry", "op", "outcome"},
		),
		accesses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssfs_payload_accesses_total",
				Help: "Total number of client payload access attempts",
			},
			[]string{"registry", "outcome"},
		),
		entries: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ssfs_registry_entries",
				Help: "Current number of registry entries, including unswept dead ones",
			},
			[]string{"registry"},
		),
		retainedCheckpoints: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ssfs_retained_checkpoints",
				Help: "Current number of checkpoints kept for departed clients",
			},
			[]string{"registry"},
		),
	}
}

func (p *PrometheusMetrics) ObserveRegistration(registry string, result domain.RegistrationResult) {
	p.registrations.WithLabelValues(registry, string(result)).Inc()
}

func (p *PrometheusMetrics) ObservePrune(registry string, reason domain.PruneReason, removed int) {
	if removed <= 0 {
		return
	}
	p.pruned.WithLabelValues(registry, string(reason)).Add(float64(removed))
}

func (p *PrometheusMetrics) ObserveSweep(registry string, duration time.Duration) {
	p.sweepDuration.WithLabelValues(registry).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) ObserveCheckpoint(registry string, op domain.CheckpointOp, outcome domain.CheckpointOutcome) {
	p.checkpointOps.WithLabelValues(registry, string(op), string(outcome)).Inc()
}

func (p *PrometheusMetrics) ObserveAccess(registry string, outcome domain.AccessOutcome) {
	p.accesses.WithLabelValues(registry, string(outcome)).Inc()
}

func (p *PrometheusMetrics) SetEntries(registry string, count int) {
	p.entries.WithLabelValues(registry).Set(float64(count))
}

func (p *PrometheusMetrics) SetRetainedCheckpoints(registry string, count int) {
	p.retainedCheckpoints.WithLabelValues(registry).Set(float64(count))
}

var _ domain.Metrics = (*PrometheusMetrics)(nil)
