// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Signal metrics
	SignalsProcessed prometheus.Counter
	PositionsOpened  *prometheus.CounterVec
	SignalsSkipped   *prometheus.CounterVec
	StrategyErrors   *prometheus.CounterVec

	// Resolution metrics
	MarketsResolved  prometheus.Counter
	PositionsSettled *prometheus.CounterVec
	CooldownReleases prometheus.Counter
	CooldownReleased prometheus.Counter

	// Tick metrics
	TicksTotal        prometheus.Counter
	SnapshotsRecorded prometheus.Counter

	// Run metrics
	ActiveRuns    prometheus.Gauge
	RunsEnded     prometheus.Counter
	OpDuration    *prometheus.HistogramVec
	SaveConflicts prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "polycopy_sim"
	}

	return &Metrics{
		SignalsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "signals_processed_total",
			Help:      "Total number of trade signals processed",
		}),
		PositionsOpened: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "positions_opened_total",
			Help:      "Total number of positions opened by strategy",
		}, []string{"strategy"}),
		SignalsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "signals_skipped_total",
			Help:      "Total number of signals skipped by strategy and reason",
		}, []string{"strategy", "reason"}),
		StrategyErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "strategy_errors_total",
			Help:      "Total number of per-strategy processing failures",
		}, []string{"strategy"}),

		MarketsResolved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "markets_resolved_total",
			Help:      "Total number of market resolutions processed",
		}),
		PositionsSettled: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "positions_settled_total",
			Help:      "Total number of positions settled by outcome class",
		}, []string{"outcome"}),
		CooldownReleases: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "cooldown_releases_total",
			Help:      "Total number of cooldown entries released",
		}),
		CooldownReleased: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "cooldown_released_usd_total",
			Help:      "Total USD released from cooldown back to available",
		}),

		TicksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "ticks_total",
			Help:      "Total number of periodic ticks processed",
		}),
		SnapshotsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "snapshots_recorded_total",
			Help:      "Total number of hourly snapshots recorded",
		}),

		ActiveRuns: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "active_runs",
			Help:      "Current number of active simulation runs",
		}),
		RunsEnded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "runs_ended_total",
			Help:      "Total number of runs marked completed",
		}),
		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Duration of engine operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		SaveConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "save_conflicts_total",
			Help:      "Total number of optimistic-concurrency save conflicts",
		}),
	}
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
