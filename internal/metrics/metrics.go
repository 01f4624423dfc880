// Package metrics defines Prometheus collectors for the enforcement engine
// and serves them on a dedicated listener.
package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Tick metrics
	TicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "brickd_ticks_total",
			Help: "Total evaluation ticks processed",
		},
	)

	TicksSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "brickd_ticks_skipped_total",
			Help: "Evaluation ticks skipped because the engine was busy",
		},
	)

	// Session metrics
	SessionsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brickd_sessions_started_total",
			Help: "Enforcement windows opened",
		},
		[]string{"kind"},
	)

	SessionsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brickd_sessions_completed_total",
			Help: "Enforcement windows closed, by completion status",
		},
		[]string{"status"},
	)

	EnforcementActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "brickd_enforcement_active",
			Help: "Whether a session is currently enforced (0 or 1)",
		},
	)

	// Override metrics
	OverridesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brickd_overrides_total",
			Help: "Emergency overrides executed, by challenge kind",
		},
		[]string{"challenge"},
	)

	BypassAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "brickd_bypass_attempts_total",
			Help: "Blocked access attempts recorded during enforcement",
		},
	)

	// Grant metrics
	GrantsIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "brickd_unlock_grants_issued_total",
			Help: "Temporary unlock grants issued",
		},
	)

	// Decision metrics
	DecisionChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brickd_decision_changes_total",
			Help: "Enforcement decision changes pushed to the sink",
		},
		[]string{"blocked"},
	)

	// Cleanup metrics
	RecordsPruned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brickd_records_pruned_total",
			Help: "Records removed by the retention sweep",
		},
		[]string{"kind"},
	)
)

// Register registers all metrics with the default registry.
func Register() {
	prometheus.MustRegister(
		TicksTotal,
		TicksSkipped,
		SessionsStarted,
		SessionsCompleted,
		EnforcementActive,
		OverridesTotal,
		BypassAttempts,
		GrantsIssued,
		DecisionChanges,
		RecordsPruned,
	)
}

// Serve exposes the metrics endpoint on the given listener until it is closed.
func Serve(listener net.Listener, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	logger.Info().Str("addr", listener.Addr().String()).Msg("Metrics server listening")
	if err := http.Serve(listener, mux); err != nil {
		logger.Error().Err(err).Msg("Metrics server stopped")
	}
}
