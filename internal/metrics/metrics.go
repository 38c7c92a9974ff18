// ABOUTME: Prometheus metric definitions for migration runs
// ABOUTME: Registered on the default registry via promauto

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Path is the HTTP path metrics are served on
const Path = "/metrics"

// Step and run outcomes
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// StepDuration tracks time spent in each orchestrator step.
var StepDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "coven_migrate_step_duration_seconds",
		Help:    "Time spent in a migration step",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"workspace", "phase", "operation", "outcome"},
)

// RunsTotal counts finished runs by kind (upgrade, init, update) and outcome.
var RunsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coven_migrate_runs_total",
		Help: "Total migration runs",
	},
	[]string{"workspace", "kind", "outcome"},
)

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
