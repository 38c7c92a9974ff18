// ABOUTME: Collector pre-fills the workspace label for run metrics
// ABOUTME: Used by the upgrade orchestrator for every timed step

package metrics

import "time"

// Collector wraps the metrics with the workspace label filled in.
type Collector struct {
	workspace string
}

// NewCollector creates a Collector for workspace.
func NewCollector(workspace string) *Collector {
	return &Collector{workspace: workspace}
}

// ObserveStep records one step's duration.
func (c *Collector) ObserveStep(phase, operation, outcome string, elapsed time.Duration) {
	StepDuration.WithLabelValues(c.workspace, phase, operation, outcome).Observe(elapsed.Seconds())
}

// IncRuns counts a finished run. A nil err counts as OutcomeOK.
func (c *Collector) IncRuns(kind string, err error) {
	RunsTotal.WithLabelValues(c.workspace, kind, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}
