// ABOUTME: Error and result types of an upgrade run
// ABOUTME: StepError names the failing phase, operation and workspace with elapsed time

package upgrade

import (
	"fmt"
	"time"

	"github.com/2389/coven-migrate/internal/indexes"
	"github.com/2389/coven-migrate/internal/progress"
)

// StepError reports a failed step of a run
type StepError struct {
	Phase     progress.Phase
	Operation string
	Workspace string
	Elapsed   time.Duration
	Err       error
}

func (e *StepError) Error() string {
	if e.Operation == "" {
		return fmt.Sprintf("workspace %s: %s failed after %s: %v", e.Workspace, e.Phase, e.Elapsed.Round(time.Millisecond), e.Err)
	}
	return fmt.Sprintf("workspace %s: %s %s failed after %s: %v", e.Workspace, e.Phase, e.Operation, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// StepTiming records one completed step
type StepTiming struct {
	Phase     progress.Phase
	Operation string
	Elapsed   time.Duration
}

// Result summarizes a run. It is returned alongside errors with whatever
// was completed before the failure.
type Result struct {
	Workspace string
	Steps     []StepTiming
	Indexes   []indexes.DomainResult

	Txes                 int
	ClassificationErrors []error

	Connected   bool  // a live connection was opened
	Notified    bool  // the HTTP force-close was attempted
	NotifyError error // failure of that attempt, which does not fail the run

	Duration time.Duration
}
