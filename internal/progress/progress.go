// ABOUTME: Maps phase-local progress onto reserved slices of a single 0-100 scale
// ABOUTME: Reporter guarantees a non-decreasing sequence that ends at exactly 100

package progress

import (
	"math"
	"sync"
)

// Phase names a step of a migration run
type Phase string

const (
	PhaseLoad         Phase = "load"
	PhasePreMigrate   Phase = "pre-migrate"
	PhaseCutover      Phase = "cutover"
	PhaseForceIndexes Phase = "force-indexes"
	PhaseMigrate      Phase = "migrate"
	PhaseCatchUp      Phase = "catch-up"
	PhaseUpgrade      Phase = "upgrade"
	PhaseFinalize     Phase = "finalize"
)

// Range is a closed slice [Lo, Hi] of the global scale
type Range struct {
	Lo float64
	Hi float64
}

// Map converts a phase-local percentage (0-100) to the global scale.
// Out-of-range input is clamped.
func (r Range) Map(local float64) float64 {
	local = clamp(local)
	return r.Lo + (r.Hi-r.Lo)*local/100
}

// Sub returns the slice of r covering local percentages [from, to]
func (r Range) Sub(from, to float64) Range {
	return Range{Lo: r.Map(from), Hi: r.Map(to)}
}

var phaseRanges = map[Phase]Range{
	PhaseLoad:         {0, 0},
	PhasePreMigrate:   {0, 10},
	PhaseCutover:      {10, 20},
	PhaseForceIndexes: {20, 25},
	PhaseMigrate:      {25, 40},
	PhaseCatchUp:      {40, 60},
	PhaseUpgrade:      {60, 90},
	PhaseFinalize:     {90, 100},
}

// For returns the slice reserved for a phase. Unknown phases map to [0, 0].
func For(phase Phase) Range {
	return phaseRanges[phase]
}

// Global is the pure phase-to-scale mapping
func Global(phase Phase, local float64) float64 {
	return For(phase).Map(local)
}

// Step returns the local percentage after completing done of total steps.
// Zero total counts as complete.
func Step(done, total int) float64 {
	if total <= 0 {
		return 100
	}
	return 100 * float64(done) / float64(total)
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Sink receives progress values in [0, 100]
type Sink func(value float64)

// Reporter forwards values to a sink, dropping any that would decrease
type Reporter struct {
	mu       sync.Mutex
	sink     Sink
	last     float64
	reported bool
}

// NewReporter wraps sink. A nil sink discards everything.
func NewReporter(sink Sink) *Reporter {
	return &Reporter{sink: sink}
}

// Report forwards value if it is not lower than the last forwarded value
func (r *Reporter) Report(value float64) {
	value = clamp(value)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.reported && value < r.last {
		return
	}
	r.last = value
	r.reported = true
	if r.sink != nil {
		r.sink(value)
	}
}

// Phase reports a phase-local percentage
func (r *Reporter) Phase(phase Phase, local float64) {
	r.Report(Global(phase, local))
}

// Range returns a callback reporting local percentages within rng
func (r *Reporter) Range(rng Range) func(local float64) {
	return func(local float64) {
		r.Report(rng.Map(local))
	}
}

// Done reports exactly 100 unless it was already the last value
func (r *Reporter) Done() {
	r.mu.Lock()
	done := r.reported && r.last == 100
	r.mu.Unlock()

	if !done {
		r.Report(100)
	}
}

// Last returns the last forwarded value
func (r *Reporter) Last() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
