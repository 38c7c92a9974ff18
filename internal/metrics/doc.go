// ABOUTME: Package metrics exposes Prometheus instrumentation for migration runs
// ABOUTME: Step durations and run outcomes are recorded per workspace

// Package metrics records how long each migration step takes and how runs end.
//
// All metrics are registered with the default Prometheus registry on package
// load. A Collector pre-fills the workspace label; the upgrade orchestrator
// feeds it from every step it times. serve-control exposes the registry on
// Path next to the manage endpoint.
package metrics
