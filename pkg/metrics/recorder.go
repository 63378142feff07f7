// Package metrics exposes merge-gate run metrics for the Prometheus
// node-exporter textfile collector.
package metrics

import "time"

// Recorder defines the interface for recording merge-gate run metrics.
type Recorder interface {
	// ObserveRun records the terminal result and wall-clock duration of
	// this run.
	ObserveRun(result string, duration time.Duration)

	// SetRunTotals seeds the all-time per-result run counts, normally
	// sourced from the run ledger.
	SetRunTotals(counts map[string]int)

	// Flush writes the collected metrics to their destination.
	Flush() error
}

// NoopRecorder implements Recorder with no-op behavior for when metrics
// are disabled.
type NoopRecorder struct{}

// Nop returns a no-op metrics recorder that discards all metrics.
func Nop() Recorder {
	return &NoopRecorder{}
}

// ObserveRun does nothing in the no-op recorder.
func (n *NoopRecorder) ObserveRun(_ string, _ time.Duration) {
	// No-op
}

// SetRunTotals does nothing in the no-op recorder.
func (n *NoopRecorder) SetRunTotals(_ map[string]int) {
	// No-op
}

// Flush does nothing in the no-op recorder.
func (n *NoopRecorder) Flush() error {
	return nil
}
