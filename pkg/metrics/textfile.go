package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// TextfileRecorder collects run metrics on a private registry and writes
// them in Prometheus text exposition format, suitable for the
// node-exporter textfile collector. One recorder covers one run; the
// output file is replaced wholesale on Flush.
type TextfileRecorder struct {
	registry        *prometheus.Registry
	runs            *prometheus.GaugeVec
	lastRunResult   *prometheus.GaugeVec
	lastRunDuration prometheus.Gauge
	lastRunTime     prometheus.Gauge
	path            string
}

// NewTextfileRecorder creates a recorder that writes to path on Flush.
func NewTextfileRecorder(path string) *TextfileRecorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &TextfileRecorder{
		registry: registry,
		path:     path,
		runs: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mergegate_runs",
				Help: "All-time number of merge-gate runs by result, sourced from the run ledger",
			},
			[]string{"result"},
		),
		lastRunResult: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mergegate_last_run_result",
				Help: "Set to 1 on the series matching the result of the most recent run",
			},
			[]string{"result"},
		),
		lastRunDuration: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mergegate_last_run_duration_seconds",
				Help: "Wall-clock duration of the most recent run",
			},
		),
		lastRunTime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mergegate_last_run_timestamp_seconds",
				Help: "Unix timestamp of the most recent run",
			},
		),
	}
}

// ObserveRun records the terminal result and duration of this run.
func (r *TextfileRecorder) ObserveRun(result string, duration time.Duration) {
	r.lastRunResult.WithLabelValues(result).Set(1)
	r.lastRunDuration.Set(duration.Seconds())
	r.lastRunTime.SetToCurrentTime()
}

// SetRunTotals seeds the all-time per-result run counts.
func (r *TextfileRecorder) SetRunTotals(counts map[string]int) {
	for result, count := range counts {
		r.runs.WithLabelValues(result).Set(float64(count))
	}
}

// Flush gathers the registry and writes the exposition text to the
// target path via a temp file and rename, so a collector scrape never
// sees a partial file. The file is world-readable because the collector
// typically runs as a different user.
func (r *TextfileRecorder) Flush() error {
	families, err := r.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create metrics temp file: %w", err)
	}

	encoder := expfmt.NewEncoder(tmp, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := encoder.Encode(family); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
			return fmt.Errorf("failed to encode metric family %s: %w", family.GetName(), err)
		}
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close metrics temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to set metrics file permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write metrics file %s: %w", r.path, err)
	}

	return nil
}
