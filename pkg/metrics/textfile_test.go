package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextfileFlushWritesExposition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mergegate.prom")

	rec := NewTextfileRecorder(path)
	rec.ObserveRun("merged", 1500*time.Millisecond)
	rec.SetRunTotals(map[string]int{"merged": 3, "rejected": 1})

	require.NoError(t, rec.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "# TYPE mergegate_runs gauge")
	assert.Contains(t, text, `mergegate_runs{result="merged"} 3`)
	assert.Contains(t, text, `mergegate_runs{result="rejected"} 1`)
	assert.Contains(t, text, `mergegate_last_run_result{result="merged"} 1`)
	assert.Contains(t, text, "mergegate_last_run_duration_seconds 1.5")
	assert.Contains(t, text, "mergegate_last_run_timestamp_seconds")
}

func TestTextfileFlushReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mergegate.prom")
	require.NoError(t, os.WriteFile(path, []byte("stale_metric 99\n"), 0644))

	rec := NewTextfileRecorder(path)
	rec.ObserveRun("rejected", time.Second)
	require.NoError(t, rec.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "stale_metric")

	// World-readable so the collector, usually another user, can scrape it.
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestTextfileFlushCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "textfile_collector", "mergegate.prom")

	rec := NewTextfileRecorder(path)
	rec.ObserveRun("error", 200*time.Millisecond)
	require.NoError(t, rec.Flush())

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestTextfileFlushLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mergegate.prom")

	rec := NewTextfileRecorder(path)
	rec.ObserveRun("merged", time.Second)
	require.NoError(t, rec.Flush())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "mergegate.prom", entries[0].Name())
}

func TestNopRecorder(t *testing.T) {
	rec := Nop()
	rec.ObserveRun("merged", time.Second)
	rec.SetRunTotals(map[string]int{"merged": 1})
	assert.NoError(t, rec.Flush())
}
