package merge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultArtifactPath is where the outcome record is written when the
// caller does not override it.
const DefaultArtifactPath = "git_merge_output.json"

// StdoutPath selects stdout-only emission.
const StdoutPath = "-"

// Render serializes the outcome record. The rendered form is the
// pipeline contract: exactly the five outcome fields, snake_case.
func Render(outcome *Outcome) ([]byte, error) {
	if err := outcome.Validate(); err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal outcome: %w", err)
	}
	return append(data, '\n'), nil
}

// EmitOutcome writes the outcome record to path, or to stdout when path
// is "-". File writes go to a temp file in the target directory followed
// by a rename, so a failed run never leaves a partial artifact behind.
func EmitOutcome(outcome *Outcome, path string) error {
	data, err := Render(outcome)
	if err != nil {
		return err
	}

	if path == StdoutPath {
		_, err = os.Stdout.Write(data)
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".merge-outcome-*")
	if err != nil {
		return fmt.Errorf("failed to create temp artifact: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close artifact: %w", err)
	}

	// CreateTemp files are 0600; the artifact is a normal build output.
	_ = os.Chmod(tmpName, 0o644)

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return nil
}
