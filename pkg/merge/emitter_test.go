package merge

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func sampleOutcome() *Outcome {
	return &Outcome{
		AlreadyMerged: false,
		Merged:        true,
		TargetBranch:  "main",
		PRRepoURL:     "https://github.com/acme/widget",
		PRNumber:      42,
	}
}

// TestRenderFieldContract pins the artifact schema: exactly five
// snake_case fields, no extras.
func TestRenderFieldContract(t *testing.T) {
	data, err := Render(sampleOutcome())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Rendered artifact is not valid JSON: %v", err)
	}

	want := []string{"already_merged", "merged", "target_branch", "pr_repo_url", "pr_number"}
	if len(fields) != len(want) {
		t.Errorf("Artifact has %d fields, want %d: %v", len(fields), len(want), fields)
	}
	for _, key := range want {
		if _, ok := fields[key]; !ok {
			t.Errorf("Artifact missing field %q", key)
		}
	}

	if fields["merged"] != true {
		t.Error("merged should be true")
	}
	if fields["already_merged"] != false {
		t.Error("already_merged should be false")
	}
	if fields["target_branch"] != "main" {
		t.Errorf("target_branch = %v, want main", fields["target_branch"])
	}
	if fields["pr_number"] != float64(42) {
		t.Errorf("pr_number = %v, want 42", fields["pr_number"])
	}

	if data[len(data)-1] != '\n' {
		t.Error("Rendered artifact should end with a newline")
	}
}

func TestRenderRejectsInvalidOutcome(t *testing.T) {
	// Both flags set violates the outcome contract.
	bad := sampleOutcome()
	bad.AlreadyMerged = true
	if _, err := Render(bad); err == nil {
		t.Error("Render should reject an outcome with both flags set")
	}

	// Neither flag set is equally invalid.
	bad = sampleOutcome()
	bad.Merged = false
	if _, err := Render(bad); err == nil {
		t.Error("Render should reject an outcome with neither flag set")
	}

	bad = sampleOutcome()
	bad.PRNumber = 0
	if _, err := Render(bad); err == nil {
		t.Error("Render should reject an outcome without a PR number")
	}
}

func TestEmitOutcomeWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "git_merge_output.json")

	if err := EmitOutcome(sampleOutcome(), path); err != nil {
		t.Fatalf("EmitOutcome failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read artifact: %v", err)
	}

	var got Outcome
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Artifact is not valid JSON: %v", err)
	}
	if got != *sampleOutcome() {
		t.Errorf("Round-tripped outcome = %+v, want %+v", got, *sampleOutcome())
	}
}

// TestEmitOutcomeReplacesExisting verifies repeated runs overwrite the
// artifact rather than appending or failing.
func TestEmitOutcomeReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "git_merge_output.json")
	if err := os.WriteFile(path, []byte("stale garbage"), 0o644); err != nil {
		t.Fatalf("Failed to seed artifact: %v", err)
	}

	if err := EmitOutcome(sampleOutcome(), path); err != nil {
		t.Fatalf("EmitOutcome failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read artifact: %v", err)
	}
	var got Outcome
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Artifact not replaced with valid JSON: %v", err)
	}
	if !got.Merged {
		t.Error("Replaced artifact should carry the new outcome")
	}
}

func TestEmitOutcomeInvalidProducesNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "git_merge_output.json")

	bad := sampleOutcome()
	bad.AlreadyMerged = true
	if err := EmitOutcome(bad, path); err == nil {
		t.Fatal("EmitOutcome should reject an invalid outcome")
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("No artifact should exist after a failed emit")
	}
}

func TestEmitOutcomeMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "no", "such", "dir", "out.json")
	if err := EmitOutcome(sampleOutcome(), path); err == nil {
		t.Error("EmitOutcome should fail when the directory does not exist")
	}
}

func TestEmitOutcomeLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	if err := EmitOutcome(sampleOutcome(), path); err != nil {
		t.Fatalf("EmitOutcome failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to list dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "out.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("Expected only the artifact in %s, found %v", dir, names)
	}
}
