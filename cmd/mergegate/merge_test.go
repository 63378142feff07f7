package main

import (
	"fmt"
	"strings"
	"testing"

	"mergegate/pkg/config"
	"mergegate/pkg/forge"
	"mergegate/pkg/merge"
	"mergegate/pkg/persistence"
	"mergegate/pkg/policy"
)

func TestClassifyResult(t *testing.T) {
	tests := []struct {
		name       string
		outcome    *merge.Outcome
		err        error
		wantResult string
		wantDetail string
	}{
		{
			name:       "merged outcome",
			outcome:    &merge.Outcome{Merged: true, TargetBranch: "main", PRRepoURL: "https://github.com/acme/widget", PRNumber: 42},
			wantResult: persistence.ResultMerged,
		},
		{
			name:       "already merged outcome",
			outcome:    &merge.Outcome{AlreadyMerged: true, TargetBranch: "main", PRRepoURL: "https://github.com/acme/widget", PRNumber: 42},
			wantResult: persistence.ResultAlreadyMerged,
		},
		{
			name: "insufficient approvals",
			err: policy.NewIneligibleError(&policy.Ineligibility{
				Reason: policy.ReasonInsufficientApprovals, Have: 1, Need: 2,
			}),
			wantResult: persistence.ResultRejected,
			wantDetail: "insufficient approvals: have 1, need 2",
		},
		{
			name: "missing status checks",
			err: policy.NewIneligibleError(&policy.Ineligibility{
				Reason: policy.ReasonMissingStatusChecks, Missing: []string{"ci/test"},
			}),
			wantResult: persistence.ResultRejected,
			wantDetail: "missing status checks: ci/test",
		},
		{
			name:       "transient API failure",
			err:        forge.NewError(forge.KindTransient, "gateway timeout"),
			wantResult: persistence.ResultError,
			wantDetail: "gateway timeout",
		},
		{
			name:       "wrapped ineligibility stays rejected",
			err:        fmt.Errorf("run failed: %w", policy.NewIneligibleError(&policy.Ineligibility{Reason: policy.ReasonInsufficientApprovals, Have: 0, Need: 1})),
			wantResult: persistence.ResultRejected,
			wantDetail: "insufficient approvals: have 0, need 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, detail := classifyResult(tt.outcome, tt.err)
			if result != tt.wantResult {
				t.Errorf("result = %q, want %q", result, tt.wantResult)
			}
			if tt.wantDetail != "" && !strings.Contains(detail, tt.wantDetail) {
				t.Errorf("detail = %q, want it to contain %q", detail, tt.wantDetail)
			}
			if tt.wantDetail == "" && tt.err == nil && detail != "" {
				t.Errorf("detail = %q, want empty for successful runs", detail)
			}
		})
	}
}

// TestApplyMergeFlags drives the unset and set cases in sequence because
// a pflag FlagSet cannot be reset once a flag is marked as changed.
func TestApplyMergeFlags(t *testing.T) {
	cfg := config.Default()
	cfg.Policy.MinApprovals = 2
	cfg.Merge.Method = config.MergeMethodSquash

	// Nothing set on the command line: config values survive.
	applyMergeFlags(mergeCmd, cfg)
	if cfg.Policy.MinApprovals != 2 {
		t.Errorf("MinApprovals = %d, want 2 (unset flag must not override)", cfg.Policy.MinApprovals)
	}
	if cfg.Merge.Method != config.MergeMethodSquash {
		t.Errorf("Method = %q, want squash (unset flag must not override)", cfg.Merge.Method)
	}
	if cfg.Retry.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1 by default", cfg.Retry.Attempts)
	}

	// Explicit flags win over the loaded config.
	for flag, value := range map[string]string{
		"approvals":     "3",
		"status-labels": "ci/build, ci/test",
		"method":        "rebase",
		"output":        "-",
		"retries":       "2",
	} {
		if err := mergeCmd.Flags().Set(flag, value); err != nil {
			t.Fatalf("Failed to set --%s: %v", flag, err)
		}
	}
	applyMergeFlags(mergeCmd, cfg)

	if cfg.Policy.MinApprovals != 3 {
		t.Errorf("MinApprovals = %d, want 3", cfg.Policy.MinApprovals)
	}
	if len(cfg.Policy.RequiredLabels) != 2 || cfg.Policy.RequiredLabels[0] != "ci/build" || cfg.Policy.RequiredLabels[1] != "ci/test" {
		t.Errorf("RequiredLabels = %v, want [ci/build ci/test]", cfg.Policy.RequiredLabels)
	}
	if cfg.Merge.Method != config.MergeMethodRebase {
		t.Errorf("Method = %q, want rebase", cfg.Merge.Method)
	}
	if cfg.ArtifactPath != merge.StdoutPath {
		t.Errorf("ArtifactPath = %q, want %q", cfg.ArtifactPath, merge.StdoutPath)
	}
	// --retries counts extra attempts on top of the first one.
	if cfg.Retry.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3 for --retries 2", cfg.Retry.Attempts)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	if got := truncate("a very long detail message", 10); got != "a very ..." {
		t.Errorf("truncate(long) = %q", got)
	}
}

// Note: runMerge wires network, ledger, and filesystem together and is
// exercised end to end in CI; the orchestrator, client, and emitter it
// composes have their own package tests.
