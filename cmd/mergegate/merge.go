package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mergegate/pkg/config"
	"mergegate/pkg/forge"
	"mergegate/pkg/forge/github"
	"mergegate/pkg/logx"
	"mergegate/pkg/merge"
	"mergegate/pkg/metrics"
	"mergegate/pkg/persistence"
	"mergegate/pkg/policy"
	"mergegate/pkg/retry"
)

//nolint:gochecknoglobals // Cobra flag variables
var (
	prURL         string
	outputPath    string
	mergeMethod   string
	commitTitle   string
	commitMessage string
	minApprovals  int
	statusLabels  string
	retries       int
)

//nolint:gochecknoglobals // Cobra command definition
var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Evaluate a pull request and merge it if eligible",
	Long: `Evaluate a pull request against the configured approval and
status-label policy and merge it when eligible.

An already-merged PR is reported as such and the command succeeds, so
pipeline re-runs are safe. An ineligible PR or an API failure exits
non-zero and writes no result file.`,
	RunE: runMerge,
}

//nolint:gochecknoinits // Cobra flag registration
func init() {
	mergeCmd.Flags().StringVarP(&prURL, "pr", "p", "", "Pull request URL (required)")
	_ = mergeCmd.MarkFlagRequired("pr")
	mergeCmd.Flags().StringVarP(&outputPath, "output", "o", "", `Result file path ("-" for stdout only)`)
	mergeCmd.Flags().StringVar(&mergeMethod, "method", "", "Merge method: merge, squash, or rebase")
	mergeCmd.Flags().StringVar(&commitTitle, "commit-title", "", "Merge commit title")
	mergeCmd.Flags().StringVar(&commitMessage, "commit-message", "", "Merge commit message")
	mergeCmd.Flags().IntVar(&minApprovals, "approvals", 0, "Minimum approving reviews")
	mergeCmd.Flags().StringVar(&statusLabels, "status-labels", "", "Comma-separated status labels that must pass")
	mergeCmd.Flags().IntVar(&retries, "retries", 0, "Extra attempts after a transient failure")
	rootCmd.AddCommand(mergeCmd)
}

func runMerge(cmd *cobra.Command, _ []string) error {
	start := time.Now()
	logger := logx.NewLogger("cli")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyMergeFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Auth.Token == "" {
		return fmt.Errorf("no API token configured: set %s or %s, or store one with \"mergegate secrets set %s\"",
			config.EnvToken, config.EnvPassword, config.EnvToken)
	}

	ref, err := forge.ParsePullRequestURL(prURL)
	if err != nil {
		return err
	}

	client := github.NewClient(ref, github.Credentials{
		Username: cfg.Auth.Username,
		Token:    cfg.Auth.Token,
	})
	if cfg.APIBase != "" {
		client = client.WithAPIBase(cfg.APIBase)
	}
	client = client.WithTimeout(cfg.HTTPTimeout())
	defer client.Close()

	opts := merge.Options{
		Method:        cfg.Merge.Method,
		CommitTitle:   cfg.Merge.CommitTitle,
		CommitMessage: cfg.Merge.CommitMessage,
	}

	// Each attempt gets a fresh orchestrator: a finished workflow is not
	// reusable, and a re-fetch resolves a merge that landed even though
	// its response was lost.
	var lastPR *forge.PullRequestState
	outcome, runErr := retry.Do(cmd.Context(), cfg.RetryPolicy(), func(ctx context.Context) (*merge.Outcome, error) {
		orch := merge.NewOrchestrator(client, cfg.MergePolicy(), opts)
		out, err := orch.Run(ctx, ref)
		if pr := orch.PR(); pr != nil {
			lastPR = pr
		}
		return out, err
	})

	recordRun(cfg, ref, lastPR, outcome, runErr, time.Since(start), logger)

	if runErr != nil {
		return runErr
	}

	record, err := merge.Render(outcome)
	if err != nil {
		return err
	}
	if cfg.ArtifactPath != merge.StdoutPath {
		if err := merge.EmitOutcome(outcome, cfg.ArtifactPath); err != nil {
			return err
		}
		logger.Info("📄 Result written to %s", cfg.ArtifactPath)
	}
	fmt.Print(string(record))

	return nil
}

// applyMergeFlags overlays explicitly set command-line flags onto the
// loaded configuration. Flags win over environment and file values.
func applyMergeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("output") {
		cfg.ArtifactPath = outputPath
	}
	if flags.Changed("method") {
		cfg.Merge.Method = mergeMethod
	}
	if flags.Changed("commit-title") {
		cfg.Merge.CommitTitle = commitTitle
	}
	if flags.Changed("commit-message") {
		cfg.Merge.CommitMessage = commitMessage
	}
	if flags.Changed("approvals") {
		cfg.Policy.MinApprovals = minApprovals
	}
	if flags.Changed("status-labels") {
		cfg.Policy.RequiredLabels = policy.ParseRequiredLabels(statusLabels)
	}
	if flags.Changed("retries") {
		cfg.Retry.Attempts = retries + 1
	}
}

// classifyResult maps a run outcome to the ledger result vocabulary.
func classifyResult(outcome *merge.Outcome, err error) (result, detail string) {
	if err == nil {
		if outcome.AlreadyMerged {
			return persistence.ResultAlreadyMerged, ""
		}
		return persistence.ResultMerged, ""
	}

	var ineligible *policy.IneligibleError
	if errors.As(err, &ineligible) {
		return persistence.ResultRejected, ineligible.Reason.String()
	}
	return persistence.ResultError, err.Error()
}

// recordRun writes the run to the ledger and the metrics textfile. Both
// are best-effort observability: failures are logged and never change
// the command's exit status.
func recordRun(cfg *config.Config, ref forge.PullRequestRef, pr *forge.PullRequestState,
	outcome *merge.Outcome, runErr error, elapsed time.Duration, logger *logx.Logger,
) {
	result, detail := classifyResult(outcome, runErr)

	rec := &persistence.RunRecord{
		PRURL:      ref.String(),
		RepoPath:   ref.RepoPath(),
		PRNumber:   ref.Number,
		Result:     result,
		Detail:     detail,
		DurationMS: elapsed.Milliseconds(),
	}
	if outcome != nil {
		rec.TargetBranch = outcome.TargetBranch
	} else if pr != nil {
		rec.TargetBranch = pr.TargetBranch
	}
	if pr != nil {
		rec.Approvals = pr.Approvals
	}

	recorder := metrics.Recorder(metrics.Nop())
	if cfg.Metrics.Enabled {
		recorder = metrics.NewTextfileRecorder(cfg.Metrics.TextfilePath)
	}
	recorder.ObserveRun(result, elapsed)

	if cfg.Ledger.Enabled {
		store, err := persistence.Open(cfg.Ledger.Path)
		if err != nil {
			logger.Warn("Run ledger unavailable: %v", err)
		} else {
			defer func() { _ = store.Close() }()
			if err := store.RecordRun(rec); err != nil {
				logger.Warn("Failed to record run: %v", err)
			}
			if counts, err := store.CountByResult(); err == nil {
				recorder.SetRunTotals(counts)
			}
		}
	}

	if err := recorder.Flush(); err != nil {
		logger.Warn("Failed to write metrics: %v", err)
	}
}
