package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mergegate/pkg/config"
	"mergegate/pkg/persistence"
)

//nolint:gochecknoglobals // Cobra flag variables
var (
	historyLimit int
	historyRepo  string
)

//nolint:gochecknoglobals // Cobra command definition
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent merge-gate runs",
	Long:  `Display recent runs from the local run ledger, most recent first.`,
	RunE:  runHistory,
}

//nolint:gochecknoinits // Cobra flag registration
func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum runs to show")
	historyCmd.Flags().StringVar(&historyRepo, "repo", "", "Filter by owner/repo path")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if !cfg.Ledger.Enabled {
		return fmt.Errorf("run ledger is disabled in the configuration")
	}

	store, err := persistence.Open(cfg.Ledger.Path)
	if err != nil {
		return fmt.Errorf("opening run ledger: %w", err)
	}
	defer func() { _ = store.Close() }()

	var runs []*persistence.RunRecord
	if historyRepo != "" {
		runs, err = store.RunsForRepo(historyRepo, historyLimit)
	} else {
		runs, err = store.RecentRuns(historyLimit)
	}
	if err != nil {
		return fmt.Errorf("reading run history: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tREPO\t#\tRESULT\tTARGET\tAPPROVALS\tDURATION\tDETAIL")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%d\t%dms\t%s\n",
			run.CreatedAt.Local().Format("2006-01-02 15:04"),
			run.RepoPath, run.PRNumber, run.Result, run.TargetBranch,
			run.Approvals, run.DurationMS, truncate(run.Detail, 48))
	}
	return w.Flush()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
