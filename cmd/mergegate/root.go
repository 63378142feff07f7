package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mergegate/pkg/logx"
)

//nolint:gochecknoglobals // Cobra flag variables
var (
	configPath string
	debugMode  bool
)

//nolint:gochecknoglobals // Cobra command definition
var rootCmd = &cobra.Command{
	Use:   "mergegate",
	Short: "CI merge gate for pull requests",
	Long: `mergegate decides whether a pull request is eligible to be merged and
performs the merge inside a CI job.

It fetches the PR state from the code-hosting API, evaluates the
configured approval and status-label policy, merges when the PR is
eligible, and writes a machine-readable result record for downstream
pipeline stages.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if debugMode {
			logx.SetDebug(true)
		}
	},
}

// Execute runs the CLI and exits non-zero on any fatal error.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Cobra flag registration
func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default .mergegate/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
}
