package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mergegate/pkg/version"
)

//nolint:gochecknoglobals // Cobra command definition
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("mergegate %s\n", version.Version)
		fmt.Printf("  commit: %s\n", version.Commit)
		fmt.Printf("  built:  %s\n", version.Date)
	},
}

//nolint:gochecknoinits // Cobra command registration
func init() {
	rootCmd.AddCommand(versionCmd)
}
