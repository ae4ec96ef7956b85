package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/reportkeeper/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "reportkeeper",
	Short: "Report Keeper - report lifecycle service",
	Long: `Report Keeper manages long-lived, multi-stage inspection reports.

It provides:
  - A stage machine moving reports from on-site collection to completion
  - Soft delete with a recovery window
  - Scheduled reclamation of abandoned drafts and expired deletions
  - An HTTP API with API key authentication`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with a code derived from the
// error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
