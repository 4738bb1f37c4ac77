package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Sentinel - quota guard for a local AI coding assistant",
	Long: `Sentinel continuously estimates the remaining usage quota of each model
offered by a locally running AI coding assistant and surfaces graduated
warnings before the provider's rate limit ("cooldown") is hit.

It discovers the assistant's agent service process by OS introspection,
polls its private status endpoint, and recommends allow/deny before
quota-spending actions. Sentinel only recommends; it never blocks the
assistant itself.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "sentinel.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
