// Package main provides the entry point for the streamscout CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for streamscout.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "streamscout",
		Short: "Resolve media identifiers into stream manifest URLs",
		Long: `streamscout resolves a media identifier into playable stream manifest URLs.

It probes every provider in the configured catalogue concurrently, bounds
each probe with a deadline, and merges whichever answer into one
deterministic report. Slow or failing providers never delay or corrupt the
others.

Run 'streamscout init' to create a configuration file with a provider
catalogue, then 'streamscout resolve <id>' or 'streamscout serve'.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON lines")

	cmd.AddCommand(NewResolveCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewProvidersCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
