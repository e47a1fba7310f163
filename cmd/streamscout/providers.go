package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nao1215/streamscout/internal/config"
	"github.com/nao1215/streamscout/internal/model"
)

// NewProvidersCmd creates the providers command.
func NewProvidersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Print the configured provider catalogue",
		Long: `Providers prints the provider catalogue in resolution order, with the
fetch strategy each provider uses and its endpoint template.

Examples:
  # Show the catalogue of the discovered configuration file
  streamscout providers

  # Show the catalogue of a specific file as JSON
  streamscout providers -c myconfig.yaml --json`,
		Args: cobra.NoArgs,
		RunE: runProvidersCmd,
	}

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .streamscout in current or home directory)")
	cmd.Flags().BoolP("json", "j", false,
		"Output the catalogue in JSON format")

	return cmd
}

// providerEntry is one provider as shown by the providers command.
type providerEntry struct {
	Tag      string `json:"tag"`
	Strategy string `json:"strategy"`
	Endpoint string `json:"endpoint"`
}

// runProvidersCmd executes the providers command.
func runProvidersCmd(cmd *cobra.Command, _ []string) error {
	cfg := config.NewConfig()

	var err error
	if cfg.ConfigFilePath, err = cmd.Flags().GetString("config"); err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	path, err := config.Load(cfg)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	registry, err := cfg.Registry()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	entries := providerEntries(registry, cfg.Strategy)
	out := cmd.OutOrStdout()
	if jsonOutput {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(map[string][]providerEntry{"providers": entries})
	}
	writeProviders(out, path, entries)
	return nil
}

// providerEntries lists the registry, filling in the default strategy.
func providerEntries(registry *model.Registry, defaultStrategy string) []providerEntry {
	providers := registry.List()
	entries := make([]providerEntry, len(providers))
	for i, p := range providers {
		strategy := p.Strategy
		if strategy == "" {
			strategy = defaultStrategy
		}
		entries[i] = providerEntry{Tag: p.Tag, Strategy: strategy, Endpoint: p.Template}
	}
	return entries
}

// writeProviders prints entries as an aligned table.
func writeProviders(out io.Writer, path string, entries []providerEntry) {
	fmt.Fprintf(out, "Providers from %s (%d):\n\n", path, len(entries))

	width := len("Tag")
	for _, e := range entries {
		width = max(width, len(e.Tag))
	}
	fmt.Fprintf(out, "  %-*s  %-8s  %s\n", width, "Tag", "Strategy", "Endpoint")
	for _, e := range entries {
		fmt.Fprintf(out, "  %-*s  %-8s  %s\n", width, e.Tag, e.Strategy, e.Endpoint)
	}
}
