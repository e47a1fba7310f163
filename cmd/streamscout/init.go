package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/streamscout/internal/config"
)

//go:embed templates/streamscout.yaml
var configTemplate embed.FS

// configFileName is the default configuration file name.
const configFileName = config.DefaultConfigFile

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a streamscout configuration file",
		Long: `Init writes a commented .streamscout configuration file.

The generated file includes:
- Default probe timeout, concurrency and fetch strategy
- Manifest markers and page strategy settings
- An example provider catalogue to replace with real endpoints

Examples:
  # Create .streamscout in current directory
  streamscout init

  # Create config file at a specific path
  streamscout init -o ~/.config/streamscout/config.yaml

  # Force overwrite existing file
  streamscout init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", configFileName,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile("templates/streamscout.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// Headers and proxy credentials may end up in this file.
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit the providers list before resolving. Each endpoint needs {id}")
	fmt.Fprintln(out, "exactly once, for example:")
	fmt.Fprintln(out, `  - tag: "[ALPHA]"`)
	fmt.Fprintln(out, `    endpoint: "https://alpha.example.com/api/source/{id}"`)

	return nil
}
