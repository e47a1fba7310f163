package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/streamscout/internal/config"
	"github.com/nao1215/streamscout/internal/database"
	"github.com/nao1215/streamscout/internal/model"
	"github.com/nao1215/streamscout/internal/report"
	"github.com/nao1215/streamscout/internal/resolver"
)

// NewResolveCmd creates the resolve command.
func NewResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve [id]...",
		Short: "Resolve identifiers into stream manifest URLs",
		Long: `Resolve probes every configured provider for each identifier and prints
the merged report.

Each provider gets its own deadline. A provider that times out or fails is
reported as an error without delaying the others. Every resolution is saved
to the history database unless --no-history is given.

Examples:
  # Resolve a single identifier
  streamscout resolve 550

  # Resolve several identifiers, two at a time
  streamscout resolve -b 2 550 603 680

  # Output a JSON report
  streamscout resolve --json 550

  # Write a Markdown report to a file
  streamscout resolve -m -o reports/550.md 550

  # Use a shorter deadline and at most four probes at once
  streamscout resolve -t 5s -n 4 550

  # Route provider traffic through a SOCKS5 proxy
  streamscout resolve --proxy 127.0.0.1:9050 550`,
		Args: cobra.ArbitraryArgs,
		RunE: runResolveCmd,
	}

	addEngineFlags(cmd)

	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of identifiers resolved at once")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("no-history", false,
		"Do not save resolutions to the history database")

	return cmd
}

// runResolveCmd executes the resolve command.
func runResolveCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildResolveConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.ValidateResolve(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg)

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	return runResolve(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, logger)
}

// buildResolveConfig creates a Config from the configuration file and the
// resolve flags.
func buildResolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()

	if flags.Changed("batch") {
		if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
			return nil, err
		}
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory

	cfg.Identifiers = args

	return cfg, nil
}

// runResolve resolves every identifier of cfg and writes the reports in
// argument order. It fails if any identifier could not be resolved.
func runResolve(ctx context.Context, stdout, stderr io.Writer, cfg *config.Config, logger *slog.Logger) error {
	registry, err := cfg.Registry()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	ids := make([]model.Identifier, len(cfg.Identifiers))
	for i, raw := range cfg.Identifiers {
		if ids[i], err = model.ParseIdentifier(raw); err != nil {
			return fmt.Errorf("invalid identifier %q: %w", raw, err)
		}
	}

	opts := resolverOptions(cfg, logger)

	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
		opts = append(opts, resolver.WithHistory(db))
	}

	eng, err := newEngine(ctx, cfg, logger, stderr)
	if err != nil {
		return err
	}
	defer eng.Close()

	svc := resolver.New(registry, eng.probes, opts...)

	startTime := time.Now()
	reports, errs, err := svc.ResolveAll(ctx, ids)
	if err != nil {
		return err
	}
	logger.Info("resolution finished",
		"identifiers", len(ids),
		"elapsed", time.Since(startTime).Round(time.Millisecond),
	)

	if err := outputReports(stdout, cfg, reports); err != nil {
		return err
	}

	var failed int
	for i, e := range errs {
		if e != nil {
			failed++
			fmt.Fprintf(stderr, "Resolution error for %s: %v\n", ids[i], e)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d identifiers could not be resolved", failed, len(ids))
	}
	if ctx.Err() != nil {
		return errors.New("interrupted: reports contain cancelled probes")
	}
	return nil
}

// reportFormat returns the format selected by cfg.
func reportFormat(cfg *config.Config) report.Format {
	switch {
	case cfg.JSONReport:
		return report.FormatJSON
	case cfg.MarkdownReport:
		return report.FormatMarkdown
	default:
		return report.FormatText
	}
}

// outputReports writes reports in the requested format. With a report file,
// the file receives the requested format and stdout keeps a text summary.
func outputReports(stdout io.Writer, cfg *config.Config, reports []*model.Report) error {
	var writer report.Writer
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()

		writer = report.NewMultiWriter(
			newReportWriter(report.FormatText, stdout, cfg.Verbose),
			newReportWriter(reportFormat(cfg), f, cfg.Verbose),
		)
	} else {
		writer = newReportWriter(reportFormat(cfg), stdout, cfg.Verbose)
	}

	for _, r := range reports {
		if r == nil {
			continue
		}
		if _, err := writer.Write(r); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return nil
}

// newReportWriter is report.New with the verbose text writer.
func newReportWriter(format report.Format, w io.Writer, verbose bool) report.Writer {
	if format == report.FormatText {
		return report.NewSimpleWriter(w, report.WithVerbose(verbose))
	}
	return report.New(format, w)
}
