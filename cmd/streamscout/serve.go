package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nao1215/streamscout/internal/config"
	"github.com/nao1215/streamscout/internal/database"
	"github.com/nao1215/streamscout/internal/metrics"
	"github.com/nao1215/streamscout/internal/resolver"
	"github.com/nao1215/streamscout/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve resolutions over HTTP",
		Long: `Serve exposes the resolver over HTTP.

Routes:
  GET /resolve?id=<id>   resolve an identifier (also GET / and GET /api)
  GET /providers         list the provider catalogue
  GET /healthz           liveness check
  GET /metrics           Prometheus metrics

Reports are cached for --cache-ttl, and concurrent requests for the same
identifier share one resolution.

Examples:
  # Listen on the default address
  streamscout serve

  # Listen on localhost only and keep reports for one minute
  streamscout serve -l 127.0.0.1:9000 --cache-ttl 1m

  # Record every resolution in the history database
  streamscout serve --history

  # JSON logs for a log collector
  streamscout serve --log-json`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	addEngineFlags(cmd)

	cmd.Flags().StringP("listen", "l", config.DefaultListenAddress,
		"Address the HTTP server listens on")
	cmd.Flags().Duration("cache-ttl", config.DefaultCacheTTL,
		"How long a report is reused for the same identifier (0 disables caching)")
	cmd.Flags().Int("cache-size", config.DefaultCacheSize,
		"Maximum number of cached reports")
	cmd.Flags().Bool("history", false,
		"Save every resolution to the history database")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildServeConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg)

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	return runServe(ctx, cmd.ErrOrStderr(), cfg, logger)
}

// buildServeConfig creates a Config from the configuration file and the
// serve flags.
func buildServeConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()

	if cfg.ListenAddress, err = flags.GetString("listen"); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = flags.GetDuration("cache-ttl"); err != nil {
		return nil, err
	}
	if cfg.CacheSize, err = flags.GetInt("cache-size"); err != nil {
		return nil, err
	}
	if cfg.SaveToDB, err = flags.GetBool("history"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newServeResolver builds the resolver behind the HTTP server.
func newServeResolver(cfg *config.Config, eng *engine, recorder metrics.Recorder, history resolver.HistoryStore, logger *slog.Logger) (*resolver.Service, error) {
	registry, err := cfg.Registry()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	opts := append(resolverOptions(cfg, logger),
		resolver.WithCache(cfg.CacheTTL, cfg.CacheSize),
		resolver.WithSharedResolutions(),
		resolver.WithRecorder(recorder),
	)
	if history != nil {
		opts = append(opts, resolver.WithHistory(history))
	}
	return resolver.New(registry, eng.probes, opts...), nil
}

// runServe runs the HTTP server until ctx is cancelled.
func runServe(ctx context.Context, status io.Writer, cfg *config.Config, logger *slog.Logger) error {
	var history resolver.HistoryStore
	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
		history = db
	}

	eng, err := newEngine(ctx, cfg, logger, status)
	if err != nil {
		return err
	}
	defer eng.Close()

	recorder := metrics.NewPrometheus()
	svc, err := newServeResolver(cfg, eng, recorder, history, logger)
	if err != nil {
		return err
	}

	gateway := server.New(
		&server.Config{ListenAddress: cfg.ListenAddress},
		svc,
		server.WithLogger(logger),
		server.WithMetricsHandler(recorder.Handler()),
	)

	fmt.Fprintf(status, "Serving %d providers on http://%s\n", svc.Registry().Len(), cfg.ListenAddress)
	return gateway.Run(ctx)
}
