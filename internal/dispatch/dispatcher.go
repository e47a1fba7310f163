package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nao1215/streamscout/internal/model"
	"github.com/nao1215/streamscout/internal/probe"
	"golang.org/x/sync/errgroup"
)

// DefaultProbeTimeout is the per-probe deadline when none is configured.
const DefaultProbeTimeout = 10 * time.Second

// ProgressFunc is called once per finished probe with the number of
// finished probes so far and the registry size. It is called from the
// probe goroutines and must be safe for concurrent use.
type ProgressFunc func(done, total int, outcome model.Outcome)

// Dispatcher runs every provider's probe for one identifier concurrently.
//
// It uses an errgroup.Group with SetLimit as a fixed-size worker pool. The
// group is not bound to a context and probe closures never return an
// error, so one failing or slow probe cannot cancel its siblings.
//
// Each probe's deadline starts when the probe actually launches, not when
// Dispatch is called. With a concurrency limit below the registry size,
// queued probes start late, so the total wall time of a dispatch can
// exceed the probe timeout. It is bounded by roughly
// ceil(providers/concurrency) * timeout.
type Dispatcher struct {
	// prober runs a single probe. probe.Set is the production implementation.
	prober probe.Prober

	// concurrency is the maximum number of probes in flight.
	// Zero or negative means one worker per provider.
	concurrency int

	// timeout is the per-probe deadline.
	timeout time.Duration

	// progress is notified as probes finish. May be nil.
	progress ProgressFunc

	// logger is used for dispatch-level logging.
	logger *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithConcurrency sets the maximum number of concurrent probes.
// Zero or negative means one worker per provider.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		d.concurrency = n
	}
}

// WithProbeTimeout sets the per-probe deadline.
// Non-positive values are ignored and the default is kept.
func WithProbeTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithProgress registers a callback invoked as each probe finishes.
func WithProgress(fn ProgressFunc) Option {
	return func(d *Dispatcher) {
		d.progress = fn
	}
}

// WithDispatchLogger sets a custom logger for dispatch-level logging.
func WithDispatchLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// New creates a Dispatcher around prober.
func New(prober probe.Prober, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		prober:  prober,
		timeout: DefaultProbeTimeout,
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.logger == nil {
		d.logger = slog.Default()
	}

	return d
}

// Timeout returns the configured per-probe deadline.
func (d *Dispatcher) Timeout() time.Duration {
	return d.timeout
}

// Dispatch probes every provider in registry for id and returns one outcome
// per provider, in registry order.
//
// It returns only after every probe has produced an outcome. Probe failures
// are part of the outcomes, never of the error: the only error is a
// *ConfigurationError, returned before any probe launches, when the
// identifier is empty or the registry is nil or empty.
//
// Cancelling ctx does not abort the dispatch early; running and queued
// probes observe the cancellation and report it as cancelled error outcomes.
func (d *Dispatcher) Dispatch(ctx context.Context, id model.Identifier, registry *model.Registry) ([]model.Outcome, error) {
	switch {
	case id.IsZero():
		return nil, &ConfigurationError{Err: ErrEmptyIdentifier}
	case registry.Len() == 0:
		return nil, &ConfigurationError{Err: ErrEmptyRegistry}
	case d.prober == nil:
		return nil, &ConfigurationError{Err: ErrNoProber}
	}

	providers := registry.List()
	limit := d.concurrency
	if limit <= 0 || limit > len(providers) {
		limit = len(providers)
	}

	d.logger.Debug("starting dispatch",
		"identifier", id,
		"providers", len(providers),
		"concurrency", limit,
		"timeout", d.timeout,
	)
	startTime := time.Now()

	// One slot per provider. Each slot is written exactly once, by its own
	// probe goroutine, and read only after Wait.
	outcomes := make([]model.Outcome, len(providers))
	var finished atomic.Int32

	var g errgroup.Group
	g.SetLimit(limit)

	for i, provider := range providers {
		g.Go(func() error {
			outcome := d.runOne(ctx, id, provider)
			outcomes[i] = outcome

			n := int(finished.Add(1))
			if d.progress != nil {
				d.progress(n, len(providers), outcome)
			}
			return nil
		})
	}

	// Never returns an error: no closure above returns one.
	_ = g.Wait() //nolint:errcheck

	d.logger.Debug("dispatch complete",
		"identifier", id,
		"providers", len(providers),
		"elapsed", time.Since(startTime),
	)

	return outcomes, nil
}

// runOne runs one probe and guarantees a well-formed outcome for provider,
// even if a custom Prober misbehaves.
func (d *Dispatcher) runOne(ctx context.Context, id model.Identifier, provider model.Provider) (outcome model.Outcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("prober panicked", "provider", provider.Tag, "panic", r)
			outcome = model.NewError(provider.Tag, fmt.Sprintf("%s: prober panic", probe.KindInternal))
			outcome.Elapsed = time.Since(start)
		}
	}()

	outcome = d.prober.Run(ctx, id, provider, d.timeout)
	if outcome.Tag != provider.Tag {
		outcome.Tag = provider.Tag
	}
	if !outcome.Status.Valid() {
		outcome = model.NewError(provider.Tag, fmt.Sprintf("%s: invalid outcome status %q", probe.KindInternal, outcome.Status))
	}
	if outcome.Elapsed == 0 {
		outcome.Elapsed = time.Since(start)
	}
	return outcome
}
