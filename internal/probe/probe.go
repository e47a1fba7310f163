package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/streamscout/internal/model"
)

// Prober produces exactly one outcome for one provider and identifier.
// The dispatcher depends on this interface; Probe and Set implement it.
type Prober interface {
	Run(ctx context.Context, id model.Identifier, provider model.Provider, timeout time.Duration) model.Outcome
}

// Probe composes a FetchStrategy with an ExtractionRule.
//
// Run never returns an error and never panics: every failure mode of the
// strategy or the rule is classified into the returned outcome.
type Probe struct {
	// name identifies the strategy in logs ("api", "page", "render").
	name string

	strategy FetchStrategy
	rule     ExtractionRule
	logger   *slog.Logger
}

// Option configures a Probe.
type Option func(*Probe)

// WithLogger sets the logger used for per-probe debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Probe) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Probe named name from a strategy and a rule.
func New(name string, strategy FetchStrategy, rule ExtractionRule, opts ...Option) *Probe {
	p := &Probe{
		name:     name,
		strategy: strategy,
		rule:     rule,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the strategy name of the probe.
func (p *Probe) Name() string {
	return p.name
}

// result carries what the fetch goroutine produced.
type result struct {
	urls []string
	err  error
}

// Run renders the endpoint, fetches it and extracts manifest URLs under a
// hard deadline of timeout (no deadline when timeout <= 0).
//
// The fetch runs in its own goroutine so that Run returns at the deadline
// even when a strategy ignores its context. The goroutine then finishes in
// the background and its result is discarded.
func (p *Probe) Run(ctx context.Context, id model.Identifier, provider model.Provider, timeout time.Duration) model.Outcome {
	start := time.Now()

	probeCtx, cancel := withOptionalTimeout(ctx, timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: &Error{Kind: KindInternal, Err: fmt.Errorf("strategy panic: %v", r)}}
			}
		}()
		urls, err := p.fetchAndExtract(probeCtx, provider.Endpoint(id))
		done <- result{urls: urls, err: err}
	}()

	var outcome model.Outcome
	select {
	case r := <-done:
		outcome = p.outcomeFor(ctx, probeCtx, provider.Tag, r)
	case <-probeCtx.Done():
		outcome = model.NewError(provider.Tag, classify(ctx, probeCtx, probeCtx.Err()).Message())
	}
	outcome.Elapsed = time.Since(start)

	p.logger.Debug("probe finished",
		"provider", provider.Tag,
		"strategy", p.name,
		"status", outcome.Status,
		"urls", len(outcome.URLs),
		"elapsed", outcome.Elapsed,
		"message", outcome.Message,
	)

	return outcome
}

// fetchAndExtract is the body of the probe goroutine.
func (p *Probe) fetchAndExtract(ctx context.Context, endpoint string) ([]string, error) {
	content, err := p.strategy.Fetch(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, &Error{Kind: KindInternal, Err: errors.New("strategy returned no content")}
	}

	urls, err := p.rule.Extract(content)
	if err != nil {
		if errors.Is(err, ErrNoManifest) {
			return nil, err
		}
		var pe *Error
		if !errors.As(err, &pe) {
			err = ExtractionError(err)
		}
		return nil, err
	}
	return urls, nil
}

// outcomeFor classifies a completed fetch.
func (p *Probe) outcomeFor(parent, probeCtx context.Context, tag string, r result) model.Outcome {
	switch {
	case r.err == nil:
		return model.NewSuccess(tag, r.urls)
	case errors.Is(r.err, ErrNoManifest):
		return model.NewNotFound(tag, sanitize(r.err.Error()))
	default:
		return model.NewError(tag, classify(parent, probeCtx, r.err).Message())
	}
}

// withOptionalTimeout derives a deadline-bound context when timeout > 0.
func withOptionalTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
