package resolver

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/nao1215/streamscout/internal/aggregate"
	"github.com/nao1215/streamscout/internal/database"
	"github.com/nao1215/streamscout/internal/dispatch"
	"github.com/nao1215/streamscout/internal/metrics"
	"github.com/nao1215/streamscout/internal/model"
	"github.com/nao1215/streamscout/internal/probe"
)

// Merger builds the report from dispatched outcomes.
// *aggregate.Aggregator implements it.
type Merger interface {
	Merge(id model.Identifier, registry *model.Registry, outcomes []model.Outcome) (*model.Report, error)
}

// HistoryStore persists resolved reports. *database.HistoryDB implements it.
type HistoryStore interface {
	Save(ctx context.Context, report *model.Report) (database.Record, error)
}

// Service resolves identifiers against a fixed provider registry.
// It is safe for concurrent use.
type Service struct {
	registry   *model.Registry
	dispatcher *dispatch.Dispatcher
	merger     Merger
	recorder   metrics.Recorder
	history    HistoryStore
	logger     *slog.Logger

	cache  *expirable.LRU[model.Identifier, *model.Report]
	shared bool
	flight singleflight.Group

	// collected before New builds the dispatcher and aggregator
	dispatchOpts    []dispatch.Option
	identifierField string
	batchSize       int
}

// Option configures a Service.
type Option func(*Service)

// WithConcurrency bounds the probes in flight per identifier.
// Zero or negative means one worker per provider.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		s.dispatchOpts = append(s.dispatchOpts, dispatch.WithConcurrency(n))
	}
}

// WithProbeTimeout sets the per-probe deadline.
func WithProbeTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		s.dispatchOpts = append(s.dispatchOpts, dispatch.WithProbeTimeout(timeout))
	}
}

// WithProgress reports each finished probe.
func WithProgress(fn dispatch.ProgressFunc) Option {
	return func(s *Service) {
		s.dispatchOpts = append(s.dispatchOpts, dispatch.WithProgress(fn))
	}
}

// WithIdentifierField sets the JSON key of the identifier in reports.
func WithIdentifierField(field string) Option {
	return func(s *Service) {
		s.identifierField = field
	}
}

// WithMerger replaces the default aggregator.
func WithMerger(m Merger) Option {
	return func(s *Service) {
		s.merger = m
	}
}

// WithCache keeps up to size reports for ttl. A zero ttl or size disables
// caching.
func WithCache(ttl time.Duration, size int) Option {
	return func(s *Service) {
		if ttl <= 0 || size <= 0 {
			s.cache = nil
			return
		}
		s.cache = expirable.NewLRU[model.Identifier, *model.Report](size, nil, ttl)
	}
}

// WithSharedResolutions makes concurrent Resolve calls for the same
// identifier share one dispatch. The shared dispatch runs detached from
// the callers' cancellation, so one client going away does not turn every
// waiting client's report into cancelled outcomes; probe deadlines still
// bound it.
func WithSharedResolutions() Option {
	return func(s *Service) {
		s.shared = true
	}
}

// WithHistory saves every dispatched report to store.
func WithHistory(store HistoryStore) Option {
	return func(s *Service) {
		s.history = store
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithBatchSize sets how many identifiers ResolveBatch resolves at once.
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// New creates a Service probing registry with prober.
func New(registry *model.Registry, prober probe.Prober, opts ...Option) *Service {
	s := &Service{
		registry:  registry,
		recorder:  metrics.Nop{},
		batchSize: 1,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.merger == nil {
		s.merger = aggregate.New(aggregate.WithIdentifierField(s.identifierField))
	}
	s.dispatcher = dispatch.New(prober,
		append(s.dispatchOpts, dispatch.WithDispatchLogger(s.logger))...)

	return s
}

// Registry returns the registry the service probes.
func (s *Service) Registry() *model.Registry {
	return s.registry
}

// Resolve probes every provider for id and returns the merged report.
//
// A cached report is returned without dispatching. The only errors are a
// *dispatch.ConfigurationError (empty identifier or registry), a merge
// failure, or ctx.Err() for a caller that stops waiting on a shared
// resolution. History failures are logged.
func (s *Service) Resolve(ctx context.Context, id model.Identifier) (*model.Report, error) {
	if s.cache != nil && !id.IsZero() {
		if r, ok := s.cache.Get(id); ok {
			s.recorder.CacheHit()
			s.logger.Debug("report cache hit", "identifier", id)
			return r, nil
		}
		s.recorder.CacheMiss()
	}

	if !s.shared {
		return s.resolve(ctx, id)
	}

	ch := s.flight.DoChan(id.String(), func() (any, error) {
		return s.resolve(context.WithoutCancel(ctx), id)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*model.Report), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) resolve(ctx context.Context, id model.Identifier) (*model.Report, error) {
	start := time.Now()

	outcomes, err := s.dispatcher.Dispatch(ctx, id, s.registry)
	if err != nil {
		return nil, err
	}
	for _, o := range outcomes {
		s.recorder.ObserveProbe(o.Tag, o.Status, o.Elapsed)
	}

	report, err := s.merger.Merge(id, s.registry, outcomes)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	s.recorder.ObserveResolution(report.TotalProvidersChecked, report.TotalURLsFound, elapsed)
	s.logger.Info("identifier resolved",
		"identifier", id,
		"providers", report.TotalProvidersChecked,
		"urls", report.TotalURLsFound,
		"errors", report.CountByStatus(model.StatusError),
		"elapsed", elapsed,
	)

	// A report cut short by cancellation is not representative.
	if ctx.Err() != nil {
		return report, nil
	}

	if s.cache != nil {
		s.cache.Add(id, report)
	}
	if s.history != nil {
		if _, err := s.history.Save(ctx, report); err != nil {
			s.logger.Warn("failed to save resolution history",
				"identifier", id,
				"error", err,
			)
		}
	}

	return report, nil
}
