package resolver

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/streamscout/internal/dispatch"
	"github.com/nao1215/streamscout/internal/model"
)

// BatchFunc receives each finished resolution with the index of its
// identifier in the input. It is called from worker goroutines and must be
// safe for concurrent use.
type BatchFunc func(index int, report *model.Report, err error)

// ResolveBatch resolves ids with at most the configured batch size in
// flight, calling fn as each finishes.
//
// Every identifier is resolved independently: one failing does not stop
// the others. The returned error is the first configuration error, since
// it would fail every identifier alike.
func (s *Service) ResolveBatch(ctx context.Context, ids []model.Identifier, fn BatchFunc) error {
	s.logger.Info("starting batch resolution",
		"identifiers", len(ids),
		"batch_size", s.batchSize,
	)
	startTime := time.Now()

	var g errgroup.Group
	g.SetLimit(s.batchSize)

	for i, id := range ids {
		g.Go(func() error {
			report, err := s.Resolve(ctx, id)
			if fn != nil {
				fn(i, report, err)
			}
			if dispatch.IsConfigurationError(err) {
				return err
			}
			return nil
		})
	}

	err := g.Wait()

	s.logger.Info("batch resolution complete",
		"identifiers", len(ids),
		"elapsed", time.Since(startTime),
	)
	return err
}

// ResolveAll is ResolveBatch collecting reports in input order.
// A failed identifier leaves a nil report and its error at the same index
// of errs.
func (s *Service) ResolveAll(ctx context.Context, ids []model.Identifier) ([]*model.Report, []error, error) {
	reports := make([]*model.Report, len(ids))
	errs := make([]error, len(ids))

	// each index is written by exactly one callback
	err := s.ResolveBatch(ctx, ids, func(i int, r *model.Report, e error) {
		reports[i] = r
		errs[i] = e
	})
	return reports, errs, err
}
