// Package aggregate merges probe outcomes into one deterministic report.
package aggregate

import (
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/streamscout/internal/model"
	"github.com/nao1215/streamscout/internal/probe"
)

// Merge errors.
var (
	// ErrUnknownProvider is returned for an outcome whose tag is not in the registry.
	ErrUnknownProvider = errors.New("outcome for unknown provider")

	// ErrDuplicateOutcome is returned when a provider has more than one outcome.
	ErrDuplicateOutcome = errors.New("duplicate outcome for provider")
)

// missingOutcomeMessage is recorded for a registry tag that has no outcome.
var missingOutcomeMessage = string(probe.KindInternal) + ": no outcome recorded"

// Aggregator builds reports. The zero value is not usable; use New.
type Aggregator struct {
	// identifierField is the JSON key of the identifier in the report.
	identifierField string

	// now stamps ResolvedAt; replaceable in tests.
	now func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithIdentifierField sets the JSON key under which the identifier is serialised.
// Empty names and the fixed report keys are ignored.
func WithIdentifierField(field string) Option {
	return func(a *Aggregator) {
		if field != "" && !model.IsReservedField(field) {
			a.identifierField = field
		}
	}
}

// WithClock sets the function used to stamp reports.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// New creates an Aggregator.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		identifierField: model.DefaultIdentifierField,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Merge indexes outcomes by tag and builds the report in registry order.
//
// The result depends only on the set of outcomes, never on their order:
// URLs are deduplicated and sorted, empty successes become not_found, and
// TotalURLsFound and TotalProvidersChecked are recomputed. A registry tag
// without an outcome is reported as an internal error rather than dropped.
func (a *Aggregator) Merge(id model.Identifier, registry *model.Registry, outcomes []model.Outcome) (*model.Report, error) {
	byTag := make(map[string]model.Outcome, len(outcomes))
	for _, o := range outcomes {
		if _, ok := registry.Lookup(o.Tag); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, o.Tag)
		}
		if _, dup := byTag[o.Tag]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateOutcome, o.Tag)
		}
		byTag[o.Tag] = o
	}

	tags := registry.Tags()
	for _, tag := range tags {
		if _, ok := byTag[tag]; !ok {
			byTag[tag] = model.NewError(tag, missingOutcomeMessage)
		}
	}

	return model.NewReport(id, a.identifierField, tags, byTag, a.now())
}

// Merge builds a report with the default Aggregator.
func Merge(id model.Identifier, registry *model.Registry, outcomes []model.Outcome) (*model.Report, error) {
	return New().Merge(id, registry, outcomes)
}
