package probe

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/nao1215/streamscout/internal/model"
)

// Strategy names accepted in configuration.
const (
	StrategyAPI    = "api"
	StrategyPage   = "page"
	StrategyRender = "render"
)

// StrategyNames lists every known strategy name.
var StrategyNames = []string{StrategyAPI, StrategyPage, StrategyRender}

// ErrUnknownStrategy is returned when a strategy name has no probe.
var ErrUnknownStrategy = errors.New("unknown fetch strategy")

// Set routes each provider to the probe of its strategy.
//
// Providers without a strategy override use the default probe. A Set is
// built once at startup and is safe for concurrent use.
type Set struct {
	byName      map[string]*Probe
	defaultName string
}

// NewSet builds a Set from probes keyed by their Name.
// defaultName must be one of them.
func NewSet(defaultName string, probes ...*Probe) (*Set, error) {
	s := &Set{byName: make(map[string]*Probe, len(probes)), defaultName: defaultName}
	for _, p := range probes {
		if _, dup := s.byName[p.Name()]; dup {
			return nil, fmt.Errorf("duplicate probe for strategy %q", p.Name())
		}
		s.byName[p.Name()] = p
	}
	if _, ok := s.byName[defaultName]; !ok {
		return nil, fmt.Errorf("%w: default %q", ErrUnknownStrategy, defaultName)
	}
	return s, nil
}

// Names returns the configured strategy names, sorted.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// For returns the probe that serves provider.
func (s *Set) For(provider model.Provider) (*Probe, error) {
	name := provider.Strategy
	if name == "" {
		name = s.defaultName
	}
	p, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q for provider %s", ErrUnknownStrategy, name, provider.Tag)
	}
	return p, nil
}

// Run implements Prober by delegating to the provider's probe. A provider
// whose strategy is not configured gets an internal error outcome.
func (s *Set) Run(ctx context.Context, id model.Identifier, provider model.Provider, timeout time.Duration) model.Outcome {
	p, err := s.For(provider)
	if err != nil {
		return model.NewError(provider.Tag, (&Error{Kind: KindInternal, Err: err}).Message())
	}
	return p.Run(ctx, id, provider, timeout)
}
