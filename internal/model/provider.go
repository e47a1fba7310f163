package model

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Placeholder is the substitution point for the identifier in a provider template.
const Placeholder = "{id}"

// Registry construction errors.
var (
	// ErrEmptyTag is returned when a provider has no tag.
	ErrEmptyTag = errors.New("provider tag must not be empty")

	// ErrDuplicateTag is returned when two providers share a tag.
	// Tags key the report, so they must be unique.
	ErrDuplicateTag = errors.New("duplicate provider tag")

	// ErrInvalidTemplate is returned when a template does not contain exactly
	// one Placeholder or is not an absolute http(s) URL.
	ErrInvalidTemplate = errors.New("invalid endpoint template")
)

// Provider describes one upstream source that may know a manifest URL for
// an identifier. Providers are immutable once the registry is built.
type Provider struct {
	// Tag is the stable, unique provider identifier (e.g. "[ALPHA]").
	// It is used as the key of the report's results object.
	Tag string `json:"tag" yaml:"tag"`

	// Template is the endpoint URL with a single "{id}" substitution point.
	Template string `json:"-" yaml:"endpoint"`

	// Strategy optionally overrides the default fetch strategy for this
	// provider ("api", "page" or "render"). Empty means the default.
	Strategy string `json:"strategy,omitempty" yaml:"strategy,omitempty"`
}

// Endpoint renders the provider's endpoint for the given identifier.
// The identifier is path-escaped so that it cannot alter the URL structure.
func (p Provider) Endpoint(id Identifier) string {
	return strings.Replace(p.Template, Placeholder, url.PathEscape(id.String()), 1)
}

// validate checks the tag and template of a single provider.
func (p Provider) validate() error {
	if strings.TrimSpace(p.Tag) == "" {
		return ErrEmptyTag
	}
	if strings.Count(p.Template, Placeholder) != 1 {
		return fmt.Errorf("%w: %s must contain %q exactly once", ErrInvalidTemplate, p.Tag, Placeholder)
	}
	u, err := url.Parse(strings.Replace(p.Template, Placeholder, "0", 1))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidTemplate, p.Tag, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s: must be an absolute http(s) URL", ErrInvalidTemplate, p.Tag)
	}
	return nil
}

// Registry is the ordered provider catalogue.
//
// A Registry is built once at process start and shared read-only by every
// probe. It has no mutating methods, so no locking is required.
type Registry struct {
	providers []Provider
	index     map[string]int
}

// NewRegistry validates the providers and builds a Registry preserving their order.
// An empty provider list is allowed here; the dispatcher rejects it.
func NewRegistry(providers ...Provider) (*Registry, error) {
	r := &Registry{
		providers: make([]Provider, 0, len(providers)),
		index:     make(map[string]int, len(providers)),
	}

	for _, p := range providers {
		if err := p.validate(); err != nil {
			return nil, err
		}
		if _, exists := r.index[p.Tag]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTag, p.Tag)
		}
		r.index[p.Tag] = len(r.providers)
		r.providers = append(r.providers, p)
	}

	return r, nil
}

// List returns the providers in registry order.
// The returned slice is a copy; modifying it does not affect the registry.
func (r *Registry) List() []Provider {
	if r == nil {
		return nil
	}
	out := make([]Provider, len(r.providers))
	copy(out, r.providers)
	return out
}

// Len returns the number of providers.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.providers)
}

// Tags returns the provider tags in registry order.
func (r *Registry) Tags() []string {
	if r == nil {
		return nil
	}
	tags := make([]string, len(r.providers))
	for i, p := range r.providers {
		tags[i] = p.Tag
	}
	return tags
}

// Lookup returns the provider with the given tag.
func (r *Registry) Lookup(tag string) (Provider, bool) {
	if r == nil {
		return Provider{}, false
	}
	i, ok := r.index[tag]
	if !ok {
		return Provider{}, false
	}
	return r.providers[i], true
}

// Position returns the registry index of the tag, or -1 if unknown.
func (r *Registry) Position(tag string) int {
	if r == nil {
		return -1
	}
	i, ok := r.index[tag]
	if !ok {
		return -1
	}
	return i
}
