package config

import (
	"time"

	"github.com/nao1215/streamscout/internal/model"
)

// PageSettings configures the page fetch strategy.
type PageSettings struct {
	// Depth is how many levels of nested frames are followed.
	Depth *int `yaml:"depth,omitempty"`

	// MaxPages caps the pages fetched per probe.
	MaxPages int `yaml:"max_pages,omitempty"`

	// Ignore lists frame path patterns never followed (glob syntax).
	Ignore []string `yaml:"ignore,omitempty"`
}

// File represents the structure of the streamscout configuration file.
//
// Every setting is optional except providers. Zero values leave the
// corresponding default untouched.
type File struct {
	// IdentifierField is the JSON key of the identifier in reports.
	IdentifierField string `yaml:"identifier_field,omitempty"`

	// Strategy is the default fetch strategy.
	Strategy string `yaml:"strategy,omitempty"`

	// Timeout is the per-probe deadline (e.g. "10s").
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Concurrency is the maximum number of probes in flight.
	Concurrency int `yaml:"concurrency,omitempty"`

	// MaxBodySize is the maximum response body size in bytes.
	MaxBodySize int64 `yaml:"max_body_size,omitempty"`

	// UserAgent is the User-Agent header sent to providers.
	UserAgent string `yaml:"user_agent,omitempty"`

	// Headers are extra HTTP headers sent with every provider request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Markers are the manifest URL markers.
	Markers []string `yaml:"markers,omitempty"`

	// Renderer is the URL of the external page-rendering service.
	Renderer string `yaml:"renderer,omitempty"`

	// Proxy is a SOCKS5 proxy address for all egress.
	Proxy string `yaml:"proxy,omitempty"`

	// Page configures the page strategy.
	Page PageSettings `yaml:"page,omitempty"`

	// Providers is the ordered provider catalogue.
	Providers []model.Provider `yaml:"providers"`
}

// ApplyTo copies every value set in the file onto cfg.
// CLI flags are applied afterwards and take precedence.
func (f *File) ApplyTo(cfg *Config) {
	if f.IdentifierField != "" {
		cfg.IdentifierField = f.IdentifierField
	}
	if f.Strategy != "" {
		cfg.Strategy = f.Strategy
	}
	if f.Timeout != 0 {
		cfg.Timeout = f.Timeout
	}
	if f.Concurrency != 0 {
		cfg.Concurrency = f.Concurrency
	}
	if f.MaxBodySize != 0 {
		cfg.MaxBodySize = f.MaxBodySize
	}
	if f.UserAgent != "" {
		cfg.UserAgent = f.UserAgent
	}
	if len(f.Headers) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string, len(f.Headers))
		}
		for k, v := range f.Headers {
			cfg.Headers[k] = v
		}
	}
	if len(f.Markers) > 0 {
		cfg.Markers = f.Markers
	}
	if f.Renderer != "" {
		cfg.Renderer = f.Renderer
	}
	if f.Proxy != "" {
		cfg.ProxyAddress = f.Proxy
	}
	if f.Page.Depth != nil {
		cfg.PageDepth = *f.Page.Depth
	}
	if f.Page.MaxPages != 0 {
		cfg.MaxPages = f.Page.MaxPages
	}
	if len(f.Page.Ignore) > 0 {
		cfg.FrameIgnore = f.Page.Ignore
	}
	if len(f.Providers) > 0 {
		cfg.Providers = f.Providers
	}
}
