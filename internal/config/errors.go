package config

import "errors"

// Configuration validation errors.
// These errors are returned by the Validate methods and can be checked
// with errors.Is.
var (
	// ErrNoProviders is returned when the provider catalogue is empty.
	// Run "streamscout init" to create a configuration file.
	ErrNoProviders = errors.New("no providers configured: add a providers list to the configuration file")

	// ErrNoIdentifier is returned when resolve is called without an identifier.
	ErrNoIdentifier = errors.New("no identifier specified")

	// ErrInvalidTimeout is returned when the probe timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConcurrency is returned when the concurrency is negative.
	// Zero means one worker per provider.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be zero or positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrUnknownStrategy is returned when a strategy name is not one of
	// api, page or render.
	ErrUnknownStrategy = errors.New("unknown strategy: must be api, page or render")

	// ErrRendererRequired is returned when the render strategy is selected
	// without a renderer URL.
	ErrRendererRequired = errors.New("render strategy selected but no renderer URL configured")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrConflictingEgress is returned when both --tor and --proxy are specified.
	ErrConflictingEgress = errors.New("conflicting egress: --tor and --proxy cannot be used together")

	// ErrInvalidIdentifierField is returned when identifier_field names one
	// of the fixed report keys.
	ErrInvalidIdentifierField = errors.New("invalid identifier field: total_servers_checked, total_urls_found and results are reserved")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidPageDepth is returned when the page depth is negative.
	ErrInvalidPageDepth = errors.New("invalid page depth: must be non-negative")

	// ErrInvalidListenAddress is returned when serve has no listen address.
	ErrInvalidListenAddress = errors.New("invalid listen address")

	// ErrInvalidCache is returned for a negative cache TTL or size, or a
	// positive TTL with a zero size.
	ErrInvalidCache = errors.New("invalid cache settings: ttl and size must be non-negative, size must be positive when ttl is set")
)
