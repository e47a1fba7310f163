package dispatch

import "errors"

// Causes of a ConfigurationError.
var (
	// ErrEmptyIdentifier is returned when dispatch is called without an identifier.
	ErrEmptyIdentifier = errors.New("identifier is empty")

	// ErrEmptyRegistry is returned when the registry is nil or has no providers.
	ErrEmptyRegistry = errors.New("provider registry is empty")

	// ErrNoProber is returned when the dispatcher has no prober to run.
	ErrNoProber = errors.New("no prober configured")
)

// ConfigurationError reports that a dispatch could not start because its
// inputs are unusable. It is the only error Dispatch returns, and no probe
// has been launched when it is returned.
type ConfigurationError struct {
	// Err is the cause, one of the sentinel errors of this package.
	Err error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Err.Error()
}

// Unwrap returns the cause, so errors.Is(err, ErrEmptyRegistry) works.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
