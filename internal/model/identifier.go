package model

import (
	"errors"
	"strings"
)

// ErrInvalidIdentifier is returned when an identifier is missing or not numeric.
var ErrInvalidIdentifier = errors.New("invalid or missing identifier: must be a non-empty string of digits")

// Identifier is the opaque content key substituted into provider templates.
//
// The resolution engine never parses or mutates an Identifier. Validation
// happens once at the boundary (CLI argument or HTTP query) via ParseIdentifier.
type Identifier string

// ParseIdentifier validates raw input and returns it as an Identifier.
// Surrounding whitespace is trimmed; the remainder must be ASCII digits only.
func ParseIdentifier(raw string) (Identifier, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrInvalidIdentifier
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return "", ErrInvalidIdentifier
		}
	}
	return Identifier(s), nil
}

// String returns the identifier as a plain string.
func (id Identifier) String() string {
	return string(id)
}

// IsZero reports whether the identifier is empty.
func (id Identifier) IsZero() bool {
	return id == ""
}
