package probe

import (
	"context"
	"strings"
)

// FetchStrategy retrieves the raw content in which manifest URLs are looked for.
//
// Implementations must release every resource they acquire (response
// bodies, connections) before returning, on every path. They should honour
// ctx; the probe also enforces its deadline when they do not.
type FetchStrategy interface {
	// Fetch retrieves the content behind a rendered provider endpoint.
	Fetch(ctx context.Context, endpoint string) (*Content, error)
}

// FetchFunc adapts an ordinary function to a FetchStrategy.
type FetchFunc func(ctx context.Context, endpoint string) (*Content, error)

// Fetch calls f(ctx, endpoint).
func (f FetchFunc) Fetch(ctx context.Context, endpoint string) (*Content, error) {
	return f(ctx, endpoint)
}

// ExtractionRule turns fetched content into candidate manifest URLs.
//
// Returning no URLs and a nil error, or an error wrapping ErrNoManifest,
// yields a not_found outcome. Any other error is an extraction failure.
type ExtractionRule interface {
	Extract(content *Content) ([]string, error)
}

// ExtractFunc adapts an ordinary function to an ExtractionRule.
type ExtractFunc func(content *Content) ([]string, error)

// Extract calls f(content).
func (f ExtractFunc) Extract(content *Content) ([]string, error) {
	return f(content)
}

// Content is what a FetchStrategy hands to an ExtractionRule.
type Content struct {
	// Endpoint is the URL that was fetched.
	Endpoint string

	// StatusCode is the HTTP status of the primary response, if any.
	StatusCode int

	// ContentType is the Content-Type of the primary response, if any.
	ContentType string

	// Body is the primary response body.
	Body []byte

	// Fragments are additional text pieces gathered by the strategy:
	// resolved element attributes, nested frame bodies, observed network
	// requests.
	Fragments []string
}

// Text returns the body and all fragments joined by newlines.
func (c *Content) Text() string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	b.Write(c.Body)
	for _, f := range c.Fragments {
		b.WriteByte('\n')
		b.WriteString(f)
	}
	return b.String()
}
