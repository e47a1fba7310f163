package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/nao1215/streamscout/internal/crawler"
)

// DefaultMaxBodySize caps response bodies read by the HTTP strategies.
const DefaultMaxBodySize int64 = 5 * 1024 * 1024 // 5MB

// HTTPOption configures the HTTP-based strategies.
type HTTPOption func(*httpFetcher)

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(f *httpFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the maximum response body size.
func WithMaxBodySize(size int64) HTTPOption {
	return func(f *httpFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithHeader adds a header sent with every request. Headers set here
// override the browser-like defaults.
func WithHeader(key, value string) HTTPOption {
	return func(f *httpFetcher) {
		f.headers.Set(key, value)
	}
}

// httpFetcher performs one bounded GET with browser-like headers.
type httpFetcher struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
	headers     http.Header
}

// newHTTPFetcher applies the options over the defaults.
func newHTTPFetcher(client *http.Client, opts []HTTPOption) *httpFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	f := &httpFetcher{
		client:      client,
		userAgent:   crawler.DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		headers:     make(http.Header),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// get fetches target. Any non-2xx status is a transport error. The
// response body is always closed before returning.
func (f *httpFetcher) get(ctx context.Context, target, accept string) (*Content, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, TransportError(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	if u, err := url.Parse(target); err == nil {
		req.Header.Set("Referer", u.Scheme+"://"+u.Host+"/")
	}
	for key, values := range f.headers {
		req.Header[key] = values
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, TransportError(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, TransportError(fmt.Errorf("failed to read body: %w", err))
	}
	if int64(len(body)) > f.maxBodySize {
		return nil, TransportError(fmt.Errorf("response exceeds %d bytes", f.maxBodySize))
	}

	return &Content{
		Endpoint:    target,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// APIStrategy calls a provider's JSON API directly, the way the provider's
// own player does (XHR with a same-origin Referer).
type APIStrategy struct {
	fetcher *httpFetcher
}

// NewAPIStrategy creates an APIStrategy using the shared egress client.
func NewAPIStrategy(client *http.Client, opts ...HTTPOption) *APIStrategy {
	return &APIStrategy{fetcher: newHTTPFetcher(client, opts)}
}

// Fetch implements FetchStrategy.
func (s *APIStrategy) Fetch(ctx context.Context, endpoint string) (*Content, error) {
	return s.fetcher.getWith(ctx, endpoint, "application/json, text/plain, */*", map[string]string{
		"X-Requested-With": "XMLHttpRequest",
	})
}

// getWith is get with extra per-strategy headers that configured headers
// still override.
func (f *httpFetcher) getWith(ctx context.Context, target, accept string, extra map[string]string) (*Content, error) {
	clone := *f
	clone.headers = make(http.Header, len(f.headers)+len(extra))
	for k, v := range extra {
		clone.headers.Set(k, v)
	}
	for k, v := range f.headers {
		clone.headers[k] = v
	}
	return clone.get(ctx, target, accept)
}
