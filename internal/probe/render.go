package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrRendererRequired is returned when a RenderStrategy has no renderer URL.
var ErrRendererRequired = errors.New("render strategy requires a renderer URL")

// RenderStrategy delegates page loading to an external rendering service
// (a headless browser behind HTTP) and inspects the network requests it
// observed. The renderer is called as
//
//	GET <renderer>?url=<endpoint>&timeout=<ms>
//
// and answers {"requests": ["https://...", ...]}.
type RenderStrategy struct {
	renderer *url.URL
	fetcher  *httpFetcher
}

// renderResponse is the renderer's answer.
type renderResponse struct {
	Requests []string `json:"requests"`
}

// NewRenderStrategy creates a RenderStrategy for the renderer at rendererURL.
func NewRenderStrategy(client *http.Client, rendererURL string, opts ...HTTPOption) (*RenderStrategy, error) {
	if rendererURL == "" {
		return nil, ErrRendererRequired
	}
	u, err := url.Parse(rendererURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid renderer URL %q: must be an absolute http(s) URL", rendererURL)
	}
	return &RenderStrategy{renderer: u, fetcher: newHTTPFetcher(client, opts)}, nil
}

// Fetch implements FetchStrategy.
func (s *RenderStrategy) Fetch(ctx context.Context, endpoint string) (*Content, error) {
	target := *s.renderer
	q := target.Query()
	q.Set("url", endpoint)
	if deadline, ok := ctx.Deadline(); ok {
		// Let the renderer stop on its own just before our deadline.
		if remaining := time.Until(deadline); remaining > 0 {
			q.Set("timeout", strconv.FormatInt(remaining.Milliseconds(), 10))
		}
	}
	target.RawQuery = q.Encode()

	content, err := s.fetcher.get(ctx, target.String(), "application/json")
	if err != nil {
		return nil, err
	}

	var resp renderResponse
	if err := json.Unmarshal(content.Body, &resp); err != nil {
		return nil, ExtractionError(fmt.Errorf("invalid renderer response: %w", err))
	}

	// The decoded requests replace the raw JSON, whose escaping would
	// otherwise produce truncated duplicates in a text scan.
	content.Endpoint = endpoint
	content.Body = nil
	content.Fragments = resp.Requests
	return content, nil
}
