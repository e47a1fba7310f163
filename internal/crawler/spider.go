package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ErrUnexpectedStatus is returned when the start page answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

// ErrBodyTooLarge is returned when a page is larger than the configured
// maximum body size.
var ErrBodyTooLarge = errors.New("response body too large")

// Page is one fetched and parsed document of an embed crawl.
type Page struct {
	// URL is the address the page was fetched from.
	URL string

	// Depth is the frame nesting level (0 for the start page).
	Depth int

	// StatusCode is the HTTP status code of the response.
	StatusCode int

	// ContentType is the Content-Type response header.
	ContentType string

	// Body is the raw response body, capped at the spider's max body size.
	Body []byte

	// Parsed holds the extracted candidates. Nil when the page is not HTML
	// or could not be parsed.
	Parsed *ParseResult
}

// Spider fetches an embed page and follows its nested frames.
//
// A Spider holds configuration only. All crawl state lives in the Crawl
// call, so a single Spider is safe for concurrent use.
type Spider struct {
	// client is the shared egress HTTP client.
	client *http.Client

	// maxDepth limits how many frame levels are followed.
	// 0 means only the starting page, 1 means its frames, etc.
	maxDepth int

	// maxPages limits the total number of pages fetched per crawl.
	maxPages int

	// userAgent is the User-Agent header to use.
	userAgent string

	// maxBodySize limits the size of response bodies to read.
	maxBodySize int64

	// ignorePatterns are URL path patterns of frames that are never
	// followed (ad and tracker frames, for instance).
	ignorePatterns []string
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxDepth sets the maximum frame nesting depth.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		if depth >= 0 {
			s.maxDepth = depth
		}
	}
}

// WithMaxPages sets the maximum number of pages per crawl.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		if maxPages > 0 {
			s.maxPages = maxPages
		}
	}
}

// WithSpiderUserAgent sets the User-Agent header.
func WithSpiderUserAgent(ua string) SpiderOption {
	return func(s *Spider) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// WithSpiderMaxBodySize sets the maximum body size to read.
func WithSpiderMaxBodySize(size int64) SpiderOption {
	return func(s *Spider) {
		if size > 0 {
			s.maxBodySize = size
		}
	}
}

// WithIgnorePatterns sets URL path patterns of frames to skip.
// Patterns use glob syntax (e.g., "/ads/*", "*.gif").
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// NewSpider creates a new Spider with the given HTTP client.
func NewSpider(client *http.Client, opts ...SpiderOption) *Spider {
	s := &Spider{
		client:      client,
		maxDepth:    1,
		maxPages:    8,
		userAgent:   DefaultUserAgent,
		maxBodySize: 5 * 1024 * 1024, // 5MB
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// DefaultUserAgent mimics a desktop browser; embed hosts commonly refuse
// obvious bots.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// queueItem represents an item in the crawl queue.
type queueItem struct {
	url     string
	referer string
	depth   int
}

// Crawl fetches startURL and, breadth first, the frames it embeds.
//
// A failure on the start page is returned as an error. Failures on nested
// frames are skipped, since the start page alone may already carry the
// manifest. On context cancellation the pages fetched so far are returned
// together with the context error.
func (s *Spider) Crawl(ctx context.Context, startURL string) ([]*Page, error) {
	start, err := url.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("invalid start URL: %w", err)
	}
	if start.Scheme != "http" && start.Scheme != "https" {
		return nil, fmt.Errorf("invalid start URL: unsupported scheme %q", start.Scheme)
	}

	pages := make([]*Page, 0)
	visited := make(map[string]bool)
	queue := []queueItem{{url: start.String(), depth: 0}}

	for len(queue) > 0 && len(pages) < s.maxPages {
		select {
		case <-ctx.Done():
			return pages, ctx.Err()
		default:
		}

		item := queue[0]
		queue = queue[1:]

		key := normalizeURL(item.url)
		if visited[key] {
			continue
		}
		visited[key] = true

		page, err := s.fetchPage(ctx, item)
		if err != nil {
			if item.depth == 0 {
				return nil, err
			}
			if ctx.Err() != nil {
				return pages, ctx.Err()
			}
			continue
		}
		pages = append(pages, page)

		if item.depth >= s.maxDepth || page.Parsed == nil {
			continue
		}
		for _, frame := range page.Parsed.Frames {
			if visited[normalizeURL(frame)] || !isSameSite(start.Hostname(), frame) || !s.shouldCrawl(frame) {
				continue
			}
			queue = append(queue, queueItem{url: frame, referer: item.url, depth: item.depth + 1})
		}
	}

	return pages, nil
}

// fetchPage fetches a single page and parses it when it is HTML.
func (s *Spider) fetchPage(ctx context.Context, item queueItem) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	if item.referer != "" {
		// Frame hosts check that they are embedded by the parent page.
		req.Header.Set("Referer", item.referer)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d from %s", ErrUnexpectedStatus, resp.StatusCode, item.url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > s.maxBodySize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrBodyTooLarge, item.url, s.maxBodySize)
	}

	page := &Page{
		URL:         item.url,
		Depth:       item.depth,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}

	if strings.Contains(page.ContentType, "html") || page.ContentType == "" {
		parser, err := NewParser(item.url)
		if err == nil {
			if result, err := parser.Parse(strings.NewReader(string(body))); err == nil {
				page.Parsed = result
			}
		}
	}

	return page, nil
}

// normalizeURL normalizes a URL for deduplication.
// The fragment is dropped and scheme and host are lowercased.
func normalizeURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}

	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}

// isSameSite reports whether targetURL belongs to the same registrable
// domain as baseHost. Embed pages frequently frame a player hosted on a
// sibling subdomain, so exact host equality is too strict.
func isSameSite(baseHost, targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}

	host := strings.ToLower(u.Hostname())
	baseHost = strings.ToLower(baseHost)
	if host == baseHost {
		return true
	}

	a, errA := publicsuffix.EffectiveTLDPlusOne(host)
	b, errB := publicsuffix.EffectiveTLDPlusOne(baseHost)
	if errA != nil || errB != nil {
		return false
	}
	return a == b
}

// shouldCrawl checks a frame URL against the ignore patterns.
func (s *Spider) shouldCrawl(targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	return true
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//
// Examples:
//   - "/ads/*" matches "/ads/banner", "/ads/x/y"
//   - "*.gif" matches "/pixel/1.gif"
func matchPattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		if strings.HasSuffix(path, strings.TrimPrefix(pattern, "*")) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, path)
	return err == nil && matched
}
