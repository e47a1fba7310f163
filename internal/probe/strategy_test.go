package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/streamscout/internal/crawler"
	"github.com/nao1215/streamscout/internal/model"
)

// TestAPIStrategy tests the direct API strategy against a fake provider.
func TestAPIStrategy(t *testing.T) {
	t.Parallel()

	t.Run("sends browser-like headers", func(t *testing.T) {
		t.Parallel()

		headers := make(chan http.Header, 1)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headers <- r.Header.Clone()
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"success":true,"sources":[{"file":"https://cdn.example/a.m3u8"}]}`)
		}))
		defer server.Close()

		s := NewAPIStrategy(server.Client(), WithHeader("Origin", "https://player.example"))
		content, err := s.Fetch(context.Background(), server.URL+"/api/550")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := <-headers
		if got.Get("X-Requested-With") != "XMLHttpRequest" {
			t.Errorf("expected XHR header, got %q", got.Get("X-Requested-With"))
		}
		if got.Get("User-Agent") != crawler.DefaultUserAgent {
			t.Errorf("unexpected user agent %q", got.Get("User-Agent"))
		}
		if got.Get("Referer") != server.URL+"/" {
			t.Errorf("expected referer %s/, got %q", server.URL, got.Get("Referer"))
		}
		if got.Get("Origin") != "https://player.example" {
			t.Errorf("expected configured header, got %q", got.Get("Origin"))
		}
		if content.StatusCode != http.StatusOK || !strings.Contains(string(content.Body), "a.m3u8") {
			t.Errorf("unexpected content %+v", content)
		}
	})

	t.Run("non-2xx is a transport error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		_, err := NewAPIStrategy(server.Client()).Fetch(context.Background(), server.URL)
		if !IsKind(err, KindTransport) {
			t.Errorf("expected transport error, got %v", err)
		}
	})

	t.Run("oversized body is a transport error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"success":true,"sources":[`+strings.Repeat(" ", 1024)+`]}`)
		}))
		defer server.Close()

		_, err := NewAPIStrategy(server.Client(), WithMaxBodySize(16)).Fetch(context.Background(), server.URL)
		if !IsKind(err, KindTransport) {
			t.Fatalf("expected transport error, got %v", err)
		}
		if !strings.Contains(err.Error(), "response exceeds 16 bytes") {
			t.Errorf("expected size in message, got %v", err)
		}
	})

	t.Run("body at the limit is kept", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, strings.Repeat("x", 16))
		}))
		defer server.Close()

		content, err := NewAPIStrategy(server.Client(), WithMaxBodySize(16)).Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(content.Body) != 16 {
			t.Errorf("expected 16 bytes, got %d", len(content.Body))
		}
	})
}

// TestPageStrategy tests the embed page strategy end to end with ManifestScan.
func TestPageStrategy(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/embed/550", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body>
			<video><source src="/hls/550/master.m3u8"></video>
			<iframe src="/player/550"></iframe>
		</body></html>`)
	})
	mux.HandleFunc("/player/550", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<script>jwplayer().setup({file:"https:\/\/cdn.example\/550\/index.mpd"})</script>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	p := New(StrategyPage, NewPageStrategy(crawler.NewSpider(server.Client(), crawler.WithMaxDepth(1))), NewManifestScan())
	provider := model.Provider{Tag: "[PAGE]", Template: server.URL + "/embed/{id}"}

	outcome := p.Run(context.Background(), "550", provider, 5*time.Second)
	if outcome.Status != model.StatusSuccess {
		t.Fatalf("expected success, got %s (%s)", outcome.Status, outcome.Message)
	}

	want := []string{server.URL + "/hls/550/master.m3u8", "https://cdn.example/550/index.mpd"}
	if strings.Join(outcome.URLs, " ") != strings.Join(want, " ") {
		t.Errorf("expected %v, got %v", want, outcome.URLs)
	}
}

// TestPageStrategyStartFailure tests that a failing embed page is an error outcome.
func TestPageStrategyStartFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	p := New(StrategyPage, NewPageStrategy(crawler.NewSpider(server.Client())), NewManifestScan())
	outcome := p.Run(context.Background(), "1", model.Provider{Tag: "[P]", Template: server.URL + "/{id}"}, time.Second)

	if outcome.Status != model.StatusError || !strings.HasPrefix(outcome.Message, "transport:") {
		t.Errorf("expected transport error, got %s %q", outcome.Status, outcome.Message)
	}
}

// TestRenderStrategy tests the external renderer strategy.
func TestRenderStrategy(t *testing.T) {
	t.Parallel()

	t.Run("reads observed requests", func(t *testing.T) {
		t.Parallel()

		queries := make(chan url.Values, 1)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			queries <- r.URL.Query()
			_ = json.NewEncoder(w).Encode(map[string][]string{
				"requests": {
					"https://embed.example/app.js",
					"https://cdn.example/master.m3u8?a=1&b=2",
				},
			})
		}))
		defer server.Close()

		s, err := NewRenderStrategy(server.Client(), server.URL+"/render")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		p := New(StrategyRender, s, NewManifestScan())

		outcome := p.Run(context.Background(), "550", model.Provider{Tag: "[R]", Template: "https://embed.example/movie/{id}"}, 5*time.Second)
		if outcome.Status != model.StatusSuccess {
			t.Fatalf("expected success, got %s (%s)", outcome.Status, outcome.Message)
		}
		if len(outcome.URLs) != 1 || outcome.URLs[0] != "https://cdn.example/master.m3u8?a=1&b=2" {
			t.Errorf("unexpected urls %v", outcome.URLs)
		}
		query := <-queries
		if query.Get("url") != "https://embed.example/movie/550" {
			t.Errorf("renderer got url %q", query.Get("url"))
		}
		if query.Get("timeout") == "" {
			t.Error("expected the remaining deadline to be forwarded")
		}
	})

	t.Run("invalid renderer answer is an extraction error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, "<html>")
		}))
		defer server.Close()

		s, err := NewRenderStrategy(server.Client(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, err = s.Fetch(context.Background(), "https://embed.example/1")
		if !IsKind(err, KindExtraction) {
			t.Errorf("expected extraction error, got %v", err)
		}
	})

	t.Run("requires a renderer", func(t *testing.T) {
		t.Parallel()

		if _, err := NewRenderStrategy(nil, ""); !errors.Is(err, ErrRendererRequired) {
			t.Errorf("expected ErrRendererRequired, got %v", err)
		}
		if _, err := NewRenderStrategy(nil, "localhost:9000"); err == nil {
			t.Error("expected error for relative renderer URL")
		}
	})
}

// TestSet tests routing providers to strategies.
func TestSet(t *testing.T) {
	t.Parallel()

	api := New(StrategyAPI, textFetch(`https://a.example/api.m3u8`), NewManifestScan())
	page := New(StrategyPage, textFetch(`https://a.example/page.m3u8`), NewManifestScan())

	set, err := NewSet(StrategyAPI, api, page)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("default strategy", func(t *testing.T) {
		t.Parallel()
		o := set.Run(context.Background(), "1", model.Provider{Tag: "[A]", Template: "https://a.example/{id}"}, time.Second)
		if len(o.URLs) != 1 || o.URLs[0] != "https://a.example/api.m3u8" {
			t.Errorf("expected api probe, got %v", o.URLs)
		}
	})

	t.Run("override strategy", func(t *testing.T) {
		t.Parallel()
		o := set.Run(context.Background(), "1", model.Provider{Tag: "[P]", Template: "https://a.example/{id}", Strategy: StrategyPage}, time.Second)
		if len(o.URLs) != 1 || o.URLs[0] != "https://a.example/page.m3u8" {
			t.Errorf("expected page probe, got %v", o.URLs)
		}
	})

	t.Run("unconfigured strategy", func(t *testing.T) {
		t.Parallel()
		o := set.Run(context.Background(), "1", model.Provider{Tag: "[R]", Template: "https://a.example/{id}", Strategy: StrategyRender}, time.Second)
		if o.Status != model.StatusError || !strings.HasPrefix(o.Message, "internal:") {
			t.Errorf("expected internal error, got %s %q", o.Status, o.Message)
		}
	})

	t.Run("names", func(t *testing.T) {
		t.Parallel()
		if got := strings.Join(set.Names(), ","); got != "api,page" {
			t.Errorf("unexpected names %s", got)
		}
	})

	t.Run("unknown default", func(t *testing.T) {
		t.Parallel()
		if _, err := NewSet(StrategyRender, api); !errors.Is(err, ErrUnknownStrategy) {
			t.Errorf("expected ErrUnknownStrategy, got %v", err)
		}
	})
}
