package main

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// newProviderServer starts an upstream with three providers:
//
//	/api/{id}    JSON sources answer (api strategy)
//	/embed/{id}  HTML page with a <video> element (page strategy)
//	/down/{id}   always 500
func newProviderServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"success":true,"sources":[{"file":"https:\/\/cdn.example\/%s\/master.m3u8"},{"file":"https://cdn.example/%s/poster.jpg"}]}`, id, id)
	})
	mux.HandleFunc("/embed/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><body><video src="https://media.example/%s/index.mpd"></video></body></html>`, id)
	})
	mux.HandleFunc("/down/{id}", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "maintenance", http.StatusInternalServerError)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// writeConfig writes a configuration file for the fixture providers and
// returns its path. extra is appended verbatim.
func writeConfig(t *testing.T, baseURL, extra string) string {
	t.Helper()

	var sb strings.Builder
	sb.WriteString("timeout: 3s\n")
	sb.WriteString(extra)
	sb.WriteString("providers:\n")
	fmt.Fprintf(&sb, "  - tag: \"[ALPHA]\"\n    endpoint: \"%s/api/{id}\"\n", baseURL)
	fmt.Fprintf(&sb, "  - tag: \"[BETA]\"\n    endpoint: \"%s/embed/{id}\"\n    strategy: page\n", baseURL)
	fmt.Fprintf(&sb, "  - tag: \"[GAMMA]\"\n    endpoint: \"%s/down/{id}\"\n", baseURL)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(sb.String()), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
