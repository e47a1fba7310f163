package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/streamscout/internal/config"
)

// TestRunProvidersCmd tests the catalogue listing.
func TestRunProvidersCmd(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "https://p.example", "")

	t.Run("table", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := execute(t, "providers", "-c", path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "Providers from "+path+" (3):") {
			t.Errorf("unexpected header: %s", stdout)
		}
		for _, want := range []string{
			"[ALPHA]  api       https://p.example/api/{id}",
			"[BETA]   page      https://p.example/embed/{id}",
		} {
			if !strings.Contains(stdout, want) {
				t.Errorf("expected output to contain %q\n%s", want, stdout)
			}
		}
		if strings.Index(stdout, "[ALPHA]") > strings.Index(stdout, "[GAMMA]") {
			t.Error("expected registry order")
		}
	})

	t.Run("json", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := execute(t, "providers", "-c", path, "--json")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got struct {
			Providers []providerEntry `json:"providers"`
		}
		if err := json.Unmarshal([]byte(stdout), &got); err != nil {
			t.Fatalf("expected JSON, got %v", err)
		}
		want := []providerEntry{
			{Tag: "[ALPHA]", Strategy: "api", Endpoint: "https://p.example/api/{id}"},
			{Tag: "[BETA]", Strategy: "page", Endpoint: "https://p.example/embed/{id}"},
			{Tag: "[GAMMA]", Strategy: "api", Endpoint: "https://p.example/down/{id}"},
		}
		if len(got.Providers) != len(want) {
			t.Fatalf("expected %d providers, got %d", len(want), len(got.Providers))
		}
		for i := range want {
			if got.Providers[i] != want[i] {
				t.Errorf("provider %d: expected %+v, got %+v", i, want[i], got.Providers[i])
			}
		}
	})

	t.Run("empty catalogue", func(t *testing.T) {
		t.Parallel()

		empty := filepath.Join(t.TempDir(), "empty.yaml")
		if err := os.WriteFile(empty, []byte("providers: []\n"), 0600); err != nil {
			t.Fatal(err)
		}
		_, _, err := execute(t, "providers", "-c", empty)
		if !errors.Is(err, config.ErrNoProviders) {
			t.Errorf("expected ErrNoProviders, got %v", err)
		}
	})

	t.Run("unexpected argument", func(t *testing.T) {
		t.Parallel()

		if _, _, err := execute(t, "providers", "-c", path, "extra"); err == nil {
			t.Error("expected error for positional argument")
		}
	})
}
