package probe

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// DefaultMarkers are the manifest suffixes looked for when none are configured:
// HLS playlists and DASH manifests.
var DefaultMarkers = []string{".m3u8", ".mpd"}

// urlPattern matches absolute http(s) URLs in free text.
var urlPattern = regexp.MustCompile(`(?i)https?://[^\s"'<>()\[\]{}\\` + "`" + `]+`)

// escapedSlash is how JSON embedded in scripts writes "/".
var escapedSlash = strings.NewReplacer(`\/`, `/`, `\u002F`, `/`, `\u002f`, `/`)

// ManifestScan finds every URL in the content text that contains one of the
// markers. Matching is case-insensitive.
type ManifestScan struct {
	markers []string
}

// NewManifestScan returns a ManifestScan for the given markers.
// With no markers, DefaultMarkers are used.
func NewManifestScan(markers ...string) *ManifestScan {
	return &ManifestScan{markers: normalizeMarkers(markers)}
}

// Extract implements ExtractionRule.
func (m *ManifestScan) Extract(content *Content) ([]string, error) {
	text := escapedSlash.Replace(content.Text())

	var urls []string
	for _, candidate := range urlPattern.FindAllString(text, -1) {
		candidate = strings.TrimRight(candidate, ".,;:!?")
		if m.matches(candidate) {
			urls = append(urls, candidate)
		}
	}
	return urls, nil
}

// matches reports whether u contains one of the markers, ignoring case.
func (m *ManifestScan) matches(u string) bool {
	lower := strings.ToLower(u)
	for _, marker := range m.markers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// JSONSources reads provider APIs that answer
//
//	{"success": true, "sources": [{"file": "https://.../master.m3u8"}]}
//
// A body that is not such a JSON object is an extraction error. A valid
// answer with success false or no usable file yields not_found.
type JSONSources struct {
	scan *ManifestScan
}

// NewJSONSources returns a JSONSources rule keeping files that contain
// one of the markers.
func NewJSONSources(markers ...string) *JSONSources {
	return &JSONSources{scan: NewManifestScan(markers...)}
}

// sourcesResponse is the provider API envelope.
type sourcesResponse struct {
	Success *bool `json:"success"`
	Sources []struct {
		File string `json:"file"`
	} `json:"sources"`
}

// Extract implements ExtractionRule.
func (j *JSONSources) Extract(content *Content) ([]string, error) {
	var resp sourcesResponse
	if err := json.Unmarshal(content.Body, &resp); err != nil {
		return nil, ExtractionError(fmt.Errorf("invalid JSON response: %w", err))
	}
	if resp.Success != nil && !*resp.Success {
		return nil, fmt.Errorf("%w: provider reported success=false", ErrNoManifest)
	}

	var urls []string
	for _, src := range resp.Sources {
		file := strings.TrimSpace(escapedSlash.Replace(src.File))
		if file != "" && j.scan.matches(file) {
			urls = append(urls, file)
		}
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: response carried no manifest source", ErrNoManifest)
	}
	return urls, nil
}

// normalizeMarkers lowercases and dedupes markers, falling back to DefaultMarkers.
func normalizeMarkers(markers []string) []string {
	out := make([]string, 0, len(markers))
	seen := make(map[string]bool, len(markers))
	for _, m := range markers {
		m = strings.ToLower(strings.TrimSpace(m))
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	if len(out) == 0 {
		return append([]string(nil), DefaultMarkers...)
	}
	return out
}
