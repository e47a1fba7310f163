package database

import (
	"slices"

	"github.com/nao1215/streamscout/internal/model"
)

// ProviderChange describes how one provider's outcome differs between two
// reports of the same identifier.
type ProviderChange struct {
	Tag string `json:"tag"`

	// Previous and Current are the statuses in each report. An empty
	// status means the provider was not in that report's registry.
	Previous model.Status `json:"previous_status,omitempty"`
	Current  model.Status `json:"current_status,omitempty"`

	AddedURLs   []string `json:"added_urls,omitempty"`
	RemovedURLs []string `json:"removed_urls,omitempty"`
}

// StatusChanged reports whether the provider's status differs.
func (c ProviderChange) StatusChanged() bool {
	return c.Previous != c.Current
}

// Comparison is the difference between two reports.
type Comparison struct {
	Identifier string `json:"identifier"`

	PreviousTotalURLs int `json:"previous_total_urls"`
	CurrentTotalURLs  int `json:"current_total_urls"`

	// Changes lists providers whose status or URL set changed, in the
	// current report's registry order followed by providers only present
	// in the previous report.
	Changes []ProviderChange `json:"changes"`
}

// HasChanges reports whether any provider changed.
func (c *Comparison) HasChanges() bool {
	return len(c.Changes) > 0
}

// Compare lists per-provider status changes and added or removed URLs
// between previous and current. Either report may be nil, which compares
// against an empty report.
func Compare(previous, current *model.Report) *Comparison {
	prev := orEmpty(previous)
	cur := orEmpty(current)

	cmp := &Comparison{
		Identifier:        cur.Identifier.String(),
		PreviousTotalURLs: prev.TotalURLsFound,
		CurrentTotalURLs:  cur.TotalURLsFound,
		Changes:           []ProviderChange{},
	}
	if cmp.Identifier == "" {
		cmp.Identifier = prev.Identifier.String()
	}

	tags := slices.Clone(cur.Providers)
	for _, tag := range prev.Providers {
		if !slices.Contains(tags, tag) {
			tags = append(tags, tag)
		}
	}

	for _, tag := range tags {
		before, hadBefore := prev.Outcome(tag)
		after, hasAfter := cur.Outcome(tag)

		change := ProviderChange{Tag: tag}
		if hadBefore {
			change.Previous = before.Status
		}
		if hasAfter {
			change.Current = after.Status
		}
		change.AddedURLs = difference(after.URLs, before.URLs)
		change.RemovedURLs = difference(before.URLs, after.URLs)

		if change.StatusChanged() || len(change.AddedURLs) > 0 || len(change.RemovedURLs) > 0 {
			cmp.Changes = append(cmp.Changes, change)
		}
	}

	return cmp
}

func orEmpty(r *model.Report) *model.Report {
	if r == nil {
		return &model.Report{}
	}
	return r
}

// difference returns the elements of a not in b, in a's order.
func difference(a, b []string) []string {
	var out []string
	for _, s := range a {
		if !slices.Contains(b, s) {
			out = append(out, s)
		}
	}
	return out
}
