package model

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// Status classifies the outcome of a single probe.
// The string values are part of the public API and must not change.
type Status string

const (
	// StatusSuccess means the provider yielded at least one manifest URL.
	StatusSuccess Status = "success"

	// StatusNotFound means the fetch completed cleanly but yielded no manifest URL.
	StatusNotFound Status = "not_found"

	// StatusError means the probe failed (timeout, transport or extraction error).
	StatusError Status = "error"
)

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusSuccess, StatusNotFound, StatusError:
		return true
	default:
		return false
	}
}

// String returns the wire representation of the status.
func (s Status) String() string {
	return string(s)
}

// Outcome is the classified result of probing one provider for one identifier.
// Exactly one Outcome is created per probe invocation and it is never
// modified after it has been handed to the dispatcher.
type Outcome struct {
	// Tag is the provider tag this outcome belongs to.
	Tag string `json:"-"`

	// Status is the classification of the probe result.
	Status Status `json:"status"`

	// URLs contains the distinct manifest URLs found.
	// Only populated when Status is StatusSuccess.
	URLs []string `json:"urls"`

	// Message is a short diagnostic for not_found and error outcomes.
	Message string `json:"message,omitempty"`

	// Elapsed is the wall time the probe took. It feeds metrics and logs
	// and is not part of the serialised report.
	Elapsed time.Duration `json:"-"`
}

// NewSuccess builds a success outcome from the extracted URLs.
// Duplicates are removed and the URLs are sorted. If no URL remains the
// outcome is downgraded to not_found, so an empty success never exists.
func NewSuccess(tag string, urls []string) Outcome {
	unique := UniqueSorted(urls)
	if len(unique) == 0 {
		return NewNotFound(tag, "fetch succeeded but no manifest URL was found")
	}
	return Outcome{Tag: tag, Status: StatusSuccess, URLs: unique}
}

// NewNotFound builds a not_found outcome with an optional message.
func NewNotFound(tag, message string) Outcome {
	return Outcome{Tag: tag, Status: StatusNotFound, URLs: []string{}, Message: message}
}

// NewError builds an error outcome. The message should be short and must
// not contain secrets; probe.Error.Message produces a suitable one.
func NewError(tag, message string) Outcome {
	return Outcome{Tag: tag, Status: StatusError, URLs: []string{}, Message: message}
}

// URLCount returns the number of URLs that count towards the report total.
// Only success outcomes contribute.
func (o Outcome) URLCount() int {
	if o.Status != StatusSuccess {
		return 0
	}
	return len(o.URLs)
}

// normalized returns a copy of the outcome with the report invariants applied:
// URLs unique and sorted, non-nil, and no empty success.
func (o Outcome) normalized() Outcome {
	out := o
	out.URLs = UniqueSorted(o.URLs)
	if out.Status == StatusSuccess && len(out.URLs) == 0 {
		return NewNotFound(o.Tag, "fetch succeeded but no manifest URL was found")
	}
	if out.Status != StatusSuccess {
		// Non-success outcomes never carry URLs in the report.
		out.URLs = []string{}
	}
	return out
}

// UnmarshalJSON decodes an outcome and rejects unknown statuses.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	type plain Outcome
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if !p.Status.Valid() {
		return fmt.Errorf("unknown outcome status %q", p.Status)
	}
	if p.URLs == nil {
		p.URLs = []string{}
	}
	*o = Outcome(p)
	return nil
}

// UniqueSorted returns the distinct non-empty values of urls in ascending order.
// The result is never nil.
func UniqueSorted(urls []string) []string {
	out := make([]string, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	slices.Sort(out)
	return out
}
