package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultIdentifierField is the JSON key used for the identifier in a report.
const DefaultIdentifierField = "tmdb_id"

// JSON keys of the report envelope. These names are part of the public API.
const (
	fieldTotalServers = "total_servers_checked"
	fieldTotalURLs    = "total_urls_found"
	fieldResults      = "results"
)

// ErrMalformedReport is returned when a serialised report cannot be decoded.
var ErrMalformedReport = errors.New("malformed report")

// Report is the aggregated, deterministic result of all probes for one identifier.
//
// A Report is built once by the aggregator and never mutated afterwards.
// It serialises to:
//
//	{
//	  "<identifier field>": "<identifier>",
//	  "total_servers_checked": 3,
//	  "total_urls_found": 2,
//	  "results": {"<tag>": {"status": "...", "urls": [...], "message": "..."}}
//	}
//
// with results in registry order, so that identical inputs always produce
// byte-identical output.
type Report struct {
	// Identifier is the resolved content key.
	Identifier Identifier

	// IdentifierField is the JSON key under which Identifier is serialised.
	// Empty means DefaultIdentifierField.
	IdentifierField string

	// TotalProvidersChecked is the registry size at dispatch time.
	TotalProvidersChecked int

	// TotalURLsFound is the sum of URL counts over success outcomes.
	TotalURLsFound int

	// Providers lists the provider tags in registry order.
	Providers []string

	// PerProvider maps each tag in Providers to its outcome.
	PerProvider map[string]Outcome

	// ResolvedAt is when the report was built. Not serialised.
	ResolvedAt time.Time
}

// NewReport builds a Report from outcomes already keyed by tag.
// Outcomes are normalised (URLs sorted and unique, empty success downgraded)
// and the totals are computed, so the report invariants always hold.
// Every tag in order must have an outcome in perProvider.
func NewReport(id Identifier, field string, order []string, perProvider map[string]Outcome, resolvedAt time.Time) (*Report, error) {
	if len(order) != len(perProvider) {
		return nil, fmt.Errorf("%w: %d providers but %d outcomes", ErrMalformedReport, len(order), len(perProvider))
	}

	r := &Report{
		Identifier:            id,
		IdentifierField:       field,
		TotalProvidersChecked: len(order),
		Providers:             make([]string, len(order)),
		PerProvider:           make(map[string]Outcome, len(order)),
		ResolvedAt:            resolvedAt,
	}
	copy(r.Providers, order)

	for _, tag := range order {
		o, ok := perProvider[tag]
		if !ok {
			return nil, fmt.Errorf("%w: no outcome for provider %s", ErrMalformedReport, tag)
		}
		o.Tag = tag
		o = o.normalized()
		r.PerProvider[tag] = o
		r.TotalURLsFound += o.URLCount()
	}

	return r, nil
}

// Outcome returns the outcome recorded for a provider tag.
func (r *Report) Outcome(tag string) (Outcome, bool) {
	o, ok := r.PerProvider[tag]
	return o, ok
}

// Outcomes returns the outcomes in registry order.
func (r *Report) Outcomes() []Outcome {
	out := make([]Outcome, 0, len(r.Providers))
	for _, tag := range r.Providers {
		out = append(out, r.PerProvider[tag])
	}
	return out
}

// CountByStatus returns how many providers ended in the given status.
func (r *Report) CountByStatus(status Status) int {
	n := 0
	for _, o := range r.PerProvider {
		if o.Status == status {
			n++
		}
	}
	return n
}

// AllURLs returns every distinct manifest URL in the report, sorted.
func (r *Report) AllURLs() []string {
	var urls []string
	for _, tag := range r.Providers {
		urls = append(urls, r.PerProvider[tag].URLs...)
	}
	return UniqueSorted(urls)
}

// IsReservedField reports whether name is one of the fixed report keys and
// therefore cannot carry the identifier.
func IsReservedField(name string) bool {
	switch name {
	case fieldTotalServers, fieldTotalURLs, fieldResults:
		return true
	}
	return false
}

// identifierField returns the effective identifier key.
func (r *Report) identifierField() string {
	if r.IdentifierField == "" || IsReservedField(r.IdentifierField) {
		return DefaultIdentifierField
	}
	return r.IdentifierField
}

// MarshalJSON writes the report envelope with results in registry order.
func (r Report) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	if err := writeMember(&buf, r.identifierField(), r.Identifier.String()); err != nil {
		return nil, err
	}
	buf.WriteByte(',')
	if err := writeMember(&buf, fieldTotalServers, r.TotalProvidersChecked); err != nil {
		return nil, err
	}
	buf.WriteByte(',')
	if err := writeMember(&buf, fieldTotalURLs, r.TotalURLsFound); err != nil {
		return nil, err
	}
	buf.WriteByte(',')

	key, err := json.Marshal(fieldResults)
	if err != nil {
		return nil, err
	}
	buf.Write(key)
	buf.WriteString(":{")
	for i, tag := range r.Providers {
		if i > 0 {
			buf.WriteByte(',')
		}
		o := r.PerProvider[tag]
		if o.URLs == nil {
			o.URLs = []string{}
		}
		if err := writeMember(&buf, tag, o); err != nil {
			return nil, err
		}
	}
	buf.WriteString("}}")

	return buf.Bytes(), nil
}

// writeMember appends `"key":value` to buf.
func writeMember(buf *bytes.Buffer, key string, value any) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}

// UnmarshalJSON decodes a report produced by MarshalJSON.
// The identifier key is detected as the single non-envelope string member,
// and the order of the results object is preserved.
func (r *Report) UnmarshalJSON(data []byte) error {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}

	var decoded Report
	for key, raw := range members {
		switch key {
		case fieldTotalServers:
			if err := json.Unmarshal(raw, &decoded.TotalProvidersChecked); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrMalformedReport, key, err)
			}
		case fieldTotalURLs:
			if err := json.Unmarshal(raw, &decoded.TotalURLsFound); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrMalformedReport, key, err)
			}
		case fieldResults:
			order, outcomes, err := decodeResults(raw)
			if err != nil {
				return err
			}
			decoded.Providers = order
			decoded.PerProvider = outcomes
		default:
			if decoded.IdentifierField != "" {
				return fmt.Errorf("%w: unexpected member %q", ErrMalformedReport, key)
			}
			var id string
			if err := json.Unmarshal(raw, &id); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrMalformedReport, key, err)
			}
			decoded.IdentifierField = key
			decoded.Identifier = Identifier(id)
		}
	}

	if decoded.PerProvider == nil {
		return fmt.Errorf("%w: missing %q", ErrMalformedReport, fieldResults)
	}

	*r = decoded
	return nil
}

// decodeResults reads the results object token by token to keep key order.
func decodeResults(raw json.RawMessage) ([]string, map[string]Outcome, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: results: %v", ErrMalformedReport, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("%w: results must be an object", ErrMalformedReport)
	}

	order := make([]string, 0)
	outcomes := make(map[string]Outcome)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: results: %v", ErrMalformedReport, err)
		}
		tag, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("%w: results key is not a string", ErrMalformedReport)
		}
		var o Outcome
		if err := dec.Decode(&o); err != nil {
			return nil, nil, fmt.Errorf("%w: results[%s]: %v", ErrMalformedReport, tag, err)
		}
		o.Tag = tag
		if _, dup := outcomes[tag]; !dup {
			order = append(order, tag)
		}
		outcomes[tag] = o
	}

	return order, outcomes, nil
}
