// Package model defines the core data structures used throughout streamscout.
//
// This package contains the following main types:
//   - Provider: One upstream source, identified by a stable tag
//   - Registry: The immutable, ordered provider catalogue
//   - Identifier: The opaque content key substituted into provider templates
//   - Outcome: The classified result of probing one provider
//   - Report: The deterministic aggregate of all outcomes for one identifier
//
// The models are shared by the probe, dispatch, aggregate and report packages,
// so they live here to avoid import cycles. Every type is designed to be
// serialisable to JSON for the HTTP API, report output and history storage.
package model
