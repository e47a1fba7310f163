// Package metrics records resolution measurements.
//
// Recorder is the interface the resolver reports to. Prometheus implements
// it with a private registry exposed by the server at GET /metrics:
//
//	streamscout_probe_outcomes_total{provider,status}
//	streamscout_probe_duration_seconds{provider}
//	streamscout_resolutions_total
//	streamscout_resolution_duration_seconds
//	streamscout_resolution_urls_found
//	streamscout_report_cache_lookups_total{result}
//
// Nop discards everything and is used by the CLI.
package metrics
