// Package resolver is the single entry point both boundary adapters use to
// turn an identifier into a report.
//
// A Service owns the provider registry and composes the dispatcher, the
// aggregator, an optional expiring LRU report cache, the history store and
// the metrics recorder. The CLI resolves many identifiers with
// ResolveBatch; the HTTP server calls Resolve per request with caching and
// shared resolutions enabled.
package resolver
