// Package server is the HTTP boundary adapter.
//
// It exposes GET /, /api and /resolve taking an ?id= query parameter, plus
// /providers, /healthz and /metrics. Malformed identifiers are rejected
// with 400 before the resolver is called; every response carries an
// X-Request-ID header.
package server
