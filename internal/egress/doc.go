// Package egress builds the HTTP client every probe uses to reach providers.
//
// By default connections go out directly. A SOCKS5 proxy can be configured
// with WithProxy, and EmbeddedTor launches a private Tor daemon through
// tornago whose SOCKS port feeds the same client. Either way the client is
// built once at startup and shared, so connection pooling spans probes and
// identifiers.
//
// CheckProxy runs a SOCKS5 method negotiation so that a misconfigured proxy
// is reported before the first resolution instead of as N transport errors.
package egress
