package egress

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// Pool and redirect limits for the shared provider client.
const (
	// MaxRedirects caps redirects followed per request.
	MaxRedirects = 10

	defaultMaxIdleConns        = 64
	defaultMaxIdleConnsPerHost = 4
	defaultIdleConnTimeout     = 30 * time.Second
	defaultDialTimeout         = 10 * time.Second
	defaultTLSHandshakeTimeout = 10 * time.Second
)

// Option configures NewHTTPClient.
type Option func(*options)

type options struct {
	proxyAddress        string
	headers             map[string]string
	maxIdleConnsPerHost int
}

// WithProxy routes every connection through the SOCKS5 proxy at address.
// An empty address means direct connections.
func WithProxy(address string) Option {
	return func(o *options) {
		o.proxyAddress = address
	}
}

// WithHeaders adds headers to every request that does not already set them.
func WithHeaders(headers map[string]string) Option {
	return func(o *options) {
		if len(headers) == 0 {
			return
		}
		if o.headers == nil {
			o.headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			o.headers[k] = v
		}
	}
}

// WithMaxIdleConnsPerHost sets how many idle connections are kept per
// provider host. It does not cap open connections.
func WithMaxIdleConnsPerHost(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxIdleConnsPerHost = n
		}
	}
}

// NewHTTPClient builds the *http.Client shared by every probe.
//
// The client has no overall Timeout: each probe bounds its own request
// with a context deadline. Redirects stop after MaxRedirects, returning the
// last response.
func NewHTTPClient(opts ...Option) (*http.Client, error) {
	o := &options{maxIdleConnsPerHost: defaultMaxIdleConnsPerHost}
	for _, opt := range opts {
		opt(o)
	}

	transport := &http.Transport{
		Proxy:               nil,
		MaxIdleConns:        defaultMaxIdleConns,
		MaxIdleConnsPerHost: o.maxIdleConnsPerHost,
		IdleConnTimeout:     defaultIdleConnTimeout,
		TLSHandshakeTimeout: defaultTLSHandshakeTimeout,
		ForceAttemptHTTP2:   true,
	}

	base := &net.Dialer{Timeout: defaultDialTimeout, KeepAlive: 30 * time.Second}
	transport.DialContext = base.DialContext

	if o.proxyAddress != "" {
		dial, err := socksDialContext(o.proxyAddress, base)
		if err != nil {
			return nil, err
		}
		transport.DialContext = dial
	}

	var rt http.RoundTripper = transport
	if len(o.headers) > 0 {
		rt = &headerInjectingTransport{base: transport, headers: o.headers}
	}

	return &http.Client{
		Transport: rt,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= MaxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

type dialContextFunc func(ctx context.Context, network, addr string) (net.Conn, error)

func socksDialContext(address string, forward *net.Dialer) (dialContextFunc, error) {
	hostPort, auth, err := ParseProxyAddress(address)
	if err != nil {
		return nil, err
	}

	dialer, err := proxy.SOCKS5("tcp", hostPort, auth, forward)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}

	// proxy.Dialer without context support: dial in the background and
	// give up when ctx ends. The connection, if it arrives late, is closed.
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		type result struct {
			conn net.Conn
			err  error
		}
		ch := make(chan result, 1)
		go func() {
			conn, err := dialer.Dial(network, addr)
			ch <- result{conn, err}
		}()
		select {
		case r := <-ch:
			return r.conn, r.err
		case <-ctx.Done():
			go func() {
				if r := <-ch; r.conn != nil {
					_ = r.conn.Close() //nolint:errcheck // abandoned dial
				}
			}()
			return nil, ctx.Err()
		}
	}, nil
}

// ParseProxyAddress splits a proxy address into "host:port" and optional
// credentials. Both "host:port" and "socks5://[user:pass@]host:port" are
// accepted; "socks5h" is treated the same since the proxy always resolves
// names.
func ParseProxyAddress(address string) (string, *proxy.Auth, error) {
	if address == "" {
		return "", nil, ErrInvalidProxyAddress
	}

	var auth *proxy.Auth
	hostPort := address

	if strings.Contains(address, "://") {
		u, err := url.Parse(address)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrInvalidProxyAddress, err)
		}
		if u.Scheme != "socks5" && u.Scheme != "socks5h" {
			return "", nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidProxyAddress, u.Scheme)
		}
		if u.Path != "" && u.Path != "/" {
			return "", nil, ErrInvalidProxyAddress
		}
		if u.User != nil {
			password, _ := u.User.Password()
			auth = &proxy.Auth{User: u.User.Username(), Password: password}
		}
		hostPort = u.Host
	}

	host, port, err := net.SplitHostPort(hostPort)
	if err != nil || host == "" {
		return "", nil, ErrInvalidProxyAddress
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return "", nil, ErrInvalidProxyAddress
	}

	return hostPort, auth, nil
}

// headerInjectingTransport sets configured headers on every request,
// including redirects and nested frame requests, unless the request
// already carries them.
type headerInjectingTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for key, value := range t.headers {
		if clone.Header.Get(key) == "" {
			clone.Header.Set(key, value)
		}
	}
	return t.base.RoundTrip(clone)
}
