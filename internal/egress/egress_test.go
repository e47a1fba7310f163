package egress

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestParseProxyAddress tests proxy address parsing.
func TestParseProxyAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		address  string
		wantHost string
		wantUser string
		wantErr  bool
	}{
		{name: "host and port", address: "127.0.0.1:9050", wantHost: "127.0.0.1:9050"},
		{name: "hostname", address: "proxy.internal:1080", wantHost: "proxy.internal:1080"},
		{name: "socks5 url", address: "socks5://127.0.0.1:1080", wantHost: "127.0.0.1:1080"},
		{name: "socks5h url", address: "socks5h://127.0.0.1:1080", wantHost: "127.0.0.1:1080"},
		{name: "credentials", address: "socks5://alice:pw@127.0.0.1:1080", wantHost: "127.0.0.1:1080", wantUser: "alice"},
		{name: "empty", address: "", wantErr: true},
		{name: "missing port", address: "127.0.0.1", wantErr: true},
		{name: "port out of range", address: "127.0.0.1:70000", wantErr: true},
		{name: "port zero", address: "127.0.0.1:0", wantErr: true},
		{name: "missing host", address: ":9050", wantErr: true},
		{name: "http scheme", address: "http://127.0.0.1:8080", wantErr: true},
		{name: "path", address: "socks5://127.0.0.1:1080/x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			host, auth, err := ParseProxyAddress(tt.address)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidProxyAddress) {
					t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if host != tt.wantHost {
				t.Errorf("expected host %q, got %q", tt.wantHost, host)
			}
			switch {
			case tt.wantUser == "" && auth != nil:
				t.Errorf("expected no auth, got %+v", auth)
			case tt.wantUser != "" && (auth == nil || auth.User != tt.wantUser):
				t.Errorf("expected user %q, got %+v", tt.wantUser, auth)
			}
		})
	}
}

// TestNewHTTPClient tests the shared client configuration.
func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	t.Run("direct client has no overall timeout", func(t *testing.T) {
		t.Parallel()

		client, err := NewHTTPClient()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.Timeout != 0 {
			t.Errorf("expected no client timeout, got %v", client.Timeout)
		}
		if _, ok := client.Transport.(*http.Transport); !ok {
			t.Errorf("expected *http.Transport without headers, got %T", client.Transport)
		}
	})

	t.Run("invalid proxy is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := NewHTTPClient(WithProxy("nonsense"))
		if !errors.Is(err, ErrInvalidProxyAddress) {
			t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
		}
	})

	t.Run("proxy client keeps idle pool size", func(t *testing.T) {
		t.Parallel()

		client, err := NewHTTPClient(WithProxy("127.0.0.1:9050"), WithMaxIdleConnsPerHost(8))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tr, ok := client.Transport.(*http.Transport)
		if !ok {
			t.Fatalf("expected *http.Transport, got %T", client.Transport)
		}
		if tr.MaxIdleConnsPerHost != 8 {
			t.Errorf("expected 8 idle conns per host, got %d", tr.MaxIdleConnsPerHost)
		}
		if tr.MaxConnsPerHost != 0 {
			t.Errorf("expected open connections unbounded, got %d", tr.MaxConnsPerHost)
		}
	})
}

// TestHeaderInjection tests that configured headers reach the provider
// without overriding headers set on the request.
func TestHeaderInjection(t *testing.T) {
	t.Parallel()

	type seen struct {
		apiKey string
		accept string
	}
	got := make(chan seen, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- seen{apiKey: r.Header.Get("X-Api-Key"), accept: r.Header.Get("Accept")}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	client, err := NewHTTPClient(WithHeaders(map[string]string{
		"X-Api-Key": "k1",
		"Accept":    "text/plain",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = resp.Body.Close()

	s := <-got
	if s.apiKey != "k1" {
		t.Errorf("expected injected X-Api-Key k1, got %q", s.apiKey)
	}
	if s.accept != "application/json" {
		t.Errorf("expected request Accept to win, got %q", s.accept)
	}
}

// TestRedirectCap tests that redirects stop after MaxRedirects.
func TestRedirectCap(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	}))
	t.Cleanup(server.Close)

	client, err := NewHTTPClient()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("expected last response instead of error, got %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Errorf("expected status 302, got %d", resp.StatusCode)
	}
}

// fakeProxy accepts one connection and replies with reply after reading
// the greeting.
func fakeProxy(t *testing.T, reply []byte) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4)
		_, _ = conn.Read(buf)
		if reply != nil {
			_, _ = conn.Write(reply)
		}
		time.Sleep(100 * time.Millisecond)
	}()

	return ln.Addr().String()
}

// TestCheckProxy tests the SOCKS5 greeting check.
func TestCheckProxy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		reply []byte
		want  ProxyStatus
	}{
		{name: "no auth accepted", reply: []byte{0x05, 0x00}, want: ProxyStatusOK},
		{name: "password auth accepted", reply: []byte{0x05, 0x02}, want: ProxyStatusOK},
		{name: "no method acceptable", reply: []byte{0x05, 0xFF}, want: ProxyStatusWrongType},
		{name: "http server", reply: []byte("HTTP/1.1 400 Bad Request\r\n\r\n"), want: ProxyStatusWrongType},
		{name: "socks4 reply", reply: []byte{0x04, 0x5A}, want: ProxyStatusWrongType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			addr := fakeProxy(t, tt.reply)
			if got := CheckProxy(context.Background(), addr); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}

	t.Run("closed port", func(t *testing.T) {
		t.Parallel()

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		addr := ln.Addr().String()
		_ = ln.Close()

		if got := CheckProxy(context.Background(), addr); got != ProxyStatusCannotConnect {
			t.Errorf("expected %v, got %v", ProxyStatusCannotConnect, got)
		}
	})
}

// TestProxyStatus tests status strings and errors.
func TestProxyStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status  ProxyStatus
		str     string
		wantErr error
	}{
		{ProxyStatusOK, "OK", nil},
		{ProxyStatusWrongType, "wrong type (not SOCKS5)", ErrProxyNotSOCKS5},
		{ProxyStatusCannotConnect, "cannot connect", ErrProxyCannotConnect},
		{ProxyStatusTimeout, "timeout", ErrProxyTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			t.Parallel()

			if tt.status.String() != tt.str {
				t.Errorf("expected %q, got %q", tt.str, tt.status.String())
			}
			if !errors.Is(tt.status.Error(), tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, tt.status.Error())
			}
		})
	}
}

// TestEmbeddedTor tests EmbeddedTor without launching a daemon.
func TestEmbeddedTor(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		e := NewEmbeddedTor()
		if e.startupTimeout != defaultTorStartupTimeout {
			t.Errorf("expected %v, got %v", defaultTorStartupTimeout, e.startupTimeout)
		}
		if e.IsRunning() || e.SocksAddr() != "" || e.ControlAddr() != "" {
			t.Error("expected a stopped daemon with no addresses")
		}
	})

	t.Run("startup timeout option", func(t *testing.T) {
		t.Parallel()

		e := NewEmbeddedTor(WithStartupTimeout(time.Minute))
		if e.startupTimeout != time.Minute {
			t.Errorf("expected 1m, got %v", e.startupTimeout)
		}
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		t.Parallel()

		e := NewEmbeddedTor()
		if err := e.Stop(); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
		if err := e.Stop(); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	t.Run("client requires running daemon", func(t *testing.T) {
		t.Parallel()

		_, err := NewEmbeddedTor().NewHTTPClient()
		if !errors.Is(err, ErrTorNotRunning) {
			t.Errorf("expected ErrTorNotRunning, got %v", err)
		}
	})
}
