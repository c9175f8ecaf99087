package collyfetcher

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Connector opens a ready-to-use connection to addr for one URL scheme.
type Connector interface {
	Connect(ctx context.Context, network, addr string) (net.Conn, error)
}

// plainConnector dials a bare TCP connection.
type plainConnector struct {
	dialer *net.Dialer
}

func (p plainConnector) Connect(ctx context.Context, network, addr string) (net.Conn, error) {
	conn, err := p.dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}

// tlsConnector dials TCP and completes a TLS handshake, presenting the target
// host via SNI.
type tlsConnector struct {
	dialer           *net.Dialer
	config           *tls.Config
	handshakeTimeout time.Duration
}

func (c tlsConnector) Connect(ctx context.Context, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("split %q: %w", addr, err)
	}
	raw, err := c.dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if c.config != nil {
		cfg = c.config.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}
	conn := tls.Client(raw, cfg)

	hsCtx, cancel := context.WithTimeout(ctx, c.handshakeTimeout)
	defer cancel()
	if err := conn.HandshakeContext(hsCtx); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("tls handshake with %s: %w", host, err)
	}
	return conn, nil
}

func newDialer() *net.Dialer {
	return &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
}

// connectorFor selects the Connector for scheme.
func connectorFor(scheme string, cfg Config) (Connector, bool) {
	switch scheme {
	case "http":
		return plainConnector{dialer: newDialer()}, true
	case "https":
		return tlsConnector{
			dialer:           newDialer(),
			config:           cfg.TLSConfig,
			handshakeTimeout: cfg.TLSHandshakeTimeout,
		}, true
	default:
		return nil, false
	}
}

func newHTTPTransport(cfg Config) *http.Transport {
	plain, _ := connectorFor("http", cfg)
	secure, _ := connectorFor("https", cfg)
	return &http.Transport{
		// Crawls go direct; a proxy would bypass the connectors.
		Proxy:                 nil,
		DialContext:           plain.Connect,
		DialTLSContext:        secure.Connect,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
