package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

const (
	// DefaultConnectTimeout bounds TCP connect plus TLS handshake.
	DefaultConnectTimeout = 5 * time.Second
	maxReplyBytes         = 1 << 20
)

// DialerOption customises HTTP2Dialer construction.
type DialerOption func(*HTTP2Dialer)

// WithConnectTimeout overrides DefaultConnectTimeout.
func WithConnectTimeout(timeout time.Duration) DialerOption {
	return func(d *HTTP2Dialer) {
		if timeout > 0 {
			d.connectTimeout = timeout
		}
	}
}

// WithNetDialer replaces the TCP dialer (used in tests).
func WithNetDialer(dialer *net.Dialer) DialerOption {
	return func(d *HTTP2Dialer) {
		if dialer != nil {
			d.netDialer = dialer
		}
	}
}

// HTTP2Dialer dials TLS connections and wraps each in its own HTTP/2 client
// connection.
type HTTP2Dialer struct {
	connectTimeout time.Duration
	netDialer      *net.Dialer
	h2             *http2.Transport
}

// NewHTTP2Dialer returns a dialer with a 5 second connect timeout.
func NewHTTP2Dialer(opts ...DialerOption) *HTTP2Dialer {
	d := &HTTP2Dialer{
		connectTimeout: DefaultConnectTimeout,
		netDialer:      &net.Dialer{KeepAlive: 30 * time.Second},
		h2:             &http2.Transport{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dial implements Dialer.
func (d *HTTP2Dialer) Dial(ctx context.Context, endpoint Endpoint) (Conn, error) {
	cfg := clientTLSConfig(endpoint)
	dialCtx, cancel := context.WithTimeout(ctx, d.connectTimeout)
	defer cancel()

	tlsDialer := &tls.Dialer{NetDialer: d.netDialer, Config: cfg}
	raw, err := tlsDialer.DialContext(dialCtx, "tcp", endpoint.Address())
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", endpoint.Address(), err)
	}
	tlsConn, ok := raw.(*tls.Conn)
	if !ok {
		_ = raw.Close()
		return nil, fmt.Errorf("transport: dial %s: unexpected connection type %T", endpoint.Address(), raw)
	}
	if proto := tlsConn.ConnectionState().NegotiatedProtocol; proto != http2.NextProtoTLS {
		_ = tlsConn.Close()
		return nil, fmt.Errorf("%w (got %q from %s)", ErrProtocol, proto, endpoint.Address())
	}

	cc, err := d.h2.NewClientConn(tlsConn)
	if err != nil {
		_ = tlsConn.Close()
		return nil, fmt.Errorf("transport: start http2 session with %s: %w", endpoint.Address(), err)
	}
	return &http2Conn{cc: cc, authority: endpoint.Address()}, nil
}

func clientTLSConfig(endpoint Endpoint) *tls.Config {
	var cfg *tls.Config
	if endpoint.TLS != nil {
		cfg = endpoint.TLS.Clone()
	} else {
		cfg = &tls.Config{}
	}
	if cfg.ServerName == "" {
		cfg.ServerName = endpoint.Host
	}
	if cfg.MinVersion == 0 {
		cfg.MinVersion = tls.VersionTLS12
	}
	cfg.NextProtos = []string{http2.NextProtoTLS}
	return cfg
}

type http2Conn struct {
	cc        *http2.ClientConn
	authority string
}

func (c *http2Conn) RoundTrip(ctx context.Context, req *Request) (*Reply, error) {
	if req == nil {
		return nil, errors.New("transport: nil request")
	}
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, "https://"+c.authority+req.Path, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("transport: build request: %w", err)
	}
	for key, values := range req.Header {
		httpReq.Header[key] = append([]string(nil), values...)
	}
	httpReq.ContentLength = int64(len(req.Body))

	resp, err := c.cc.RoundTrip(httpReq)
	if err != nil {
		var goAway http2.GoAwayError
		if errors.As(err, &goAway) {
			return nil, fmt.Errorf("%w: %s: %s", ErrGoAway, goAway.ErrCode, goAway.DebugData)
		}
		if errors.Is(err, http2.ErrNoCachedConn) {
			return nil, fmt.Errorf("%w: %v", ErrClosed, err)
		}
		return nil, fmt.Errorf("transport: round trip: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, fmt.Errorf("transport: read reply: %w", err)
	}
	return &Reply{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func (c *http2Conn) Ping(ctx context.Context) error {
	if err := c.cc.Ping(ctx); err != nil {
		return fmt.Errorf("transport: ping: %w", err)
	}
	return nil
}

func (c *http2Conn) Connected() bool {
	state := c.cc.State()
	return !state.Closed && !state.Closing && c.cc.CanTakeNewRequest()
}

func (c *http2Conn) Close() error {
	return c.cc.Close()
}
