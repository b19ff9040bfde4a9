package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"strconv"
)

var (
	// ErrProtocol is returned when the peer does not negotiate HTTP/2.
	ErrProtocol = errors.New("transport: peer did not negotiate h2")
	// ErrGoAway is returned when the peer shut the connection down with a
	// GOAWAY frame; the wrapped message carries its debug data.
	ErrGoAway = errors.New("transport: connection shut down by peer")
	// ErrClosed is returned when a request is issued on a closed connection.
	ErrClosed = errors.New("transport: connection closed")
)

// Endpoint is the address and TLS settings of a gateway.
type Endpoint struct {
	Host string
	Port int
	// TLS is the base client configuration. The dialer clones it, pins ALPN
	// to h2 and fills ServerName from Host when unset.
	TLS *tls.Config
}

// Address returns host:port.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Request is one HTTP/2 exchange.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// Reply is a complete response received from the peer, whatever its status.
type Reply struct {
	Status int
	Header http.Header
	Body   []byte
}

// Conn is a live multiplexed connection.
type Conn interface {
	RoundTrip(ctx context.Context, req *Request) (*Reply, error)
	Ping(ctx context.Context) error
	Connected() bool
	Close() error
}

// Dialer opens connections to an endpoint.
type Dialer interface {
	Dial(ctx context.Context, endpoint Endpoint) (Conn, error)
}
