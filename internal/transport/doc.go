// Package transport provides the multiplexed connection the push engine sends
// over: one HTTP/2 client connection per TLS session, negotiated with ALPN
// "h2" and dialled with a bounded connect timeout.
//
// The engine only sees the Dialer and Conn interfaces, so tests substitute
// fakes and the pool never depends on HTTP/2 details.
package transport
