// Package preflight provides readiness checks for the filesystem paths,
// credentials, and gateways courier depends on.
//
// The CLI "courier check" command runs RunAll and renders one status line per
// result. Gateway checks dial each configuration exactly as a delivery would
// (TLS, ALPN h2, client credentials) and send an HTTP/2 ping, so a passing
// check means the first send will not fail on connectivity.
package preflight
