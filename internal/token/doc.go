// Package token mints and caches the signed provider tokens used for
// token-based authentication against the push gateway.
//
// A token is a compact JWT: a header naming the signing key, claims naming
// the issuing team and the issue time, and an ES256 signature over both. The
// Cache keeps one token per configuration and re-signs it only once the
// current one is an hour old, which keeps signing off the hot path of every
// request.
//
// Key material is read from PEM files on every refresh so a rotated key on
// disk takes effect at the next hourly boundary. Failures never escape as
// errors from Cache.Token; the caller simply sends without an authorization
// header and lets the gateway reject the request.
package token
