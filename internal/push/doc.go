// Package push is the delivery engine: it keeps named gateway configurations,
// pools one set of HTTP/2 streams per configuration, signs provider tokens,
// and fans a rendered notification out to a list of device tokens.
//
// An Engine is constructed explicitly and owns all shared state. Each delivery
// call renders its payload once, checks a stream out of the configuration's
// pool, and sends to the recipients in order on that stream. A transport
// failure is retried once per recipient on a freshly acquired stream; a second
// failure aborts the call and fills the remaining slots with identical
// failures. Callers always receive exactly one Response per recipient, or a
// single aggregate failure when the call could not start.
//
// The pipeline never returns Go errors. Every outcome, including local
// failures, is a Response; transport failures carry StatusTransportFailure and
// the underlying error.
package push
