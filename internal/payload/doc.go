// Package payload renders notification items into the JSON document sent as
// the body of every push request.
//
// Items are a closed set of constructors (AlertBody, Badge, Custom, ...) that
// fold into a top-level object holding the "aps" dictionary plus any custom
// keys. Every value that ends up in the document is a Value, a small closed
// variant (null, bool, number, string, array, object) with a single serializer,
// so rendering never needs to inspect arbitrary Go types at runtime.
//
// Rendering is pure and deterministic: objects keep insertion order, and a
// document that cannot be serialized collapses to "{}" so a bad custom value
// never prevents the request from being sent.
package payload
