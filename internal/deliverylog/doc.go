// Package deliverylog keeps a SQLite history of delivery calls.
//
// Every call made through the push engine is stored as one delivery row plus
// one response row per recipient, or a single row with recipient "*" when
// the call collapsed into an aggregate failure. The CLI's history command and
// unregistered-token reports read from here.
package deliverylog
