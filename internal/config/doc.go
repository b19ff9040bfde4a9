// Package config loads, normalizes, and validates courier configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// COURIER_KEY_ID and COURIER_TEAM_ID for token-mode gateway credentials. The
// Config type centralizes every knob the CLI and the push engine need:
// named gateway configurations, per-call notification defaults, pool policy,
// the delivery log, and the metrics listener.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
