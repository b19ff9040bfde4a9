// Package main hosts the courier CLI entrypoint and command graph.
//
// The Cobra-based command tree loads the TOML configuration, registers every
// [[apns]] entry with a push engine, and exposes delivery, token inspection,
// delivery history, log viewing, readiness checks, and configuration
// scaffolding as subcommands. Logging,
// the delivery log, and the optional metrics listener are wired here so the
// internal packages stay free of process concerns.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
