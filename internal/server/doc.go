// Package server implements the chatwire relay: a single-process WebSocket
// chat service where clients register a unique display name, exchange
// broadcast messages, and observe live presence and typing signals.
//
// The implementation is organized into specialized files for the session
// registry, the wire contract, the routing hub, per-connection clients,
// configuration, and HTTP plumbing to keep the codebase maintainable and
// testable as the project grows.
package server
