// Package audit implements async event dispatching for session lifecycle
// operations.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full
//     semantics.
//   - [Event]: structured audit record with timestamp, type, user, token
//     fingerprint, IP and metadata.
//
// This package owns buffering and sink delivery. Which events to emit is
// decided by the engine.
package audit
