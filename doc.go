// Package softoken provides a Redis-backed session token store: it issues
// signed tokens bound to a user id, keeps per-token session state in Redis
// with automatic expiration, and offers lookup, renewal, revocation, and
// garbage collection over that state.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build]. The engine holds no authoritative
// in-process state, so any number of engines in any number of processes may
// share one Redis namespace.
//
// # Architecture boundaries
//
// softoken is the public surface. It exposes [Engine], [Builder], [Config],
// and value types ([SessionInfo], [MetricsSnapshot], [AuditEvent]). Token
// signing lives in the jwt package, Redis access in the session package, and
// the background sweep scheduler under internal/.
//
// # What this package must NOT do
//
//   - Write to Redis directly (all writes go through session.Store).
//   - Read configuration from the environment or any global.
//   - Retry failed store calls; transient failures surface to the caller.
package softoken
