// Package session provides the Redis-backed repository behind softoken
// sessions.
//
// # Structures
//
// Each session lives in three places: a per-token hash that Redis expires on
// its own, a per-user set of tokens, and one global sorted set ordered by
// expiration. Only the hash expires natively, so [Store.SweepExpired]
// reconciles the two indexes after the fact.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Record] model. It
// does NOT sign or verify tokens and does not decide request policy; those
// responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Import softoken or jwt (no upward imports).
//   - Write one of the three structures without the other two in the same script.
package session
