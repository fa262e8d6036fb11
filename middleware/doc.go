// Package middleware adapts a softoken engine to net/http.
//
// # Guards
//
//   - [Guard]: resolves the bearer token and, by default, extends the session.
//   - [ReadOnly]: resolves the bearer token without extending.
//
// Each guard reads the Authorization header, calls Engine.Get, and injects
// the user id and session into the request context. Any router that accepts
// func(http.Handler) http.Handler middleware (chi, the standard mux) works.
//
// This package does not parse tokens or talk to Redis itself.
package middleware
