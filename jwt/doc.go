// Package jwt signs and verifies the compact session tokens handed out by the
// softoken engine.
//
// A token carries only the user id and a random token id. It is never
// authoritative on its own: the engine must still find a live session record
// for it.
package jwt
