// Package internal holds helpers private to softoken.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher and Sink implementations)
//   - reconcile: scheduled sweep of lapsed sessions with an optional
//     cross-process lock
//
// Nothing here appears in the public softoken API.
package internal
