package middleware

import "net/http"

// ReadOnly returns a guard that checks the session without sliding its
// window, for endpoints such as polling that should not keep a session
// alive on their own.
func ReadOnly(engine SessionResolver, opts ...Option) func(http.Handler) http.Handler {
	return Guard(engine, append(opts, WithExtend(false))...)
}
