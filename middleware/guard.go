package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MrEthical07/softoken"
)

// SessionResolver is the part of [softoken.Engine] the guard needs.
type SessionResolver interface {
	Get(ctx context.Context, token string) (*softoken.SessionInfo, error)
	Extend(ctx context.Context, token string) (*softoken.SessionInfo, error)
}

type sessionContextKey struct{}

// SessionFromContext returns the session resolved by [Guard].
func SessionFromContext(ctx context.Context) (*softoken.SessionInfo, bool) {
	info, ok := ctx.Value(sessionContextKey{}).(*softoken.SessionInfo)
	return info, ok
}

// Option configures [Guard].
type Option func(*options)

type options struct {
	extend bool
	logger *slog.Logger
}

// WithExtend controls whether every authenticated request slides the
// session window. Enabled by default.
func WithExtend(enabled bool) Option {
	return func(o *options) { o.extend = enabled }
}

// WithLogger sets the logger used for rejection diagnostics. Nil selects
// slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Guard authenticates requests by their bearer token. Missing, malformed,
// forged and unknown credentials all get the same 401; the distinction is
// only logged at debug level. Store failures get 503 so clients do not
// discard a valid token.
//
// On success the user id is attached with [softoken.WithUserID] and the
// session with [SessionFromContext].
func Guard(engine SessionResolver, opts ...Option) func(http.Handler) http.Handler {
	o := options{extend: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := r.Context()
			info, err := engine.Get(ctx, token)
			if err == nil && o.extend {
				info, err = engine.Extend(ctx, token)
			}
			if err != nil {
				reject(w, r, o.logger, err)
				return
			}

			ctx = softoken.WithUserID(ctx, info.UID)
			ctx = context.WithValue(ctx, sessionContextKey{}, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func reject(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if softoken.IsCredentialError(err) {
		logger.DebugContext(r.Context(), "request rejected", "path", r.URL.Path, "reason", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	logger.WarnContext(r.Context(), "session lookup failed", "path", r.URL.Path, "error", err)
	http.Error(w, "service unavailable", http.StatusServiceUnavailable)
}

// bearerToken extracts the credential from an Authorization value. The
// scheme name is matched case-insensitively.
func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) <= len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}
	return value[len(bearer):], true
}
