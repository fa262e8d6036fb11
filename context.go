package softoken

import "context"

type clientIPContextKey struct{}
type userIDContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The engine copies it
// into audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserID attaches an authenticated user id to ctx. The HTTP guard sets
// it after a successful [Engine.Get].
func WithUserID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, userIDContextKey{}, uid)
}

// UserIDFromContext returns the user id set by [WithUserID].
func UserIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	uid, ok := ctx.Value(userIDContextKey{}).(string)
	return uid, ok && uid != ""
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}
