package clinicauth

import "context"

type clientIPContextKey struct{}

// WithClientIP attaches the caller's network address to ctx. The engine
// records it as the last-login origin and the rate limiter keys on it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}
