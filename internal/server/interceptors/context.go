package interceptors

import "context"

type contextKey struct{ name string }

var (
	subjectKey  = contextKey{"subject"}
	clientIPKey = contextKey{"client_ip"}
)

// WithSubject returns a context carrying the authenticated session subject (username).
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}

// GetSubject returns the session subject from context and true if set; otherwise "", false.
func GetSubject(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(subjectKey).(string)
	return v, ok && v != ""
}

// WithClientIP returns a context carrying the caller's IP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIP returns the caller's IP stored by ClientIPContext, or "".
// It satisfies audit.IPExtractor.
func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey).(string)
	return v
}
