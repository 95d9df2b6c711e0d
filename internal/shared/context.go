package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession attaches the request session; the middleware stack sets
// it once per request.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext returns the request session, or nil for anonymous
// requests.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}
