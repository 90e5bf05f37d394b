package auth

import "context"

type contextKey struct{}

// Identity is the authenticated caller of a request.
type Identity struct {
	Subject string
	Role    Role
}

// WithIdentity stores the caller identity in context.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

// IdentityFromContext returns the caller identity; exempt routes carry none.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	identity, ok := ctx.Value(contextKey{}).(Identity)
	return identity, ok
}

// SubjectFromContext returns the caller subject or "anonymous".
func SubjectFromContext(ctx context.Context) string {
	if identity, ok := IdentityFromContext(ctx); ok && identity.Subject != "" {
		return identity.Subject
	}
	return "anonymous"
}
