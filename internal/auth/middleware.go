package auth

import (
	"fmt"
	"log"
	"net/http"
	"strings"
)

// Middleware authenticates bearer tokens and checks the permission the
// policy requires for the route.
type Middleware struct {
	secret []byte
	policy Policy
	logger *log.Logger
}

// NewMiddleware constructs the middleware. A nil logger uses log.Default.
func NewMiddleware(secret []byte, policy Policy, logger *log.Logger) *Middleware {
	if logger == nil {
		logger = log.Default()
	}
	return &Middleware{secret: secret, policy: policy, logger: logger}
}

// Wrap guards next. Exempt routes and routes without a permission pass through.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		permission, ok := m.policy.RequiredPermission(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		identity, err := m.authorize(r, permission)
		if err != nil {
			status := StatusCode(err)
			m.logger.Printf("auth: denied method=%s path=%s permission=%s status=%d err=%v",
				r.Method, r.URL.Path, permission, status, err)
			http.Error(w, http.StatusText(status), status)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

func (m *Middleware) authorize(r *http.Request, permission Permission) (Identity, error) {
	claims, err := ParseJWT(bearerToken(r), m.secret)
	if err != nil {
		return Identity{}, err
	}
	identity, err := claims.Identity()
	if err != nil {
		return Identity{}, err
	}
	if !identity.Role.Can(permission) {
		return Identity{}, fmt.Errorf("%w: role %s lacks %s", ErrForbidden, identity.Role, permission)
	}
	return identity, nil
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
