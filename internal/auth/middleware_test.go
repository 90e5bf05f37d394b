package auth

import (
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret")

func newTestHandler(t *testing.T) (http.Handler, *Identity) {
	t.Helper()
	var seen Identity
	policy := NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	mw := NewMiddleware(testSecret, policy, log.New(io.Discard, "", 0))
	return mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})), &seen
}

func serve(handler http.Handler, method, path, token string) int {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp.Code
}

func mustToken(t *testing.T, secret []byte, role Role) string {
	t.Helper()
	token, err := IssueJWT(secret, "tick-scheduler", role, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	handler, _ := newTestHandler(t)

	if code := serve(handler, http.MethodPost, "/windows", ""); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestAuthMiddleware_ExemptPaths(t *testing.T) {
	handler, _ := newTestHandler(t)

	for _, path := range []string{"/healthz", "/metrics"} {
		if code := serve(handler, http.MethodGet, path, ""); code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, code)
		}
	}
}

func TestAuthMiddleware_RolePermissions(t *testing.T) {
	handler, _ := newTestHandler(t)

	cases := []struct {
		role   Role
		method string
		path   string
		want   int
	}{
		{RoleViewer, http.MethodGet, "/reports/runs.xlsx", http.StatusOK},
		{RoleViewer, http.MethodPost, "/windows", http.StatusForbidden},
		{RoleViewer, http.MethodPost, "/simulator/tick", http.StatusForbidden},
		{RoleScheduler, http.MethodPost, "/windows", http.StatusOK},
		{RoleScheduler, http.MethodPost, "/simulator/tick", http.StatusOK},
		{RoleScheduler, http.MethodGet, "/reports/runs.pdf", http.StatusOK},
		{RoleScheduler, http.MethodDelete, "/anything", http.StatusForbidden},
		{RoleAdmin, http.MethodDelete, "/anything", http.StatusOK},
	}
	for _, tc := range cases {
		token := mustToken(t, testSecret, tc.role)
		if code := serve(handler, tc.method, tc.path, token); code != tc.want {
			t.Fatalf("%s %s %s: expected %d, got %d", tc.role, tc.method, tc.path, tc.want, code)
		}
	}
}

func TestAuthMiddleware_IdentityInContext(t *testing.T) {
	handler, seen := newTestHandler(t)

	if code := serve(handler, http.MethodPost, "/windows", mustToken(t, testSecret, RoleScheduler)); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if seen.Subject != "tick-scheduler" || seen.Role != RoleScheduler {
		t.Fatalf("unexpected identity %+v", *seen)
	}
}

func TestAuthMiddleware_WrongSecret(t *testing.T) {
	handler, _ := newTestHandler(t)
	token := mustToken(t, []byte("other-secret"), RoleAdmin)

	if code := serve(handler, http.MethodPost, "/simulator/tick", token); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	handler, _ := newTestHandler(t)
	claims := Claims{
		Role: string(RoleAdmin),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "tick-scheduler",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseJWT(token, testSecret); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if code := serve(handler, http.MethodPost, "/simulator/tick", token); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestAuthMiddleware_UnknownRoleClaim(t *testing.T) {
	handler, _ := newTestHandler(t)
	claims := Claims{Role: "operator", RegisteredClaims: jwt.RegisteredClaims{Subject: "legacy"}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if code := serve(handler, http.MethodGet, "/reports/runs.xlsx", token); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestParseRole(t *testing.T) {
	if role, err := ParseRole(" Scheduler "); err != nil || role != RoleScheduler {
		t.Fatalf("expected scheduler, got %q %v", role, err)
	}
	if _, err := ParseRole("root"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
	if RoleViewer.Can(PermTriggerWindows) || !RoleAdmin.Can(PermManage) {
		t.Fatalf("unexpected grants")
	}
}

func TestIssueJWTWithoutExpiry(t *testing.T) {
	token, err := IssueJWT(testSecret, "tick-scheduler", RoleScheduler, 0)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := ParseJWT(token, testSecret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.ExpiresAt != nil || claims.Subject != "tick-scheduler" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if _, err := IssueJWT(testSecret, "tick-scheduler", Role("root"), time.Hour); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
	if _, err := IssueJWT(nil, "tick-scheduler", RoleViewer, time.Hour); !errors.Is(err, ErrEmptySecret) {
		t.Fatalf("expected ErrEmptySecret, got %v", err)
	}
}

func TestStatusCode(t *testing.T) {
	if StatusCode(ErrForbidden) != http.StatusForbidden ||
		StatusCode(ErrInvalidToken) != http.StatusUnauthorized ||
		StatusCode(ErrEmptySecret) != http.StatusInternalServerError {
		t.Fatalf("unexpected status mapping")
	}
}
