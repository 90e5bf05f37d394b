package auth

import (
	"errors"
	"net/http"
)

var (
	ErrUnauthorized = errors.New("auth: missing bearer token")
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrTokenExpired = errors.New("auth: token expired")
	ErrUnknownRole  = errors.New("auth: unknown role")
	ErrForbidden    = errors.New("auth: forbidden")
	ErrEmptySecret  = errors.New("auth: empty signing secret")
)

// StatusCode maps an auth error to the HTTP status returned to the caller.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrEmptySecret):
		return http.StatusInternalServerError
	default:
		return http.StatusUnauthorized
	}
}
