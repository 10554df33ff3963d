package backend

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidCredentials is returned by Auth.SignInWithPassword on a rejected login.
	ErrInvalidCredentials = errors.New("backend: invalid login credentials")
	// ErrSessionExpired is returned by Auth.Refresh when the refresh token is no longer accepted.
	ErrSessionExpired = errors.New("backend: session expired")
	// ErrUnknownTable is returned when a table is not provisioned.
	ErrUnknownTable = errors.New("backend: unknown table")
)

// Error is a failure reported by the remote service.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("backend: %d: %s", e.Status, e.Message)
}

// IsUnauthorized reports whether err is a remote 401/403.
func IsUnauthorized(err error) bool {
	var be *Error
	if !errors.As(err, &be) {
		return false
	}
	return be.Status == http.StatusUnauthorized || be.Status == http.StatusForbidden
}
