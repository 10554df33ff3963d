package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go/types"

	"github.com/stockeasy/stockeasy/internal/backend"
)

// Auth implements backend.Auth on the GoTrue endpoints.
type Auth struct {
	client *Client
}

// SignInWithPassword exchanges credentials for a session.
func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error) {
	ctx, cancel := a.client.withTimeout(ctx)
	defer cancel()
	resp, err := a.client.users(ctx, "").SignInWithEmailPassword(email, password)
	if err != nil {
		if errors.Is(err, types.ErrInvalidTokenRequest) || hasStatus(err, http.StatusBadRequest, http.StatusUnauthorized) {
			return nil, backend.ErrInvalidCredentials
		}
		return nil, unwrap(err)
	}
	return toSession(resp.Session), nil
}

// Refresh trades refreshToken for a new session. GoTrue rotates refresh tokens, so
// the one passed in is spent on success.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (*backend.Session, error) {
	if refreshToken == "" {
		return nil, backend.ErrSessionExpired
	}
	ctx, cancel := a.client.withTimeout(ctx)
	defer cancel()
	resp, err := a.client.users(ctx, "").RefreshToken(refreshToken)
	if err != nil {
		if hasStatus(err, http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden) {
			return nil, backend.ErrSessionExpired
		}
		return nil, unwrap(err)
	}
	return toSession(resp.Session), nil
}

// SignOut revokes the session behind accessToken. An already invalid token counts as signed out.
func (a *Auth) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	ctx, cancel := a.client.withTimeout(ctx)
	defer cancel()
	if err := a.client.users(ctx, accessToken).Logout(); err != nil && !backend.IsUnauthorized(unwrap(err)) {
		return unwrap(err)
	}
	return nil
}

// GetUser resolves the owner of accessToken.
func (a *Auth) GetUser(ctx context.Context, accessToken string) (*backend.User, error) {
	if accessToken == "" {
		return nil, nil
	}
	ctx, cancel := a.client.withTimeout(ctx)
	defer cancel()
	resp, err := a.client.users(ctx, accessToken).GetUser()
	if err != nil {
		if backend.IsUnauthorized(unwrap(err)) {
			return nil, nil
		}
		return nil, unwrap(err)
	}
	if resp.ID == uuid.Nil {
		return nil, nil
	}
	return &backend.User{ID: resp.ID.String(), Email: resp.Email}, nil
}

func toSession(s types.Session) *backend.Session {
	expiresAt := time.Unix(s.ExpiresAt, 0)
	if s.ExpiresAt == 0 {
		expiresAt = time.Now().Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	return &backend.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    expiresAt,
		User:         backend.User{ID: s.User.ID.String(), Email: s.User.Email},
	}
}

func hasStatus(err error, statuses ...int) bool {
	var be *backend.Error
	if !errors.As(unwrap(err), &be) {
		return false
	}
	for _, status := range statuses {
		if be.Status == status {
			return true
		}
	}
	return false
}

var _ backend.Auth = (*Auth)(nil)
