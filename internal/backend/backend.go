// Package backend defines the contract of the hosted data service the application
// talks to: per-table row CRUD plus password based authentication.
package backend

import (
	"context"
	"time"
)

// Client exposes table access and the auth service of a backend.
type Client interface {
	From(table string) Table
	Auth() Auth
}

// Match selects rows by column equality.
type Match map[string]any

// Table is the row API of a single remote table. Rows are exchanged as JSON-shaped
// values: anything encoding/json can marshal goes in, dest is any pointer it can
// unmarshal a JSON array into.
type Table interface {
	Name() string
	SelectAll(ctx context.Context, dest any) error
	// Insert writes rows and, when dest is non-nil, decodes the echoed rows into it.
	Insert(ctx context.Context, rows any, dest any) error
	// Update applies patch to every row selected by match and reports the number of rows affected.
	Update(ctx context.Context, patch any, match Match) (int, error)
	// Delete removes every row selected by match and reports the number of rows affected.
	Delete(ctx context.Context, match Match) (int, error)
}

// User is the identity returned by the auth service.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is the credential set issued on sign in.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Auth is the password authentication service.
type Auth interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context, accessToken string) error
	// GetUser resolves the token owner. It returns a nil user and nil error when the
	// token is empty or no longer valid.
	GetUser(ctx context.Context, accessToken string) (*User, error)
	// Refresh exchanges a refresh token for a new session. Refresh tokens are single
	// use; a spent or revoked one yields ErrSessionExpired.
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
}

type accessTokenKey struct{}

// WithAccessToken scopes subsequent table calls to the signed in user.
func WithAccessToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, accessTokenKey{}, token)
}

// AccessToken returns the token stored by WithAccessToken.
func AccessToken(ctx context.Context) string {
	token, _ := ctx.Value(accessTokenKey{}).(string)
	return token
}
