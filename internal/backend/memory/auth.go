package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/stockeasy/stockeasy/internal/backend"
)

// TokenTTL is the lifetime of an issued access token.
const TokenTTL = time.Hour

type account struct {
	id   string
	hash []byte
}

type token struct {
	userID    string
	email     string
	refresh   string
	expiresAt time.Time
}

type grant struct {
	userID string
	email  string
	access string
}

// Auth keeps accounts and issued tokens in memory. Refresh tokens rotate on use.
type Auth struct {
	mu       sync.Mutex
	accounts map[string]account
	tokens   map[string]token
	grants   map[string]grant
	now      func() time.Time
}

// NewAuth constructs an empty Auth.
func NewAuth() *Auth {
	return &Auth{
		accounts: make(map[string]account),
		tokens:   make(map[string]token),
		grants:   make(map[string]grant),
		now:      time.Now,
	}
}

// SetClock replaces the time source used for token expiry.
func (a *Auth) SetClock(now func() time.Time) {
	a.mu.Lock()
	a.now = now
	a.mu.Unlock()
}

// AddUser registers an account and returns its id.
func (a *Auth) AddUser(email, password string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", errors.New("memory: email and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	a.mu.Lock()
	a.accounts[email] = account{id: id, hash: hash}
	a.mu.Unlock()
	return id, nil
}

// SignInWithPassword checks the bcrypt hash and issues a token pair.
func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	email = normalizeEmail(email)
	a.mu.Lock()
	acct, ok := a.accounts[email]
	a.mu.Unlock()
	if !ok {
		return nil, backend.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(password)); err != nil {
		return nil, backend.ErrInvalidCredentials
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.issueLocked(acct.id, email), nil
}

// Refresh spends refreshToken and issues a new token pair. The access token issued
// alongside the spent refresh token is revoked.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (*backend.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	g, ok := a.grants[refreshToken]
	if !ok {
		return nil, backend.ErrSessionExpired
	}
	delete(a.grants, refreshToken)
	delete(a.tokens, g.access)
	return a.issueLocked(g.userID, g.email), nil
}

// SignOut forgets the access token and the refresh token issued with it.
func (a *Auth) SignOut(ctx context.Context, accessToken string) error {
	a.mu.Lock()
	if tok, ok := a.tokens[accessToken]; ok {
		delete(a.grants, tok.refresh)
	}
	delete(a.tokens, accessToken)
	a.mu.Unlock()
	return nil
}

// GetUser resolves a live token.
func (a *Auth) GetUser(ctx context.Context, accessToken string) (*backend.User, error) {
	if accessToken == "" {
		return nil, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	tok, ok := a.tokens[accessToken]
	if !ok {
		return nil, nil
	}
	if a.now().After(tok.expiresAt) {
		delete(a.tokens, accessToken)
		return nil, nil
	}
	return &backend.User{ID: tok.userID, Email: tok.email}, nil
}

func (a *Auth) issueLocked(userID, email string) *backend.Session {
	access := uuid.NewString()
	refresh := uuid.NewString()
	expiresAt := a.now().Add(TokenTTL)
	a.tokens[access] = token{userID: userID, email: email, refresh: refresh, expiresAt: expiresAt}
	a.grants[refresh] = grant{userID: userID, email: email, access: access}
	return &backend.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		User:         backend.User{ID: userID, Email: email},
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var _ backend.Auth = (*Auth)(nil)
