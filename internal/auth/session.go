package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/stockeasy/stockeasy/internal/backend"
	"github.com/stockeasy/stockeasy/internal/shared"
)

const (
	emailSessionKey   = "user_email"
	refreshSessionKey = "refresh_token"
	expiresSessionKey = "token_expires_at"

	// refreshMargin renews tokens this long before they lapse.
	refreshMargin = time.Minute
)

// SessionEvent describes a sign in or sign out.
type SessionEvent struct {
	UserID string
	Email  string
	State  State
}

// Listener is notified after every session change.
type Listener func(ctx context.Context, ev SessionEvent)

// SessionContext is the single authority on whether a browser session is signed in.
// One instance serves the whole process; per-browser data lives in *shared.Session.
type SessionContext struct {
	auth      backend.Auth
	now       func() time.Time
	refreshes singleflight.Group

	mu        sync.RWMutex
	listeners []Listener
}

// NewSessionContext binds the context to the backend auth service.
func NewSessionContext(auth backend.Auth) *SessionContext {
	return &SessionContext{auth: auth, now: time.Now}
}

// OnSessionChange registers l. Listeners run synchronously in registration order.
func (c *SessionContext) OnSessionChange(l Listener) {
	if l == nil {
		return
	}
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

// Current resolves the signed-in user of sess. An access token that has lapsed, or
// is about to, is exchanged for a new one first. A session the backend no longer
// accepts is dropped and reported as LoggedOut.
func (c *SessionContext) Current(ctx context.Context, sess *shared.Session) (*backend.User, State, error) {
	token := sess.AccessToken()
	if token == "" {
		return nil, LoggedOut, nil
	}
	refreshed := false
	if c.expiring(sess) {
		next, err := c.refresh(ctx, sess)
		if err != nil {
			return nil, LoggedOut, err
		}
		if next == "" {
			return c.drop(ctx, sess)
		}
		token, refreshed = next, true
	}
	user, err := c.auth.GetUser(ctx, token)
	if err != nil {
		return nil, LoggedOut, fmt.Errorf("auth: current user: %w", err)
	}
	if user == nil && !refreshed {
		next, err := c.refresh(ctx, sess)
		if err != nil {
			return nil, LoggedOut, err
		}
		if next != "" {
			if user, err = c.auth.GetUser(ctx, next); err != nil {
				return nil, LoggedOut, fmt.Errorf("auth: current user: %w", err)
			}
		}
	}
	if user == nil {
		return c.drop(ctx, sess)
	}
	return user, LoggedIn, nil
}

// refresh exchanges the stored refresh token and binds the result to sess. It
// returns an empty token when sess holds no refresh token or the backend refused it.
// Concurrent requests of one browser share a single exchange.
func (c *SessionContext) refresh(ctx context.Context, sess *shared.Session) (string, error) {
	refreshToken := sess.Get(refreshSessionKey)
	if refreshToken == "" {
		return "", nil
	}
	v, err, _ := c.refreshes.Do(refreshToken, func() (any, error) {
		return c.auth.Refresh(ctx, refreshToken)
	})
	if errors.Is(err, backend.ErrSessionExpired) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("auth: refresh: %w", err)
	}
	issued := v.(*backend.Session)
	bind(sess, issued)
	return issued.AccessToken, nil
}

func (c *SessionContext) expiring(sess *shared.Session) bool {
	unix, err := strconv.ParseInt(sess.Get(expiresSessionKey), 10, 64)
	if err != nil {
		return false
	}
	return !c.now().Add(refreshMargin).Before(time.Unix(unix, 0))
}

func (c *SessionContext) drop(ctx context.Context, sess *shared.Session) (*backend.User, State, error) {
	ev := SessionEvent{UserID: sess.User(), Email: sess.Get(emailSessionKey), State: LoggedOut}
	forget(sess)
	c.notify(ctx, ev)
	return nil, LoggedOut, nil
}

// SignIn authenticates with the backend and binds the issued token to sess.
// Rejected credentials yield an error wrapping shared.ErrInvalidCredentials.
func (c *SessionContext) SignIn(ctx context.Context, sess *shared.Session, email, password string) (*backend.User, error) {
	if sess == nil {
		return nil, errors.New("auth: session missing")
	}
	issued, err := c.auth.SignInWithPassword(ctx, strings.TrimSpace(email), password)
	if err != nil {
		if errors.Is(err, backend.ErrInvalidCredentials) {
			return nil, fmt.Errorf("%w: %w", shared.ErrInvalidCredentials, err)
		}
		return nil, fmt.Errorf("auth: sign in: %w", err)
	}
	user := issued.User
	bind(sess, issued)
	c.notify(ctx, SessionEvent{UserID: user.ID, Email: user.Email, State: LoggedIn})
	return &user, nil
}

// SignOut revokes the token and clears sess. The session is cleared even when the
// backend call fails; that error is returned for logging.
func (c *SessionContext) SignOut(ctx context.Context, sess *shared.Session) error {
	if sess == nil {
		return nil
	}
	token := sess.AccessToken()
	ev := SessionEvent{UserID: sess.User(), Email: sess.Get(emailSessionKey), State: LoggedOut}
	var err error
	if token != "" {
		err = c.auth.SignOut(ctx, token)
	}
	sess.Clear()
	c.notify(ctx, ev)
	if err != nil {
		return fmt.Errorf("auth: sign out: %w", err)
	}
	return nil
}

func (c *SessionContext) notify(ctx context.Context, ev SessionEvent) {
	c.mu.RLock()
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.RUnlock()
	for _, l := range listeners {
		l(ctx, ev)
	}
}

func bind(sess *shared.Session, issued *backend.Session) {
	sess.SetAccessToken(issued.AccessToken)
	sess.SetUser(issued.User.ID)
	sess.Set(emailSessionKey, issued.User.Email)
	if issued.RefreshToken != "" {
		sess.Set(refreshSessionKey, issued.RefreshToken)
	} else {
		sess.Delete(refreshSessionKey)
	}
	if !issued.ExpiresAt.IsZero() {
		sess.Set(expiresSessionKey, strconv.FormatInt(issued.ExpiresAt.Unix(), 10))
	} else {
		sess.Delete(expiresSessionKey)
	}
}

func forget(sess *shared.Session) {
	sess.SetAccessToken("")
	sess.Delete(emailSessionKey)
	sess.Delete(refreshSessionKey)
	sess.Delete(expiresSessionKey)
	sess.SetUser("")
}
