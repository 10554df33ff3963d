package shell

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/stockeasy/stockeasy/internal/auth"
	"github.com/stockeasy/stockeasy/internal/backend"
	"github.com/stockeasy/stockeasy/internal/platform/httpx"
	"github.com/stockeasy/stockeasy/internal/shared"
	"github.com/stockeasy/stockeasy/internal/view"
)

type userContextKey struct{}

// UserFromContext returns the user attached by RequireLogin.
func UserFromContext(ctx context.Context) *backend.User {
	user, _ := ctx.Value(userContextKey{}).(*backend.User)
	return user
}

// Shell gates pages on the session context.
type Shell struct {
	logger   *slog.Logger
	sessions *auth.SessionContext
}

// New constructs a Shell.
func New(logger *slog.Logger, sessions *auth.SessionContext) *Shell {
	if logger == nil {
		logger = slog.Default()
	}
	return &Shell{logger: logger, sessions: sessions}
}

// RequireLogin lets signed-in requests through with the user and access token in
// the context. Anyone else is redirected to the login page.
func (s *Shell) RequireLogin(next http.Handler) http.Handler {
	return s.gate(next, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
	})
}

// RequireLoginAPI is RequireLogin for JSON endpoints: it answers 401 instead of
// redirecting.
func (s *Shell) RequireLoginAPI(next http.Handler) http.Handler {
	return s.gate(next, func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in required")
	})
}

// Home sends visitors to the dashboard or to the login page.
func (s *Shell) Home(w http.ResponseWriter, r *http.Request) {
	target := auth.LoginPath
	if _, state := s.current(r); state == auth.LoggedIn {
		target = PageDashboard.Path()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Shell) gate(next http.Handler, deny http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, state := s.current(r)
		if state != auth.LoggedIn {
			deny(w, r)
			return
		}
		sess := shared.SessionFromContext(r.Context())
		ctx := context.WithValue(r.Context(), userContextKey{}, user)
		ctx = backend.WithAccessToken(ctx, sess.AccessToken())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Shell) current(r *http.Request) (*backend.User, auth.State) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return nil, auth.LoggedOut
	}
	user, state, err := s.sessions.Current(r.Context(), sess)
	if err != nil {
		s.logger.Warn("resolve current user", slog.Any("error", err))
	}
	return user, state
}

// Frame fills the navigation fields of data for page.
func Frame(r *http.Request, page Page, data view.TemplateData) view.TemplateData {
	data.Page = string(page)
	data.CurrentPath = r.URL.Path
	if data.Title == "" {
		data.Title = page.Title()
	}
	if user := UserFromContext(r.Context()); user != nil {
		data.UserEmail = user.Email
	}
	return data
}
