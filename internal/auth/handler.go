package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stockeasy/stockeasy/internal/backend"
	"github.com/stockeasy/stockeasy/internal/observability"
	"github.com/stockeasy/stockeasy/internal/shared"
	"github.com/stockeasy/stockeasy/internal/view"
)

// LoginFailedMessage is shown for any failed sign in.
const LoginFailedMessage = "Error al iniciar sesión. Verifica tus credenciales."

const (
	// LoginPath is where signed-out visitors are sent.
	LoginPath = "/auth/login"
	// HomePath is where a successful sign in lands.
	HomePath = "/dashboard"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	sessions       *SessionContext
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	guard          *shared.SubmitGuard
	metrics        *observability.Metrics
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance. guard and metrics may be nil.
func NewHandler(logger *slog.Logger, sessions *SessionContext, templates *view.Engine, sessionManager *shared.SessionManager, csrf *shared.CSRFManager, guard *shared.SubmitGuard, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		sessions:       sessions,
		templates:      templates,
		sessionManager: sessionManager,
		csrfManager:    csrf,
		guard:          guard,
		metrics:        metrics,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
	Gate   Gate
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	_, state, err := h.sessions.Current(r.Context(), sess)
	if err != nil {
		h.logger.Warn("check current user", slog.Any("error", err))
	}
	if state == LoggedIn {
		http.Redirect(w, r, HomePath, http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, loginPageData{Gate: NewGate(false)})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	sess := shared.SessionFromContext(ctx)
	if sess == nil {
		h.logger.Error("session missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	form := loginForm{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	gate := NewGate(false)
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fieldErr := range verrs {
				errs[fieldErr.Field()] = fieldMessage(fieldErr)
			}
		}
	}
	if len(errs) > 0 {
		h.render(w, r, http.StatusBadRequest, loginPageData{Form: loginForm{Email: form.Email}, Errors: errs, Gate: gate})
		return
	}

	inflight := "login:" + sess.ID
	if err := h.guard.Claim(ctx, inflight); err != nil {
		if !errors.Is(err, shared.ErrDuplicateSubmit) {
			h.logger.Error("claim login guard", slog.Any("error", err))
		}
		errs["general"] = shared.UserSafeMessage(shared.ErrDuplicateSubmit)
		h.render(w, r, http.StatusConflict, loginPageData{Form: loginForm{Email: form.Email}, Errors: errs, Gate: gate})
		return
	}
	defer func() {
		if err := h.guard.Release(ctx, inflight); err != nil {
			h.logger.Warn("release login guard", slog.Any("error", err))
		}
	}()

	var user *backend.User
	err := gate.Attempt(LoginFailedMessage, func() error {
		var err error
		user, err = h.sessions.SignIn(ctx, sess, form.Email, form.Password)
		return err
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrIllegalTransition):
		h.logger.Error("login gate refused submission", slog.String("state", gate.State().String()), slog.Any("error", err))
		errs["general"] = shared.UserSafeMessage(shared.ErrDuplicateSubmit)
		h.render(w, r, http.StatusConflict, loginPageData{Form: loginForm{Email: form.Email}, Errors: errs, Gate: gate})
		return
	case errors.Is(err, shared.ErrInvalidCredentials):
		h.metrics.ObserveAuthAttempt("invalid")
		h.logger.Info("sign in rejected", slog.String("email", form.Email))
		h.render(w, r, http.StatusBadRequest, loginPageData{Form: loginForm{Email: form.Email}, Errors: errs, Gate: gate})
		return
	default:
		h.metrics.ObserveAuthAttempt("error")
		h.logger.Error("sign in", slog.String("email", form.Email), slog.Any("error", err))
		h.render(w, r, http.StatusBadRequest, loginPageData{Form: loginForm{Email: form.Email}, Errors: errs, Gate: gate})
		return
	}

	h.metrics.ObserveAuthAttempt("success")
	// A signed-in session never keeps the id it had before sign in.
	h.sessionManager.Renew(sess)
	h.csrfManager.Rotate(sess)
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Bienvenido, " + user.Email})
	http.Redirect(w, r, HomePath, http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.sessions.SignOut(r.Context(), sess); err != nil {
			h.logger.Warn("sign out", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, data loginPageData) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Iniciar sesión",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if err := h.templates.RenderStatus(w, status, "pages/login.html", viewData); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Este campo es obligatorio."
	case "email":
		return "Ingresa un correo electrónico válido."
	default:
		return "Valor inválido."
	}
}

// ShowLoginForTest exposes the GET handler for tests.
func (h *Handler) ShowLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.showLogin(w, r)
}

// HandleLoginForTest exposes the POST handler for tests.
func (h *Handler) HandleLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r)
}

// HandleLogoutForTest exposes the logout handler for tests.
func (h *Handler) HandleLogoutForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogout(w, r)
}
