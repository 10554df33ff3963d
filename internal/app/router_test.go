package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockeasy/stockeasy/internal/auth"
	"github.com/stockeasy/stockeasy/internal/backend/memory"
	"github.com/stockeasy/stockeasy/internal/dashboard"
	"github.com/stockeasy/stockeasy/internal/observability"
	"github.com/stockeasy/stockeasy/internal/product"
	"github.com/stockeasy/stockeasy/internal/shared"
	"github.com/stockeasy/stockeasy/internal/shell"
	"github.com/stockeasy/stockeasy/internal/view"
)

var csrfPattern = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

type browser struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
}

func newTestRouter(t *testing.T) *browser {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second, ActivityLogLimit: 10}

	client := memory.NewClient("products", "sales_products")
	_, err := client.Users().AddUser("ana@stockeasy.test", "secreto123")
	require.NoError(t, err)

	templates, err := view.NewEngine()
	require.NoError(t, err)
	sessionManager := shared.NewSessionManager(redisClient, "stockeasy_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	guard := shared.NewSubmitGuard(redisClient, time.Minute)
	metrics := observability.NewMetrics()
	sessions := auth.NewSessionContext(client.Auth())

	handler := NewRouter(RouterParams{
		Logger:           logger,
		Config:           cfg,
		Templates:        templates,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		Shell:            shell.New(logger, sessions),
		AuthHandler:      auth.NewHandler(logger, sessions, templates, sessionManager, csrfManager, guard, metrics),
		DashboardHandler: dashboard.NewHandler(logger, client, templates, csrfManager, metrics),
		InventoryHandler: product.NewHandler(logger, product.Inventory, client, templates, csrfManager, guard, metrics, cfg.ActivityLogLimit),
		SalesHandler:     product.NewHandler(logger, product.Sales, client, templates, csrfManager, guard, metrics, cfg.ActivityLogLimit),
		Metrics:          metrics,
	})
	return &browser{t: t, handler: handler, cookies: make(map[string]*http.Cookie)}
}

// sibling returns a browser with its own cookie jar on the same router.
func (b *browser) sibling() *browser {
	return &browser{t: b.t, handler: b.handler, cookies: make(map[string]*http.Cookie)}
}

func (b *browser) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	b.handler.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return rec
}

func (b *browser) csrf(page string) string {
	b.t.Helper()
	m := csrfPattern.FindStringSubmatch(page)
	require.Len(b.t, m, 2, "csrf token in page")
	return m[1]
}

func (b *browser) login() {
	b.t.Helper()
	page := b.do(http.MethodGet, "/auth/login", nil)
	require.Equal(b.t, http.StatusOK, page.Code)
	res := b.do(http.MethodPost, "/auth/login", url.Values{
		"email":      {"ana@stockeasy.test"},
		"password":   {"secreto123"},
		"csrf_token": {b.csrf(page.Body.String())},
	})
	require.Equal(b.t, http.StatusSeeOther, res.Code)
	require.Equal(b.t, "/dashboard", res.Header().Get("Location"))
}

func TestHealthz(t *testing.T) {
	b := newTestRouter(t)
	rec := b.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSignedOutVisitorsAreGated(t *testing.T) {
	b := newTestRouter(t)

	for _, path := range []string{"/", "/dashboard", "/inventory", "/sales"} {
		rec := b.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusSeeOther, rec.Code, path)
		assert.Equal(t, auth.LoginPath, rec.Header().Get("Location"), path)
	}

	rec := b.do(http.MethodGet, "/api/inventory", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":401`)
}

func TestPostWithoutCSRFIsForbidden(t *testing.T) {
	b := newTestRouter(t)
	b.do(http.MethodGet, "/auth/login", nil)

	rec := b.do(http.MethodPost, "/auth/login", url.Values{"email": {"ana@stockeasy.test"}, "password": {"secreto123"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLoginNavigateAndLogout(t *testing.T) {
	b := newTestRouter(t)
	b.login()

	rec := b.do(http.MethodGet, "/", nil)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))

	rec = b.do(http.MethodGet, "/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Bienvenido, ana@stockeasy.test")
	assert.Contains(t, body, `href="/dashboard" class="active"`)

	rec = b.do(http.MethodGet, "/inventory", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := rec.Body.String()
	nonce := regexp.MustCompile(`name="form_nonce" value="([^"]+)"`).FindStringSubmatch(page)
	require.Len(t, nonce, 2)

	rec = b.do(http.MethodPost, "/inventory", url.Values{
		"csrf_token": {b.csrf(page)},
		"form_nonce": {nonce[1]},
		"name":       {"Harina"},
		"quantity":   {"4"},
		"price":      {"12.5"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = b.do(http.MethodGet, "/inventory", nil)
	body = rec.Body.String()
	assert.Contains(t, body, "Producto agregado con éxito.")
	assert.Contains(t, body, "Producto agregado: Harina")
	assert.Contains(t, body, "$12.50")

	rec = b.do(http.MethodGet, "/api/inventory", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Harina"`)

	rec = b.do(http.MethodPost, "/auth/logout", url.Values{"csrf_token": {b.csrf(body)}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, auth.LoginPath, rec.Header().Get("Location"))

	rec = b.do(http.MethodGet, "/sales", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, auth.LoginPath, rec.Header().Get("Location"))
}

func TestLoginIgnoresPlantedSessionID(t *testing.T) {
	victim := newTestRouter(t)
	planted := &http.Cookie{Name: "stockeasy_session", Value: "attacker-chosen-id"}
	victim.cookies[planted.Name] = planted
	victim.login()
	assert.NotEqual(t, planted.Value, victim.cookies[planted.Name].Value)

	attacker := victim.sibling()
	attacker.cookies[planted.Name] = planted
	rec := attacker.do(http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, auth.LoginPath, rec.Header().Get("Location"))
}

func TestLoginRenewsIssuedSessionID(t *testing.T) {
	attacker := newTestRouter(t)
	attacker.do(http.MethodGet, "/auth/login", nil)
	issued := *attacker.cookies["stockeasy_session"]
	require.NotEmpty(t, issued.Value)

	victim := attacker.sibling()
	victim.cookies[issued.Name] = &issued
	victim.login()
	assert.NotEqual(t, issued.Value, victim.cookies[issued.Name].Value)

	rec := attacker.do(http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, auth.LoginPath, rec.Header().Get("Location"))

	rec = victim.do(http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	b := newTestRouter(t)
	b.do(http.MethodGet, "/healthz", nil)

	rec := b.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stockeasy_http_requests_total")
}

func TestStaticAssetsAreCached(t *testing.T) {
	b := newTestRouter(t)
	rec := b.do(http.MethodGet, "/static/js/app.js", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), "data-toggle-password")
}

func TestNewBackendMemoryDriver(t *testing.T) {
	cfg := &Config{DataDriver: DriverMemory, DevUserEmail: "dev@stockeasy.local", DevUserPassword: "dev-password"}
	client, closeFn, err := NewBackend(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer closeFn()

	session, err := client.Auth().SignInWithPassword(context.Background(), "dev@stockeasy.local", "dev-password")
	require.NoError(t, err)
	assert.NotEmpty(t, session.AccessToken)

	var rows []product.Product
	require.NoError(t, client.From(product.Sales.Table()).SelectAll(context.Background(), &rows))
	assert.Empty(t, rows)
}
