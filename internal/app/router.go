package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/stockeasy/stockeasy/internal/auth"
	"github.com/stockeasy/stockeasy/internal/dashboard"
	"github.com/stockeasy/stockeasy/internal/observability"
	"github.com/stockeasy/stockeasy/internal/product"
	"github.com/stockeasy/stockeasy/internal/shared"
	"github.com/stockeasy/stockeasy/internal/shell"
	"github.com/stockeasy/stockeasy/internal/view"
	"github.com/stockeasy/stockeasy/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Templates        *view.Engine
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	Shell            *shell.Shell
	AuthHandler      *auth.Handler
	DashboardHandler *dashboard.Handler
	InventoryHandler *product.Handler
	SalesHandler     *product.Handler
	Metrics          *observability.Metrics
	// RequestsPerMinute overrides the per-IP rate limit.
	RequestsPerMinute int
}

// NewRouter constructs the chi.Router with StockEasy defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:            params.Logger,
		Config:            params.Config,
		SessionManager:    params.SessionManager,
		CSRFManager:       params.CSRFManager,
		Metrics:           params.Metrics,
		RequestsPerMinute: params.RequestsPerMinute,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/", params.Shell.Home)
	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(params.Shell.RequireLogin)
		r.Route(shell.PageDashboard.Path(), params.DashboardHandler.MountRoutes)
		r.Route(shell.PageInventory.Path(), params.InventoryHandler.MountRoutes)
		r.Route(shell.PageSales.Path(), params.SalesHandler.MountRoutes)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(params.Shell.RequireLoginAPI)
		r.Route(shell.PageDashboard.Path(), params.DashboardHandler.MountAPIRoutes)
		r.Route(shell.PageInventory.Path(), params.InventoryHandler.MountAPIRoutes)
		r.Route(shell.PageSales.Path(), params.SalesHandler.MountAPIRoutes)
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler lets browsers cache embedded assets for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
