package dashboard

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stockeasy/stockeasy/internal/backend"
	"github.com/stockeasy/stockeasy/internal/observability"
	"github.com/stockeasy/stockeasy/internal/platform/httpx"
	"github.com/stockeasy/stockeasy/internal/product"
	"github.com/stockeasy/stockeasy/internal/shared"
	"github.com/stockeasy/stockeasy/internal/shell"
	"github.com/stockeasy/stockeasy/internal/view"
)

// Handler serves the dashboard page and its JSON twin.
type Handler struct {
	logger    *slog.Logger
	client    backend.Client
	templates *view.Engine
	csrf      *shared.CSRFManager
	metrics   *observability.Metrics
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, client backend.Client, templates *view.Engine, csrf *shared.CSRFManager, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, client: client, templates: templates, csrf: csrf, metrics: metrics}
}

// MountRoutes registers the HTML route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.show)
}

// MountAPIRoutes registers the JSON route.
func (h *Handler) MountAPIRoutes(r chi.Router) {
	r.Get("/", h.api)
}

type section struct {
	Kind    product.Kind
	Summary Summary
	Error   string
}

type apiSection struct {
	Table string `json:"table"`
	Summary
	Error string `json:"error,omitempty"`
}

type apiResponse struct {
	Inventory apiSection `json:"inventory"`
	Sales     apiSection `json:"sales"`
}

func (h *Handler) build(r *http.Request) Report {
	report := Build(r.Context(), h.client)
	h.metrics.ObserveProductLoad(product.Inventory.Table(), report.InventoryErr)
	h.metrics.ObserveProductLoad(product.Sales.Table(), report.SalesErr)
	if report.InventoryErr != nil {
		h.logger.Error("load dashboard", slog.String("table", product.Inventory.Table()), slog.Any("error", report.InventoryErr))
	}
	if report.SalesErr != nil {
		h.logger.Error("load dashboard", slog.String("table", product.Sales.Table()), slog.Any("error", report.SalesErr))
	}
	return report
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	report := h.build(r)
	sections := []section{
		{Kind: product.Inventory, Summary: report.Inventory, Error: shared.UserSafeMessage(report.InventoryErr)},
		{Kind: product.Sales, Summary: report.Sales, Error: shared.UserSafeMessage(report.SalesErr)},
	}

	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	data := shell.Frame(r, shell.PageDashboard, view.TemplateData{
		CSRFToken: csrfToken,
		Flash:     flash,
		Data:      sections,
	})
	if err := h.templates.Render(w, "pages/dashboard.html", data); err != nil {
		h.logger.Error("render dashboard", slog.Any("error", err))
	}
}

func (h *Handler) api(w http.ResponseWriter, r *http.Request) {
	report := h.build(r)
	if report.InventoryErr != nil && report.SalesErr != nil {
		httpx.RespondError(w, report.Err())
		return
	}
	httpx.JSON(w, http.StatusOK, apiResponse{
		Inventory: apiSection{Table: product.Inventory.Table(), Summary: report.Inventory, Error: shared.UserSafeMessage(report.InventoryErr)},
		Sales:     apiSection{Table: product.Sales.Table(), Summary: report.Sales, Error: shared.UserSafeMessage(report.SalesErr)},
	})
}
