package product

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/stockeasy/stockeasy/internal/backend"
	"github.com/stockeasy/stockeasy/internal/observability"
	"github.com/stockeasy/stockeasy/internal/platform/httpx"
	"github.com/stockeasy/stockeasy/internal/shared"
	"github.com/stockeasy/stockeasy/internal/shell"
	"github.com/stockeasy/stockeasy/internal/view"
)

// Handler is the list/edit view of one product table. Mount one per Kind.
type Handler struct {
	logger        *slog.Logger
	kind          Kind
	client        backend.Client
	templates     *view.Engine
	csrf          *shared.CSRFManager
	guard         *shared.SubmitGuard
	metrics       *observability.Metrics
	activityLimit int
}

// NewHandler constructs a Handler for kind. guard and metrics may be nil.
func NewHandler(logger *slog.Logger, kind Kind, client backend.Client, templates *view.Engine, csrf *shared.CSRFManager, guard *shared.SubmitGuard, metrics *observability.Metrics, activityLimit int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:        logger.With(slog.String("table", kind.Table())),
		kind:          kind,
		client:        client,
		templates:     templates,
		csrf:          csrf,
		guard:         guard,
		metrics:       metrics,
		activityLimit: activityLimit,
	}
}

// MountRoutes registers the HTML routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Post("/{id}", h.update)
	r.Get("/{id}/delete", h.confirmDelete)
	r.Post("/{id}/delete", h.remove)
}

// MountAPIRoutes registers the read-only JSON routes.
func (h *Handler) MountAPIRoutes(r chi.Router) {
	r.Get("/", h.apiList)
}

type listPageData struct {
	Kind      Kind
	Products  []Product
	Total     int
	Search    string
	Form      productForm
	EditID    ID
	Errors    map[string]string
	LoadError string
	Activity  []Entry
	FormNonce string
}

type deletePageData struct {
	Kind      Kind
	Product   Product
	FormNonce string
}

type listResponse struct {
	Table    string    `json:"table"`
	Count    int       `json:"count"`
	Total    int       `json:"total"`
	Products []Product `json:"products"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	store, sess := h.newStore(r)
	h.renderList(w, r, store, sess, http.StatusOK, listPageData{})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	store, sess := h.newStore(r)
	form, draft, errs := parseDraft(r)
	if len(errs) > 0 {
		h.renderList(w, r, store, sess, http.StatusBadRequest, listPageData{Form: form, Errors: errs})
		return
	}
	if !h.claim(w, r, sess) {
		return
	}

	created, err := store.Create(r.Context(), draft)
	h.metrics.ObserveProductMutation(h.kind.Table(), "create", errWithout(err, shared.ErrFetch))
	h.saveActivity(sess, store.Activity())
	switch {
	case err == nil:
		h.logger.Info("product created", slog.String("id", created.ID.String()))
		h.redirect(w, r, sess, "success", "Producto agregado con éxito.")
	case errors.Is(err, shared.ErrFetch):
		h.logger.Error("reload after create", slog.String("id", created.ID.String()), slog.Any("error", err))
		h.redirect(w, r, sess, "warning", "Producto agregado con éxito. "+shared.UserSafeMessage(err))
	default:
		h.logger.Error("create product", slog.Any("error", err))
		h.redirect(w, r, sess, "danger", shared.UserSafeMessage(err))
	}
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	id := ID(chi.URLParam(r, "id"))
	store, sess := h.newStore(r)
	form, draft, errs := parseDraft(r)
	if len(errs) > 0 {
		h.renderList(w, r, store, sess, http.StatusBadRequest, listPageData{Form: form, EditID: id, Errors: errs})
		return
	}
	if !h.claim(w, r, sess) {
		return
	}

	err := store.Update(r.Context(), id, draft)
	h.metrics.ObserveProductMutation(h.kind.Table(), "update", errWithout(err, shared.ErrFetch))
	h.saveActivity(sess, store.Activity())
	switch {
	case err == nil:
		h.logger.Info("product updated", slog.String("id", id.String()))
		h.redirect(w, r, sess, "success", "Producto editado con éxito.")
	case errors.Is(err, shared.ErrFetch):
		h.logger.Error("reload after update", slog.String("id", id.String()), slog.Any("error", err))
		h.redirect(w, r, sess, "warning", "Producto editado con éxito. "+shared.UserSafeMessage(err))
	default:
		h.logger.Error("update product", slog.String("id", id.String()), slog.Any("error", err))
		h.redirect(w, r, sess, "danger", shared.UserSafeMessage(err))
	}
}

func (h *Handler) confirmDelete(w http.ResponseWriter, r *http.Request) {
	id := ID(chi.URLParam(r, "id"))
	store, sess := h.newStore(r)
	_, err := store.LoadAll(r.Context())
	h.metrics.ObserveProductLoad(h.kind.Table(), err)
	if err != nil {
		h.logger.Error("load products", slog.Any("error", err))
		h.redirect(w, r, sess, "danger", shared.UserSafeMessage(err))
		return
	}
	p, ok := store.Find(id)
	if !ok {
		h.redirect(w, r, sess, "danger", shared.UserSafeMessage(shared.ErrNotFound))
		return
	}
	data := deletePageData{Kind: h.kind, Product: p, FormNonce: shared.NewFormNonce()}
	h.render(w, r, sess, http.StatusOK, "pages/product_delete.html", data)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	id := ID(chi.URLParam(r, "id"))
	store, sess := h.newStore(r)
	if r.PostFormValue("confirm") != "yes" {
		h.redirect(w, r, sess, "info", "Eliminación cancelada.")
		return
	}
	if !h.claim(w, r, sess) {
		return
	}

	err := store.Remove(r.Context(), id)
	h.metrics.ObserveProductMutation(h.kind.Table(), "delete", errWithout(err, shared.ErrFetch))
	h.saveActivity(sess, store.Activity())
	switch {
	case err == nil:
		h.logger.Info("product deleted", slog.String("id", id.String()))
		h.redirect(w, r, sess, "success", "Producto eliminado con éxito.")
	case errors.Is(err, shared.ErrFetch):
		h.logger.Error("reload after delete", slog.String("id", id.String()), slog.Any("error", err))
		h.redirect(w, r, sess, "warning", "Producto eliminado con éxito. "+shared.UserSafeMessage(err))
	default:
		h.logger.Error("delete product", slog.String("id", id.String()), slog.Any("error", err))
		h.redirect(w, r, sess, "danger", shared.UserSafeMessage(err))
	}
}

func (h *Handler) apiList(w http.ResponseWriter, r *http.Request) {
	store := NewStore(h.kind, h.client.From(h.kind.Table()), nil)
	products, err := store.LoadAll(r.Context())
	h.metrics.ObserveProductLoad(h.kind.Table(), err)
	if err != nil {
		h.logger.Error("load products", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	filtered := Filter(products, strings.TrimSpace(r.URL.Query().Get("q")))
	httpx.JSON(w, http.StatusOK, listResponse{
		Table:    h.kind.Table(),
		Count:    len(filtered),
		Total:    len(products),
		Products: filtered,
	})
}

func (h *Handler) renderList(w http.ResponseWriter, r *http.Request, store *Store, sess *shared.Session, status int, data listPageData) {
	data.Kind = h.kind
	data.Search = strings.TrimSpace(r.URL.Query().Get("q"))
	data.FormNonce = shared.NewFormNonce()

	products, err := store.LoadAll(r.Context())
	h.metrics.ObserveProductLoad(h.kind.Table(), err)
	if err != nil {
		h.logger.Error("load products", slog.Any("error", err))
		data.LoadError = shared.UserSafeMessage(err)
	}
	if data.EditID == "" {
		if id := ID(r.URL.Query().Get("edit")); id != "" {
			if p, ok := store.Find(id); ok {
				data.EditID = id
				data.Form = formOf(p)
			}
		}
	}
	data.Total = len(products)
	data.Products = Filter(products, data.Search)
	data.Activity = store.Activity().Entries()
	slices.Reverse(data.Activity)
	h.render(w, r, sess, status, "pages/products.html", data)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, sess *shared.Session, status int, name string, data any) {
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := shell.Frame(r, h.kind.Page(), view.TemplateData{
		Title:     h.kind.Title(),
		CSRFToken: csrfToken,
		Flash:     flash,
		Data:      data,
	})
	if err := h.templates.RenderStatus(w, status, name, viewData); err != nil {
		h.logger.Error("render products", slog.String("template", name), slog.Any("error", err))
	}
}

// claim consumes the form nonce. On a replay it redirects and returns false.
func (h *Handler) claim(w http.ResponseWriter, r *http.Request, sess *shared.Session) bool {
	nonce := r.PostFormValue(shared.FormNonceField)
	if nonce == "" || sess == nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return false
	}
	err := h.guard.Claim(r.Context(), "form:"+sess.ID+":"+nonce)
	if err == nil {
		return true
	}
	if errors.Is(err, shared.ErrDuplicateSubmit) {
		h.logger.Warn("duplicate submission", slog.String("path", r.URL.Path))
	} else {
		h.logger.Error("claim form nonce", slog.Any("error", err))
	}
	h.redirect(w, r, sess, "warning", shared.UserSafeMessage(shared.ErrDuplicateSubmit))
	return false
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, sess *shared.Session, kind, message string) {
	if sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, h.kind.Path(), http.StatusSeeOther)
}

func (h *Handler) newStore(r *http.Request) (*Store, *shared.Session) {
	sess := shared.SessionFromContext(r.Context())
	return NewStore(h.kind, h.client.From(h.kind.Table()), h.loadActivity(sess)), sess
}

func (h *Handler) activityKey() string {
	return "activity:" + h.kind.String()
}

func (h *Handler) loadActivity(sess *shared.Session) *ActivityLog {
	var entries []Entry
	if sess != nil {
		if _, err := sess.GetObject(h.activityKey(), &entries); err != nil {
			h.logger.Warn("decode activity log", slog.Any("error", err))
		}
	}
	return NewActivityLog(h.activityLimit, entries...)
}

func (h *Handler) saveActivity(sess *shared.Session, log *ActivityLog) {
	if sess == nil || log == nil {
		return
	}
	if err := sess.SetObject(h.activityKey(), log.Entries()); err != nil {
		h.logger.Warn("store activity log", slog.Any("error", err))
	}
}

// errWithout hides a reload failure from the mutation outcome: the write itself
// went through.
func errWithout(err, reload error) error {
	if errors.Is(err, reload) {
		return nil
	}
	return err
}
