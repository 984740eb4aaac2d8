package order

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/offset-orders/internal/common"
	"github.com/noah-isme/offset-orders/internal/pricing"
)

// Handler exposes the purchase order endpoints.
type Handler struct {
	repo   *Repository
	cache  *SummaryCache
	logger zerolog.Logger
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Repository *Repository
	Cache      *SummaryCache
	Logger     zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{repo: cfg.Repository, cache: cfg.Cache, logger: cfg.Logger}
}

// Routes mounts the order endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/books/{bookID}/orders", h.List)
	r.Post("/books/{bookID}/orders", h.Create)
	r.Get("/books/{bookID}/orders/summary", h.Summary)
	r.Get("/orders/{orderID}", h.Get)
	r.Delete("/orders/{orderID}", h.Delete)
	r.Patch("/orders/{orderID}/invoice", h.SetInvoice)
	r.Patch("/orders/{orderID}/override", h.SetOverride)
	r.Post("/quotes", h.Quote)
}

type createRequest struct {
	Qty  int64  `json:"qty" validate:"gte=1"`
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type invoiceRequest struct {
	Issued bool `json:"issued"`
}

type overrideRequest struct {
	TotalOverride common.LooseInt `json:"total_override"`
	Memo          *string         `json:"memo"`
}

type quoteResponse struct {
	pricing.Totals
	Mode      pricing.Mode         `json:"pricing_mode"`
	LineItems []pricing.ActiveLine `json:"line_items"`
}

// List handles GET /api/v1/books/{bookID}/orders with an optional ?qty= filter.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(w, r, "bookID")
	if !ok {
		return
	}
	orders, err := h.repo.List(r.Context(), bookID, qtyFilter(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, orders)
}

// Create handles POST /api/v1/books/{bookID}/orders.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(w, r, "bookID")
	if !ok {
		return
	}
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		h.writeError(w, err)
		return
	}
	in.BookID = common.Int(bookID)
	in.Date = strings.TrimSpace(in.Date)
	if err := common.Validate(createRequest{Qty: in.Qty.Value, Date: in.Date}); err != nil {
		h.writeError(w, err)
		return
	}
	id, err := h.repo.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	created, err := h.repo.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, created)
}

// Summary handles GET /api/v1/books/{bookID}/orders/summary.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(w, r, "bookID")
	if !ok {
		return
	}
	qty := qtyFilter(r)
	if cached, ok := h.cache.Get(r.Context(), bookID, qty); ok {
		common.Data(w, http.StatusOK, cached)
		return
	}
	orders, err := h.repo.List(r.Context(), bookID, qty)
	if err != nil {
		h.writeError(w, err)
		return
	}
	summary := Summarize(orders)
	summary.BookID = bookID
	h.cache.Set(r.Context(), bookID, qty, summary)
	common.Data(w, http.StatusOK, summary)
}

// Get handles GET /api/v1/orders/{orderID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	o, err := h.repo.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, o)
}

// Delete handles DELETE /api/v1/orders/{orderID}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	if err := h.repo.Delete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetInvoice handles PATCH /api/v1/orders/{orderID}/invoice.
func (h *Handler) SetInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	var req invoiceRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.repo.SetInvoiceStatus(r.Context(), id, req.Issued); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetOverride handles PATCH /api/v1/orders/{orderID}/override.
func (h *Handler) SetOverride(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	var req overrideRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.repo.SetOverrideAndMemo(r.Context(), id, req.TotalOverride.Ptr(), req.Memo); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Quote handles POST /api/v1/quotes. Nothing is stored.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		h.writeError(w, err)
		return
	}
	totals, mode := in.Quote()
	common.Data(w, http.StatusOK, quoteResponse{
		Totals:    totals,
		Mode:      mode,
		LineItems: in.Lines.Clamped().Active(),
	})
}

// qtyFilter reads ?qty=. Anything but a plain positive integer disables the filter.
func qtyFilter(r *http.Request) int64 {
	raw := strings.TrimSpace(r.URL.Query().Get("qty"))
	if raw == "" || strings.ContainsFunc(raw, func(c rune) bool { return c < '0' || c > '9' }) {
		return 0
	}
	return int64(common.AtoiDefault(raw, 0))
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id := common.ParseID(chi.URLParam(r, param))
	if id == 0 {
		common.WriteError(w, common.BadRequest("invalid "+strings.TrimSuffix(param, "ID")+" id", nil))
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		common.WriteError(w, common.NotFound("order not found", err))
		return
	}
	if !common.IsAppError(err) {
		h.logger.Error().Err(err).Msg("order request failed")
	}
	common.WriteError(w, err)
}
