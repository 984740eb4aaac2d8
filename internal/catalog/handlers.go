package catalog

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/offset-orders/internal/common"
)

// Handler exposes the book specification endpoints.
type Handler struct {
	repo   *Repository
	logger zerolog.Logger
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Repository *Repository
	Logger     zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{repo: cfg.Repository, logger: cfg.Logger}
}

// Routes mounts the book endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/books", h.List)
	r.Post("/books", h.Create)
	r.Get("/books/{bookID}", h.Get)
	r.Patch("/books/{bookID}", h.Update)
	r.Delete("/books/{bookID}", h.Delete)
}

// List handles GET /api/v1/books with an optional ?q= title search.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog repository not configured", nil)
		return
	}
	books, err := h.repo.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, FilterByTitle(books, r.URL.Query().Get("q")))
}

// Create handles POST /api/v1/books.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in BookInput
	if err := common.DecodeJSON(r, &in); err != nil {
		h.writeError(w, err)
		return
	}
	in = in.Normalize()
	if err := common.Validate(in); err != nil {
		h.writeError(w, err)
		return
	}
	id, err := h.repo.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	book, err := h.repo.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, book)
}

// Get handles GET /api/v1/books/{bookID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}
	book, err := h.repo.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, book)
}

// Update handles PATCH /api/v1/books/{bookID}. Unknown ids are ignored.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}
	var patch BookPatch
	if err := common.DecodeJSON(r, &patch); err != nil {
		h.writeError(w, err)
		return
	}
	patch = patch.Normalize()
	if err := common.Validate(patch); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.repo.Update(r.Context(), id, patch); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/v1/books/{bookID}. Unknown ids are ignored.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}
	if err := h.repo.Delete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func bookID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id := common.ParseID(chi.URLParam(r, "bookID"))
	if id == 0 {
		common.WriteError(w, common.BadRequest("invalid book id", nil))
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		common.WriteError(w, common.NotFound("book not found", err))
		return
	}
	if !common.IsAppError(err) {
		h.logger.Error().Err(err).Msg("catalog request failed")
	}
	common.WriteError(w, err)
}
