package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/bookhub/book-notify/internal/api/middleware"
	"github.com/bookhub/book-notify/internal/domain"
	"github.com/bookhub/book-notify/internal/service"
)

// BookHandler handles book CRUD endpoints. Book reads and deletes are
// category-scoped because category is the store's partition key, so those
// routes carry a ?category= query parameter.
type BookHandler struct {
	svc    *service.BookService
	logger *zap.Logger
}

func NewBookHandler(svc *service.BookService, logger *zap.Logger) *BookHandler {
	return &BookHandler{svc: svc, logger: logger}
}

// Create handles POST /api/v1/books
func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	b, err := h.svc.Create(r.Context(), req)
	if err != nil {
		h.logger.Warn("create book failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, b)
}

// GetByID handles GET /api/v1/books/{id}?category=...
func (h *BookHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	category := r.URL.Query().Get("category")
	if category == "" {
		respondError(w, http.StatusBadRequest, "category query parameter is required")
		return
	}

	b, err := h.svc.GetByID(r.Context(), id, category)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

// List handles GET /api/v1/books
func (h *BookHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePage(r)
	books, total, err := h.svc.List(r.Context(), r.URL.Query().Get("category"), page, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list books")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"data":  books,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// Delete handles DELETE /api/v1/books/{id}?category=...
func (h *BookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	category := r.URL.Query().Get("category")
	if category == "" {
		respondError(w, http.StatusBadRequest, "category query parameter is required")
		return
	}

	if err := h.svc.Delete(r.Context(), id, category); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
