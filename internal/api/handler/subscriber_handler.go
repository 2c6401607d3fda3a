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

// SubscriberHandler handles subscriber account endpoints.
type SubscriberHandler struct {
	svc    *service.SubscriberService
	logger *zap.Logger
}

func NewSubscriberHandler(svc *service.SubscriberService, logger *zap.Logger) *SubscriberHandler {
	return &SubscriberHandler{svc: svc, logger: logger}
}

// Create handles POST /api/v1/subscribers
func (h *SubscriberHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateSubscriberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sub, err := h.svc.Create(r.Context(), req)
	if err != nil {
		h.logger.Warn("create subscriber failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, sub)
}

// GetByID handles GET /api/v1/subscribers/{id}
func (h *SubscriberHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	sub, err := h.svc.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sub)
}

// List handles GET /api/v1/subscribers
func (h *SubscriberHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePage(r)
	subs, total, err := h.svc.List(r.Context(), page, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list subscribers")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"data":  subs,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// Confirm handles POST /api/v1/subscribers/{id}/confirm
func (h *SubscriberHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	sub, err := h.svc.Confirm(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sub)
}

// Deactivate handles POST /api/v1/subscribers/{id}/deactivate
func (h *SubscriberHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	sub, err := h.svc.Deactivate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sub)
}
