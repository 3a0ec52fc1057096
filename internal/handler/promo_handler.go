package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rafl-be/internal/domain"
	"rafl-be/internal/middleware"
	"rafl-be/pkg/errors"
	"rafl-be/pkg/logger"
)

// PromotionManager exposes promotion rules and lifecycle changes
type PromotionManager interface {
	Rules(ctx context.Context, promoID string) (*domain.PromotionRules, error)
	TransitionStatus(ctx context.Context, storeID, promoID string, next domain.PromotionStatus) (*domain.Promotion, error)
}

// PromoHandler serves promotion endpoints
type PromoHandler struct {
	promos PromotionManager
	log    *logger.Logger
}

// NewPromoHandler creates a new promotion handler
func NewPromoHandler(promos PromotionManager, log *logger.Logger) *PromoHandler {
	return &PromoHandler{promos: promos, log: log}
}

// Rules handles GET /api/v1/promos/{promoID}/rules
func (h *PromoHandler) Rules(w http.ResponseWriter, r *http.Request) {
	promoID := chi.URLParam(r, "promoID")
	if !validID(promoID) {
		respondError(w, r, h.log, domain.ErrPromotionNotFound)
		return
	}

	rules, err := h.promos.Rules(r.Context(), promoID)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	respondJSON(w, http.StatusOK, rules)
}

type statusRequest struct {
	Status domain.PromotionStatus `json:"status"`
}

// UpdateStatus handles POST /api/v1/promos/{promoID}/status
func (h *PromoHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	operator, ok := middleware.OperatorFrom(r.Context())
	if !ok {
		respondError(w, r, h.log, errOperatorRequired)
		return
	}

	promoID := chi.URLParam(r, "promoID")
	if !validID(promoID) {
		respondError(w, r, h.log, domain.ErrPromotionNotFound)
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		respondError(w, r, h.log, errors.New(errors.CodeInvalidRequest, "status is required"))
		return
	}

	promo, err := h.promos.TransitionStatus(r.Context(), operator.StoreID, promoID, req.Status)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"promo": promo,
	})
}
