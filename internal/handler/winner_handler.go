package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"rafl-be/internal/domain"
	"rafl-be/internal/middleware"
	"rafl-be/pkg/logger"
)

// WinnerDrawer runs the winner draw for a promotion
type WinnerDrawer interface {
	Draw(ctx context.Context, storeID, promoID string) (*domain.WinnerResponse, error)
}

// WinnerHandler serves winner draws for operators
type WinnerHandler struct {
	winners WinnerDrawer
	log     *logger.Logger
}

// NewWinnerHandler creates a new winner handler
func NewWinnerHandler(winners WinnerDrawer, log *logger.Logger) *WinnerHandler {
	return &WinnerHandler{winners: winners, log: log}
}

// Draw handles POST /api/v1/promos/{promoID}/winner
func (h *WinnerHandler) Draw(w http.ResponseWriter, r *http.Request) {
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

	winner, err := h.winners.Draw(r.Context(), operator.StoreID, promoID)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	h.log.Info("Winner draw requested",
		zap.String("operator", operator.Subject),
		zap.String("promo_id", promoID),
		zap.String("winner_id", winner.ID))

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"winner": winner,
	})
}
