package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"rafl-be/internal/domain"
	"rafl-be/internal/middleware"
	"rafl-be/pkg/errors"
	"rafl-be/pkg/logger"
)

// CredentialManager issues and revokes store credentials
type CredentialManager interface {
	Create(ctx context.Context, storeID, label string) (*domain.IssuedCredential, error)
	List(ctx context.Context, storeID string) ([]*domain.APICredential, error)
	Revoke(ctx context.Context, storeID, id string) error
}

// CredentialHandler serves credential management for operators
type CredentialHandler struct {
	credentials CredentialManager
	validate    *validator.Validate
	log         *logger.Logger
}

// NewCredentialHandler creates a new credential handler
func NewCredentialHandler(credentials CredentialManager, log *logger.Logger) *CredentialHandler {
	return &CredentialHandler{
		credentials: credentials,
		validate:    validator.New(),
		log:         log,
	}
}

// Create handles POST /api/v1/credentials
func (h *CredentialHandler) Create(w http.ResponseWriter, r *http.Request) {
	operator, ok := middleware.OperatorFrom(r.Context())
	if !ok {
		respondError(w, r, h.log, errOperatorRequired)
		return
	}

	var req domain.CreateCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, h.log, errors.New(errors.CodeInvalidRequest, "Invalid request body"))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondError(w, r, h.log, errors.NewValidationError("label is required (max 100 characters)", nil))
		return
	}

	issued, err := h.credentials.Create(r.Context(), operator.StoreID, req.Label)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusCreated, issued)
}

// List handles GET /api/v1/credentials
func (h *CredentialHandler) List(w http.ResponseWriter, r *http.Request) {
	operator, ok := middleware.OperatorFrom(r.Context())
	if !ok {
		respondError(w, r, h.log, errOperatorRequired)
		return
	}

	creds, err := h.credentials.List(r.Context(), operator.StoreID)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	if creds == nil {
		creds = []*domain.APICredential{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"credentials": creds,
	})
}

// Revoke handles DELETE /api/v1/credentials/{credentialID}
func (h *CredentialHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	operator, ok := middleware.OperatorFrom(r.Context())
	if !ok {
		respondError(w, r, h.log, errOperatorRequired)
		return
	}

	id := chi.URLParam(r, "credentialID")
	if !validID(id) {
		respondError(w, r, h.log, domain.ErrCredentialNotFound)
		return
	}

	if err := h.credentials.Revoke(r.Context(), operator.StoreID, id); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
