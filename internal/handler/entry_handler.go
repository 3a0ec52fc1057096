package handler

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"strings"

	"rafl-be/internal/domain"
	"rafl-be/internal/middleware"
	"rafl-be/internal/service"
	"rafl-be/pkg/errors"
	"rafl-be/pkg/logger"
	"rafl-be/pkg/metrics"
)

const maxEntryBodyBytes = 64 << 10

// EntrySubmitter records entries
type EntrySubmitter interface {
	Submit(ctx context.Context, storeID string, req *domain.EntryRequest, prov domain.Provenance, idempotencyKey string) (*domain.EntryResponse, error)
}

// EntryHandler serves the ingestion endpoint
type EntryHandler struct {
	entries  EntrySubmitter
	verifier service.SignatureVerifier
	log      *logger.Logger
}

// NewEntryHandler creates a new entry handler
func NewEntryHandler(entries EntrySubmitter, verifier service.SignatureVerifier, log *logger.Logger) *EntryHandler {
	return &EntryHandler{
		entries:  entries,
		verifier: verifier,
		log:      log,
	}
}

// Submit handles POST /api/v1/entries
func (h *EntryHandler) Submit(w http.ResponseWriter, r *http.Request) {
	tenant, ok := middleware.TenantFrom(r.Context())
	if !ok {
		h.reject(w, r, domain.ErrCredentialInvalid)
		return
	}

	// The signature covers the raw bytes, so read them before decoding
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEntryBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			h.reject(w, r, errors.New(errors.CodePayloadTooLarge, "Request body exceeds 64KB"))
			return
		}
		h.reject(w, r, errors.New(errors.CodeInvalidRequest, "Request body is unreadable"))
		return
	}

	if err := h.verifier.Verify(tenant.APIKey, body, tenant.Signature); err != nil {
		h.reject(w, r, err)
		return
	}

	var req domain.EntryRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.reject(w, r, errors.NewValidationError("Invalid request body", map[string]interface{}{
			"reason": err.Error(),
		}))
		return
	}

	prov := domain.Provenance{
		IPAddress: getClientIP(r),
		UserAgent: r.Header.Get("User-Agent"),
	}

	resp, err := h.entries.Submit(r.Context(), tenant.StoreID, &req, prov, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.reject(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

func (h *EntryHandler) reject(w http.ResponseWriter, r *http.Request, err error) {
	appErr := respondError(w, r, h.log, err)
	metrics.RecordEntryRejection(string(appErr.Code))
}

// getClientIP returns the first forwarded address, else X-Real-IP, else the peer
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
