package middleware

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rafl-be/internal/domain"
	"rafl-be/pkg/errors"
	"rafl-be/pkg/logger"
)

// ContextKey represents keys used in request context
type ContextKey string

const (
	// TenantContextKey is the key for the verified store in context
	TenantContextKey ContextKey = "tenant"
	// OperatorContextKey is the key for operator claims in context
	OperatorContextKey ContextKey = "operator"
	// RequestIDContextKey is the key for request ID in context
	RequestIDContextKey ContextKey = "request_id"
)

const (
	HeaderAPIKey    = "x-api-key"
	HeaderSignature = "x-rafl-signature"
)

// Tenant is the store a request was authenticated for
type Tenant struct {
	StoreID      string
	CredentialID string

	// APIKey is the presented secret, kept for signature verification
	APIKey    string
	Signature string
}

// CredentialVerifier resolves a presented API key to its credential
type CredentialVerifier interface {
	Verify(ctx context.Context, secret string) (*domain.APICredential, error)
}

// OperatorTokenValidator validates dashboard operator tokens
type OperatorTokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*domain.OperatorClaims, error)
}

// APIKey authenticates ingestion requests by their store credential
func APIKey(verifier CredentialVerifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get(HeaderAPIKey)
			signature := r.Header.Get(HeaderSignature)
			if apiKey == "" || signature == "" {
				writeErrorResponse(w, r, errors.New(errors.CodeCredentialInvalid, "Missing authentication headers"), log)
				return
			}

			cred, err := verifier.Verify(r.Context(), apiKey)
			if err != nil {
				if stderrors.Is(err, domain.ErrStorage) {
					writeErrorResponse(w, r, errors.Wrap(errors.CodeStorageError, "Credential lookup failed", err), log)
					return
				}
				writeErrorResponse(w, r, errors.Wrap(errors.CodeCredentialInvalid, "Invalid or inactive API key", err), log)
				return
			}

			tenant := &Tenant{
				StoreID:      cred.StoreID,
				CredentialID: cred.ID,
				APIKey:       apiKey,
				Signature:    signature,
			}
			ctx := context.WithValue(r.Context(), TenantContextKey, tenant)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TenantFrom returns the tenant set by APIKey
func TenantFrom(ctx context.Context) (*Tenant, bool) {
	tenant, ok := ctx.Value(TenantContextKey).(*Tenant)
	return tenant, ok && tenant != nil
}

// OperatorAuth authenticates dashboard requests carrying a Bearer token
func OperatorAuth(validator OperatorTokenValidator, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeErrorResponse(w, r, errors.New(errors.CodeOperatorUnauthorized, "Authorization header is required"), log)
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeErrorResponse(w, r, errors.New(errors.CodeOperatorUnauthorized, "Invalid authorization header format"), log)
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token == "" {
				writeErrorResponse(w, r, errors.New(errors.CodeOperatorUnauthorized, "Token is required"), log)
				return
			}

			claims, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				writeErrorResponse(w, r, errors.Wrap(errors.CodeOperatorUnauthorized, "Invalid or expired token", err), log)
				return
			}

			ctx := context.WithValue(r.Context(), OperatorContextKey, claims)

			log.Debug("Operator authenticated",
				zap.String("subject", claims.Subject),
				zap.String("store_id", claims.StoreID))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OperatorFrom returns the claims set by OperatorAuth
func OperatorFrom(ctx context.Context) (*domain.OperatorClaims, bool) {
	claims, ok := ctx.Value(OperatorContextKey).(*domain.OperatorClaims)
	return claims, ok && claims != nil
}

// RequestID creates a middleware that adds a unique request ID to each request
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}

			ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)
			w.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestID returns the request ID from context, if any
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDContextKey).(string); ok {
		return id
	}
	return ""
}

// writeErrorResponse writes an error response to the client
func writeErrorResponse(w http.ResponseWriter, r *http.Request, appErr *errors.AppError, log *logger.Logger) {
	log.Debug("Request rejected",
		zap.String("code", string(appErr.Code)),
		zap.String("request_id", GetRequestID(r.Context())),
		zap.Error(appErr))

	errors.Write(w, appErr)
}
