package handler

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rafl-be/internal/domain"
	"rafl-be/internal/middleware"
	"rafl-be/pkg/errors"
	"rafl-be/pkg/logger"
)

// errorCodes maps domain sentinels to client facing codes, most specific first
var errorCodes = []struct {
	target error
	code   errors.Code
}{
	{domain.ErrCredentialInvalid, errors.CodeCredentialInvalid},
	{domain.ErrCredentialNotFound, errors.CodeCredentialNotFound},
	{domain.ErrSignatureInvalid, errors.CodeSignatureInvalid},
	{domain.ErrMissingFields, errors.CodeMissingFields},
	{domain.ErrInvalidRequest, errors.CodeInvalidRequest},
	{domain.ErrSourceNotAccepted, errors.CodeInvalidRequest},
	{domain.ErrInvalidTransition, errors.CodeInvalidRequest},
	{domain.ErrPromotionNotFound, errors.CodePromotionNotFound},
	{domain.ErrPromotionNotActive, errors.CodePromotionNotActive},
	{domain.ErrPromotionNotStarted, errors.CodePromotionNotStarted},
	{domain.ErrPromotionEnded, errors.CodePromotionEnded},
	{domain.ErrEntryCapReached, errors.CodeEntryCapReached},
	{domain.ErrOriginCapReached, errors.CodeOriginCapReached},
	{domain.ErrDuplicateEntry, errors.CodeDuplicateEntry},
	{domain.ErrNoEligibleEntries, errors.CodeNoEligibleEntries},
	{domain.ErrWinnerAlreadyDrawn, errors.CodeWinnerAlreadyDrawn},
	{domain.ErrDrawInProgress, errors.CodeDrawInProgress},
	{domain.ErrStorage, errors.CodeStorageError},
}

// errOperatorRequired is returned when a management route runs without OperatorAuth
var errOperatorRequired = errors.New(errors.CodeOperatorUnauthorized, "Operator authentication required")

// toAppError converts a service error into the response error
func toAppError(err error) *errors.AppError {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	var capErr *domain.CapReachedError
	if stderrors.As(err, &capErr) {
		code := errors.CodeEntryCapReached
		if capErr.Origin {
			code = errors.CodeOriginCapReached
		}
		return errors.Wrap(code, capErr.Error(), err).WithDetails(map[string]interface{}{
			"current": capErr.Current,
			"max":     capErr.Max,
		})
	}

	for _, m := range errorCodes {
		if stderrors.Is(err, m.target) {
			message := err.Error()
			if m.code == errors.CodeStorageError {
				// driver details stay in the logs
				message = "Storage temporarily unavailable, retry later"
			}
			return errors.Wrap(m.code, message, err)
		}
	}

	return errors.NewInternalError("Internal server error", err)
}

// respondError writes err as the JSON error body. Server side failures are logged.
func respondError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) *errors.AppError {
	appErr := toAppError(err)

	fields := []zap.Field{
		zap.String("code", string(appErr.Code)),
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.Error(err),
	}
	if appErr.StatusCode >= http.StatusInternalServerError {
		log.Error("Request failed", fields...)
	} else {
		log.Debug("Request rejected", fields...)
	}

	errors.Write(w, appErr)
	return appErr
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// validID rejects path ids that could never match a row
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
