package domain

import (
	"errors"
	"fmt"
)

// Rejections produced by the ingestion pipeline and the draw.
var (
	ErrCredentialInvalid   = errors.New("invalid or inactive API credential")
	ErrCredentialNotFound  = errors.New("credential not found")
	ErrSignatureInvalid    = errors.New("request signature invalid")
	ErrMissingFields       = errors.New("missing required fields")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrPromotionNotFound   = errors.New("promo not found")
	ErrPromotionNotActive  = errors.New("promo is not active")
	ErrPromotionNotStarted = errors.New("promo has not started yet")
	ErrPromotionEnded      = errors.New("promo has ended")
	ErrInvalidTransition   = errors.New("invalid promo status transition")
	ErrSourceNotAccepted   = errors.New("promo does not accept entries from this source")
	ErrEntryCapReached     = errors.New("maximum entries per email reached")
	ErrOriginCapReached    = errors.New("maximum entries per network origin reached")
	ErrDuplicateEntry      = errors.New("duplicate entry")
	ErrStorage             = errors.New("storage unavailable")
	ErrNoEligibleEntries   = errors.New("no eligible entries")
	ErrWinnerAlreadyDrawn  = errors.New("winner already drawn for promo")
	ErrDrawInProgress      = errors.New("winner draw already in progress")
)

// CapReachedError carries the counts behind an entry cap rejection.
type CapReachedError struct {
	Current int
	Max     int
	Origin  bool
}

func (e *CapReachedError) Error() string {
	if e.Origin {
		return fmt.Sprintf("%s (%d/%d)", ErrOriginCapReached.Error(), e.Current, e.Max)
	}
	return fmt.Sprintf("%s (%d/%d)", ErrEntryCapReached.Error(), e.Current, e.Max)
}

func (e *CapReachedError) Is(target error) bool {
	if e.Origin {
		return target == ErrOriginCapReached
	}
	return target == ErrEntryCapReached
}

// StorageError wraps a transient persistence failure. Callers may retry.
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError wraps err as a retryable storage failure for op
func NewStorageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStorage.Error(), e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}
