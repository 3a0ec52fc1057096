package service

import (
	"context"

	"rafl-be/internal/domain"
)

// PromotionLoader loads a promotion owned by a store. Returns nil, nil when absent.
type PromotionLoader func(ctx context.Context, storeID, promoID string) (*domain.Promotion, error)

// PromotionCache fronts promotion lookups on the ingestion path
type PromotionCache interface {
	// GetPromotion returns the promotion from cache, or loads and caches it
	GetPromotion(ctx context.Context, storeID, promoID string, load PromotionLoader) (*domain.Promotion, error)

	// InvalidatePromotion drops a cached promotion
	InvalidatePromotion(ctx context.Context, promoID string)
}

// IdempotencyStore deduplicates client retries carrying an Idempotency-Key
type IdempotencyStore interface {
	// ClaimIdempotencyKey claims key for a new request. When the key was
	// already claimed, claimed is false and entryID holds the recorded entry,
	// or is empty while the first request is still in flight.
	ClaimIdempotencyKey(ctx context.Context, storeID, key string) (entryID string, claimed bool, err error)

	// CompleteIdempotencyKey stores the entry recorded for key
	CompleteIdempotencyKey(ctx context.Context, storeID, key, entryID string)

	// ReleaseIdempotencyKey frees key after a failed request so it can be retried
	ReleaseIdempotencyKey(ctx context.Context, storeID, key string)
}

// DrawLocker serializes winner draws per promotion
type DrawLocker interface {
	// Acquire takes the draw lock for promoID. Fails with domain.ErrDrawInProgress
	// when another draw holds it and domain.ErrStorage when the lock store is down.
	Acquire(ctx context.Context, promoID string) (release func(), err error)
}

// SignatureVerifier checks the request signature header
type SignatureVerifier interface {
	Verify(apiKey string, body []byte, signature string) error
}

// Services aggregates the application services
type Services struct {
	Credential *CredentialService
	Entry      *EntryService
	Winner     *WinnerService
	Promotion  *PromotionService
}
