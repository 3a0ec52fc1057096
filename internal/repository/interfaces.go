package repository

import (
	"context"
	"time"

	"rafl-be/internal/domain"
)

// EntryGuard re-validates a promotion inside the recording transaction,
// against the locked promotion row and the counts seen under the lock.
// A non-nil error aborts the transaction without writing.
type EntryGuard func(promo *domain.Promotion, counts domain.EntryCounts) error

// PromotionRepository defines promotion data operations
type PromotionRepository interface {
	// GetForStore retrieves a promotion owned by storeID. Returns nil, nil when absent.
	GetForStore(ctx context.Context, storeID, promoID string) (*domain.Promotion, error)

	// GetByID retrieves a promotion regardless of owner. Returns nil, nil when absent.
	GetByID(ctx context.Context, promoID string) (*domain.Promotion, error)

	// UpdateStatus moves a promotion from status from to status to. Fails with
	// domain.ErrInvalidTransition when the stored status is no longer from.
	UpdateStatus(ctx context.Context, storeID, promoID string, from, to domain.PromotionStatus) error

	// EndExpired ends every active or paused promotion whose end date is before now
	EndExpired(ctx context.Context, now time.Time) ([]*domain.Promotion, error)
}

// EntryRepository defines entry data operations
type EntryRepository interface {
	// RecordEntry persists an entry and its consent log atomically. On success
	// entry and consent carry their generated ids and timestamps.
	RecordEntry(ctx context.Context, storeID string, entry *domain.Entry, consent *domain.ConsentLog, guard EntryGuard) error

	// ListIdentityGroups returns the entries of a promotion grouped by identity
	ListIdentityGroups(ctx context.Context, promoID string) ([]domain.IdentityEntries, error)
}

// CredentialRepository defines API credential data operations
type CredentialRepository interface {
	// GetByPrefix retrieves a credential by its lookup prefix. Returns nil, nil when absent.
	GetByPrefix(ctx context.Context, prefix string) (*domain.APICredential, error)

	// TouchLastUsed records that the credential authenticated a request at at
	TouchLastUsed(ctx context.Context, id string, at time.Time) error

	// Create persists a new credential
	Create(ctx context.Context, cred *domain.APICredential) error

	// ListByStore lists the credentials of a store, newest first
	ListByStore(ctx context.Context, storeID string) ([]*domain.APICredential, error)

	// Deactivate revokes a credential. Returns false when the store has no such credential.
	Deactivate(ctx context.Context, storeID, id string) (bool, error)
}

// WinnerRepository defines winner data operations
type WinnerRepository interface {
	// GetByPromotion retrieves the winner of a promotion. Returns nil, nil when none.
	GetByPromotion(ctx context.Context, promoID string) (*domain.Winner, error)

	// RecordWinner stores the winner and ends the promotion in one transaction
	RecordWinner(ctx context.Context, winner *domain.Winner) error
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Promotion  PromotionRepository
	Entry      EntryRepository
	Credential CredentialRepository
	Winner     WinnerRepository
}
