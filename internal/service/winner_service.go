package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/mroth/weightedrand/v2"
	"go.uber.org/zap"

	"rafl-be/internal/domain"
	"rafl-be/internal/repository"
	"rafl-be/pkg/events"
	"rafl-be/pkg/logger"
	"rafl-be/pkg/metrics"
)

// WinnerService draws promotion winners
type WinnerService struct {
	promos    repository.PromotionRepository
	entries   repository.EntryRepository
	winners   repository.WinnerRepository
	locker    DrawLocker
	vault     *ContactVault
	publisher events.Publisher
	logger    *zap.Logger
}

// NewWinnerService creates a new winner service. locker may be nil when
// draws are only ever run from one process.
func NewWinnerService(
	promos repository.PromotionRepository,
	entries repository.EntryRepository,
	winners repository.WinnerRepository,
	locker DrawLocker,
	vault *ContactVault,
	publisher events.Publisher,
	logger *zap.Logger,
) *WinnerService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &WinnerService{
		promos:    promos,
		entries:   entries,
		winners:   winners,
		locker:    locker,
		vault:     vault,
		publisher: publisher,
		logger:    logger,
	}
}

// Draw selects one entry uniformly at random among all entries of the
// promotion, records the winner and ends the promotion.
func (s *WinnerService) Draw(ctx context.Context, storeID, promoID string) (resp *domain.WinnerResponse, err error) {
	start := time.Now()
	defer func() {
		result := "drawn"
		if err != nil {
			result = "failed"
		}
		metrics.RecordWinnerDraw(result, time.Since(start).Seconds())
	}()

	promo, err := s.promos.GetForStore(ctx, storeID, promoID)
	if err != nil {
		return nil, err
	}
	if promo == nil {
		return nil, domain.ErrPromotionNotFound
	}

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, promoID)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	existing, err := s.winners.GetByPromotion(ctx, promoID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrWinnerAlreadyDrawn
	}

	groups, err := s.entries.ListIdentityGroups(ctx, promoID)
	if err != nil {
		return nil, err
	}

	group, entryID, err := pickEntry(groups)
	if err != nil {
		return nil, err
	}

	contact, available := s.resolveContact(group)

	winner := &domain.Winner{
		PromoID:          promo.ID,
		StoreID:          storeID,
		EntryID:          entryID,
		HashedEmail:      group.HashedEmail,
		PrizeDescription: promo.PrizeDescription,
	}
	if available {
		winner.CustomerEmail = &contact
	}

	if err := s.winners.RecordWinner(ctx, winner); err != nil {
		return nil, err
	}

	s.logger.Info("Winner drawn",
		zap.String("store_id", storeID),
		zap.String("promo_id", promoID),
		zap.String("entry_id", entryID),
		zap.Bool("contact_available", available),
		logger.Identity(group.HashedEmail))

	events.PublishAsync(s.publisher, s.logger, events.NewEvent(events.WinnerDrawn, storeID, map[string]interface{}{
		"winnerId":         winner.ID,
		"promoId":          winner.PromoID,
		"entryId":          winner.EntryID,
		"contactAvailable": available,
	}))

	return &domain.WinnerResponse{
		ID:               winner.ID,
		PromoID:          winner.PromoID,
		EntryID:          winner.EntryID,
		Contact:          contact,
		ContactAvailable: available,
		PrizeDescription: winner.PrizeDescription,
		DrawnAt:          winner.DrawnAt,
	}, nil
}

// resolveContact opens the sealed contact. Without one, the identity hash is
// the only representation and the operator has to correlate it manually.
func (s *WinnerService) resolveContact(group domain.IdentityEntries) (string, bool) {
	if !s.vault.Enabled() || len(group.ContactSealed) == 0 {
		return group.HashedEmail, false
	}

	contact, err := s.vault.Open(group.ContactSealed)
	if err != nil {
		s.logger.Error("Failed to open sealed winner contact",
			logger.Identity(group.HashedEmail),
			zap.Error(err))
		return group.HashedEmail, false
	}
	return contact, true
}

// pickEntry chooses an identity weighted by its entry count, then one of its
// entries uniformly, so every entry has probability 1/total.
func pickEntry(groups []domain.IdentityEntries) (domain.IdentityEntries, string, error) {
	choices := make([]weightedrand.Choice[int, int], 0, len(groups))
	for i, g := range groups {
		if len(g.EntryIDs) > 0 {
			choices = append(choices, weightedrand.NewChoice(i, len(g.EntryIDs)))
		}
	}
	if len(choices) == 0 {
		return domain.IdentityEntries{}, "", domain.ErrNoEligibleEntries
	}

	chooser, err := weightedrand.NewChooser(choices...)
	if err != nil {
		return domain.IdentityEntries{}, "", fmt.Errorf("build chooser: %w", err)
	}

	group := groups[chooser.Pick()]
	return group, group.EntryIDs[rand.IntN(len(group.EntryIDs))], nil
}
