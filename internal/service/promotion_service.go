package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"rafl-be/internal/domain"
	"rafl-be/internal/repository"
	"rafl-be/pkg/events"
	"rafl-be/pkg/metrics"
)

const lifecycleRunTimeout = 30 * time.Second

// PromotionService owns promotion lifecycle rules and public rendering
type PromotionService struct {
	promos    repository.PromotionRepository
	cache     PromotionCache
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	cron     *cron.Cron
	schedule string
}

// NewPromotionService creates a new promotion service. schedule is a cron
// spec for the auto-end job, e.g. "@every 1m".
func NewPromotionService(promos repository.PromotionRepository, cache PromotionCache, publisher events.Publisher, logger *zap.Logger, schedule string) *PromotionService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &PromotionService{
		promos:    promos,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		schedule:  schedule,
	}
}

// Rules returns the rendered public rules of a promotion. Drafts are not public.
func (s *PromotionService) Rules(ctx context.Context, promoID string) (*domain.PromotionRules, error) {
	promo, err := s.promos.GetByID(ctx, promoID)
	if err != nil {
		return nil, err
	}
	if promo == nil || promo.Status == domain.PromotionDraft {
		return nil, domain.ErrPromotionNotFound
	}

	return &domain.PromotionRules{
		PromoID:            promo.ID,
		Title:              promo.Title,
		PrizeDescription:   promo.PrizeDescription,
		StartDate:          promo.StartDate,
		EndDate:            promo.EndDate,
		MaxEntriesPerEmail: promo.MaxEntriesPerEmail,
		Rules:              promo.RenderText(promo.RulesText),
		Eligibility:        promo.RenderText(promo.EligibilityText),
		AMOEInstructions:   promo.RenderText(promo.AMOEInstructions),
	}, nil
}

// TransitionStatus moves a promotion along its lifecycle
func (s *PromotionService) TransitionStatus(ctx context.Context, storeID, promoID string, next domain.PromotionStatus) (*domain.Promotion, error) {
	promo, err := s.promos.GetForStore(ctx, storeID, promoID)
	if err != nil {
		return nil, err
	}
	if promo == nil {
		return nil, domain.ErrPromotionNotFound
	}
	if !promo.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, promo.Status, next)
	}

	if err := s.promos.UpdateStatus(ctx, storeID, promoID, promo.Status, next); err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.InvalidatePromotion(ctx, promoID)
	}

	s.logger.Info("Promotion status changed",
		zap.String("store_id", storeID),
		zap.String("promo_id", promoID),
		zap.String("from", string(promo.Status)),
		zap.String("to", string(next)))

	if next == domain.PromotionEnded {
		events.PublishAsync(s.publisher, s.logger, events.NewEvent(events.PromoEnded, storeID, map[string]string{
			"promoId": promoID,
			"reason":  "manual",
		}))
	}

	promo.Status = next
	return promo, nil
}

// CloseExpired ends every promotion whose end date has passed
func (s *PromotionService) CloseExpired(ctx context.Context) (int, error) {
	ended, err := s.promos.EndExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}

	for _, promo := range ended {
		if s.cache != nil {
			s.cache.InvalidatePromotion(ctx, promo.ID)
		}
		events.PublishAsync(s.publisher, s.logger, events.NewEvent(events.PromoEnded, promo.StoreID, map[string]string{
			"promoId": promo.ID,
			"reason":  "end_date",
		}))
	}

	if len(ended) > 0 {
		metrics.RecordPromotionsAutoEnded(len(ended))
		s.logger.Info("Expired promotions ended", zap.Int("count", len(ended)))
	}
	return len(ended), nil
}

// Start schedules the auto-end job and runs it once under ctx
func (s *PromotionService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(s.schedule, func() {
		runCtx, cancel := context.WithTimeout(context.Background(), lifecycleRunTimeout)
		defer cancel()

		if _, err := s.CloseExpired(runCtx); err != nil {
			s.logger.Error("Promotion lifecycle run failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid lifecycle schedule %q: %w", s.schedule, err)
	}

	c.Start()
	s.cron = c
	s.logger.Info("Promotion lifecycle job started", zap.String("schedule", s.schedule))

	// catch up on promotions that expired while the job was not running
	if _, err := s.CloseExpired(ctx); err != nil {
		s.logger.Warn("Initial promotion lifecycle run failed", zap.Error(err))
	}
	return nil
}

// Stop stops the scheduler and waits for a running job, bounded by ctx
func (s *PromotionService) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return nil
	}

	done := s.cron.Stop()
	s.cron = nil

	select {
	case <-done.Done():
		s.logger.Info("Promotion lifecycle job stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
