package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"rafl-be/internal/domain"
	"rafl-be/internal/repository"
	"rafl-be/pkg/events"
	"rafl-be/pkg/logger"
	"rafl-be/pkg/metrics"
	"rafl-be/pkg/utils"
)

const entryRecordedMessage = "Entry recorded successfully"

// EntryService runs the ingestion pipeline: window guard, identity hashing,
// cap enforcement and atomic recording.
type EntryService struct {
	promos      repository.PromotionRepository
	entries     repository.EntryRepository
	cache       PromotionCache
	idempotency IdempotencyStore
	vault       *ContactVault
	publisher   events.Publisher
	validate    *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewEntryService creates a new entry service. cache and idempotency may be nil.
func NewEntryService(
	promos repository.PromotionRepository,
	entries repository.EntryRepository,
	cache PromotionCache,
	idempotency IdempotencyStore,
	vault *ContactVault,
	publisher events.Publisher,
	logger *zap.Logger,
) *EntryService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &EntryService{
		promos:      promos,
		entries:     entries,
		cache:       cache,
		idempotency: idempotency,
		vault:       vault,
		publisher:   publisher,
		validate:    validator.New(),
		logger:      logger,
		now:         time.Now,
	}
}

// EnforceEntryCap rejects when the identity already holds the maximum number
// of entries for the promotion.
func EnforceEntryCap(promo *domain.Promotion, current int) error {
	max := promo.MaxEntriesPerEmail
	if max < 1 {
		max = 1
	}
	if current >= max {
		return &domain.CapReachedError{Current: current, Max: max}
	}
	return nil
}

// enforceOriginCap applies the optional per network origin cap
func enforceOriginCap(promo *domain.Promotion, current int) error {
	if promo.MaxEntriesPerIP == nil {
		return nil
	}
	if max := *promo.MaxEntriesPerIP; current >= max {
		return &domain.CapReachedError{Current: current, Max: max, Origin: true}
	}
	return nil
}

// Submit records one entry for storeID. idempotencyKey is optional.
func (s *EntryService) Submit(ctx context.Context, storeID string, req *domain.EntryRequest, prov domain.Provenance, idempotencyKey string) (resp *domain.EntryResponse, err error) {
	start := time.Now()
	defer func() {
		result := "recorded"
		if err != nil {
			result = "rejected"
		}
		metrics.RecordEntryIngest(result, time.Since(start).Seconds())
	}()

	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	if idempotencyKey != "" && s.idempotency != nil {
		entryID, claimed, claimErr := s.idempotency.ClaimIdempotencyKey(ctx, storeID, idempotencyKey)
		switch {
		case claimErr != nil:
			// the storage constraints still hold without the key
			s.logger.Warn("Idempotency unavailable, continuing without it", zap.Error(claimErr))
		case entryID != "":
			s.logger.Debug("Idempotent replay", zap.String("entry_id", entryID))
			return &domain.EntryResponse{Success: true, EntryID: entryID, Message: entryRecordedMessage}, nil
		case !claimed:
			return nil, domain.ErrDuplicateEntry
		default:
			defer func() {
				if err != nil {
					s.idempotency.ReleaseIdempotencyKey(context.WithoutCancel(ctx), storeID, idempotencyKey)
				} else {
					s.idempotency.CompleteIdempotencyKey(context.WithoutCancel(ctx), storeID, idempotencyKey, resp.EntryID)
				}
			}()
		}
	}

	promo, err := s.loadPromotion(ctx, storeID, req.PromoID)
	if err != nil {
		return nil, err
	}

	if err := promo.CheckWindow(s.now()); err != nil {
		return nil, err
	}
	if !promo.AcceptsSource(req.Source) {
		return nil, domain.ErrSourceNotAccepted
	}

	normalized := utils.NormalizeEmail(req.Email)
	hashed := utils.HashIdentity(normalized)

	entry := &domain.Entry{
		PromoID:     promo.ID,
		HashedEmail: hashed,
		Source:      req.Source,
		IPAddress:   optional(prov.IPAddress),
		UserAgent:   optional(prov.UserAgent),
	}
	if len(req.Metadata) > 0 {
		if entry.Metadata, err = json.Marshal(req.Metadata); err != nil {
			return nil, fmt.Errorf("%w: metadata is not serializable", domain.ErrInvalidRequest)
		}
	}
	if s.vault.Enabled() {
		if entry.ContactSealed, err = s.vault.Seal(normalized); err != nil {
			return nil, fmt.Errorf("seal contact: %w", err)
		}
	}

	consent := &domain.ConsentLog{
		ConsentBrand: req.ConsentBrand,
		ConsentRafl:  req.ConsentRafl,
		ConsentText:  fmt.Sprintf("Brand: %t, Rafl: %t", req.ConsentBrand, req.ConsentRafl),
		IPAddress:    entry.IPAddress,
		UserAgent:    entry.UserAgent,
	}

	guard := func(locked *domain.Promotion, counts domain.EntryCounts) error {
		if err := locked.CheckWindow(s.now()); err != nil {
			return err
		}
		if err := EnforceEntryCap(locked, counts.Identity); err != nil {
			return err
		}
		return enforceOriginCap(locked, counts.Origin)
	}

	if err := s.entries.RecordEntry(ctx, storeID, entry, consent, guard); err != nil {
		if isWindowError(err) && s.cache != nil {
			// the cached promotion was stale
			s.cache.InvalidatePromotion(context.WithoutCancel(ctx), promo.ID)
		}
		s.logRejection(storeID, promo.ID, hashed, err)
		return nil, err
	}

	metrics.RecordEntryRecorded(string(entry.Source))
	s.logger.Info("Entry recorded",
		zap.String("store_id", storeID),
		zap.String("promo_id", promo.ID),
		zap.String("entry_id", entry.ID),
		zap.Int("entry_seq", entry.Sequence),
		zap.String("source", string(entry.Source)),
		logger.Identity(hashed))

	events.PublishAsync(s.publisher, s.logger, events.NewEvent(events.EntryRecorded, storeID, map[string]interface{}{
		"entryId":  entry.ID,
		"promoId":  entry.PromoID,
		"source":   entry.Source,
		"entrySeq": entry.Sequence,
	}))

	return &domain.EntryResponse{Success: true, EntryID: entry.ID, Message: entryRecordedMessage}, nil
}

// validateRequest checks presence first, then formats
func (s *EntryService) validateRequest(req *domain.EntryRequest) error {
	if req == nil {
		return domain.ErrMissingFields
	}
	req.PromoID = strings.TrimSpace(req.PromoID)

	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			return fmt.Errorf("%w: %s", domain.ErrMissingFields, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}

	if _, err := uuid.Parse(req.PromoID); err != nil {
		return domain.ErrPromotionNotFound
	}
	if !req.Source.Valid() {
		return fmt.Errorf("%w: unknown source %q", domain.ErrInvalidRequest, req.Source)
	}
	if err := utils.ValidateEmail(req.Email); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	return nil
}

func (s *EntryService) loadPromotion(ctx context.Context, storeID, promoID string) (*domain.Promotion, error) {
	var (
		promo *domain.Promotion
		err   error
	)
	if s.cache != nil {
		promo, err = s.cache.GetPromotion(ctx, storeID, promoID, s.promos.GetForStore)
	} else {
		promo, err = s.promos.GetForStore(ctx, storeID, promoID)
	}
	if err != nil {
		return nil, err
	}
	if promo == nil {
		return nil, domain.ErrPromotionNotFound
	}
	return promo, nil
}

func (s *EntryService) logRejection(storeID, promoID, hashed string, err error) {
	fields := []zap.Field{
		zap.String("store_id", storeID),
		zap.String("promo_id", promoID),
		logger.Identity(hashed),
		zap.Error(err),
	}
	if errors.Is(err, domain.ErrStorage) {
		s.logger.Error("Entry recording failed", fields...)
		return
	}
	s.logger.Info("Entry rejected", fields...)
}

func isWindowError(err error) bool {
	return errors.Is(err, domain.ErrPromotionNotActive) ||
		errors.Is(err, domain.ErrPromotionNotStarted) ||
		errors.Is(err, domain.ErrPromotionEnded)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
