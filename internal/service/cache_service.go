package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"rafl-be/internal/domain"
	"rafl-be/pkg/redis"
)

const idempotencyPending = "pending"

// CacheService fronts promotion lookups and holds idempotency keys in Redis.
// Cache failures never fail a request; they fall through to the database.
type CacheService struct {
	redis          *redis.Client
	logger         *zap.Logger
	promoTTL       time.Duration
	idempotencyTTL time.Duration
}

// NewCacheService creates a new cache service
func NewCacheService(redisClient *redis.Client, logger *zap.Logger, promoTTL, idempotencyTTL time.Duration) *CacheService {
	if promoTTL <= 0 {
		promoTTL = redis.TTLPromotion
	}
	if idempotencyTTL <= 0 {
		idempotencyTTL = redis.TTLIdempotency
	}
	return &CacheService{
		redis:          redisClient,
		logger:         logger,
		promoTTL:       promoTTL,
		idempotencyTTL: idempotencyTTL,
	}
}

// GetPromotion retrieves a promotion with the cache-aside pattern. A cached
// promotion owned by another store is treated as absent.
func (c *CacheService) GetPromotion(ctx context.Context, storeID, promoID string, load PromotionLoader) (*domain.Promotion, error) {
	cacheKey := c.redis.KeyBuilder.KeyPromotion(promoID)

	cachedData, err := c.redis.Get(ctx, cacheKey)
	if err == nil && cachedData != "" {
		var promo domain.Promotion
		if unmarshalErr := json.Unmarshal([]byte(cachedData), &promo); unmarshalErr == nil {
			c.logger.Debug("Promotion cache hit", zap.String("promo_id", promoID))
			if promo.StoreID != storeID {
				return nil, nil
			}
			return &promo, nil
		} else {
			c.logger.Warn("Promotion cache corrupted, falling back to database",
				zap.String("promo_id", promoID),
				zap.Error(unmarshalErr))
		}
	} else if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Warn("Promotion cache error, falling back to database",
			zap.String("promo_id", promoID),
			zap.Error(err))
	}

	c.logger.Debug("Promotion cache miss", zap.String("promo_id", promoID))
	promo, err := load(ctx, storeID, promoID)
	if err != nil {
		return nil, fmt.Errorf("database fallback failed: %w", err)
	}

	if promo != nil {
		go c.cachePromotionAsync(promo)
	}

	return promo, nil
}

// InvalidatePromotion drops a cached promotion. Failures are logged.
func (c *CacheService) InvalidatePromotion(ctx context.Context, promoID string) {
	if err := c.redis.Delete(ctx, c.redis.KeyBuilder.KeyPromotion(promoID)); err != nil {
		c.logger.Error("Failed to invalidate promotion cache",
			zap.String("promo_id", promoID),
			zap.Error(err))
	}
}

// ClaimIdempotencyKey claims key with SETNX. A key that already holds an
// entry id replays that entry.
func (c *CacheService) ClaimIdempotencyKey(ctx context.Context, storeID, key string) (string, bool, error) {
	idemKey := c.redis.KeyBuilder.KeyIdempotency(storeID, key)

	claimed, err := c.redis.SetNX(ctx, idemKey, idempotencyPending, c.idempotencyTTL)
	if err != nil {
		return "", false, fmt.Errorf("claim idempotency key: %w", err)
	}
	if claimed {
		return "", true, nil
	}

	existing, err := c.redis.Get(ctx, idemKey)
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; claim again
		claimed, err = c.redis.SetNX(ctx, idemKey, idempotencyPending, c.idempotencyTTL)
		if err != nil {
			return "", false, fmt.Errorf("claim idempotency key: %w", err)
		}
		return "", claimed, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read idempotency key: %w", err)
	}
	if existing == idempotencyPending {
		return "", false, nil
	}
	return existing, false, nil
}

// CompleteIdempotencyKey records the entry id for key
func (c *CacheService) CompleteIdempotencyKey(ctx context.Context, storeID, key, entryID string) {
	idemKey := c.redis.KeyBuilder.KeyIdempotency(storeID, key)
	if err := c.redis.Set(ctx, idemKey, entryID, c.idempotencyTTL); err != nil {
		c.logger.Error("Failed to complete idempotency key",
			zap.String("store_id", storeID),
			zap.Error(err))
	}
}

// ReleaseIdempotencyKey deletes key so the client can retry
func (c *CacheService) ReleaseIdempotencyKey(ctx context.Context, storeID, key string) {
	idemKey := c.redis.KeyBuilder.KeyIdempotency(storeID, key)
	if err := c.redis.Delete(ctx, idemKey); err != nil {
		c.logger.Error("Failed to release idempotency key",
			zap.String("store_id", storeID),
			zap.Error(err))
	}
}

// HealthCheck performs a health check on the cache system
func (c *CacheService) HealthCheck(ctx context.Context) error {
	start := time.Now()
	err := c.redis.Health(ctx)
	if err != nil {
		c.logger.Error("Cache health check failed",
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
	}
	return err
}

// cachePromotionAsync caches a promotion with its own timeout
func (c *CacheService) cachePromotionAsync(promo *domain.Promotion) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := json.Marshal(promo)
	if err != nil {
		c.logger.Error("Failed to marshal promotion for caching",
			zap.String("promo_id", promo.ID),
			zap.Error(err))
		return
	}

	if err := c.redis.Set(ctx, c.redis.KeyBuilder.KeyPromotion(promo.ID), string(data), c.promoTTL); err != nil {
		c.logger.Error("Failed to cache promotion",
			zap.String("promo_id", promo.ID),
			zap.Error(err))
	}
}
