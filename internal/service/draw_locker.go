package service

import (
	"context"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"go.uber.org/zap"

	"rafl-be/internal/domain"
	"rafl-be/pkg/redis"
)

const drawLockExpiry = 30 * time.Second

// RedisDrawLocker serializes draws for a promotion across instances
type RedisDrawLocker struct {
	rs     *redsync.Redsync
	client *redis.Client
	keys   *redis.KeyBuilder
	logger *zap.Logger
}

// NewRedisDrawLocker creates a draw locker backed by client
func NewRedisDrawLocker(client *redis.Client, logger *zap.Logger) *RedisDrawLocker {
	pool := goredis.NewPool(client.Raw())
	return &RedisDrawLocker{
		rs:     redsync.New(pool),
		client: client,
		keys:   client.KeyBuilder,
		logger: logger,
	}
}

// Acquire tries the lock once. A lock held elsewhere is reported as a draw
// in progress; an unreachable Redis is a storage error.
func (l *RedisDrawLocker) Acquire(ctx context.Context, promoID string) (func(), error) {
	mutex := l.rs.NewMutex(l.keys.KeyDrawLock(promoID), redsync.WithExpiry(drawLockExpiry))
	if err := mutex.TryLockContext(ctx); err != nil {
		// redsync reports a held lock and a dead node alike, so ask Redis directly
		if healthErr := l.client.Health(ctx); healthErr != nil {
			l.logger.Error("Draw lock unavailable",
				zap.String("promo_id", promoID),
				zap.Error(err))
			return nil, domain.NewStorageError("acquire draw lock", healthErr)
		}
		l.logger.Info("Draw lock not acquired",
			zap.String("promo_id", promoID),
			zap.Error(err))
		return nil, domain.ErrDrawInProgress
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := mutex.UnlockContext(ctx); err != nil {
			l.logger.Warn("Failed to release draw lock",
				zap.String("promo_id", promoID),
				zap.Error(err))
		}
	}, nil
}
