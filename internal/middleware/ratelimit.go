package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"go.uber.org/zap"

	"rafl-be/pkg/errors"
	"rafl-be/pkg/logger"
	"rafl-be/pkg/metrics"
	"rafl-be/pkg/redis"
)

// Limiter decides whether a key may proceed. retryAfter is set when it may not.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// RedisLimiter is a GCRA limiter shared by every instance through Redis
type RedisLimiter struct {
	limiter *redis_rate.Limiter
	keys    *redis.KeyBuilder
	limit   redis_rate.Limit
}

// NewRedisLimiter allows perMinute requests per key. perMinute must be positive.
func NewRedisLimiter(client *redis.Client, environment string, perMinute int) (*RedisLimiter, error) {
	if perMinute <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got %d", perMinute)
	}
	return &RedisLimiter{
		limiter: redis_rate.NewLimiter(client.Raw()),
		keys:    redis.NewKeyBuilder(environment),
		limit:   redis_rate.PerMinute(perMinute),
	}, nil
}

// Allow implements Limiter
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	res, err := l.limiter.Allow(ctx, l.keys.KeyRateLimit(key), l.limit)
	if err != nil {
		return false, 0, err
	}
	return res.Allowed > 0, res.RetryAfter, nil
}

// RateLimitByCredential throttles authenticated ingestion per credential.
// Limiter failures let the request through.
func RateLimitByCredential(limiter Limiter, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant, ok := TenantFrom(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			allowed, retryAfter, err := limiter.Allow(r.Context(), tenant.CredentialID)
			if err != nil {
				log.Warn("Rate limiter unavailable",
					zap.String("credential_id", tenant.CredentialID),
					zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				seconds := int(retryAfter.Round(time.Second) / time.Second)
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				metrics.RecordEntryRejection(string(errors.CodeRateLimited))
				writeErrorResponse(w, r, errors.NewRateLimitError("Too many requests for this credential"), log)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
