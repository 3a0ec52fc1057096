package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rafl-be/pkg/errors"
	"rafl-be/pkg/logger"
	"rafl-be/pkg/redis"
)

type countingLimiter struct {
	budget int
	calls  map[string]int
	err    error
}

func (l *countingLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	if l.err != nil {
		return false, 0, l.err
	}
	if l.calls == nil {
		l.calls = map[string]int{}
	}
	l.calls[key]++
	if l.calls[key] > l.budget {
		return false, 1500 * time.Millisecond, nil
	}
	return true, 0, nil
}

func withTenant(r *http.Request, credentialID string) *http.Request {
	ctx := context.WithValue(r.Context(), TenantContextKey, &Tenant{StoreID: testStoreID, CredentialID: credentialID})
	return r.WithContext(ctx)
}

func TestRateLimitByCredential(t *testing.T) {
	limiter := &countingLimiter{budget: 2}
	handler := RateLimitByCredential(limiter, logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, withTenant(httptest.NewRequest(http.MethodPost, "/api/v1/entries", nil), "cred-a"))
		assert.Equal(t, http.StatusOK, rec.Code, fmt.Sprintf("request %d", i))
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, withTenant(httptest.NewRequest(http.MethodPost, "/api/v1/entries", nil), "cred-a"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, errors.CodeRateLimited, decodeError(t, rec).Error)

	// Budgets are per credential
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, withTenant(httptest.NewRequest(http.MethodPost, "/api/v1/entries", nil), "cred-b"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitFailsOpen(t *testing.T) {
	limiter := &countingLimiter{err: fmt.Errorf("redis down")}
	handler := RateLimitByCredential(limiter, logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, withTenant(httptest.NewRequest(http.MethodPost, "/api/v1/entries", nil), "cred-a"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitWithoutTenantPassesThrough(t *testing.T) {
	limiter := &countingLimiter{budget: 0}
	handler := RateLimitByCredential(limiter, logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/entries", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, limiter.calls)
}

func TestRedisLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := redis.NewClient("redis://"+mr.Addr(), "test", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	limiter, err := NewRedisLimiter(client, "test", 2)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, _, err := limiter.Allow(ctx, "cred-1")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i+1)
	}

	allowed, retryAfter, err := limiter.Allow(ctx, "cred-1")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))
	assert.LessOrEqual(t, retryAfter, time.Minute)

	// credentials are limited independently
	allowed, _, err = limiter.Allow(ctx, "cred-2")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestNewRedisLimiterRejectsNonPositiveLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := redis.NewClient("redis://"+mr.Addr(), "test", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	for _, perMinute := range []int{0, -1} {
		limiter, err := NewRedisLimiter(client, "test", perMinute)
		assert.Error(t, err)
		assert.Nil(t, limiter)
	}
}
