package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyBuilder_Environment_Prefixes(t *testing.T) {
	tests := []struct {
		name           string
		environment    string
		expectedPrefix string
	}{
		{"production uses prod prefix", "production", "prod"},
		{"development uses staging prefix", "development", "staging"},
		{"staging uses staging prefix", "staging", "staging"},
		{"unknown defaults to prod prefix", "unknown", "prod"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedPrefix, NewKeyBuilder(tt.environment).GetPrefix())
		})
	}
}

func TestKeyBuilder_KeyGeneration(t *testing.T) {
	prod := NewKeyBuilder("production")
	staging := NewKeyBuilder("staging")

	assert.Equal(t, "rafl:prod:promo:p1", prod.KeyPromotion("p1"))
	assert.Equal(t, "rafl:prod:idem:s1:abc", prod.KeyIdempotency("s1", "abc"))
	assert.Equal(t, "rafl:prod:draw:p1", prod.KeyDrawLock("p1"))
	assert.Equal(t, "rafl:staging:ratelimit:credential:k1", staging.KeyRateLimit("k1"))
}

func TestKeyBuilder_TenantIsolation(t *testing.T) {
	kb := NewKeyBuilder("production")
	assert.NotEqual(t, kb.KeyIdempotency("store-a", "k"), kb.KeyIdempotency("store-b", "k"))
}
