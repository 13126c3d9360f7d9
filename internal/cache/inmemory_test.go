package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tuitionbill/tuitionbill/internal/config"
	"github.com/tuitionbill/tuitionbill/internal/logger"
)

func newTestCache(t *testing.T, enabled bool) Cache {
	cfg := config.GetDefaultConfig()
	cfg.Cache.Enabled = enabled
	log, err := logger.NewLogger(cfg)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return NewInMemoryCache(cfg, log)
}

func TestInMemoryCacheAddIsFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, true)
	key := GenerateKey(PrefixWebhookEvent, "evt_123")

	assert.True(t, c.Add(ctx, key, true, time.Minute))
	assert.False(t, c.Add(ctx, key, true, time.Minute))

	c.Delete(ctx, key)
	assert.True(t, c.Add(ctx, key, true, time.Minute))
}

func TestInMemoryCacheDisabled(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, false)

	c.Set(ctx, "k", "v", 0)
	_, found := c.Get(ctx, "k")
	assert.False(t, found)
	assert.True(t, c.Add(ctx, "k", "v", 0))
	assert.True(t, c.Add(ctx, "k", "v", 0))
}

func TestKeyPrefix(t *testing.T) {
	assert.Equal(t, PrefixTaxRate, keyPrefix(GenerateKey(PrefixTaxRate, "tenant_1", "taxrate_1")))
	assert.Equal(t, PrefixWebhookEvent, keyPrefix(GenerateKey(PrefixWebhookEvent, "evt_1")))
	assert.Equal(t, "plain", keyPrefix("plain"))
}
