package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Cache is a process local key value store. Implementations must be safe
// for concurrent use. An expiration of 0 means the cache default.
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration)
	// Add stores value only when key is absent and reports whether it did.
	// Webhook deduplication relies on the check and write being atomic.
	Add(ctx context.Context, key string, value interface{}, expiration time.Duration) bool
	Delete(ctx context.Context, key string)
}

// Key prefixes carry a version so a format change never reads stale entries
const (
	PrefixWebhookEvent = "webhook_event:v1:"
	PrefixTaxRate      = "taxrate:v1:"
	PrefixTuitionPrice = "tuition_price:v1:"
)

// GenerateKey joins params onto prefix with colons,
// e.g. taxrate:v1::tenant_1:taxrate_01J...
func GenerateKey(prefix string, params ...interface{}) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, p := range params {
		b.WriteByte(':')
		fmt.Fprint(&b, p)
	}
	return b.String()
}
