package cache

import (
	"context"
	"strings"

	"github.com/getsentry/sentry-go"
)

// startSpan opens a sentry span for one cache call. It returns nil when the
// request carries no hub.
func startSpan(ctx context.Context, operation, key string) *sentry.Span {
	if sentry.GetHubFromContext(ctx) == nil {
		return nil
	}

	span := sentry.StartSpan(ctx, "cache."+operation)
	span.Op = "cache." + operation
	span.Description = keyPrefix(key)
	span.SetData("cache.key", key)
	return span
}

// finishSpan records whether the call found (or claimed) the key
func finishSpan(span *sentry.Span, hit bool) {
	if span == nil {
		return
	}
	span.SetData("cache.hit", hit)
	span.Status = sentry.SpanStatusOK
	span.Finish()
}

// keyPrefix keeps span names low-cardinality: "taxrate:v1:" rather than the full key
func keyPrefix(key string) string {
	if i := strings.Index(key, ":v"); i >= 0 {
		if j := strings.Index(key[i+1:], ":"); j >= 0 {
			return key[:i+j+2]
		}
	}
	return key
}
