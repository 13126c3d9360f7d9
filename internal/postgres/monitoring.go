package postgres

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/tuitionbill/tuitionbill/internal/logger"
	sentryService "github.com/tuitionbill/tuitionbill/internal/sentry"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

// SentryClient records every top level transaction as a sentry span
type SentryClient struct {
	client IClient
	sentry *sentryService.Service
	logger *logger.Logger
}

// NewSentryClient wraps client with span tracking. A nil sentry service
// returns client unchanged.
func NewSentryClient(client IClient, sentry *sentryService.Service, logger *logger.Logger) IClient {
	if sentry == nil {
		return client
	}
	return &SentryClient{
		client: client,
		sentry: sentry,
		logger: logger,
	}
}

func (c *SentryClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	// savepoints are already covered by the outer span
	if _, nested := GetTx(ctx); nested {
		return c.client.WithTx(ctx, fn)
	}

	span, spanCtx := c.sentry.StartDBSpan(ctx, "postgres.transaction", map[string]interface{}{
		"tenant_id": types.GetTenantID(ctx),
	})
	err := c.client.WithTx(spanCtx, fn)
	if span != nil {
		if err != nil {
			span.Status = sentry.SpanStatusAborted
		} else {
			span.Status = sentry.SpanStatusOK
		}
		span.Finish()
	}
	return err
}
