package middleware

import (
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/tuitionbill/tuitionbill/internal/config"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

// SentryMiddleware returns the sentry request handlers. The second handler
// tags the request hub so every event reported while serving carries the
// request and tenant ids.
func SentryMiddleware(cfg *config.Configuration) gin.HandlersChain {
	if !cfg.Sentry.Enabled {
		return nil
	}

	return gin.HandlersChain{
		sentrygin.New(sentrygin.Options{
			Repanic: true,
			Timeout: 2 * time.Second,
		}),
		func(c *gin.Context) {
			if hub := sentrygin.GetHubFromContext(c); hub != nil {
				hub.Scope().SetTag("request_id", types.GetRequestID(c.Request.Context()))
				if tenantID := c.GetHeader(types.HeaderTenantID); tenantID != "" {
					hub.Scope().SetTag("tenant_id", tenantID)
				}
			}
			c.Next()
		},
	}
}
