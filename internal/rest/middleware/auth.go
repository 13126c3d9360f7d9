package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

// GuestAuthenticateMiddleware scopes the request to a tenant without
// authenticating it. The tenant and user come from headers and fall back to
// the defaults; an auth layer in front of the service owns real identity.
func GuestAuthenticateMiddleware(c *gin.Context) {
	tenantID := c.GetHeader(types.HeaderTenantID)
	if tenantID == "" {
		tenantID = types.DefaultTenantID
	}
	userID := c.GetHeader(types.HeaderUserID)
	if userID == "" {
		userID = types.DefaultUserID
	}

	ctx := types.SetTenantID(c.Request.Context(), tenantID)
	ctx = types.SetUserID(ctx, userID)
	c.Request = c.Request.WithContext(ctx)
	c.Next()
}
