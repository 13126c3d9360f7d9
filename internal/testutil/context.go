package testutil

import (
	"context"

	"github.com/tuitionbill/tuitionbill/internal/types"
)

// SetupContext returns a request context for the default tenant
func SetupContext() context.Context {
	return TenantContext(types.DefaultTenantID)
}

// TenantContext returns a request context scoped to tenantID
func TenantContext(tenantID string) context.Context {
	ctx := types.SetTenantID(context.Background(), tenantID)
	ctx = types.SetUserID(ctx, types.DefaultUserID)
	return types.SetRequestID(ctx, types.GenerateUUID())
}
