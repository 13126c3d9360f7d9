package payment

import (
	"context"

	"github.com/tuitionbill/tuitionbill/internal/types"
)

// Repository defines the interface for payment persistence
type Repository interface {
	Create(ctx context.Context, payment *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	// GetForUpdate loads the payment and locks it for the current transaction
	GetForUpdate(ctx context.Context, id string) (*Payment, error)
	Update(ctx context.Context, payment *Payment) error
	List(ctx context.Context, filter *types.PaymentFilter) ([]*Payment, error)
	Count(ctx context.Context, filter *types.PaymentFilter) (int, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Payment, error)
	GetByGatewayIntentID(ctx context.Context, intentID string) (*Payment, error)
}
