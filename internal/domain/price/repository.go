package price

import (
	"context"

	"github.com/tuitionbill/tuitionbill/internal/types"
)

// Repository defines the interface for tuition price persistence
type Repository interface {
	Create(ctx context.Context, price *TuitionPrice) error
	Get(ctx context.Context, id string) (*TuitionPrice, error)
	Update(ctx context.Context, price *TuitionPrice) error
	List(ctx context.Context, filter *types.QueryFilter) ([]*TuitionPrice, error)
	// GetActive returns the active price for a payment type and currency, or a not found error
	GetActive(ctx context.Context, paymentType types.PaymentType, currency string) (*TuitionPrice, error)
}
