package taxrate

import (
	"context"

	"github.com/tuitionbill/tuitionbill/internal/types"
)

// Repository defines the interface for taxrate persistence operations
type Repository interface {
	Create(ctx context.Context, taxrate *TaxRate) error
	Get(ctx context.Context, id string) (*TaxRate, error)
	List(ctx context.Context, filter *types.TaxRateFilter) ([]*TaxRate, error)
	Count(ctx context.Context, filter *types.TaxRateFilter) (int, error)
	Update(ctx context.Context, taxrate *TaxRate) error
	Delete(ctx context.Context, taxrate *TaxRate) error

	// ListActiveForItemType returns active rates whose item types contain itemType,
	// ordered by creation time then id
	ListActiveForItemType(ctx context.Context, itemType types.ItemType) ([]*TaxRate, error)
	// GetByIDs returns the rates found among ids, in any status
	GetByIDs(ctx context.Context, ids []string) ([]*TaxRate, error)
}
