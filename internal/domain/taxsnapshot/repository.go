package taxsnapshot

import (
	"context"

	"github.com/tuitionbill/tuitionbill/internal/types"
)

// Repository stores applied tax snapshots. Rows are never updated: a
// replacement is DeleteByOwner followed by CreateMany inside one transaction.
type Repository interface {
	CreateMany(ctx context.Context, snapshots []*TaxSnapshot) error
	ListByOwner(ctx context.Context, ownerType types.TaxSnapshotOwnerType, ownerID string) ([]*TaxSnapshot, error)
	ListByOwners(ctx context.Context, ownerType types.TaxSnapshotOwnerType, ownerIDs []string) ([]*TaxSnapshot, error)
	DeleteByOwner(ctx context.Context, ownerType types.TaxSnapshotOwnerType, ownerID string) error
}
