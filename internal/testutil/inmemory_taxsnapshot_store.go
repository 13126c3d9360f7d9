package testutil

import (
	"context"
	"slices"
	"sync"

	"github.com/samber/lo"
	"github.com/tuitionbill/tuitionbill/internal/domain/taxsnapshot"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

// InMemoryTaxSnapshotStore implements taxsnapshot.Repository
type InMemoryTaxSnapshotStore struct {
	Failures
	mu    sync.RWMutex
	items []*taxsnapshot.TaxSnapshot
}

func NewInMemoryTaxSnapshotStore() *InMemoryTaxSnapshotStore {
	return &InMemoryTaxSnapshotStore{}
}

func copyTaxSnapshot(s *taxsnapshot.TaxSnapshot) *taxsnapshot.TaxSnapshot {
	c := *s
	return &c
}

func (s *InMemoryTaxSnapshotStore) CreateMany(ctx context.Context, snapshots []*taxsnapshot.TaxSnapshot) error {
	if err := s.check("CreateMany"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snap := range snapshots {
		if snap.OwnerID == "" {
			return ierr.NewError("tax snapshot owner is required").
				WithHint("Tax snapshot must belong to a line item or payment").
				Mark(ierr.ErrValidation)
		}
		s.items = append(s.items, copyTaxSnapshot(snap))
	}
	return nil
}

func (s *InMemoryTaxSnapshotStore) ListByOwner(ctx context.Context, ownerType types.TaxSnapshotOwnerType, ownerID string) ([]*taxsnapshot.TaxSnapshot, error) {
	return s.ListByOwners(ctx, ownerType, []string{ownerID})
}

func (s *InMemoryTaxSnapshotStore) ListByOwners(ctx context.Context, ownerType types.TaxSnapshotOwnerType, ownerIDs []string) ([]*taxsnapshot.TaxSnapshot, error) {
	if err := s.check("List"); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*taxsnapshot.TaxSnapshot, 0)
	for _, snap := range s.items {
		if snap.OwnerType == ownerType && lo.Contains(ownerIDs, snap.OwnerID) && CheckTenantFilter(ctx, snap.TenantID) {
			result = append(result, copyTaxSnapshot(snap))
		}
	}
	return result, nil
}

func (s *InMemoryTaxSnapshotStore) DeleteByOwner(ctx context.Context, ownerType types.TaxSnapshotOwnerType, ownerID string) error {
	if err := s.check("DeleteByOwner"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = lo.Reject(s.items, func(snap *taxsnapshot.TaxSnapshot, _ int) bool {
		return snap.OwnerType == ownerType && snap.OwnerID == ownerID
	})
	return nil
}

func (s *InMemoryTaxSnapshotStore) Snapshot() func() {
	s.mu.RLock()
	saved := slices.Clone(s.items)
	s.mu.RUnlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.items = saved
	}
}

// Seed stores snapshots directly, bypassing failure injection
func (s *InMemoryTaxSnapshotStore) Seed(snapshots ...*taxsnapshot.TaxSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, snap := range snapshots {
		s.items = append(s.items, copyTaxSnapshot(snap))
	}
}

func (s *InMemoryTaxSnapshotStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.Failures.Reset()
}
