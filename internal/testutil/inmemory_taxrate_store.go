package testutil

import (
	"context"

	"github.com/samber/lo"
	"github.com/tuitionbill/tuitionbill/internal/domain/taxrate"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

// InMemoryTaxRateStore implements taxrate.Repository
type InMemoryTaxRateStore struct {
	*InMemoryStore[*taxrate.TaxRate]
	Failures
	lookups int
}

func NewInMemoryTaxRateStore() *InMemoryTaxRateStore {
	return &InMemoryTaxRateStore{
		InMemoryStore: NewInMemoryStore(copyTaxRate),
	}
}

func copyTaxRate(t *taxrate.TaxRate) *taxrate.TaxRate {
	if t == nil {
		return nil
	}
	c := *t
	c.AppliesToItemTypes = append([]types.ItemType(nil), t.AppliesToItemTypes...)
	return &c
}

// taxRateFilterFn implements filtering logic for tax rates
func taxRateFilterFn(ctx context.Context, tr *taxrate.TaxRate, filter interface{}) bool {
	if tr == nil || !CheckTenantFilter(ctx, tr.TenantID) {
		return false
	}

	f, ok := filter.(*types.TaxRateFilter)
	if !ok || f == nil {
		return tr.Status == types.StatusPublished
	}

	if status := f.GetStatus(); status != "" && string(tr.Status) != status {
		return false
	}
	if len(f.TaxRateIDs) > 0 && !lo.Contains(f.TaxRateIDs, tr.ID) {
		return false
	}
	if f.ItemType != "" && !lo.Contains(tr.AppliesToItemTypes, f.ItemType) {
		return false
	}
	if f.ActiveOnly && !tr.IsActive {
		return false
	}
	return true
}

// taxRateSortFn orders by creation time then id, matching the resolver order
func taxRateSortFn(i, j *taxrate.TaxRate) bool {
	if i.CreatedAt.Equal(j.CreatedAt) {
		return i.ID < j.ID
	}
	return i.CreatedAt.Before(j.CreatedAt)
}

func (s *InMemoryTaxRateStore) Create(ctx context.Context, tr *taxrate.TaxRate) error {
	if tr == nil {
		return ierr.NewError("tax rate cannot be nil").
			WithHint("Tax rate data is required").
			Mark(ierr.ErrValidation)
	}
	if err := s.check("Create"); err != nil {
		return err
	}
	return s.InMemoryStore.Create(ctx, tr.ID, tr)
}

func (s *InMemoryTaxRateStore) Get(ctx context.Context, id string) (*taxrate.TaxRate, error) {
	tr, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if tr.Status == types.StatusArchived {
		return nil, ierr.NewError("tax rate not found").
			WithHintf("Tax rate with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return tr, nil
}

func (s *InMemoryTaxRateStore) List(ctx context.Context, filter *types.TaxRateFilter) ([]*taxrate.TaxRate, error) {
	return s.InMemoryStore.List(ctx, filter, taxRateFilterFn, taxRateSortFn)
}

func (s *InMemoryTaxRateStore) Count(ctx context.Context, filter *types.TaxRateFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, taxRateFilterFn)
}

func (s *InMemoryTaxRateStore) Update(ctx context.Context, tr *taxrate.TaxRate) error {
	if tr == nil {
		return ierr.NewError("tax rate cannot be nil").
			WithHint("Tax rate data is required").
			Mark(ierr.ErrValidation)
	}
	if err := s.check("Update"); err != nil {
		return err
	}
	return s.InMemoryStore.Update(ctx, tr.ID, tr)
}

// Delete archives the rate like the postgres repository does
func (s *InMemoryTaxRateStore) Delete(ctx context.Context, tr *taxrate.TaxRate) error {
	existing, err := s.InMemoryStore.Get(ctx, tr.ID)
	if err != nil {
		return err
	}
	existing.Status = types.StatusArchived
	existing.IsActive = false
	existing.Touch(ctx)
	return s.InMemoryStore.Update(ctx, existing.ID, existing)
}

func (s *InMemoryTaxRateStore) ListActiveForItemType(ctx context.Context, itemType types.ItemType) ([]*taxrate.TaxRate, error) {
	if err := s.check("ListActiveForItemType"); err != nil {
		return nil, err
	}
	s.lookups++
	filter := types.NewNoLimitTaxRateFilter()
	filter.ItemType = itemType
	filter.ActiveOnly = true
	return s.List(ctx, filter)
}

func (s *InMemoryTaxRateStore) GetByIDs(ctx context.Context, ids []string) ([]*taxrate.TaxRate, error) {
	if err := s.check("GetByIDs"); err != nil {
		return nil, err
	}
	s.lookups++
	if len(ids) == 0 {
		return []*taxrate.TaxRate{}, nil
	}
	return s.InMemoryStore.List(ctx, ids, func(ctx context.Context, tr *taxrate.TaxRate, f interface{}) bool {
		return CheckTenantFilter(ctx, tr.TenantID) && tr.Status != types.StatusArchived && lo.Contains(f.([]string), tr.ID)
	}, taxRateSortFn)
}

// Lookups counts the resolver queries served, for batching assertions
func (s *InMemoryTaxRateStore) Lookups() int {
	return s.lookups
}

func (s *InMemoryTaxRateStore) Clear() {
	s.InMemoryStore.Clear()
	s.Failures.Reset()
	s.lookups = 0
}
