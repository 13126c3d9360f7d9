package testutil

import (
	"context"

	"github.com/tuitionbill/tuitionbill/internal/domain/price"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

// InMemoryPriceStore implements price.Repository
type InMemoryPriceStore struct {
	*InMemoryStore[*price.TuitionPrice]
}

func NewInMemoryPriceStore() *InMemoryPriceStore {
	return &InMemoryPriceStore{
		InMemoryStore: NewInMemoryStore(func(p *price.TuitionPrice) *price.TuitionPrice {
			c := *p
			return &c
		}),
	}
}

func priceFilterFn(ctx context.Context, p *price.TuitionPrice, filter interface{}) bool {
	if !CheckTenantFilter(ctx, p.TenantID) {
		return false
	}
	if f, ok := filter.(*types.QueryFilter); ok && f != nil {
		if status := f.GetStatus(); status != "" && string(p.Status) != status {
			return false
		}
	}
	return true
}

func priceSortFn(i, j *price.TuitionPrice) bool {
	return i.CreatedAt.After(j.CreatedAt)
}

func (s *InMemoryPriceStore) Create(ctx context.Context, p *price.TuitionPrice) error {
	if p == nil {
		return ierr.NewError("price cannot be nil").
			WithHint("Price data is required").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, p.ID, p)
}

func (s *InMemoryPriceStore) Get(ctx context.Context, id string) (*price.TuitionPrice, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryPriceStore) Update(ctx context.Context, p *price.TuitionPrice) error {
	return s.InMemoryStore.Update(ctx, p.ID, p)
}

func (s *InMemoryPriceStore) List(ctx context.Context, filter *types.QueryFilter) ([]*price.TuitionPrice, error) {
	return s.InMemoryStore.List(ctx, filter, priceFilterFn, priceSortFn)
}

func (s *InMemoryPriceStore) GetActive(ctx context.Context, paymentType types.PaymentType, currency string) (*price.TuitionPrice, error) {
	prices, err := s.InMemoryStore.List(ctx, nil, func(ctx context.Context, p *price.TuitionPrice, _ interface{}) bool {
		return CheckTenantFilter(ctx, p.TenantID) &&
			p.IsActive &&
			p.Status == types.StatusPublished &&
			p.PaymentType == paymentType &&
			p.Currency == currency
	}, priceSortFn)
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return nil, ierr.NewError("price not found").
			WithHintf("No active %s price for %s", paymentType, currency).
			Mark(ierr.ErrNotFound)
	}
	return prices[0], nil
}
