package testutil

import (
	"context"

	"github.com/samber/lo"
	"github.com/tuitionbill/tuitionbill/internal/domain/payment"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

// InMemoryPaymentStore implements payment.Repository
type InMemoryPaymentStore struct {
	*InMemoryStore[*payment.Payment]
	Failures
}

// NewInMemoryPaymentStore creates a new in-memory payment repository
func NewInMemoryPaymentStore() *InMemoryPaymentStore {
	return &InMemoryPaymentStore{
		InMemoryStore: NewInMemoryStore(copyPayment),
	}
}

func copyPayment(p *payment.Payment) *payment.Payment {
	if p == nil {
		return nil
	}
	c := *p
	c.TargetIDs = append([]string(nil), p.TargetIDs...)
	if p.Metadata != nil {
		c.Metadata = make(types.Metadata, len(p.Metadata))
		for k, v := range p.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

func paymentFilterFn(ctx context.Context, p *payment.Payment, filter interface{}) bool {
	if p == nil || !CheckTenantFilter(ctx, p.TenantID) {
		return false
	}

	f, ok := filter.(*types.PaymentFilter)
	if !ok || f == nil {
		return true
	}

	if status := f.GetStatus(); status != "" && string(p.Status) != status {
		return false
	}
	if f.FamilyID != "" && p.FamilyID != f.FamilyID {
		return false
	}
	if f.PaymentStatus != "" && p.PaymentStatus != f.PaymentStatus {
		return false
	}
	if f.PaymentType != "" && p.PaymentType != f.PaymentType {
		return false
	}
	return true
}

func paymentSortFn(i, j *payment.Payment) bool {
	return i.CreatedAt.After(j.CreatedAt)
}

// Create stores a new payment, enforcing the unique idempotency key
func (s *InMemoryPaymentStore) Create(ctx context.Context, p *payment.Payment) error {
	if p == nil || p.ID == "" {
		return ierr.NewError("payment ID cannot be empty").
			WithHint("Payment ID cannot be empty").
			Mark(ierr.ErrValidation)
	}
	if err := s.check("Create"); err != nil {
		return err
	}
	if _, err := s.GetByIdempotencyKey(ctx, p.IdempotencyKey); err == nil {
		return ierr.NewError("payment already exists").
			WithHint("A payment with this idempotency key already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	return s.InMemoryStore.Create(ctx, p.ID, p)
}

func (s *InMemoryPaymentStore) Get(ctx context.Context, id string) (*payment.Payment, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryPaymentStore) GetForUpdate(ctx context.Context, id string) (*payment.Payment, error) {
	if err := s.check("GetForUpdate"); err != nil {
		return nil, err
	}
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryPaymentStore) Update(ctx context.Context, p *payment.Payment) error {
	if err := s.check("Update"); err != nil {
		return err
	}
	return s.InMemoryStore.Update(ctx, p.ID, p)
}

func (s *InMemoryPaymentStore) List(ctx context.Context, filter *types.PaymentFilter) ([]*payment.Payment, error) {
	return s.InMemoryStore.List(ctx, filter, paymentFilterFn, paymentSortFn)
}

func (s *InMemoryPaymentStore) Count(ctx context.Context, filter *types.PaymentFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, paymentFilterFn)
}

func (s *InMemoryPaymentStore) GetByIdempotencyKey(ctx context.Context, key string) (*payment.Payment, error) {
	return s.findOne(ctx, func(p *payment.Payment) bool {
		return p.IdempotencyKey == key
	}, "Payment not found for idempotency key")
}

func (s *InMemoryPaymentStore) GetByGatewayIntentID(ctx context.Context, intentID string) (*payment.Payment, error) {
	return s.findOne(ctx, func(p *payment.Payment) bool {
		return lo.FromPtr(p.GatewayIntentID) == intentID
	}, "Payment not found for gateway intent")
}

func (s *InMemoryPaymentStore) findOne(ctx context.Context, match func(*payment.Payment) bool, hint string) (*payment.Payment, error) {
	payments, err := s.InMemoryStore.List(ctx, nil, func(ctx context.Context, p *payment.Payment, _ interface{}) bool {
		return CheckTenantFilter(ctx, p.TenantID) && match(p)
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return nil, ierr.NewError("payment not found").
			WithHint(hint).
			Mark(ierr.ErrNotFound)
	}
	return payments[0], nil
}

func (s *InMemoryPaymentStore) Clear() {
	s.InMemoryStore.Clear()
	s.Failures.Reset()
}
