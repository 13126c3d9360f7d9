package testutil

import (
	"context"

	"github.com/samber/lo"
	"github.com/tuitionbill/tuitionbill/internal/domain/invoice"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

// InMemoryInvoiceStore implements invoice.Repository
type InMemoryInvoiceStore struct {
	*InMemoryStore[*invoice.Invoice]
	Failures
}

// NewInMemoryInvoiceStore creates a new in-memory invoice store
func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{
		InMemoryStore: NewInMemoryStore(copyInvoice),
	}
}

// copyInvoice copies the invoice row; line items live in their own store
func copyInvoice(inv *invoice.Invoice) *invoice.Invoice {
	if inv == nil {
		return nil
	}
	c := *inv
	c.LineItems = nil
	return &c
}

func invoiceFilterFn(ctx context.Context, inv *invoice.Invoice, filter interface{}) bool {
	if inv == nil || !CheckTenantFilter(ctx, inv.TenantID) {
		return false
	}

	f, ok := filter.(*types.InvoiceFilter)
	if !ok || f == nil {
		return true
	}

	if status := f.GetStatus(); status != "" && string(inv.Status) != status {
		return false
	}
	if f.FamilyID != "" && inv.FamilyID != f.FamilyID {
		return false
	}
	if len(f.InvoiceStatus) > 0 && !lo.Contains(f.InvoiceStatus, inv.InvoiceStatus) {
		return false
	}
	return true
}

func invoiceSortFn(i, j *invoice.Invoice) bool {
	return i.CreatedAt.After(j.CreatedAt)
}

func (s *InMemoryInvoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	if inv == nil {
		return ierr.NewError("invoice cannot be nil").
			WithHint("Invoice data is required").
			Mark(ierr.ErrValidation)
	}
	if err := s.check("Create"); err != nil {
		return err
	}
	return s.InMemoryStore.Create(ctx, inv.ID, inv)
}

func (s *InMemoryInvoiceStore) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryInvoiceStore) GetForUpdate(ctx context.Context, id string) (*invoice.Invoice, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryInvoiceStore) Update(ctx context.Context, inv *invoice.Invoice) error {
	if err := s.check("Update"); err != nil {
		return err
	}
	return s.InMemoryStore.Update(ctx, inv.ID, inv)
}

func (s *InMemoryInvoiceStore) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	return s.InMemoryStore.List(ctx, filter, invoiceFilterFn, invoiceSortFn)
}

func (s *InMemoryInvoiceStore) Count(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, invoiceFilterFn)
}

func (s *InMemoryInvoiceStore) Clear() {
	s.InMemoryStore.Clear()
	s.Failures.Reset()
}
