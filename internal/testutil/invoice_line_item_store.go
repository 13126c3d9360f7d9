package testutil

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/tuitionbill/tuitionbill/internal/domain/invoice"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
)

// InMemoryInvoiceLineItemStore implements invoice.LineItemRepository for testing
type InMemoryInvoiceLineItemStore struct {
	Failures
	mu    sync.RWMutex
	items map[string]*invoice.InvoiceLineItem
}

// NewInMemoryInvoiceLineItemStore creates a new in-memory invoice line item store
func NewInMemoryInvoiceLineItemStore() *InMemoryInvoiceLineItemStore {
	return &InMemoryInvoiceLineItemStore{
		items: make(map[string]*invoice.InvoiceLineItem),
	}
}

func copyLineItem(item *invoice.InvoiceLineItem) *invoice.InvoiceLineItem {
	c := *item
	c.TaxRateIDs = append([]string(nil), item.TaxRateIDs...)
	c.Taxes = nil
	return &c
}

func (s *InMemoryInvoiceLineItemStore) CreateMany(ctx context.Context, items []*invoice.InvoiceLineItem) error {
	if err := s.check("CreateMany"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range items {
		if _, exists := s.items[item.ID]; exists {
			return ierr.NewError("line item already exists").
				WithHintf("Line item %s already exists", item.ID).
				Mark(ierr.ErrAlreadyExists)
		}
		s.items[item.ID] = copyLineItem(item)
	}
	return nil
}

func (s *InMemoryInvoiceLineItemStore) GetByInvoiceID(ctx context.Context, invoiceID string) ([]*invoice.InvoiceLineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*invoice.InvoiceLineItem, 0)
	for _, item := range s.items {
		if item.InvoiceID == invoiceID && CheckTenantFilter(ctx, item.TenantID) {
			result = append(result, copyLineItem(item))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SortOrder < result[j].SortOrder
	})
	return result, nil
}

func (s *InMemoryInvoiceLineItemStore) DeleteByInvoiceID(ctx context.Context, invoiceID string) error {
	if err := s.check("DeleteByInvoiceID"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, item := range s.items {
		if item.InvoiceID == invoiceID {
			delete(s.items, id)
		}
	}
	return nil
}

func (s *InMemoryInvoiceLineItemStore) Snapshot() func() {
	s.mu.RLock()
	saved := maps.Clone(s.items)
	s.mu.RUnlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.items = saved
	}
}

func (s *InMemoryInvoiceLineItemStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]*invoice.InvoiceLineItem)
	s.Failures.Reset()
}
