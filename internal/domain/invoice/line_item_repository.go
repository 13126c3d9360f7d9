package invoice

import (
	"context"
)

// LineItemRepository defines the interface for invoice line item persistence operations
type LineItemRepository interface {
	// CreateMany creates multiple invoice line items
	CreateMany(ctx context.Context, items []*InvoiceLineItem) error

	// GetByInvoiceID retrieves all line items for an invoice ordered by sort order
	GetByInvoiceID(ctx context.Context, invoiceID string) ([]*InvoiceLineItem, error)

	// DeleteByInvoiceID removes all line items of an invoice
	DeleteByInvoiceID(ctx context.Context, invoiceID string) error
}
