package invoice

import (
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

// NewValidationError creates a new validation error for an invoice field
func NewValidationError(field, message string) error {
	return ierr.NewError("invoice validation failed").
		WithHintf("Invoice %s %s", field, message).
		WithReportableDetails(map[string]any{
			"field": field,
		}).
		Mark(ierr.ErrValidation)
}

// NewNotDraftError is returned when line items are changed on a non-draft invoice
func NewNotDraftError(inv *Invoice) error {
	return ierr.NewError("invoice is not a draft").
		WithHint("Line items can only be changed while the invoice is a draft").
		WithReportableDetails(map[string]any{
			"invoice_id":     inv.ID,
			"invoice_status": inv.InvoiceStatus,
		}).
		Mark(ierr.ErrInvalidOperation)
}

// NewInvalidTransitionError is returned for a disallowed status change
func NewInvalidTransitionError(inv *Invoice, to types.InvoiceStatus) error {
	return ierr.NewError("invalid invoice status transition").
		WithHintf("Invoice cannot move from %s to %s", inv.InvoiceStatus, to).
		WithReportableDetails(map[string]any{
			"invoice_id": inv.ID,
			"from":       inv.InvoiceStatus,
			"to":         to,
		}).
		Mark(ierr.ErrInvalidOperation)
}
