package invoice

import (
	"time"

	"github.com/tuitionbill/tuitionbill/internal/types"
)

// Invoice represents the invoice domain model. Subtotal, DiscountAmount,
// TaxAmount and Total are denormalized from the line items and are only
// written together with them.
type Invoice struct {
	ID             string              `json:"id"`
	FamilyID       string              `json:"family_id"`
	InvoiceNumber  string              `json:"invoice_number"`
	Currency       string              `json:"currency"`
	InvoiceStatus  types.InvoiceStatus `json:"invoice_status"`
	Subtotal       types.Money         `json:"subtotal"`
	DiscountAmount types.Money         `json:"discount_amount"`
	TaxAmount      types.Money         `json:"tax_amount"`
	Total          types.Money         `json:"total"`
	AmountPaid     types.Money         `json:"amount_paid"`
	IssueDate      *time.Time          `json:"issue_date,omitempty"`
	DueDate        *time.Time          `json:"due_date,omitempty"`
	PaidAt         *time.Time          `json:"paid_at,omitempty"`
	Notes          string              `json:"notes,omitempty"`
	LineItems      []*InvoiceLineItem  `json:"line_items,omitempty"`
	types.BaseModel
}

// Totals is the aggregate of an invoice's line items
type Totals struct {
	Subtotal       types.Money `json:"subtotal"`
	DiscountAmount types.Money `json:"discount_amount"`
	TaxAmount      types.Money `json:"tax_amount"`
	Total          types.Money `json:"total"`
}

// ApplyTotals writes the aggregate onto the invoice
func (i *Invoice) ApplyTotals(t Totals) {
	i.Subtotal = t.Subtotal
	i.DiscountAmount = t.DiscountAmount
	i.TaxAmount = t.TaxAmount
	i.Total = t.Total
}

// AmountRemaining is what is still owed, never below zero
func (i *Invoice) AmountRemaining() types.Money {
	remaining, err := i.Total.SubClamped(i.AmountPaid)
	if err != nil {
		return types.ZeroMoney(i.Currency)
	}
	return remaining
}

func (i *Invoice) IsDraft() bool {
	return i.InvoiceStatus == types.InvoiceStatusDraft
}

func (i *Invoice) Validate() error {
	if i.FamilyID == "" {
		return NewValidationError("family_id", "is required")
	}
	if !types.IsValidCurrency(i.Currency) {
		return NewValidationError("currency", "must be a 3 letter ISO code")
	}
	if err := i.InvoiceStatus.Validate(); err != nil {
		return err
	}
	for _, m := range []types.Money{i.Subtotal, i.DiscountAmount, i.TaxAmount, i.Total, i.AmountPaid} {
		if m.Currency() != i.Currency {
			return NewValidationError("currency", "all amounts must use the invoice currency")
		}
		if m.IsNegative() {
			return NewValidationError("amount", "must be non negative")
		}
	}
	if i.IssueDate != nil && i.DueDate != nil && i.DueDate.Before(*i.IssueDate) {
		return NewValidationError("due_date", "must not be before issue_date")
	}
	return nil
}
