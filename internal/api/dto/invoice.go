package dto

import (
	"context"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/tuitionbill/tuitionbill/internal/domain/invoice"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/types"
	"github.com/tuitionbill/tuitionbill/internal/validator"
)

// InvoiceLineItemRequest describes one line item to be priced
type InvoiceLineItemRequest struct {
	ItemType    types.ItemType `json:"item_type" validate:"required,item_type"`
	Description string         `json:"description" validate:"max=500"`
	// unit_price in minor units of the invoice currency
	UnitPrice int64 `json:"unit_price" validate:"min=0"`
	Quantity  int64 `json:"quantity" validate:"min=0"`
	// discount_percent is 0-100
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	// tax_rate_ids, when omitted, defaults to the active rates for item_type.
	// An explicit empty list means no tax.
	TaxRateIDs []string `json:"tax_rate_ids"`
}

func (r InvoiceLineItemRequest) ToInput(currency string) invoice.LineItemInput {
	return invoice.LineItemInput{
		ItemType:        r.ItemType,
		Description:     r.Description,
		UnitPrice:       types.NewMoney(r.UnitPrice, currency),
		Quantity:        r.Quantity,
		DiscountPercent: r.DiscountPercent,
		TaxRateIDs:      r.TaxRateIDs,
	}
}

func validateLineItems(items []InvoiceLineItemRequest) error {
	for i, item := range items {
		if item.DiscountPercent.IsNegative() || item.DiscountPercent.GreaterThan(hundred) {
			return ierr.NewError("discount_percent out of range").
				WithHintf("Line item %d discount must be between 0 and 100", i+1).
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}

// CreateInvoiceRequest creates a draft invoice with its line items
type CreateInvoiceRequest struct {
	FamilyID  string                   `json:"family_id" validate:"required"`
	Currency  string                   `json:"currency" validate:"required,currency"`
	IssueDate *time.Time               `json:"issue_date,omitempty"`
	DueDate   *time.Time               `json:"due_date,omitempty"`
	Notes     string                   `json:"notes,omitempty"`
	LineItems []InvoiceLineItemRequest `json:"line_items" validate:"dive"`
}

func (r CreateInvoiceRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.IssueDate != nil && r.DueDate != nil && r.DueDate.Before(*r.IssueDate) {
		return ierr.NewError("due_date before issue_date").
			WithHint("Due date must not be before the issue date").
			Mark(ierr.ErrValidation)
	}
	return validateLineItems(r.LineItems)
}

// ToInvoice builds the draft invoice shell; totals are filled in by the service
func (r CreateInvoiceRequest) ToInvoice(ctx context.Context) *invoice.Invoice {
	currency := strings.ToLower(r.Currency)
	zero := types.ZeroMoney(currency)
	return &invoice.Invoice{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		FamilyID:       r.FamilyID,
		InvoiceNumber:  types.GenerateInvoiceNumber(),
		Currency:       currency,
		InvoiceStatus:  types.InvoiceStatusDraft,
		Subtotal:       zero,
		DiscountAmount: zero,
		TaxAmount:      zero,
		Total:          zero,
		AmountPaid:     zero,
		IssueDate:      r.IssueDate,
		DueDate:        r.DueDate,
		Notes:          r.Notes,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
}

func (r CreateInvoiceRequest) LineItemInputs() []invoice.LineItemInput {
	return lo.Map(r.LineItems, func(item InvoiceLineItemRequest, _ int) invoice.LineItemInput {
		return item.ToInput(strings.ToLower(r.Currency))
	})
}

// ReplaceLineItemsRequest replaces every line item of a draft invoice
type ReplaceLineItemsRequest struct {
	LineItems []InvoiceLineItemRequest `json:"line_items" validate:"dive"`
}

func (r ReplaceLineItemsRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return validateLineItems(r.LineItems)
}

func (r ReplaceLineItemsRequest) LineItemInputs(currency string) []invoice.LineItemInput {
	return lo.Map(r.LineItems, func(item InvoiceLineItemRequest, _ int) invoice.LineItemInput {
		return item.ToInput(currency)
	})
}

// UpdateInvoiceStatusRequest moves an invoice through its lifecycle
type UpdateInvoiceStatusRequest struct {
	Status types.InvoiceStatus `json:"status" validate:"required"`
}

func (r UpdateInvoiceStatusRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.Status.Validate()
}

// RecordInvoicePaymentRequest applies a settled amount to an invoice
type RecordInvoicePaymentRequest struct {
	// amount in minor units of the invoice currency
	Amount    int64  `json:"amount" validate:"gt=0"`
	PaymentID string `json:"payment_id,omitempty"`
}

func (r RecordInvoicePaymentRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// InvoiceResponse represents an invoice with its line items and taxes
type InvoiceResponse struct {
	*invoice.Invoice `json:",inline"`
	AmountRemaining  types.Money `json:"amount_remaining"`
}

func NewInvoiceResponse(inv *invoice.Invoice) *InvoiceResponse {
	return &InvoiceResponse{Invoice: inv, AmountRemaining: inv.AmountRemaining()}
}

type ListInvoicesResponse = types.ListResponse[*InvoiceResponse]
