package invoice

import (
	"github.com/shopspring/decimal"
	"github.com/tuitionbill/tuitionbill/internal/domain/taxsnapshot"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

// LineItemInput is what a line item is priced from
type LineItemInput struct {
	ItemType    types.ItemType
	Description string
	UnitPrice   types.Money
	Quantity    int64
	// DiscountPercent is 0-100
	DiscountPercent decimal.Decimal
	// TaxRateIDs are the rates to apply; nil means use the rates applicable to ItemType
	TaxRateIDs []string
}

// LineItemCalculation is the priced result for one line item.
// FinalAmount = max(0, LineTotal + TaxAmount - DiscountAmount).
type LineItemCalculation struct {
	LineTotal      types.Money           `json:"line_total"`
	DiscountAmount types.Money           `json:"discount_amount"`
	TaxAmount      types.Money           `json:"tax_amount"`
	FinalAmount    types.Money           `json:"final_amount"`
	TaxBreakdown   []taxsnapshot.TaxLine `json:"tax_breakdown"`
}

// ApplyCalculation copies the computed amounts onto the line item
func (li *InvoiceLineItem) ApplyCalculation(c *LineItemCalculation) {
	li.LineTotal = c.LineTotal
	li.DiscountAmount = c.DiscountAmount
	li.TaxAmount = c.TaxAmount
	li.FinalAmount = c.FinalAmount
}
