package invoice

import (
	"github.com/shopspring/decimal"
	"github.com/tuitionbill/tuitionbill/internal/domain/taxsnapshot"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

// InvoiceLineItem is a priced row of an invoice. The computed amounts are
// always the output of the line item calculator for the stored inputs.
type InvoiceLineItem struct {
	ID              string                     `json:"id"`
	InvoiceID       string                     `json:"invoice_id"`
	ItemType        types.ItemType             `json:"item_type"`
	Description     string                     `json:"description"`
	Currency        string                     `json:"currency"`
	UnitPrice       types.Money                `json:"unit_price"`
	Quantity        int64                      `json:"quantity"`
	DiscountPercent decimal.Decimal            `json:"discount_percent"`
	TaxRateIDs      []string                   `json:"tax_rate_ids"`
	LineTotal       types.Money                `json:"line_total"`
	DiscountAmount  types.Money                `json:"discount_amount"`
	TaxAmount       types.Money                `json:"tax_amount"`
	FinalAmount     types.Money                `json:"final_amount"`
	SortOrder       int                        `json:"sort_order"`
	Taxes           []*taxsnapshot.TaxSnapshot `json:"taxes,omitempty"`
	types.BaseModel
}
