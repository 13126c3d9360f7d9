package postgres

import (
	"context"

	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/tuitionbill/tuitionbill/internal/domain/invoice"
	"github.com/tuitionbill/tuitionbill/internal/logger"
	"github.com/tuitionbill/tuitionbill/internal/postgres"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

const lineItemColumns = `id, tenant_id, invoice_id, item_type, description, currency, unit_price, quantity,
	discount_percent, tax_rate_ids, line_total, discount_amount, tax_amount, final_amount, sort_order,
	status, created_at, updated_at, created_by, updated_by`

type lineItemRow struct {
	ID              string          `db:"id"`
	InvoiceID       string          `db:"invoice_id"`
	ItemType        string          `db:"item_type"`
	Description     string          `db:"description"`
	Currency        string          `db:"currency"`
	UnitPrice       int64           `db:"unit_price"`
	Quantity        int64           `db:"quantity"`
	DiscountPercent decimal.Decimal `db:"discount_percent"`
	TaxRateIDs      pq.StringArray  `db:"tax_rate_ids"`
	LineTotal       int64           `db:"line_total"`
	DiscountAmount  int64           `db:"discount_amount"`
	TaxAmount       int64           `db:"tax_amount"`
	FinalAmount     int64           `db:"final_amount"`
	SortOrder       int             `db:"sort_order"`
	types.BaseModel
}

func (r lineItemRow) toDomain() *invoice.InvoiceLineItem {
	return &invoice.InvoiceLineItem{
		ID:              r.ID,
		InvoiceID:       r.InvoiceID,
		ItemType:        types.ItemType(r.ItemType),
		Description:     r.Description,
		Currency:        r.Currency,
		UnitPrice:       types.NewMoney(r.UnitPrice, r.Currency),
		Quantity:        r.Quantity,
		DiscountPercent: r.DiscountPercent,
		TaxRateIDs:      append([]string{}, r.TaxRateIDs...),
		LineTotal:       types.NewMoney(r.LineTotal, r.Currency),
		DiscountAmount:  types.NewMoney(r.DiscountAmount, r.Currency),
		TaxAmount:       types.NewMoney(r.TaxAmount, r.Currency),
		FinalAmount:     types.NewMoney(r.FinalAmount, r.Currency),
		SortOrder:       r.SortOrder,
		BaseModel:       r.BaseModel,
	}
}

type invoiceLineItemRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewInvoiceLineItemRepository(db *postgres.DB, logger *logger.Logger) invoice.LineItemRepository {
	return &invoiceLineItemRepository{db: db, logger: logger}
}

func (r *invoiceLineItemRepository) CreateMany(ctx context.Context, items []*invoice.InvoiceLineItem) error {
	if len(items) == 0 {
		return nil
	}

	span := StartRepositorySpan(ctx, "invoice_line_item", "create_many", map[string]interface{}{
		"count": len(items),
	})
	defer FinishSpan(span)

	query := `
		INSERT INTO invoice_line_items (` + lineItemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	q := r.db.GetQuerier(ctx)
	for _, item := range items {
		_, err := q.ExecContext(ctx, query,
			item.ID, item.TenantID, item.InvoiceID, string(item.ItemType), item.Description, item.Currency,
			item.UnitPrice.MinorUnits(), item.Quantity, item.DiscountPercent, pq.Array(item.TaxRateIDs),
			item.LineTotal.MinorUnits(), item.DiscountAmount.MinorUnits(), item.TaxAmount.MinorUnits(),
			item.FinalAmount.MinorUnits(), item.SortOrder,
			item.Status, item.CreatedAt, item.UpdatedAt, item.CreatedBy, item.UpdatedBy,
		)
		if err != nil {
			SetSpanError(span, err)
			return dbError(err, "Failed to create invoice line items", map[string]any{
				"invoice_id":   item.InvoiceID,
				"line_item_id": item.ID,
			})
		}
	}

	r.logger.Debugw("created invoice line items",
		"invoice_id", items[0].InvoiceID,
		"count", len(items),
	)
	return nil
}

func (r *invoiceLineItemRepository) GetByInvoiceID(ctx context.Context, invoiceID string) ([]*invoice.InvoiceLineItem, error) {
	span := StartRepositorySpan(ctx, "invoice_line_item", "get_by_invoice_id", map[string]interface{}{
		"invoice_id": invoiceID,
	})
	defer FinishSpan(span)

	query := `SELECT ` + lineItemColumns + ` FROM invoice_line_items
		WHERE tenant_id = $1 AND invoice_id = $2 AND status = $3
		ORDER BY sort_order ASC, id ASC`

	var rows []lineItemRow
	err := r.db.GetQuerier(ctx).SelectContext(ctx, &rows, query, types.GetTenantID(ctx), invoiceID, types.StatusPublished)
	if err != nil {
		SetSpanError(span, err)
		return nil, dbError(err, "Failed to get invoice line items", map[string]any{"invoice_id": invoiceID})
	}
	return lo.Map(rows, func(row lineItemRow, _ int) *invoice.InvoiceLineItem { return row.toDomain() }), nil
}

// DeleteByInvoiceID hard deletes the rows; their tax snapshots cascade
func (r *invoiceLineItemRepository) DeleteByInvoiceID(ctx context.Context, invoiceID string) error {
	span := StartRepositorySpan(ctx, "invoice_line_item", "delete_by_invoice_id", map[string]interface{}{
		"invoice_id": invoiceID,
	})
	defer FinishSpan(span)

	query := `DELETE FROM invoice_line_items WHERE tenant_id = $1 AND invoice_id = $2`
	if _, err := r.db.GetQuerier(ctx).ExecContext(ctx, query, types.GetTenantID(ctx), invoiceID); err != nil {
		SetSpanError(span, err)
		return dbError(err, "Failed to delete invoice line items", map[string]any{"invoice_id": invoiceID})
	}
	return nil
}
