package postgres

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/tuitionbill/tuitionbill/internal/domain/invoice"
	"github.com/tuitionbill/tuitionbill/internal/logger"
	"github.com/tuitionbill/tuitionbill/internal/postgres"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

const invoiceColumns = `id, tenant_id, invoice_number, family_id, currency, invoice_status,
	subtotal, discount_amount, tax_amount, total, amount_paid, issue_date, due_date, paid_at, notes,
	status, created_at, updated_at, created_by, updated_by`

type invoiceRow struct {
	ID             string     `db:"id"`
	InvoiceNumber  string     `db:"invoice_number"`
	FamilyID       string     `db:"family_id"`
	Currency       string     `db:"currency"`
	InvoiceStatus  string     `db:"invoice_status"`
	Subtotal       int64      `db:"subtotal"`
	DiscountAmount int64      `db:"discount_amount"`
	TaxAmount      int64      `db:"tax_amount"`
	Total          int64      `db:"total"`
	AmountPaid     int64      `db:"amount_paid"`
	IssueDate      *time.Time `db:"issue_date"`
	DueDate        *time.Time `db:"due_date"`
	PaidAt         *time.Time `db:"paid_at"`
	Notes          string     `db:"notes"`
	types.BaseModel
}

func (r invoiceRow) toDomain() *invoice.Invoice {
	return &invoice.Invoice{
		ID:             r.ID,
		FamilyID:       r.FamilyID,
		InvoiceNumber:  r.InvoiceNumber,
		Currency:       r.Currency,
		InvoiceStatus:  types.InvoiceStatus(r.InvoiceStatus),
		Subtotal:       types.NewMoney(r.Subtotal, r.Currency),
		DiscountAmount: types.NewMoney(r.DiscountAmount, r.Currency),
		TaxAmount:      types.NewMoney(r.TaxAmount, r.Currency),
		Total:          types.NewMoney(r.Total, r.Currency),
		AmountPaid:     types.NewMoney(r.AmountPaid, r.Currency),
		IssueDate:      r.IssueDate,
		DueDate:        r.DueDate,
		PaidAt:         r.PaidAt,
		Notes:          r.Notes,
		BaseModel:      r.BaseModel,
	}
}

type invoiceRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewInvoiceRepository(db *postgres.DB, logger *logger.Logger) invoice.Repository {
	return &invoiceRepository{db: db, logger: logger}
}

func (r *invoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	span := StartRepositorySpan(ctx, "invoice", "create", map[string]interface{}{
		"invoice_id": inv.ID,
	})
	defer FinishSpan(span)

	r.logger.Debugw("creating invoice",
		"invoice_id", inv.ID,
		"tenant_id", inv.TenantID,
		"family_id", inv.FamilyID,
	)

	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	_, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		inv.ID, inv.TenantID, inv.InvoiceNumber, inv.FamilyID, inv.Currency, string(inv.InvoiceStatus),
		inv.Subtotal.MinorUnits(), inv.DiscountAmount.MinorUnits(), inv.TaxAmount.MinorUnits(),
		inv.Total.MinorUnits(), inv.AmountPaid.MinorUnits(), inv.IssueDate, inv.DueDate, inv.PaidAt, inv.Notes,
		inv.Status, inv.CreatedAt, inv.UpdatedAt, inv.CreatedBy, inv.UpdatedBy,
	)
	if err != nil {
		SetSpanError(span, err)
		if isUniqueViolation(err, "") {
			return alreadyExists(err, "invoice", inv.ID)
		}
		return dbError(err, "Failed to create invoice", map[string]any{"invoice_id": inv.ID})
	}
	return nil
}

func (r *invoiceRepository) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.get(ctx, id, false)
}

func (r *invoiceRepository) GetForUpdate(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.get(ctx, id, true)
}

func (r *invoiceRepository) get(ctx context.Context, id string, lock bool) (*invoice.Invoice, error) {
	span := StartRepositorySpan(ctx, "invoice", "get", map[string]interface{}{
		"invoice_id": id,
		"lock":       lock,
	})
	defer FinishSpan(span)

	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 AND tenant_id = $2 AND status = $3`
	if lock {
		query += ` FOR UPDATE`
	}

	var row invoiceRow
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &row, query, id, types.GetTenantID(ctx), types.StatusPublished); err != nil {
		SetSpanError(span, err)
		return nil, getOne(err, "Invoice", id)
	}
	return row.toDomain(), nil
}

func (r *invoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	span := StartRepositorySpan(ctx, "invoice", "update", map[string]interface{}{
		"invoice_id": inv.ID,
	})
	defer FinishSpan(span)

	r.logger.Debugw("updating invoice",
		"invoice_id", inv.ID,
		"invoice_status", inv.InvoiceStatus,
	)

	query := `
		UPDATE invoices SET
			invoice_status = $1, subtotal = $2, discount_amount = $3, tax_amount = $4, total = $5,
			amount_paid = $6, issue_date = $7, due_date = $8, paid_at = $9, notes = $10,
			updated_at = $11, updated_by = $12
		WHERE id = $13 AND tenant_id = $14 AND status = $15`

	res, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		string(inv.InvoiceStatus), inv.Subtotal.MinorUnits(), inv.DiscountAmount.MinorUnits(),
		inv.TaxAmount.MinorUnits(), inv.Total.MinorUnits(), inv.AmountPaid.MinorUnits(),
		inv.IssueDate, inv.DueDate, inv.PaidAt, inv.Notes,
		time.Now().UTC(), types.GetUserID(ctx),
		inv.ID, types.GetTenantID(ctx), types.StatusPublished,
	)
	if err != nil {
		SetSpanError(span, err)
		return dbError(err, "Failed to update invoice", map[string]any{"invoice_id": inv.ID})
	}
	return requireAffected(res, "Invoice", inv.ID)
}

func (r *invoiceRepository) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	span := StartRepositorySpan(ctx, "invoice", "list", nil)
	defer FinishSpan(span)

	conds := r.filterConditions(ctx, filter)
	var base types.BaseFilter
	if filter != nil && filter.QueryFilter != nil {
		base = filter.QueryFilter
	}
	query := `SELECT ` + invoiceColumns + ` FROM invoices` + conds.where() + conds.pageClause(base, "due_date", "issue_date", "total")

	var rows []invoiceRow
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &rows, query, conds.args...); err != nil {
		SetSpanError(span, err)
		return nil, dbError(err, "Failed to list invoices", nil)
	}
	return lo.Map(rows, func(row invoiceRow, _ int) *invoice.Invoice { return row.toDomain() }), nil
}

func (r *invoiceRepository) Count(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	span := StartRepositorySpan(ctx, "invoice", "count", nil)
	defer FinishSpan(span)

	conds := r.filterConditions(ctx, filter)
	var count int
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &count, `SELECT COUNT(*) FROM invoices`+conds.where(), conds.args...); err != nil {
		SetSpanError(span, err)
		return 0, dbError(err, "Failed to count invoices", nil)
	}
	return count, nil
}

func (r *invoiceRepository) filterConditions(ctx context.Context, filter *types.InvoiceFilter) *conditions {
	conds := newTenantConditions(ctx)
	conds.add("status = ?", types.StatusPublished)
	if filter == nil {
		return conds
	}
	if filter.FamilyID != "" {
		conds.add("family_id = ?", filter.FamilyID)
	}
	if len(filter.InvoiceStatus) > 0 {
		conds.add("invoice_status = ANY(?)", pq.Array(lo.Map(filter.InvoiceStatus, func(s types.InvoiceStatus, _ int) string {
			return string(s)
		})))
	}
	return conds
}
