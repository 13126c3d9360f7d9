package postgres

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/tuitionbill/tuitionbill/internal/domain/payment"
	"github.com/tuitionbill/tuitionbill/internal/logger"
	"github.com/tuitionbill/tuitionbill/internal/postgres"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

const paymentColumns = `id, tenant_id, idempotency_key, family_id, payment_type, target_ids, invoice_id, currency,
	subtotal_amount, discount_amount, tax_amount, total_amount, discount_code_id, payment_status,
	payment_method, payment_gateway, gateway_intent_id, succeeded_at, failed_at, error_message, metadata,
	status, created_at, updated_at, created_by, updated_by`

// paymentRow stores amounts as NUMERIC(12,2) major units
type paymentRow struct {
	ID              string          `db:"id"`
	IdempotencyKey  string          `db:"idempotency_key"`
	FamilyID        string          `db:"family_id"`
	PaymentType     string          `db:"payment_type"`
	TargetIDs       pq.StringArray  `db:"target_ids"`
	InvoiceID       *string         `db:"invoice_id"`
	Currency        string          `db:"currency"`
	SubtotalAmount  decimal.Decimal `db:"subtotal_amount"`
	DiscountAmount  decimal.Decimal `db:"discount_amount"`
	TaxAmount       decimal.Decimal `db:"tax_amount"`
	TotalAmount     decimal.Decimal `db:"total_amount"`
	DiscountCodeID  *string         `db:"discount_code_id"`
	PaymentStatus   string          `db:"payment_status"`
	PaymentMethod   *string         `db:"payment_method"`
	PaymentGateway  *string         `db:"payment_gateway"`
	GatewayIntentID *string         `db:"gateway_intent_id"`
	SucceededAt     *time.Time      `db:"succeeded_at"`
	FailedAt        *time.Time      `db:"failed_at"`
	ErrorMessage    *string         `db:"error_message"`
	Metadata        types.Metadata  `db:"metadata"`
	types.BaseModel
}

func (r paymentRow) toDomain() *payment.Payment {
	p := &payment.Payment{
		ID:              r.ID,
		IdempotencyKey:  r.IdempotencyKey,
		FamilyID:        r.FamilyID,
		PaymentType:     types.PaymentType(r.PaymentType),
		TargetIDs:       append([]string{}, r.TargetIDs...),
		InvoiceID:       r.InvoiceID,
		Currency:        r.Currency,
		SubtotalAmount:  types.MoneyFromMajor(r.SubtotalAmount, r.Currency),
		DiscountAmount:  types.MoneyFromMajor(r.DiscountAmount, r.Currency),
		TaxAmount:       types.MoneyFromMajor(r.TaxAmount, r.Currency),
		TotalAmount:     types.MoneyFromMajor(r.TotalAmount, r.Currency),
		DiscountCodeID:  r.DiscountCodeID,
		PaymentStatus:   types.PaymentStatus(r.PaymentStatus),
		GatewayIntentID: r.GatewayIntentID,
		SucceededAt:     r.SucceededAt,
		FailedAt:        r.FailedAt,
		ErrorMessage:    r.ErrorMessage,
		Metadata:        r.Metadata,
		BaseModel:       r.BaseModel,
	}
	if r.PaymentMethod != nil {
		p.PaymentMethodType = lo.ToPtr(types.PaymentMethodType(*r.PaymentMethod))
	}
	if r.PaymentGateway != nil {
		p.PaymentGateway = lo.ToPtr(types.PaymentGatewayType(*r.PaymentGateway))
	}
	return p
}

func paymentMethodValue(p *payment.Payment) *string {
	if p.PaymentMethodType == nil {
		return nil
	}
	return lo.ToPtr(string(*p.PaymentMethodType))
}

func paymentGatewayValue(p *payment.Payment) *string {
	if p.PaymentGateway == nil {
		return nil
	}
	return lo.ToPtr(string(*p.PaymentGateway))
}

func metadataValue(m types.Metadata) types.Metadata {
	if m == nil {
		return types.Metadata{}
	}
	return m
}

type paymentRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewPaymentRepository(db *postgres.DB, logger *logger.Logger) payment.Repository {
	return &paymentRepository{db: db, logger: logger}
}

func (r *paymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	span := StartRepositorySpan(ctx, "payment", "create", map[string]interface{}{
		"payment_id": p.ID,
	})
	defer FinishSpan(span)

	r.logger.Debugw("creating payment",
		"payment_id", p.ID,
		"tenant_id", p.TenantID,
		"family_id", p.FamilyID,
		"payment_type", p.PaymentType,
	)

	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26)`

	_, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		p.ID, p.TenantID, p.IdempotencyKey, p.FamilyID, string(p.PaymentType), pq.Array(p.TargetIDs), p.InvoiceID, p.Currency,
		p.SubtotalAmount.Major(), p.DiscountAmount.Major(), p.TaxAmount.Major(), p.TotalAmount.Major(),
		p.DiscountCodeID, string(p.PaymentStatus), paymentMethodValue(p), paymentGatewayValue(p), p.GatewayIntentID,
		p.SucceededAt, p.FailedAt, p.ErrorMessage, metadataValue(p.Metadata),
		p.Status, p.CreatedAt, p.UpdatedAt, p.CreatedBy, p.UpdatedBy,
	)
	if err != nil {
		SetSpanError(span, err)
		if isUniqueViolation(err, "") {
			return alreadyExists(err, "payment", p.ID)
		}
		return dbError(err, "Failed to create payment", map[string]any{"payment_id": p.ID})
	}
	return nil
}

func (r *paymentRepository) Get(ctx context.Context, id string) (*payment.Payment, error) {
	return r.getBy(ctx, "id", id, false)
}

func (r *paymentRepository) GetForUpdate(ctx context.Context, id string) (*payment.Payment, error) {
	return r.getBy(ctx, "id", id, true)
}

func (r *paymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*payment.Payment, error) {
	return r.getBy(ctx, "idempotency_key", key, false)
}

func (r *paymentRepository) GetByGatewayIntentID(ctx context.Context, intentID string) (*payment.Payment, error) {
	return r.getBy(ctx, "gateway_intent_id", intentID, false)
}

// getBy loads one payment by a unique column. column is never user input.
func (r *paymentRepository) getBy(ctx context.Context, column, value string, lock bool) (*payment.Payment, error) {
	span := StartRepositorySpan(ctx, "payment", "get_by_"+column, map[string]interface{}{
		column: value,
		"lock": lock,
	})
	defer FinishSpan(span)

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE ` + column + ` = $1 AND tenant_id = $2 AND status = $3`
	if lock {
		query += ` FOR UPDATE`
	}

	var row paymentRow
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &row, query, value, types.GetTenantID(ctx), types.StatusPublished); err != nil {
		SetSpanError(span, err)
		return nil, getOne(err, "Payment", value)
	}
	return row.toDomain(), nil
}

func (r *paymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	span := StartRepositorySpan(ctx, "payment", "update", map[string]interface{}{
		"payment_id": p.ID,
	})
	defer FinishSpan(span)

	r.logger.Debugw("updating payment",
		"payment_id", p.ID,
		"payment_status", p.PaymentStatus,
		"gateway_intent_id", lo.FromPtr(p.GatewayIntentID),
	)

	query := `
		UPDATE payments SET
			idempotency_key = $1, target_ids = $2, invoice_id = $3,
			subtotal_amount = $4, discount_amount = $5, tax_amount = $6, total_amount = $7,
			discount_code_id = $8, payment_status = $9, payment_method = $10, payment_gateway = $11,
			gateway_intent_id = $12, succeeded_at = $13, failed_at = $14, error_message = $15, metadata = $16,
			updated_at = $17, updated_by = $18
		WHERE id = $19 AND tenant_id = $20 AND status = $21`

	res, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		p.IdempotencyKey, pq.Array(p.TargetIDs), p.InvoiceID,
		p.SubtotalAmount.Major(), p.DiscountAmount.Major(), p.TaxAmount.Major(), p.TotalAmount.Major(),
		p.DiscountCodeID, string(p.PaymentStatus), paymentMethodValue(p), paymentGatewayValue(p),
		p.GatewayIntentID, p.SucceededAt, p.FailedAt, p.ErrorMessage, metadataValue(p.Metadata),
		time.Now().UTC(), types.GetUserID(ctx),
		p.ID, types.GetTenantID(ctx), types.StatusPublished,
	)
	if err != nil {
		SetSpanError(span, err)
		if isUniqueViolation(err, "idx_payments_gateway_intent") {
			return alreadyExists(err, "payment for this gateway intent", p.ID)
		}
		return dbError(err, "Failed to update payment", map[string]any{"payment_id": p.ID})
	}
	return requireAffected(res, "Payment", p.ID)
}

func (r *paymentRepository) List(ctx context.Context, filter *types.PaymentFilter) ([]*payment.Payment, error) {
	span := StartRepositorySpan(ctx, "payment", "list", nil)
	defer FinishSpan(span)

	conds := r.filterConditions(ctx, filter)
	var base types.BaseFilter
	if filter != nil && filter.QueryFilter != nil {
		base = filter.QueryFilter
	}
	query := `SELECT ` + paymentColumns + ` FROM payments` + conds.where() + conds.pageClause(base, "total_amount", "succeeded_at")

	var rows []paymentRow
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &rows, query, conds.args...); err != nil {
		SetSpanError(span, err)
		return nil, dbError(err, "Failed to list payments", nil)
	}
	return lo.Map(rows, func(row paymentRow, _ int) *payment.Payment { return row.toDomain() }), nil
}

func (r *paymentRepository) Count(ctx context.Context, filter *types.PaymentFilter) (int, error) {
	span := StartRepositorySpan(ctx, "payment", "count", nil)
	defer FinishSpan(span)

	conds := r.filterConditions(ctx, filter)
	var count int
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &count, `SELECT COUNT(*) FROM payments`+conds.where(), conds.args...); err != nil {
		SetSpanError(span, err)
		return 0, dbError(err, "Failed to count payments", nil)
	}
	return count, nil
}

func (r *paymentRepository) filterConditions(ctx context.Context, filter *types.PaymentFilter) *conditions {
	conds := newTenantConditions(ctx)
	conds.add("status = ?", types.StatusPublished)
	if filter == nil {
		return conds
	}
	if filter.FamilyID != "" {
		conds.add("family_id = ?", filter.FamilyID)
	}
	if filter.PaymentStatus != "" {
		conds.add("payment_status = ?", string(filter.PaymentStatus))
	}
	if filter.PaymentType != "" {
		conds.add("payment_type = ?", string(filter.PaymentType))
	}
	return conds
}
