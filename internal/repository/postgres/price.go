package postgres

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/tuitionbill/tuitionbill/internal/cache"
	"github.com/tuitionbill/tuitionbill/internal/domain/price"
	"github.com/tuitionbill/tuitionbill/internal/logger"
	"github.com/tuitionbill/tuitionbill/internal/postgres"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

const priceColumns = `id, tenant_id, payment_type, description, amount, currency, is_active,
	status, created_at, updated_at, created_by, updated_by`

type priceRow struct {
	ID          string `db:"id"`
	PaymentType string `db:"payment_type"`
	Description string `db:"description"`
	Amount      int64  `db:"amount"`
	Currency    string `db:"currency"`
	IsActive    bool   `db:"is_active"`
	types.BaseModel
}

func (r priceRow) toDomain() *price.TuitionPrice {
	return &price.TuitionPrice{
		ID:          r.ID,
		PaymentType: types.PaymentType(r.PaymentType),
		Description: r.Description,
		Amount:      types.NewMoney(r.Amount, r.Currency),
		Currency:    r.Currency,
		IsActive:    r.IsActive,
		BaseModel:   r.BaseModel,
	}
}

type priceRepository struct {
	db     *postgres.DB
	logger *logger.Logger
	cache  cache.Cache
}

func NewPriceRepository(db *postgres.DB, logger *logger.Logger, cache cache.Cache) price.Repository {
	return &priceRepository{db: db, logger: logger, cache: cache}
}

func (r *priceRepository) Create(ctx context.Context, p *price.TuitionPrice) error {
	span := StartRepositorySpan(ctx, "price", "create", map[string]interface{}{
		"price_id": p.ID,
	})
	defer FinishSpan(span)

	r.logger.Debugw("creating tuition price",
		"price_id", p.ID,
		"payment_type", p.PaymentType,
		"currency", p.Currency,
	)

	query := `
		INSERT INTO tuition_prices (` + priceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		p.ID, p.TenantID, string(p.PaymentType), p.Description, p.Amount.MinorUnits(), p.Currency, p.IsActive,
		p.Status, p.CreatedAt, p.UpdatedAt, p.CreatedBy, p.UpdatedBy,
	)
	if err != nil {
		SetSpanError(span, err)
		if isUniqueViolation(err, "") {
			return alreadyExists(err, "active price", p.ID)
		}
		return dbError(err, "Failed to create price", map[string]any{"price_id": p.ID})
	}

	r.invalidateActive(ctx, p)
	return nil
}

func (r *priceRepository) Get(ctx context.Context, id string) (*price.TuitionPrice, error) {
	span := StartRepositorySpan(ctx, "price", "get", map[string]interface{}{
		"price_id": id,
	})
	defer FinishSpan(span)

	var row priceRow
	query := `SELECT ` + priceColumns + ` FROM tuition_prices WHERE id = $1 AND tenant_id = $2 AND status = $3`
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &row, query, id, types.GetTenantID(ctx), types.StatusPublished); err != nil {
		SetSpanError(span, err)
		return nil, getOne(err, "Price", id)
	}
	return row.toDomain(), nil
}

func (r *priceRepository) Update(ctx context.Context, p *price.TuitionPrice) error {
	span := StartRepositorySpan(ctx, "price", "update", map[string]interface{}{
		"price_id": p.ID,
	})
	defer FinishSpan(span)

	r.logger.Debugw("updating tuition price",
		"price_id", p.ID,
		"is_active", p.IsActive,
	)

	query := `
		UPDATE tuition_prices SET description = $1, is_active = $2, updated_at = $3, updated_by = $4
		WHERE id = $5 AND tenant_id = $6 AND status = $7`

	res, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		p.Description, p.IsActive, time.Now().UTC(), types.GetUserID(ctx),
		p.ID, types.GetTenantID(ctx), types.StatusPublished,
	)
	if err != nil {
		SetSpanError(span, err)
		if isUniqueViolation(err, "idx_tuition_prices_active_type") {
			return alreadyExists(err, "active price", p.ID)
		}
		return dbError(err, "Failed to update price", map[string]any{"price_id": p.ID})
	}
	if err := requireAffected(res, "Price", p.ID); err != nil {
		return err
	}

	r.invalidateActive(ctx, p)
	return nil
}

func (r *priceRepository) List(ctx context.Context, filter *types.QueryFilter) ([]*price.TuitionPrice, error) {
	span := StartRepositorySpan(ctx, "price", "list", nil)
	defer FinishSpan(span)

	conds := newTenantConditions(ctx)
	conds.add("status = ?", types.StatusPublished)
	var base types.BaseFilter
	if filter != nil {
		base = filter
	}
	query := `SELECT ` + priceColumns + ` FROM tuition_prices` + conds.where() + conds.pageClause(base, "payment_type", "amount")

	var rows []priceRow
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &rows, query, conds.args...); err != nil {
		SetSpanError(span, err)
		return nil, dbError(err, "Failed to list prices", nil)
	}
	return lo.Map(rows, func(row priceRow, _ int) *price.TuitionPrice { return row.toDomain() }), nil
}

func (r *priceRepository) GetActive(ctx context.Context, paymentType types.PaymentType, currency string) (*price.TuitionPrice, error) {
	span := StartRepositorySpan(ctx, "price", "get_active", map[string]interface{}{
		"payment_type": paymentType,
		"currency":     currency,
	})
	defer FinishSpan(span)

	key := cache.GenerateKey(cache.PrefixTuitionPrice, types.GetTenantID(ctx), paymentType, currency)
	if _, inTx := postgres.GetTx(ctx); !inTx {
		if value, found := r.cache.Get(ctx, key); found {
			if p, ok := value.(*price.TuitionPrice); ok {
				copied := *p
				return &copied, nil
			}
		}
	}

	var row priceRow
	query := `SELECT ` + priceColumns + ` FROM tuition_prices
		WHERE tenant_id = $1 AND payment_type = $2 AND currency = $3 AND is_active AND status = $4`
	err := r.db.GetQuerier(ctx).GetContext(ctx, &row, query, types.GetTenantID(ctx), string(paymentType), currency, types.StatusPublished)
	if err != nil {
		SetSpanError(span, err)
		return nil, getOne(err, "Tuition price", string(paymentType)+"/"+currency)
	}

	p := row.toDomain()
	copied := *p
	r.cache.Set(ctx, key, &copied, 0)
	return p, nil
}

func (r *priceRepository) invalidateActive(ctx context.Context, p *price.TuitionPrice) {
	r.cache.Delete(ctx, cache.GenerateKey(cache.PrefixTuitionPrice, types.GetTenantID(ctx), p.PaymentType, p.Currency))
}
