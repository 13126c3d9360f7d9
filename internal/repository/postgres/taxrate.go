package postgres

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/tuitionbill/tuitionbill/internal/cache"
	"github.com/tuitionbill/tuitionbill/internal/domain/taxrate"
	"github.com/tuitionbill/tuitionbill/internal/logger"
	"github.com/tuitionbill/tuitionbill/internal/postgres"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

const taxRateColumns = `id, tenant_id, name, description, rate, applies_to_item_types, is_active,
	status, created_at, updated_at, created_by, updated_by`

type taxRateRow struct {
	ID                 string          `db:"id"`
	Name               string          `db:"name"`
	Description        string          `db:"description"`
	Rate               decimal.Decimal `db:"rate"`
	AppliesToItemTypes pq.StringArray  `db:"applies_to_item_types"`
	IsActive           bool            `db:"is_active"`
	types.BaseModel
}

func (r taxRateRow) toDomain() *taxrate.TaxRate {
	return &taxrate.TaxRate{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Rate:        r.Rate,
		AppliesToItemTypes: lo.Map(r.AppliesToItemTypes, func(s string, _ int) types.ItemType {
			return types.ItemType(s)
		}),
		IsActive:  r.IsActive,
		BaseModel: r.BaseModel,
	}
}

func itemTypesArray(items []types.ItemType) pq.StringArray {
	return lo.Map(items, func(it types.ItemType, _ int) string { return string(it) })
}

type taxRateRepository struct {
	db     *postgres.DB
	logger *logger.Logger
	cache  cache.Cache
}

func NewTaxRateRepository(db *postgres.DB, logger *logger.Logger, cache cache.Cache) taxrate.Repository {
	return &taxRateRepository{db: db, logger: logger, cache: cache}
}

func (r *taxRateRepository) Create(ctx context.Context, t *taxrate.TaxRate) error {
	span := StartRepositorySpan(ctx, "taxrate", "create", map[string]interface{}{
		"tax_rate_id": t.ID,
	})
	defer FinishSpan(span)

	r.logger.Debugw("creating tax rate",
		"tax_rate_id", t.ID,
		"tenant_id", t.TenantID,
	)

	query := `
		INSERT INTO tax_rates (` + taxRateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		t.ID, t.TenantID, t.Name, t.Description, t.Rate, itemTypesArray(t.AppliesToItemTypes), t.IsActive,
		t.Status, t.CreatedAt, t.UpdatedAt, t.CreatedBy, t.UpdatedBy,
	)
	if err != nil {
		SetSpanError(span, err)
		if isUniqueViolation(err, "") {
			return alreadyExists(err, "tax rate", t.ID)
		}
		return dbError(err, "Failed to create tax rate", map[string]any{"tax_rate_id": t.ID})
	}
	return nil
}

func (r *taxRateRepository) Get(ctx context.Context, id string) (*taxrate.TaxRate, error) {
	span := StartRepositorySpan(ctx, "taxrate", "get", map[string]interface{}{
		"tax_rate_id": id,
	})
	defer FinishSpan(span)

	if cached := r.getCache(ctx, id); cached != nil {
		return cached, nil
	}

	var row taxRateRow
	query := `SELECT ` + taxRateColumns + ` FROM tax_rates WHERE id = $1 AND tenant_id = $2 AND status = $3`
	err := r.db.GetQuerier(ctx).GetContext(ctx, &row, query, id, types.GetTenantID(ctx), types.StatusPublished)
	if err != nil {
		SetSpanError(span, err)
		return nil, getOne(err, "Tax rate", id)
	}

	t := row.toDomain()
	r.setCache(ctx, t)
	return t, nil
}

func (r *taxRateRepository) List(ctx context.Context, filter *types.TaxRateFilter) ([]*taxrate.TaxRate, error) {
	span := StartRepositorySpan(ctx, "taxrate", "list", nil)
	defer FinishSpan(span)

	conds := r.filterConditions(ctx, filter)
	var base types.BaseFilter
	if filter != nil && filter.QueryFilter != nil {
		base = filter.QueryFilter
	}
	query := `SELECT ` + taxRateColumns + ` FROM tax_rates` + conds.where() + conds.pageClause(base, "name")

	var rows []taxRateRow
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &rows, query, conds.args...); err != nil {
		SetSpanError(span, err)
		return nil, dbError(err, "Failed to list tax rates", nil)
	}
	return lo.Map(rows, func(row taxRateRow, _ int) *taxrate.TaxRate { return row.toDomain() }), nil
}

func (r *taxRateRepository) Count(ctx context.Context, filter *types.TaxRateFilter) (int, error) {
	span := StartRepositorySpan(ctx, "taxrate", "count", nil)
	defer FinishSpan(span)

	conds := r.filterConditions(ctx, filter)
	var count int
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &count, `SELECT COUNT(*) FROM tax_rates`+conds.where(), conds.args...); err != nil {
		SetSpanError(span, err)
		return 0, dbError(err, "Failed to count tax rates", nil)
	}
	return count, nil
}

func (r *taxRateRepository) filterConditions(ctx context.Context, filter *types.TaxRateFilter) *conditions {
	conds := newTenantConditions(ctx)
	if filter == nil {
		conds.add("status = ?", types.StatusPublished)
		return conds
	}
	if filter.QueryFilter != nil && filter.GetStatus() != "" {
		conds.applyFilter(filter.QueryFilter)
	} else {
		conds.add("status = ?", types.StatusPublished)
	}
	if len(filter.TaxRateIDs) > 0 {
		conds.add("id = ANY(?)", pq.Array(filter.TaxRateIDs))
	}
	if filter.ItemType != "" {
		conds.add("? = ANY(applies_to_item_types)", string(filter.ItemType))
	}
	if filter.ActiveOnly {
		conds.add("is_active = ?", true)
	}
	return conds
}

func (r *taxRateRepository) Update(ctx context.Context, t *taxrate.TaxRate) error {
	span := StartRepositorySpan(ctx, "taxrate", "update", map[string]interface{}{
		"tax_rate_id": t.ID,
	})
	defer FinishSpan(span)

	r.logger.Debugw("updating tax rate",
		"tax_rate_id", t.ID,
		"tenant_id", t.TenantID,
	)

	query := `
		UPDATE tax_rates SET
			name = $1, description = $2, rate = $3, applies_to_item_types = $4, is_active = $5,
			created_at = $6, updated_at = $7, updated_by = $8
		WHERE id = $9 AND tenant_id = $10 AND status = $11`

	res, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		t.Name, t.Description, t.Rate, itemTypesArray(t.AppliesToItemTypes), t.IsActive,
		t.CreatedAt, time.Now().UTC(), types.GetUserID(ctx),
		t.ID, types.GetTenantID(ctx), types.StatusPublished,
	)
	if err != nil {
		SetSpanError(span, err)
		return dbError(err, "Failed to update tax rate", map[string]any{"tax_rate_id": t.ID})
	}
	if err := requireAffected(res, "Tax rate", t.ID); err != nil {
		return err
	}

	r.deleteCache(ctx, t.ID)
	return nil
}

// Delete archives the rate. Snapshots referencing it keep their copied values.
func (r *taxRateRepository) Delete(ctx context.Context, t *taxrate.TaxRate) error {
	span := StartRepositorySpan(ctx, "taxrate", "delete", map[string]interface{}{
		"tax_rate_id": t.ID,
	})
	defer FinishSpan(span)

	r.logger.Debugw("deleting tax rate",
		"tax_rate_id", t.ID,
		"tenant_id", types.GetTenantID(ctx),
	)

	query := `
		UPDATE tax_rates SET status = $1, is_active = FALSE, updated_at = $2, updated_by = $3
		WHERE id = $4 AND tenant_id = $5 AND status = $6`

	res, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		types.StatusArchived, time.Now().UTC(), types.GetUserID(ctx),
		t.ID, types.GetTenantID(ctx), types.StatusPublished,
	)
	if err != nil {
		SetSpanError(span, err)
		return dbError(err, "Failed to delete tax rate", map[string]any{"tax_rate_id": t.ID})
	}
	if err := requireAffected(res, "Tax rate", t.ID); err != nil {
		return err
	}

	r.deleteCache(ctx, t.ID)
	return nil
}

func (r *taxRateRepository) ListActiveForItemType(ctx context.Context, itemType types.ItemType) ([]*taxrate.TaxRate, error) {
	span := StartRepositorySpan(ctx, "taxrate", "list_active_for_item_type", map[string]interface{}{
		"item_type": itemType,
	})
	defer FinishSpan(span)

	query := `SELECT ` + taxRateColumns + ` FROM tax_rates
		WHERE tenant_id = $1 AND status = $2 AND is_active AND $3 = ANY(applies_to_item_types)
		ORDER BY created_at ASC, id ASC`

	var rows []taxRateRow
	err := r.db.GetQuerier(ctx).SelectContext(ctx, &rows, query, types.GetTenantID(ctx), types.StatusPublished, string(itemType))
	if err != nil {
		SetSpanError(span, err)
		return nil, dbError(err, "Failed to resolve tax rates", map[string]any{"item_type": itemType})
	}
	return lo.Map(rows, func(row taxRateRow, _ int) *taxrate.TaxRate { return row.toDomain() }), nil
}

func (r *taxRateRepository) GetByIDs(ctx context.Context, ids []string) ([]*taxrate.TaxRate, error) {
	if len(ids) == 0 {
		return []*taxrate.TaxRate{}, nil
	}

	span := StartRepositorySpan(ctx, "taxrate", "get_by_ids", map[string]interface{}{
		"count": len(ids),
	})
	defer FinishSpan(span)

	query := `SELECT ` + taxRateColumns + ` FROM tax_rates WHERE tenant_id = $1 AND id = ANY($2)`

	var rows []taxRateRow
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &rows, query, types.GetTenantID(ctx), pq.Array(lo.Uniq(ids))); err != nil {
		SetSpanError(span, err)
		return nil, dbError(err, "Failed to get tax rates", map[string]any{"tax_rate_ids": ids})
	}
	return lo.Map(rows, func(row taxRateRow, _ int) *taxrate.TaxRate { return row.toDomain() }), nil
}

func (r *taxRateRepository) getCache(ctx context.Context, id string) *taxrate.TaxRate {
	key := cache.GenerateKey(cache.PrefixTaxRate, types.GetTenantID(ctx), id)
	if value, found := r.cache.Get(ctx, key); found {
		if t, ok := value.(*taxrate.TaxRate); ok {
			copied := *t
			copied.AppliesToItemTypes = append([]types.ItemType(nil), t.AppliesToItemTypes...)
			return &copied
		}
	}
	return nil
}

func (r *taxRateRepository) setCache(ctx context.Context, t *taxrate.TaxRate) {
	copied := *t
	copied.AppliesToItemTypes = append([]types.ItemType(nil), t.AppliesToItemTypes...)
	key := cache.GenerateKey(cache.PrefixTaxRate, types.GetTenantID(ctx), t.ID)
	r.cache.Set(ctx, key, &copied, 0)
}

func (r *taxRateRepository) deleteCache(ctx context.Context, id string) {
	r.cache.Delete(ctx, cache.GenerateKey(cache.PrefixTaxRate, types.GetTenantID(ctx), id))
}
