package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/tuitionbill/tuitionbill/internal/domain/taxsnapshot"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/logger"
	"github.com/tuitionbill/tuitionbill/internal/postgres"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

type snapshotTable struct {
	name        string
	ownerColumn string
}

var snapshotTables = map[types.TaxSnapshotOwnerType]snapshotTable{
	types.TaxSnapshotOwnerLineItem: {name: "invoice_line_item_taxes", ownerColumn: "line_item_id"},
	types.TaxSnapshotOwnerPayment:  {name: "payment_taxes", ownerColumn: "payment_id"},
}

type taxSnapshotRow struct {
	ID                  string          `db:"id"`
	TenantID            string          `db:"tenant_id"`
	OwnerID             string          `db:"owner_id"`
	TaxRateID           string          `db:"tax_rate_id"`
	NameSnapshot        string          `db:"name_snapshot"`
	RateSnapshot        decimal.Decimal `db:"rate_snapshot"`
	DescriptionSnapshot string          `db:"description_snapshot"`
	Amount              int64           `db:"amount"`
	Currency            string          `db:"currency"`
	Resolved            bool            `db:"resolved"`
	CreatedAt           time.Time       `db:"created_at"`
	CreatedBy           string          `db:"created_by"`
}

func (r taxSnapshotRow) toDomain(ownerType types.TaxSnapshotOwnerType) *taxsnapshot.TaxSnapshot {
	return &taxsnapshot.TaxSnapshot{
		ID:                  r.ID,
		TenantID:            r.TenantID,
		OwnerType:           ownerType,
		OwnerID:             r.OwnerID,
		TaxRateID:           r.TaxRateID,
		NameSnapshot:        r.NameSnapshot,
		RateSnapshot:        r.RateSnapshot,
		DescriptionSnapshot: r.DescriptionSnapshot,
		Amount:              types.NewMoney(r.Amount, r.Currency),
		Resolved:            r.Resolved,
		CreatedAt:           r.CreatedAt,
		CreatedBy:           r.CreatedBy,
	}
}

type taxSnapshotRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewTaxSnapshotRepository(db *postgres.DB, logger *logger.Logger) taxsnapshot.Repository {
	return &taxSnapshotRepository{db: db, logger: logger}
}

func tableFor(ownerType types.TaxSnapshotOwnerType) (snapshotTable, error) {
	table, ok := snapshotTables[ownerType]
	if !ok {
		return snapshotTable{}, ierr.NewError("unknown tax snapshot owner").
			WithHintf("Tax snapshots cannot be stored for owner type %s", ownerType).
			Mark(ierr.ErrValidation)
	}
	return table, nil
}

func (t snapshotTable) selectColumns() string {
	return fmt.Sprintf(`id, tenant_id, %s AS owner_id, tax_rate_id, name_snapshot, rate_snapshot,
		description_snapshot, amount, currency, resolved, created_at, created_by`, t.ownerColumn)
}

func (r *taxSnapshotRepository) CreateMany(ctx context.Context, snapshots []*taxsnapshot.TaxSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	span := StartRepositorySpan(ctx, "taxsnapshot", "create_many", map[string]interface{}{
		"count": len(snapshots),
	})
	defer FinishSpan(span)

	q := r.db.GetQuerier(ctx)
	for _, s := range snapshots {
		table, err := tableFor(s.OwnerType)
		if err != nil {
			return err
		}

		query := fmt.Sprintf(`
			INSERT INTO %s (
				id, tenant_id, %s, tax_rate_id, name_snapshot, rate_snapshot,
				description_snapshot, amount, currency, resolved, created_at, created_by
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`, table.name, table.ownerColumn)

		_, err = q.ExecContext(ctx, query,
			s.ID, s.TenantID, s.OwnerID, s.TaxRateID, s.NameSnapshot, s.RateSnapshot,
			s.DescriptionSnapshot, s.Amount.MinorUnits(), s.Amount.Currency(), s.Resolved, s.CreatedAt, s.CreatedBy,
		)
		if err != nil {
			SetSpanError(span, err)
			return dbError(err, "Failed to store applied taxes", map[string]any{
				"owner_type": s.OwnerType,
				"owner_id":   s.OwnerID,
			})
		}
	}

	r.logger.Debugw("stored tax snapshots",
		"count", len(snapshots),
		"owner_type", snapshots[0].OwnerType,
	)
	return nil
}

func (r *taxSnapshotRepository) ListByOwner(ctx context.Context, ownerType types.TaxSnapshotOwnerType, ownerID string) ([]*taxsnapshot.TaxSnapshot, error) {
	return r.ListByOwners(ctx, ownerType, []string{ownerID})
}

func (r *taxSnapshotRepository) ListByOwners(ctx context.Context, ownerType types.TaxSnapshotOwnerType, ownerIDs []string) ([]*taxsnapshot.TaxSnapshot, error) {
	table, err := tableFor(ownerType)
	if err != nil {
		return nil, err
	}
	if len(ownerIDs) == 0 {
		return []*taxsnapshot.TaxSnapshot{}, nil
	}

	span := StartRepositorySpan(ctx, "taxsnapshot", "list_by_owners", map[string]interface{}{
		"owner_type": ownerType,
		"count":      len(ownerIDs),
	})
	defer FinishSpan(span)

	// created_at ties within a batch, so id keeps insertion order stable
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE tenant_id = $1 AND %s = ANY($2) ORDER BY created_at ASC, id ASC`,
		table.selectColumns(), table.name, table.ownerColumn)

	var rows []taxSnapshotRow
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &rows, query, types.GetTenantID(ctx), pq.Array(ownerIDs)); err != nil {
		SetSpanError(span, err)
		return nil, dbError(err, "Failed to list applied taxes", map[string]any{"owner_type": ownerType})
	}
	return lo.Map(rows, func(row taxSnapshotRow, _ int) *taxsnapshot.TaxSnapshot {
		return row.toDomain(ownerType)
	}), nil
}

func (r *taxSnapshotRepository) DeleteByOwner(ctx context.Context, ownerType types.TaxSnapshotOwnerType, ownerID string) error {
	table, err := tableFor(ownerType)
	if err != nil {
		return err
	}

	span := StartRepositorySpan(ctx, "taxsnapshot", "delete_by_owner", map[string]interface{}{
		"owner_type": ownerType,
		"owner_id":   ownerID,
	})
	defer FinishSpan(span)

	query := fmt.Sprintf(`DELETE FROM %s WHERE tenant_id = $1 AND %s = $2`, table.name, table.ownerColumn)
	if _, err := r.db.GetQuerier(ctx).ExecContext(ctx, query, types.GetTenantID(ctx), ownerID); err != nil {
		SetSpanError(span, err)
		return dbError(err, "Failed to delete applied taxes", map[string]any{
			"owner_type": ownerType,
			"owner_id":   ownerID,
		})
	}
	return nil
}
