package taxsnapshot

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/tuitionbill/tuitionbill/internal/domain/taxrate"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

// TaxLine is one applied rate as it was at calculation time. A line with
// Resolved=false records a rate id that could not be found or was inactive;
// it always carries a zero amount.
type TaxLine struct {
	TaxRateID   string          `json:"tax_rate_id"`
	Name        string          `json:"name"`
	Rate        decimal.Decimal `json:"rate"`
	Description string          `json:"description"`
	Amount      types.Money     `json:"amount"`
	Resolved    bool            `json:"resolved"`
}

// NewTaxLine captures the rate's current name, rate and description
func NewTaxLine(rate *taxrate.TaxRate, amount types.Money) TaxLine {
	return TaxLine{
		TaxRateID:   rate.ID,
		Name:        rate.Name,
		Rate:        rate.Rate,
		Description: rate.Description,
		Amount:      amount,
		Resolved:    true,
	}
}

// UnresolvedTaxLine records a rate id that was requested but not applied
func UnresolvedTaxLine(taxRateID, currency string) TaxLine {
	return TaxLine{
		TaxRateID: taxRateID,
		Rate:      decimal.Zero,
		Amount:    types.ZeroMoney(currency),
	}
}

// TaxSnapshot is an immutable applied tax row owned by a line item or a payment
type TaxSnapshot struct {
	ID                  string                     `db:"id" json:"id"`
	TenantID            string                     `db:"tenant_id" json:"tenant_id"`
	OwnerType           types.TaxSnapshotOwnerType `db:"-" json:"owner_type"`
	OwnerID             string                     `db:"owner_id" json:"owner_id"`
	TaxRateID           string                     `db:"tax_rate_id" json:"tax_rate_id"`
	NameSnapshot        string                     `db:"name_snapshot" json:"name_snapshot"`
	RateSnapshot        decimal.Decimal            `db:"rate_snapshot" json:"rate_snapshot"`
	DescriptionSnapshot string                     `db:"description_snapshot" json:"description_snapshot"`
	Amount              types.Money                `db:"-" json:"amount"`
	Resolved            bool                       `db:"resolved" json:"resolved"`
	CreatedAt           time.Time                  `db:"created_at" json:"created_at"`
	CreatedBy           string                     `db:"created_by" json:"created_by"`
}

// TaxLine returns the snapshot content without ownership
func (s *TaxSnapshot) TaxLine() TaxLine {
	return TaxLine{
		TaxRateID:   s.TaxRateID,
		Name:        s.NameSnapshot,
		Rate:        s.RateSnapshot,
		Description: s.DescriptionSnapshot,
		Amount:      s.Amount,
		Resolved:    s.Resolved,
	}
}

// FromTaxLines builds snapshot rows for an owner from a tax breakdown
func FromTaxLines(ctx context.Context, ownerType types.TaxSnapshotOwnerType, ownerID string, lines []TaxLine) []*TaxSnapshot {
	now := time.Now().UTC()
	return lo.Map(lines, func(line TaxLine, _ int) *TaxSnapshot {
		return &TaxSnapshot{
			ID:                  types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TAX_SNAPSHOT),
			TenantID:            types.GetTenantID(ctx),
			OwnerType:           ownerType,
			OwnerID:             ownerID,
			TaxRateID:           line.TaxRateID,
			NameSnapshot:        line.Name,
			RateSnapshot:        line.Rate,
			DescriptionSnapshot: line.Description,
			Amount:              line.Amount,
			Resolved:            line.Resolved,
			CreatedAt:           now,
			CreatedBy:           types.GetUserID(ctx),
		}
	})
}

// SumAmounts totals the snapshot amounts in the given currency
func SumAmounts(currency string, snapshots []*TaxSnapshot) (types.Money, error) {
	return types.SumMoney(currency, lo.Map(snapshots, func(s *TaxSnapshot, _ int) types.Money {
		return s.Amount
	})...)
}

// SumTaxLines totals the breakdown amounts in the given currency
func SumTaxLines(currency string, lines []TaxLine) (types.Money, error) {
	return types.SumMoney(currency, lo.Map(lines, func(l TaxLine, _ int) types.Money {
		return l.Amount
	})...)
}
