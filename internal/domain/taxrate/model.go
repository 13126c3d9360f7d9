package taxrate

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

// TaxRate is a named rate applied to the taxable base of matching item types.
// Rate is a fraction, so 0.0725 is 7.25%.
type TaxRate struct {
	ID                 string           `db:"id" json:"id"`
	Name               string           `db:"name" json:"name"`
	Description        string           `db:"description" json:"description"`
	Rate               decimal.Decimal  `db:"rate" json:"rate"`
	AppliesToItemTypes []types.ItemType `db:"applies_to_item_types" json:"applies_to_item_types"`
	IsActive           bool             `db:"is_active" json:"is_active"`
	types.BaseModel
}

// AppliesTo reports whether the rate is active and configured for the item type
func (t *TaxRate) AppliesTo(itemType types.ItemType) bool {
	return t.IsActive && lo.Contains(t.AppliesToItemTypes, itemType)
}

// Percent returns the rate as a percentage, e.g. 7.25
func (t *TaxRate) Percent() decimal.Decimal {
	return t.Rate.Mul(decimal.NewFromInt(100))
}

func (t *TaxRate) Validate() error {
	if t.Name == "" {
		return ierr.NewError("tax rate name is required").
			WithHint("Please provide a name for the tax rate").
			Mark(ierr.ErrValidation)
	}
	if t.Rate.IsNegative() || t.Rate.GreaterThan(decimal.NewFromInt(1)) {
		return ierr.NewError("tax rate must be between 0 and 1").
			WithHint("Tax rate is a fraction, e.g. 0.05 for 5%").
			WithReportableDetails(map[string]any{
				"rate": t.Rate.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	for _, it := range t.AppliesToItemTypes {
		if err := it.Validate(); err != nil {
			return err
		}
	}
	return nil
}
