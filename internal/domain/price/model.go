package price

import (
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

// TuitionPrice is the configured unit price for a tuition payment type.
// Group payment types are charged once per selected student.
type TuitionPrice struct {
	// ID uuid identifier for the price
	ID string `db:"id" json:"id"`

	// PaymentType is the tuition option this price applies to
	PaymentType types.PaymentType `db:"payment_type" json:"payment_type"`

	// Description shown on line items built from this price
	Description string `db:"description" json:"description"`

	// Amount per unit in minor units of Currency
	Amount types.Money `db:"-" json:"amount"`

	// Currency 3 digit ISO currency code in lowercase ex usd, eur, gbp
	Currency string `db:"currency" json:"currency"`

	// IsActive marks the price as selectable for new checkouts
	IsActive bool `db:"is_active" json:"is_active"`

	types.BaseModel
}

func (p *TuitionPrice) Validate() error {
	if !p.PaymentType.IsTuition() {
		return ierr.NewError("price payment type must be a tuition type").
			WithHintf("Payment type %s is not priced from the tuition table", p.PaymentType).
			Mark(ierr.ErrValidation)
	}
	if !types.IsValidCurrency(p.Currency) || p.Amount.Currency() != p.Currency {
		return ierr.NewError("invalid price currency").
			WithHint("Price currency must be a 3 letter ISO code matching the amount").
			Mark(ierr.ErrValidation)
	}
	if p.Amount.IsNegative() {
		return ierr.NewError("invalid price amount").
			WithHint("Price amount cannot be negative").
			Mark(ierr.ErrValidation)
	}
	return nil
}
