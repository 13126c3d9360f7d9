package dto

import (
	"context"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/tuitionbill/tuitionbill/internal/domain/taxrate"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/types"
	"github.com/tuitionbill/tuitionbill/internal/validator"
)

var hundred = decimal.NewFromInt(100)

// TaxRateResponse represents the response for tax rate operations
type TaxRateResponse struct {
	*taxrate.TaxRate `json:",inline"`
	// rate_percent is the rate expressed as a percentage, e.g. 7.25
	RatePercent decimal.Decimal `json:"rate_percent"`
}

func NewTaxRateResponse(t *taxrate.TaxRate) *TaxRateResponse {
	return &TaxRateResponse{TaxRate: t, RatePercent: t.Percent()}
}

// ListTaxRatesResponse represents the response for listing tax rates
type ListTaxRatesResponse = types.ListResponse[*TaxRateResponse]

// CreateTaxRateRequest represents the request to create a tax rate
type CreateTaxRateRequest struct {
	// name is the human-readable name for the tax rate (required)
	Name string `json:"name" validate:"required,max=255"`

	// description is an optional text description providing details about the tax rate
	Description string `json:"description,omitempty"`

	// rate_percent is the percentage value (0-100), e.g. 7.25
	RatePercent decimal.Decimal `json:"rate_percent"`

	// applies_to_item_types lists the item types this rate is applied to
	AppliesToItemTypes []types.ItemType `json:"applies_to_item_types" validate:"required,min=1,dive,item_type"`

	// is_active defaults to true
	IsActive *bool `json:"is_active,omitempty"`
}

// Validate validates the CreateTaxRateRequest
func (r CreateTaxRateRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}

	if r.RatePercent.IsNegative() || r.RatePercent.GreaterThan(hundred) {
		return ierr.NewError("rate_percent out of range").
			WithHint("Tax rate percentage must be in range 0-100").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ToTaxRate converts the request into a domain tax rate
func (r CreateTaxRateRequest) ToTaxRate(ctx context.Context) *taxrate.TaxRate {
	return &taxrate.TaxRate{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TAX_RATE),
		Name:               r.Name,
		Description:        r.Description,
		Rate:               r.RatePercent.Div(hundred),
		AppliesToItemTypes: lo.Uniq(r.AppliesToItemTypes),
		IsActive:           lo.FromPtrOr(r.IsActive, true),
		BaseModel:          types.GetDefaultBaseModel(ctx),
	}
}

// UpdateTaxRateRequest represents the request to update a tax rate.
// Only provided fields are updated. Existing snapshots are never affected.
type UpdateTaxRateRequest struct {
	Name               *string          `json:"name,omitempty" validate:"omitempty,max=255"`
	Description        *string          `json:"description,omitempty"`
	RatePercent        *decimal.Decimal `json:"rate_percent,omitempty"`
	AppliesToItemTypes []types.ItemType `json:"applies_to_item_types,omitempty" validate:"omitempty,dive,item_type"`
	IsActive           *bool            `json:"is_active,omitempty"`
}

func (r UpdateTaxRateRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.RatePercent != nil && (r.RatePercent.IsNegative() || r.RatePercent.GreaterThan(hundred)) {
		return ierr.NewError("rate_percent out of range").
			WithHint("Tax rate percentage must be in range 0-100").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Apply copies the provided fields onto the tax rate
func (r UpdateTaxRateRequest) Apply(ctx context.Context, t *taxrate.TaxRate) {
	if r.Name != nil {
		t.Name = *r.Name
	}
	if r.Description != nil {
		t.Description = *r.Description
	}
	if r.RatePercent != nil {
		t.Rate = r.RatePercent.Div(hundred)
	}
	if r.AppliesToItemTypes != nil {
		t.AppliesToItemTypes = lo.Uniq(r.AppliesToItemTypes)
	}
	if r.IsActive != nil {
		t.IsActive = *r.IsActive
	}
	t.Touch(ctx)
}
