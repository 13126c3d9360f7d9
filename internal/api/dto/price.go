package dto

import (
	"context"
	"strings"

	"github.com/tuitionbill/tuitionbill/internal/domain/price"
	"github.com/tuitionbill/tuitionbill/internal/types"
	"github.com/tuitionbill/tuitionbill/internal/validator"
)

// CreateTuitionPriceRequest configures the unit price of a tuition option
type CreateTuitionPriceRequest struct {
	PaymentType types.PaymentType `json:"payment_type" validate:"required,payment_type"`
	Description string            `json:"description,omitempty"`
	// amount per unit in minor units
	Amount   int64  `json:"amount" validate:"min=0"`
	Currency string `json:"currency" validate:"required,currency"`
}

func (r CreateTuitionPriceRequest) Validate() error {
	return validator.ValidateRequest(r)
}

func (r CreateTuitionPriceRequest) ToTuitionPrice(ctx context.Context) *price.TuitionPrice {
	return &price.TuitionPrice{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TUITION_PRICE),
		PaymentType: r.PaymentType,
		Description: r.Description,
		Amount:      types.NewMoney(r.Amount, r.Currency),
		Currency:    strings.ToLower(r.Currency),
		IsActive:    true,
		BaseModel:   types.GetDefaultBaseModel(ctx),
	}
}

// TuitionPriceResponse represents a configured tuition price
type TuitionPriceResponse struct {
	*price.TuitionPrice `json:",inline"`
}

type ListTuitionPricesResponse = types.ListResponse[*TuitionPriceResponse]
