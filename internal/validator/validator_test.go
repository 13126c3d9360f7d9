package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
)

type quoteRequest struct {
	PaymentType string `json:"payment_type" validate:"required,payment_type"`
	Currency    string `json:"currency" validate:"required,currency"`
	Students    int    `json:"students" validate:"min=1"`
}

func TestValidateRequest(t *testing.T) {
	require.NoError(t, ValidateRequest(quoteRequest{
		PaymentType: "monthly_group",
		Currency:    "usd",
		Students:    2,
	}))

	err := ValidateRequest(quoteRequest{PaymentType: "season_pass", Currency: "xx"})
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))

	var fieldErrs validator.ValidationErrors
	require.True(t, ierr.As(err, &fieldErrs))
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Field())
	}
	assert.ElementsMatch(t, []string{"payment_type", "currency", "students"}, fields)
}
