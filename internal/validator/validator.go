package validator

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// NewValidator returns the shared validator with the billing tags registered
func NewValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonFieldName)
		registerCustomValidations(validate)
	})
	return validate
}

// jsonFieldName reports fields by their json name so error details match
// the request body
func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

func registerCustomValidations(v *validator.Validate) {
	_ = v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		return types.IsValidCurrency(fl.Field().String())
	})
	_ = v.RegisterValidation("payment_type", func(fl validator.FieldLevel) bool {
		return types.PaymentType(fl.Field().String()).Validate() == nil
	})
	_ = v.RegisterValidation("item_type", func(fl validator.FieldLevel) bool {
		return types.ItemType(fl.Field().String()).Validate() == nil
	})
}

// ValidateRequest checks the struct tags of req. Every failing field is
// listed in the error details as field -> failed tag.
func ValidateRequest(req interface{}) error {
	err := NewValidator().Struct(req)
	if err == nil {
		return nil
	}

	details := make(map[string]any)
	var fieldErrs validator.ValidationErrors
	if ierr.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			details[fe.Field()] = fe.Tag()
		}
	}
	return ierr.WithError(err).
		WithHint("Request validation failed").
		WithReportableDetails(details).
		Mark(ierr.ErrValidation)
}
