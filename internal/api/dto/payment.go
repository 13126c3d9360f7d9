package dto

import (
	"strings"

	"github.com/samber/lo"
	"github.com/tuitionbill/tuitionbill/internal/domain/payment"
	"github.com/tuitionbill/tuitionbill/internal/domain/taxsnapshot"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/types"
	"github.com/tuitionbill/tuitionbill/internal/validator"
)

// CheckoutRequest is the checkout form submitted by a family.
// Amounts are in minor units of Currency.
type CheckoutRequest struct {
	FamilyID    string            `json:"family_id" validate:"required"`
	PaymentType types.PaymentType `json:"payment_type" validate:"required,payment_type"`
	// student_ids for group and individual session tuition
	StudentIDs []string `json:"student_ids,omitempty" validate:"omitempty,dive,required"`
	// order_id for store purchases
	OrderID string `json:"order_id,omitempty"`
	// enrollment_id for event registrations
	EnrollmentID   string  `json:"enrollment_id,omitempty"`
	Currency       string  `json:"currency" validate:"required,currency"`
	SubtotalAmount int64   `json:"subtotal_amount" validate:"min=0"`
	TotalAmount    int64   `json:"total_amount" validate:"min=0"`
	DiscountCodeID *string `json:"discount_code_id,omitempty"`
	DiscountAmount int64   `json:"discount_amount,omitempty" validate:"min=0"`
	// payment_id resumes an existing pending payment
	PaymentID string `json:"payment_id,omitempty"`
	// invoice_id links the payment to the invoice it settles
	InvoiceID *string `json:"invoice_id,omitempty"`
}

// Validate checks the form is internally consistent. It never touches storage.
func (r *CheckoutRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}

	if r.DiscountAmount > r.SubtotalAmount {
		return ierr.NewError("discount exceeds subtotal").
			WithHint("Discount cannot be larger than the subtotal").
			WithReportableDetails(map[string]any{
				"subtotal_amount": r.SubtotalAmount,
				"discount_amount": r.DiscountAmount,
			}).
			Mark(ierr.ErrValidation)
	}

	// tax is never negative, so the total cannot be below the discounted subtotal
	if r.TotalAmount < r.SubtotalAmount-r.DiscountAmount {
		return ierr.NewError("total is less than subtotal").
			WithHint("Total amount must include the subtotal less any discount").
			WithReportableDetails(map[string]any{
				"subtotal_amount": r.SubtotalAmount,
				"discount_amount": r.DiscountAmount,
				"total_amount":    r.TotalAmount,
			}).
			Mark(ierr.ErrValidation)
	}

	switch r.PaymentType {
	case types.PaymentTypeMonthlyGroup, types.PaymentTypeYearlyGroup, types.PaymentTypeIndividualSession:
		if len(r.StudentIDs) == 0 || r.OrderID != "" || r.EnrollmentID != "" {
			return targetError(r.PaymentType, "student_ids")
		}
	case types.PaymentTypeStorePurchase:
		if r.OrderID == "" || len(r.StudentIDs) > 0 || r.EnrollmentID != "" {
			return targetError(r.PaymentType, "order_id")
		}
	case types.PaymentTypeEventRegistration:
		if r.EnrollmentID == "" || len(r.StudentIDs) > 0 || r.OrderID != "" {
			return targetError(r.PaymentType, "enrollment_id")
		}
	}
	return nil
}

func targetError(pt types.PaymentType, field string) error {
	return ierr.NewError("invalid checkout target").
		WithHintf("A %s checkout requires %s and nothing else", pt, field).
		Mark(ierr.ErrValidation)
}

// TargetIDs returns what the checkout pays for, in a stable order
func (r *CheckoutRequest) TargetIDs() []string {
	switch {
	case len(r.StudentIDs) > 0:
		return lo.Uniq(r.StudentIDs)
	case r.OrderID != "":
		return []string{r.OrderID}
	case r.EnrollmentID != "":
		return []string{r.EnrollmentID}
	}
	return nil
}

func (r *CheckoutRequest) currency() string {
	return strings.ToLower(r.Currency)
}

func (r *CheckoutRequest) Subtotal() types.Money {
	return types.NewMoney(r.SubtotalAmount, r.currency())
}

func (r *CheckoutRequest) Discount() types.Money {
	return types.NewMoney(r.DiscountAmount, r.currency())
}

func (r *CheckoutRequest) Total() types.Money {
	return types.NewMoney(r.TotalAmount, r.currency())
}

// DiscountedSubtotal is subtotal less discount, floored at zero
func (r *CheckoutRequest) DiscountedSubtotal() types.Money {
	m, _ := r.Subtotal().SubClamped(r.Discount())
	return m
}

// CheckoutResponse tells the client how to complete the payment
type CheckoutResponse struct {
	PaymentID     string              `json:"payment_id"`
	PaymentStatus types.PaymentStatus `json:"payment_status"`
	// intent_id and client_secret are empty when no gateway charge is needed
	IntentID       string                `json:"intent_id,omitempty"`
	ClientSecret   string                `json:"client_secret,omitempty"`
	SubtotalAmount types.Money           `json:"subtotal_amount"`
	DiscountAmount types.Money           `json:"discount_amount"`
	TaxAmount      types.Money           `json:"tax_amount"`
	TotalAmount    types.Money           `json:"total_amount"`
	Taxes          []taxsnapshot.TaxLine `json:"taxes"`
	// fully_discounted is set when the payment completed without a charge
	FullyDiscounted bool `json:"fully_discounted"`
	// reused is set when an existing gateway intent was returned
	Reused bool `json:"reused"`
}

// PaymentResponse represents a payment with its tax rows
type PaymentResponse struct {
	*payment.Payment `json:",inline"`
	Taxes            []*taxsnapshot.TaxSnapshot `json:"taxes,omitempty"`
}

type ListPaymentsResponse = types.ListResponse[*PaymentResponse]
