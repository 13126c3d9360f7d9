package types

import (
	"github.com/samber/lo"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
)

// PaymentStatus represents the status of a payment
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

func (s PaymentStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is allowed
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSucceeded || s == PaymentStatusFailed
}

func (s PaymentStatus) Validate() error {
	allowed := []PaymentStatus{
		PaymentStatusPending,
		PaymentStatusSucceeded,
		PaymentStatusFailed,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid payment status").
			WithHintf("Payment status %q is not supported", s).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// PaymentType is what the family is paying for
type PaymentType string

const (
	PaymentTypeMonthlyGroup      PaymentType = "monthly_group"
	PaymentTypeYearlyGroup       PaymentType = "yearly_group"
	PaymentTypeIndividualSession PaymentType = "individual_session"
	PaymentTypeStorePurchase     PaymentType = "store_purchase"
	PaymentTypeEventRegistration PaymentType = "event_registration"
)

func (t PaymentType) String() string {
	return string(t)
}

func (t PaymentType) Validate() error {
	allowed := []PaymentType{
		PaymentTypeMonthlyGroup,
		PaymentTypeYearlyGroup,
		PaymentTypeIndividualSession,
		PaymentTypeStorePurchase,
		PaymentTypeEventRegistration,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid payment type").
			WithHintf("Payment type %q is not supported", t).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsTuition reports whether the payment is priced from the tuition price table
func (t PaymentType) IsTuition() bool {
	return t == PaymentTypeMonthlyGroup || t == PaymentTypeYearlyGroup || t == PaymentTypeIndividualSession
}

// ItemType maps a payment type to the item type used for tax resolution
func (t PaymentType) ItemType() ItemType {
	switch t {
	case PaymentTypeMonthlyGroup, PaymentTypeYearlyGroup:
		return ItemTypeClassEnrollment
	case PaymentTypeIndividualSession:
		return ItemTypeIndividualSession
	case PaymentTypeStorePurchase:
		return ItemTypeProduct
	case PaymentTypeEventRegistration:
		return ItemTypeFee
	default:
		return ItemTypeOther
	}
}

// PaymentMethodType records how a payment was settled
type PaymentMethodType string

const (
	PaymentMethodTypeCard            PaymentMethodType = "card"
	PaymentMethodTypeFullyDiscounted PaymentMethodType = "fully_discounted"
)

// PaymentFilter filters payment listings
type PaymentFilter struct {
	*QueryFilter
	FamilyID      string        `json:"family_id,omitempty" form:"family_id"`
	PaymentStatus PaymentStatus `json:"payment_status,omitempty" form:"payment_status"`
	PaymentType   PaymentType   `json:"payment_type,omitempty" form:"payment_type"`
}

func NewPaymentFilter() *PaymentFilter {
	return &PaymentFilter{QueryFilter: NewDefaultQueryFilter()}
}

func (f *PaymentFilter) Validate() error {
	if f.QueryFilter != nil {
		if err := f.QueryFilter.Validate(); err != nil {
			return err
		}
	}
	if f.PaymentStatus != "" {
		if err := f.PaymentStatus.Validate(); err != nil {
			return err
		}
	}
	if f.PaymentType != "" {
		return f.PaymentType.Validate()
	}
	return nil
}
