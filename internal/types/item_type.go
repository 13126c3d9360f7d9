package types

import (
	"github.com/samber/lo"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
)

// ItemType classifies a billable item for tax applicability
type ItemType string

const (
	ItemTypeClassEnrollment   ItemType = "class_enrollment"
	ItemTypeIndividualSession ItemType = "individual_session"
	ItemTypeProduct           ItemType = "product"
	ItemTypeFee               ItemType = "fee"
	ItemTypeOther             ItemType = "other"
)

func (t ItemType) String() string {
	return string(t)
}

func (t ItemType) Validate() error {
	allowed := []ItemType{
		ItemTypeClassEnrollment,
		ItemTypeIndividualSession,
		ItemTypeProduct,
		ItemTypeFee,
		ItemTypeOther,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid item type").
			WithHintf("Item type %q is not supported", t).
			Mark(ierr.ErrValidation)
	}
	return nil
}
