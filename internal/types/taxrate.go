package types

// TaxRateFilter represents filters for tax rate queries
type TaxRateFilter struct {
	*QueryFilter
	TaxRateIDs []string `json:"tax_rate_ids,omitempty" form:"tax_rate_ids"`
	ItemType   ItemType `json:"item_type,omitempty" form:"item_type"`
	ActiveOnly bool     `json:"active_only,omitempty" form:"active_only"`
}

// NewTaxRateFilter creates a new TaxRateFilter with default values
func NewTaxRateFilter() *TaxRateFilter {
	return &TaxRateFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

// NewNoLimitTaxRateFilter creates a new TaxRateFilter with no pagination limits
func NewNoLimitTaxRateFilter() *TaxRateFilter {
	return &TaxRateFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

// Validate validates the TaxRateFilter
func (f *TaxRateFilter) Validate() error {
	if f.QueryFilter != nil {
		if err := f.QueryFilter.Validate(); err != nil {
			return err
		}
	}
	if f.ItemType != "" {
		return f.ItemType.Validate()
	}
	return nil
}

// TaxSnapshotOwnerType is the kind of record a tax snapshot belongs to
type TaxSnapshotOwnerType string

const (
	TaxSnapshotOwnerLineItem TaxSnapshotOwnerType = "line_item"
	TaxSnapshotOwnerPayment  TaxSnapshotOwnerType = "payment"
)
