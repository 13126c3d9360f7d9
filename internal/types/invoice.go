package types

import (
	"github.com/samber/lo"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
)

// InvoiceStatus represents the current state of an invoice in its lifecycle
type InvoiceStatus string

const (
	// InvoiceStatusDraft is the only status in which line items can change
	InvoiceStatusDraft         InvoiceStatus = "draft"
	InvoiceStatusSent          InvoiceStatus = "sent"
	InvoiceStatusViewed        InvoiceStatus = "viewed"
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusOverdue       InvoiceStatus = "overdue"
	InvoiceStatusCancelled     InvoiceStatus = "cancelled"
)

// invoiceTransitions lists the statuses each status may move to
var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:         {InvoiceStatusSent, InvoiceStatusCancelled},
	InvoiceStatusSent:          {InvoiceStatusViewed, InvoiceStatusPartiallyPaid, InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled},
	InvoiceStatusViewed:        {InvoiceStatusPartiallyPaid, InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled},
	InvoiceStatusOverdue:       {InvoiceStatusPartiallyPaid, InvoiceStatusPaid, InvoiceStatusCancelled},
	InvoiceStatusPartiallyPaid: {InvoiceStatusPaid, InvoiceStatusOverdue},
}

func (s InvoiceStatus) String() string {
	return string(s)
}

func (s InvoiceStatus) Validate() error {
	allowed := []InvoiceStatus{
		InvoiceStatusDraft,
		InvoiceStatusSent,
		InvoiceStatusViewed,
		InvoiceStatusPartiallyPaid,
		InvoiceStatusPaid,
		InvoiceStatusOverdue,
		InvoiceStatusCancelled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid invoice status").
			WithHintf("Invoice status %q is not supported", s).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// CanTransitionTo reports whether moving from s to next is allowed
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	return lo.Contains(invoiceTransitions[s], next)
}

// AcceptsPayment reports whether payments may be recorded against the invoice
func (s InvoiceStatus) AcceptsPayment() bool {
	return lo.Contains([]InvoiceStatus{
		InvoiceStatusSent,
		InvoiceStatusViewed,
		InvoiceStatusOverdue,
		InvoiceStatusPartiallyPaid,
	}, s)
}

// InvoiceFilter filters invoice listings
type InvoiceFilter struct {
	*QueryFilter
	FamilyID      string          `json:"family_id,omitempty" form:"family_id"`
	InvoiceStatus []InvoiceStatus `json:"invoice_status,omitempty" form:"invoice_status"`
}

func NewInvoiceFilter() *InvoiceFilter {
	return &InvoiceFilter{QueryFilter: NewDefaultQueryFilter()}
}

func (f *InvoiceFilter) Validate() error {
	if f.QueryFilter != nil {
		if err := f.QueryFilter.Validate(); err != nil {
			return err
		}
	}
	for _, s := range f.InvoiceStatus {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}
