package service

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/tuitionbill/tuitionbill/internal/domain/invoice"
	"github.com/tuitionbill/tuitionbill/internal/domain/taxrate"
	"github.com/tuitionbill/tuitionbill/internal/domain/taxsnapshot"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

var hundredPercent = decimal.NewFromInt(100)

// LineItemCalculator prices a single line item. It performs no I/O: the
// caller resolves the rates first and passes them in keyed by id.
type LineItemCalculator interface {
	Calculate(input invoice.LineItemInput, rates map[string]*taxrate.TaxRate) (*invoice.LineItemCalculation, error)
}

type lineItemCalculator struct{}

func NewLineItemCalculator() LineItemCalculator {
	return &lineItemCalculator{}
}

// Calculate computes
//
//	line_total = unit_price * quantity
//	discount   = round(line_total * discount_percent / 100)
//	tax_i      = round(line_total * rate_i) for each distinct rate id
//	final      = max(0, line_total + sum(tax_i) - discount)
//
// Tax is charged on the gross line total, before the discount. A rate id
// that is missing from rates or inactive yields an unresolved zero line.
func (c *lineItemCalculator) Calculate(input invoice.LineItemInput, rates map[string]*taxrate.TaxRate) (*invoice.LineItemCalculation, error) {
	if err := validateLineItemInput(input); err != nil {
		return nil, err
	}

	currency := input.UnitPrice.Currency()
	lineTotal := input.UnitPrice.MulInt(input.Quantity)

	discount := types.MoneyFromMinorDecimal(
		lineTotal.Decimal().Mul(input.DiscountPercent).Div(hundredPercent),
		currency,
	)

	breakdown := make([]taxsnapshot.TaxLine, 0, len(input.TaxRateIDs))
	for _, id := range lo.Uniq(input.TaxRateIDs) {
		rate, ok := rates[id]
		if !ok || !rate.IsActive {
			breakdown = append(breakdown, taxsnapshot.UnresolvedTaxLine(id, currency))
			continue
		}
		breakdown = append(breakdown, taxsnapshot.NewTaxLine(rate, lineTotal.MulDecimal(rate.Rate)))
	}

	tax, err := taxsnapshot.SumTaxLines(currency, breakdown)
	if err != nil {
		return nil, err
	}

	gross, err := lineTotal.Add(tax)
	if err != nil {
		return nil, err
	}
	final, err := gross.SubClamped(discount)
	if err != nil {
		return nil, err
	}

	return &invoice.LineItemCalculation{
		LineTotal:      lineTotal,
		DiscountAmount: discount,
		TaxAmount:      tax,
		FinalAmount:    final,
		TaxBreakdown:   breakdown,
	}, nil
}

func validateLineItemInput(input invoice.LineItemInput) error {
	if input.Quantity < 0 {
		return ierr.NewError("quantity cannot be negative").
			WithHint("Line item quantity must be zero or more").
			WithReportableDetails(map[string]any{
				"quantity": input.Quantity,
			}).
			Mark(ierr.ErrValidation)
	}
	if input.UnitPrice.IsNegative() {
		return ierr.NewError("unit price cannot be negative").
			WithHint("Line item unit price must be zero or more").
			WithReportableDetails(map[string]any{
				"unit_price": input.UnitPrice.MinorUnits(),
			}).
			Mark(ierr.ErrValidation)
	}
	if input.DiscountPercent.IsNegative() || input.DiscountPercent.GreaterThan(hundredPercent) {
		return ierr.NewError("discount percent out of range").
			WithHint("Line item discount must be between 0 and 100 percent").
			WithReportableDetails(map[string]any{
				"discount_percent": input.DiscountPercent.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// unresolvedRateIDs lists the breakdown entries that were not applied
func unresolvedRateIDs(lines []taxsnapshot.TaxLine) []string {
	return lo.FilterMap(lines, func(l taxsnapshot.TaxLine, _ int) (string, bool) {
		return l.TaxRateID, !l.Resolved
	})
}

// AggregateInvoiceTotals sums line item results into invoice totals.
// Total is max(0, subtotal - discount + tax).
func AggregateInvoiceTotals(currency string, calcs []*invoice.LineItemCalculation) (invoice.Totals, error) {
	subtotal, err := types.SumMoney(currency, lo.Map(calcs, func(c *invoice.LineItemCalculation, _ int) types.Money {
		return c.LineTotal
	})...)
	if err != nil {
		return invoice.Totals{}, err
	}

	discount, err := types.SumMoney(currency, lo.Map(calcs, func(c *invoice.LineItemCalculation, _ int) types.Money {
		return c.DiscountAmount
	})...)
	if err != nil {
		return invoice.Totals{}, err
	}

	tax, err := types.SumMoney(currency, lo.Map(calcs, func(c *invoice.LineItemCalculation, _ int) types.Money {
		return c.TaxAmount
	})...)
	if err != nil {
		return invoice.Totals{}, err
	}

	withTax, err := subtotal.Add(tax)
	if err != nil {
		return invoice.Totals{}, err
	}
	total, err := withTax.SubClamped(discount)
	if err != nil {
		return invoice.Totals{}, err
	}

	return invoice.Totals{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		TaxAmount:      tax,
		Total:          total,
	}, nil
}
