package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tuitionbill/tuitionbill/internal/domain/invoice"
	"github.com/tuitionbill/tuitionbill/internal/domain/taxrate"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

func testRate(id, percent string, active bool) *taxrate.TaxRate {
	return &taxrate.TaxRate{
		ID:                 id,
		Name:               id,
		Rate:               decimal.RequireFromString(percent).Div(decimal.NewFromInt(100)),
		AppliesToItemTypes: []types.ItemType{types.ItemTypeClassEnrollment},
		IsActive:           active,
	}
}

func TestLineItemCalculator_Calculate(t *testing.T) {
	rates := map[string]*taxrate.TaxRate{
		"state":    testRate("state", "5", true),
		"city":     testRate("city", "7", true),
		"county":   testRate("county", "7.25", true),
		"retired":  testRate("retired", "3", false),
		"state_b":  testRate("state_b", "5", true),
		"half_pct": testRate("half_pct", "7.5", true),
	}

	tests := []struct {
		name          string
		input         invoice.LineItemInput
		wantLineTotal int64
		wantDiscount  int64
		wantTax       int64
		wantFinal     int64
		wantTaxLines  []int64
	}{
		{
			name: "two rates on the gross amount",
			input: invoice.LineItemInput{
				UnitPrice:  usd(10000),
				Quantity:   1,
				TaxRateIDs: []string{"state", "city"},
			},
			wantLineTotal: 10000,
			wantTax:       1200,
			wantFinal:     11200,
			wantTaxLines:  []int64{500, 700},
		},
		{
			name: "discount does not reduce the taxable base",
			input: invoice.LineItemInput{
				UnitPrice:       usd(2500),
				Quantity:        4,
				DiscountPercent: pct("10"),
				TaxRateIDs:      []string{"state"},
			},
			wantLineTotal: 10000,
			wantDiscount:  1000,
			wantTax:       500,
			wantFinal:     9500,
			wantTaxLines:  []int64{500},
		},
		{
			name: "half cent rounds up",
			input: invoice.LineItemInput{
				UnitPrice:  usd(100),
				Quantity:   1,
				TaxRateIDs: []string{"half_pct"},
			},
			wantLineTotal: 100,
			wantTax:       8,
			wantFinal:     108,
			wantTaxLines:  []int64{8},
		},
		{
			name: "fractional rate rounds to nearest",
			input: invoice.LineItemInput{
				UnitPrice:       usd(333),
				Quantity:        1,
				DiscountPercent: pct("15"),
				TaxRateIDs:      []string{"county"},
			},
			wantLineTotal: 333,
			wantDiscount:  50,
			wantTax:       24,
			wantFinal:     307,
			wantTaxLines:  []int64{24},
		},
		{
			name: "each rate is rounded on its own",
			input: invoice.LineItemInput{
				UnitPrice:  usd(150),
				Quantity:   1,
				TaxRateIDs: []string{"state", "state_b"},
			},
			wantLineTotal: 150,
			wantTax:       16,
			wantFinal:     166,
			wantTaxLines:  []int64{8, 8},
		},
		{
			name: "duplicate rate ids apply once",
			input: invoice.LineItemInput{
				UnitPrice:  usd(10000),
				Quantity:   1,
				TaxRateIDs: []string{"state", "state"},
			},
			wantLineTotal: 10000,
			wantTax:       500,
			wantFinal:     10500,
			wantTaxLines:  []int64{500},
		},
		{
			name: "zero quantity yields zeros",
			input: invoice.LineItemInput{
				UnitPrice:       usd(10000),
				Quantity:        0,
				DiscountPercent: pct("50"),
				TaxRateIDs:      []string{"state"},
			},
			wantTaxLines: []int64{0},
		},
		{
			name: "full discount leaves the tax",
			input: invoice.LineItemInput{
				UnitPrice:       usd(10000),
				Quantity:        1,
				DiscountPercent: pct("100"),
				TaxRateIDs:      []string{"state"},
			},
			wantLineTotal: 10000,
			wantDiscount:  10000,
			wantTax:       500,
			wantFinal:     500,
			wantTaxLines:  []int64{500},
		},
		{
			name: "no rates",
			input: invoice.LineItemInput{
				UnitPrice:  usd(1999),
				Quantity:   3,
				TaxRateIDs: []string{},
			},
			wantLineTotal: 5997,
			wantFinal:     5997,
			wantTaxLines:  []int64{},
		},
	}

	calc := NewLineItemCalculator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calc.Calculate(tt.input, rates)
			require.NoError(t, err)

			assert.Equal(t, tt.wantLineTotal, got.LineTotal.MinorUnits())
			assert.Equal(t, tt.wantDiscount, got.DiscountAmount.MinorUnits())
			assert.Equal(t, tt.wantTax, got.TaxAmount.MinorUnits())
			assert.Equal(t, tt.wantFinal, got.FinalAmount.MinorUnits())

			require.Len(t, got.TaxBreakdown, len(tt.wantTaxLines))
			for i, want := range tt.wantTaxLines {
				assert.Equal(t, want, got.TaxBreakdown[i].Amount.MinorUnits())
				assert.Equal(t, "usd", got.TaxBreakdown[i].Amount.Currency())
			}
		})
	}
}

func TestLineItemCalculator_UnresolvedRates(t *testing.T) {
	rates := map[string]*taxrate.TaxRate{
		"state":   testRate("state", "5", true),
		"retired": testRate("retired", "3", false),
	}

	got, err := NewLineItemCalculator().Calculate(invoice.LineItemInput{
		UnitPrice:  usd(10000),
		Quantity:   1,
		TaxRateIDs: []string{"state", "missing", "retired"},
	}, rates)
	require.NoError(t, err)

	assert.Equal(t, int64(500), got.TaxAmount.MinorUnits())
	require.Len(t, got.TaxBreakdown, 3)

	assert.True(t, got.TaxBreakdown[0].Resolved)
	assert.Equal(t, "state", got.TaxBreakdown[0].Name)

	for _, line := range got.TaxBreakdown[1:] {
		assert.False(t, line.Resolved)
		assert.True(t, line.Amount.IsZero())
	}
	assert.Equal(t, []string{"missing", "retired"}, unresolvedRateIDs(got.TaxBreakdown))
}

func TestLineItemCalculator_IsDeterministic(t *testing.T) {
	rates := map[string]*taxrate.TaxRate{
		"state":  testRate("state", "5", true),
		"county": testRate("county", "7.25", true),
	}
	input := invoice.LineItemInput{
		UnitPrice:       usd(4321),
		Quantity:        7,
		DiscountPercent: pct("12.5"),
		TaxRateIDs:      []string{"county", "state"},
	}

	calc := NewLineItemCalculator()
	first, err := calc.Calculate(input, rates)
	require.NoError(t, err)
	second, err := calc.Calculate(input, rates)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestLineItemCalculator_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input invoice.LineItemInput
	}{
		{
			name:  "negative quantity",
			input: invoice.LineItemInput{UnitPrice: usd(100), Quantity: -1},
		},
		{
			name:  "negative unit price",
			input: invoice.LineItemInput{UnitPrice: usd(-100), Quantity: 1},
		},
		{
			name:  "discount above 100",
			input: invoice.LineItemInput{UnitPrice: usd(100), Quantity: 1, DiscountPercent: pct("100.01")},
		},
		{
			name:  "negative discount",
			input: invoice.LineItemInput{UnitPrice: usd(100), Quantity: 1, DiscountPercent: pct("-1")},
		},
	}

	calc := NewLineItemCalculator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := calc.Calculate(tt.input, nil)
			require.Error(t, err)
			assert.True(t, ierr.IsValidation(err))
		})
	}
}

func TestAggregateInvoiceTotals(t *testing.T) {
	calc := NewLineItemCalculator()
	rates := map[string]*taxrate.TaxRate{"state": testRate("state", "5", true)}

	a, err := calc.Calculate(invoice.LineItemInput{
		UnitPrice:       usd(10000),
		Quantity:        1,
		DiscountPercent: pct("10"),
		TaxRateIDs:      []string{"state"},
	}, rates)
	require.NoError(t, err)

	b, err := calc.Calculate(invoice.LineItemInput{
		UnitPrice:  usd(2000),
		Quantity:   2,
		TaxRateIDs: []string{},
	}, rates)
	require.NoError(t, err)

	totals, err := AggregateInvoiceTotals("usd", []*invoice.LineItemCalculation{a, b})
	require.NoError(t, err)

	assert.Equal(t, int64(14000), totals.Subtotal.MinorUnits())
	assert.Equal(t, int64(1000), totals.DiscountAmount.MinorUnits())
	assert.Equal(t, int64(500), totals.TaxAmount.MinorUnits())
	assert.Equal(t, int64(13500), totals.Total.MinorUnits())

	empty, err := AggregateInvoiceTotals("usd", nil)
	require.NoError(t, err)
	assert.True(t, empty.Total.IsZero())
	assert.Equal(t, "usd", empty.Total.Currency())

	_, err = AggregateInvoiceTotals("eur", []*invoice.LineItemCalculation{a})
	require.Error(t, err)
	assert.True(t, ierr.IsCurrencyMismatch(err))
}
