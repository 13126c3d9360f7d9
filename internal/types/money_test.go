package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
)

func TestMoneyArithmetic(t *testing.T) {
	a := NewMoney(1050, "USD")
	b := NewMoney(250, "usd")

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(1300), sum.MinorUnits())
	assert.Equal(t, "usd", sum.Currency())

	diff, err := b.Sub(a)
	require.NoError(t, err)
	assert.Equal(t, int64(-800), diff.MinorUnits())
	assert.True(t, diff.IsNegative())

	clamped, err := b.SubClamped(a)
	require.NoError(t, err)
	assert.True(t, clamped.IsZero())
	assert.False(t, clamped.IsPositive())

	assert.Equal(t, int64(3150), a.MulInt(3).MinorUnits())

	larger, err := MaxMoney(a, b)
	require.NoError(t, err)
	assert.Equal(t, a, larger)
}

func TestMoneyCurrencyMismatch(t *testing.T) {
	usd := NewMoney(100, "usd")
	eur := NewMoney(100, "eur")

	_, err := usd.Add(eur)
	require.Error(t, err)
	assert.True(t, ierr.IsCurrencyMismatch(err))

	_, err = usd.Sub(eur)
	assert.True(t, ierr.IsCurrencyMismatch(err))

	_, err = usd.SubClamped(eur)
	assert.True(t, ierr.IsCurrencyMismatch(err))

	_, err = MaxMoney(usd, eur)
	assert.True(t, ierr.IsCurrencyMismatch(err))

	_, err = SumMoney("usd", usd, eur)
	assert.True(t, ierr.IsCurrencyMismatch(err))
}

func TestMoneyMulDecimalRoundsHalfUp(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		factor string
		want   int64
	}{
		{name: "exact", amount: 10000, factor: "0.05", want: 500},
		{name: "half rounds up", amount: 10, factor: "0.05", want: 1},
		{name: "below half rounds down", amount: 9, factor: "0.05", want: 0},
		{name: "above half rounds up", amount: 333, factor: "0.0725", want: 24},
		{name: "negative half rounds toward positive", amount: -10, factor: "0.05", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewMoney(tt.amount, "usd").MulDecimal(decimal.RequireFromString(tt.factor))
			assert.Equal(t, tt.want, got.MinorUnits())
		})
	}
}

func TestMoneyMinorUnitsRoundTrip(t *testing.T) {
	for _, minor := range []int64{0, 1, 99, 12345, -250} {
		m := NewMoney(minor, "usd")
		assert.Equal(t, m, NewMoney(m.MinorUnits(), m.Currency()))
	}
}

func TestMoneyFromMajor(t *testing.T) {
	assert.Equal(t, int64(1235), MoneyFromMajor(decimal.RequireFromString("12.345"), "usd").MinorUnits())
	assert.Equal(t, int64(1234), MoneyFromMajor(decimal.RequireFromString("12.344"), "usd").MinorUnits())
	assert.Equal(t, int64(500), MoneyFromMajor(decimal.RequireFromString("500"), "jpy").MinorUnits())
	assert.True(t, NewMoney(1234, "usd").Major().Equal(decimal.RequireFromString("12.34")))
}

func TestMoneyString(t *testing.T) {
	assert.Equal(t, "$12.34", NewMoney(1234, "usd").String())
	assert.Equal(t, "$0.05", NewMoney(5, "usd").String())
	assert.Equal(t, "-$3.00", NewMoney(-300, "usd").String())
	assert.Equal(t, "¥500", NewMoney(500, "jpy").String())
	assert.Equal(t, "XYZ1.00", NewMoney(100, "xyz").String())
}
