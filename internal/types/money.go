package types

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
)

var half = decimal.New(5, -1)

// Money is an amount in the currency's minor units (cents for usd).
// All arithmetic stays in integers; decimal is only used for
// multiplication by fractional factors and is rounded back exactly once.
type Money struct {
	amount   int64
	currency string
}

// NewMoney builds a Money value from minor units
func NewMoney(minorUnits int64, currency string) Money {
	return Money{amount: minorUnits, currency: strings.ToLower(currency)}
}

// ZeroMoney returns zero in the given currency
func ZeroMoney(currency string) Money {
	return NewMoney(0, currency)
}

// MoneyFromMajor converts a major unit amount (e.g. 12.345 usd) to Money,
// rounding half-up to the currency precision.
func MoneyFromMajor(major decimal.Decimal, currency string) Money {
	minor := major.Shift(GetCurrencyPrecision(currency))
	return MoneyFromMinorDecimal(minor, currency)
}

// MoneyFromMinorDecimal rounds a fractional minor unit amount half-up.
// This is the single rounding point at the end of a computation chain.
func MoneyFromMinorDecimal(minor decimal.Decimal, currency string) Money {
	return NewMoney(RoundHalfUp(minor).IntPart(), currency)
}

// RoundHalfUp rounds to the nearest integer with ties going up
func RoundHalfUp(d decimal.Decimal) decimal.Decimal {
	return d.Add(half).Floor()
}

func (m Money) MinorUnits() int64 {
	return m.amount
}

func (m Money) Currency() string {
	return m.currency
}

// Major returns the amount in major units, e.g. 1234 usd -> 12.34
func (m Money) Major() decimal.Decimal {
	return decimal.New(m.amount, -GetCurrencyPrecision(m.currency))
}

// Decimal returns the minor unit amount as a decimal for chained calculations
func (m Money) Decimal() decimal.Decimal {
	return decimal.NewFromInt(m.amount)
}

func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other, "add"); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount + other.amount, currency: m.currency}, nil
}

// Sub subtracts other and may return a negative amount
func (m Money) Sub(other Money) (Money, error) {
	if err := m.sameCurrency(other, "subtract"); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount - other.amount, currency: m.currency}, nil
}

// SubClamped subtracts other and floors the result at zero
func (m Money) SubClamped(other Money) (Money, error) {
	res, err := m.Sub(other)
	if err != nil {
		return Money{}, err
	}
	if res.amount < 0 {
		res.amount = 0
	}
	return res, nil
}

func (m Money) MulInt(n int64) Money {
	return Money{amount: m.amount * n, currency: m.currency}
}

// MulDecimal multiplies by a fractional factor and rounds half-up
func (m Money) MulDecimal(factor decimal.Decimal) Money {
	return MoneyFromMinorDecimal(m.Decimal().Mul(factor), m.currency)
}

func (m Money) IsPositive() bool {
	return m.amount > 0
}

func (m Money) IsZero() bool {
	return m.amount == 0
}

func (m Money) IsNegative() bool {
	return m.amount < 0
}

func (m Money) Equal(other Money) bool {
	return m.amount == other.amount && m.currency == other.currency
}

// MaxMoney returns the larger of a and b
func MaxMoney(a, b Money) (Money, error) {
	if err := a.sameCurrency(b, "max"); err != nil {
		return Money{}, err
	}
	if b.amount > a.amount {
		return b, nil
	}
	return a, nil
}

// SumMoney adds all amounts, starting from zero in the given currency
func SumMoney(currency string, amounts ...Money) (Money, error) {
	total := ZeroMoney(currency)
	for _, a := range amounts {
		var err error
		total, err = total.Add(a)
		if err != nil {
			return Money{}, err
		}
	}
	return total, nil
}

// String renders the amount for display, e.g. $12.34 or -$0.05
func (m Money) String() string {
	abs := m
	sign := ""
	if m.amount < 0 {
		sign = "-"
		abs.amount = -m.amount
	}
	return fmt.Sprintf("%s%s%s", sign, GetCurrencySymbol(m.currency),
		abs.Major().StringFixed(GetCurrencyPrecision(m.currency)))
}

func (m Money) sameCurrency(other Money, op string) error {
	if m.currency == other.currency {
		return nil
	}
	return ierr.NewError("currency mismatch").
		WithHintf("Cannot %s amounts in %s and %s", op, strings.ToUpper(m.currency), strings.ToUpper(other.currency)).
		WithReportableDetails(map[string]any{
			"left_currency":  m.currency,
			"right_currency": other.currency,
			"operation":      op,
		}).
		Mark(ierr.ErrCurrencyMismatch)
}

type moneyJSON struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Display  string `json:"display,omitempty"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.amount, Currency: m.currency, Display: m.String()})
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var v moneyJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = NewMoney(v.Amount, v.Currency)
	return nil
}
