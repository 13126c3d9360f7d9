package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidCurrency(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{code: "usd", want: true},
		{code: "USD", want: true},
		{code: "jpy", want: true},
		{code: "vnd", want: true},
		{code: "zzz", want: false},
		{code: "xyz", want: false},
		{code: "us", want: false},
		{code: "usdd", want: false},
		{code: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidCurrency(tt.code))
		})
	}
}

func TestKnownCurrenciesAreValid(t *testing.T) {
	for code := range CURRENCY_CODES_SYMBOLS {
		assert.True(t, IsValidCurrency(code), code)
	}
	for code := range zeroDecimalCurrencies {
		assert.True(t, IsValidCurrency(code), code)
	}
}
