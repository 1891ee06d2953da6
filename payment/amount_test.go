package payment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAmountFromMinorUnits(t *testing.T) {
	t.Run("cents become dollars", func(t *testing.T) {
		amount, err := NewAmountFromMinorUnits(10000, "usd")
		require.NoError(t, err)

		assert.Equal(t, int64(10000), amount.Amount())
		assert.Equal(t, "USD", amount.Currency().Code)
		assert.Equal(t, 100.0, amount.AsMajorUnits())
	})

	t.Run("unknown currency", func(t *testing.T) {
		_, err := NewAmountFromMinorUnits(100, "zzz")
		var paymentErr *Error
		require.True(t, errors.As(err, &paymentErr))
		assert.Equal(t, REASON_INVALID_AMOUNT, paymentErr.Reason)
	})
}

func TestParseMajorUnits(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		currency string
		minor    int64
	}{
		{name: "two decimals", value: "100.00", currency: "USD", minor: 10000},
		{name: "one decimal", value: "49.5", currency: "EUR", minor: 4950},
		{name: "no decimals", value: "12", currency: "USD", minor: 1200},
		{name: "value that is lossy as a float", value: "100.10", currency: "USD", minor: 10010},
		{name: "zero fraction currency", value: "1500", currency: "JPY", minor: 1500},
		{name: "negative", value: "-3.25", currency: "USD", minor: -325},
		{name: "insignificant trailing zeros", value: "100.000", currency: "USD", minor: 10000},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			amount, err := ParseMajorUnits(tc.value, tc.currency)
			require.NoError(t, err)
			assert.Equal(t, tc.minor, amount.Amount())
		})
	}

	t.Run("too many decimals", func(t *testing.T) {
		_, err := ParseMajorUnits("1.005", "USD")
		var paymentErr *Error
		require.True(t, errors.As(err, &paymentErr))
		assert.Equal(t, REASON_INVALID_AMOUNT, paymentErr.Reason)
	})

	t.Run("not a number", func(t *testing.T) {
		_, err := ParseMajorUnits("abc", "USD")
		assert.Error(t, err)
	})

	for _, value := range []string{"1.-5", "1.+5", "+1.50", "--1", "1. 5", "1.5x"} {
		t.Run("rejects "+value, func(t *testing.T) {
			_, err := ParseMajorUnits(value, "USD")
			var paymentErr *Error
			require.True(t, errors.As(err, &paymentErr), "expected error for %q", value)
			assert.Equal(t, REASON_INVALID_AMOUNT, paymentErr.Reason)
		})
	}
}

func TestFormatMajorUnits(t *testing.T) {
	for _, v := range []struct {
		value    string
		currency string
	}{
		{"100.00", "USD"},
		{"0.05", "USD"},
		{"-3.25", "USD"},
		{"1500", "JPY"},
	} {
		amount, err := ParseMajorUnits(v.value, v.currency)
		require.NoError(t, err)
		assert.Equal(t, v.value, FormatMajorUnits(amount))
	}
}
