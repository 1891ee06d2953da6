package payment

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Rhymond/go-money"
)

// NewAmountFromMinorUnits builds an amount from a provider's minor-unit
// integer (Stripe reports cents).
func NewAmountFromMinorUnits(amount int64, currency string) (*money.Money, error) {
	code := strings.ToUpper(currency)
	if money.GetCurrency(code) == nil {
		return nil, NewInvalidAmountError(fmt.Sprintf("Unknown currency %q", currency), nil)
	}
	return money.New(amount, code), nil
}

// ParseMajorUnits parses a decimal string in major units (PayPal reports
// "100.00") without going through floating point.
func ParseMajorUnits(value string, currency string) (*money.Money, error) {
	code := strings.ToUpper(currency)
	cur := money.GetCurrency(code)
	if cur == nil {
		return nil, NewInvalidAmountError(fmt.Sprintf("Unknown currency %q", currency), nil)
	}

	value = strings.TrimSpace(value)
	negative := strings.HasPrefix(value, "-")
	value = strings.TrimPrefix(value, "-")

	whole, frac, _ := strings.Cut(value, ".")
	// trailing zeros past the currency's precision are not significant
	if len(frac) > cur.Fraction && strings.TrimRight(frac[cur.Fraction:], "0") == "" {
		frac = frac[:cur.Fraction]
	}
	if whole == "" {
		whole = "0"
	}
	if !isDigits(whole) || !isDigits(frac) {
		return nil, NewInvalidAmountError(fmt.Sprintf("Amount %q is not a decimal number", value), nil)
	}
	if len(frac) > cur.Fraction {
		return nil, NewInvalidAmountError(fmt.Sprintf("Amount %q has more than %d decimal places for %s", value, cur.Fraction, code), nil)
	}
	frac += strings.Repeat("0", cur.Fraction-len(frac))

	wholeUnits, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return nil, NewInvalidAmountError(fmt.Sprintf("Amount %q is not a decimal number", value), err)
	}

	var fracUnits int64
	if frac != "" {
		fracUnits, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return nil, NewInvalidAmountError(fmt.Sprintf("Amount %q is not a decimal number", value), err)
		}
	}

	minor := wholeUnits*pow10(cur.Fraction) + fracUnits
	if negative {
		minor = -minor
	}

	return money.New(minor, code), nil
}

// FormatMajorUnits renders an amount as a plain decimal string in major units,
// the inverse of ParseMajorUnits.
func FormatMajorUnits(m *money.Money) string {
	fraction := m.Currency().Fraction
	amount := m.Amount()

	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	if fraction == 0 {
		return fmt.Sprintf("%s%d", sign, amount)
	}

	div := pow10(fraction)
	return fmt.Sprintf("%s%d.%0*d", sign, amount/div, fraction, amount%div)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func pow10(n int) int64 {
	result := int64(1)
	for range n {
		result *= 10
	}
	return result
}
