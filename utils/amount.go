package utils

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount accepts user-formatted amounts such as "20,000", "USD 1,234.50",
// "$ -20" or a json.Number. Only digits, '.', and a leading '-' are kept.
func ParseAmount(i interface{}) (decimal.Decimal, error) {
	switch v := i.(type) {
	case string:
		s := strings.TrimSpace(v)
		s = strings.ReplaceAll(s, ",", "")
		for _, sym := range []string{"USD", "usd", "$"} {
			s = strings.ReplaceAll(s, sym, "")
		}
		s = strings.TrimSpace(s)
		neg := false
		if strings.HasPrefix(s, "-") {
			neg = true
			s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
		}
		var b strings.Builder
		b.Grow(len(s) + 1)
		for _, r := range s {
			if (r >= '0' && r <= '9') || r == '.' {
				b.WriteRune(r)
			}
		}
		clean := b.String()
		if clean == "" {
			return decimal.Zero, InvalidInput("invalid amount %q", v)
		}
		if neg {
			clean = "-" + clean
		}
		d, err := decimal.NewFromString(clean)
		if err != nil {
			return decimal.Zero, InvalidInput("invalid amount %q", v)
		}
		return d, nil
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero, InvalidInput("invalid amount %q", v.String())
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	default:
		return decimal.Zero, InvalidInput("invalid amount %v", i)
	}
}

// ParseAmountPtr parses a query string value; an empty string means "not set".
func ParseAmountPtr(s string) (*decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	v, err := ParseAmount(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
