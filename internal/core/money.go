// Package core provides money parsing and handling utilities.
//
// Amounts are decimal.Decimal values so that sums of real and projected
// expenses are exact.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a decimal string to an amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators, and a dot
// or apostrophe thousands separator when a comma marks the decimals
// (1.234,56). Negative values are rejected. A blank string is reported as
// missing (Valid=false) rather than as an error.
//
// Examples:
//
//	ParseAmount("12.34")    -> 12.34
//	ParseAmount("12,34")    -> 12.34
//	ParseAmount("1.234,56") -> 1234.56
//	ParseAmount("")         -> missing
func ParseAmount(s string) (decimal.NullDecimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	if strings.HasPrefix(s, "-") {
		return decimal.NullDecimal{}, ErrInvalidAmount
	}
	s = strings.TrimPrefix(s, "+")

	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, "'", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' {
			return decimal.NullDecimal{}, ErrInvalidAmount
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, ErrInvalidAmount
	}
	return decimal.NewNullDecimal(d), nil
}

// FormatAmount renders an amount with at least two decimals, keeping any
// further precision (10.125 stays 10.125). Missing amounts render empty.
func FormatAmount(a decimal.NullDecimal) string {
	if !a.Valid {
		return ""
	}
	if !a.Decimal.Round(2).Equal(a.Decimal) {
		return a.Decimal.String()
	}
	return a.Decimal.StringFixed(2)
}
