// Package core provides the expense domain types and amount handling.
//
// Amounts are decimals end to end, display included.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts user input into a strictly positive decimal.
//
// It accepts a dot (12.34) or, when no dot is present, a comma (12,34) as
// the decimal separator. Signs, exponents and grouping separators are rejected.
//
// Examples:
//
//	ParseAmount("250.50") -> 250.5, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("0")      -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if !strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", ".")
	}
	dots := 0
	for _, r := range s {
		switch {
		case r == '.':
			dots++
		case !unicode.IsDigit(r):
			return decimal.Zero, ErrInvalidAmount
		}
	}
	if dots > 1 || s == "." {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// Total sums the amounts of the given expenses. An empty slice totals zero.
func Total(expenses []Expense) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range expenses {
		sum = sum.Add(e.Amount)
	}
	return sum
}
