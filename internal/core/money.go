// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings
// and rendering them for display.
package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// CurrencySymbol prefixes every formatted amount.
const CurrencySymbol = "Rp"

var ErrInvalidAmount = errors.New("invalid amount")

var printer = message.NewPrinter(language.English)

// ParseAmount converts a plain number to a decimal amount.
//
// It accepts integers, decimals with a dot separator and exponent notation,
// so values written as "100000", "100000.0" or "1e5" are all equal.
// Negative values are accepted; range checks belong to the caller.
//
// Examples:
//
//	ParseAmount("100000")   -> 100000, nil
//	ParseAmount(" 2500.50") -> 2500.5, nil
//	ParseAmount("abc")      -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// FormatCurrency renders an amount as whole rupiah with comma grouping,
// e.g. "Rp 1,250,000". Halves round to even.
func FormatCurrency(amount decimal.Decimal) string {
	whole := amount.RoundBank(0)
	if n := whole.BigInt(); n.IsInt64() {
		return printer.Sprintf("%s %d", CurrencySymbol, n.Int64())
	}
	return CurrencySymbol + " " + groupDigits(whole.StringFixedBank(0))
}

// groupDigits inserts thousands separators into an integer string. The
// printer only groups machine integers.
func groupDigits(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	var sb strings.Builder
	sb.WriteString(sign)
	lead := len(s) % 3
	if lead == 0 {
		lead = 3
	}
	sb.WriteString(s[:lead])
	for i := lead; i < len(s); i += 3 {
		sb.WriteByte(',')
		sb.WriteString(s[i : i+3])
	}
	return sb.String()
}
