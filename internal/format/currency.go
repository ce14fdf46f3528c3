// Package format holds presentation helpers for billing amounts. Amounts are
// whole US dollars; nothing in the billing engine carries cents.
package format

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const usdSymbol = "$"

var defaultTag = language.AmericanEnglish

// Currency formats a whole-dollar amount as USD with thousands separators,
// e.g. 12500 -> "$12,500" and -300 -> "-$300".
func Currency(amount int64) string {
	return CurrencyIn(defaultTag, amount)
}

// CurrencyIn formats amount using the digit grouping of the given locale.
func CurrencyIn(tag language.Tag, amount int64) string {
	p := message.NewPrinter(tag)
	if amount < 0 {
		return "-" + usdSymbol + p.Sprintf("%d", -amount)
	}
	return usdSymbol + p.Sprintf("%d", amount)
}

// Number formats an integer with thousands separators.
func Number(n int64) string {
	return message.NewPrinter(defaultTag).Sprintf("%d", n)
}
