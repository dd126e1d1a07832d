// Package format renders dashboard figures with grouped thousands.
package format

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Money formats an amount as dollars with two decimals, e.g. $1,234.50.
func Money(d decimal.Decimal) string {
	s := printer.Sprintf("%.2f", d.Abs().Round(2).InexactFloat64())
	if d.Round(2).IsNegative() {
		return "-$" + s
	}
	return "$" + s
}

// Number formats v with two decimals and the given unit suffix.
func Number(v float64, unit string) string {
	s := printer.Sprintf("%.2f", v)
	if unit == "" {
		return s
	}
	return s + " " + unit
}

// Int formats a count.
func Int(n int) string { return printer.Sprintf("%d", n) }

// Percent formats a share with one decimal.
func Percent(v float64) string { return printer.Sprintf("%.1f%%", v) }
