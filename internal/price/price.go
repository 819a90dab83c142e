// Package price converts scraped text fragments into monetary values.
package price

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Parse extracts a decimal price from arbitrary text. Every character that is
// not a digit, period, or comma is stripped, then commas are removed. Commas
// are always treated as thousands separators, never as a decimal mark, so
// "1.234,56" style locales are not supported.
//
// Parse reports ok=false for empty input or text that yields no parseable
// number. It does not reject zero or negative values; filtering "> 0" is the
// extractor's policy, not the parser's.
func Parse(text string) (decimal.Decimal, bool) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(text) {
		switch {
		case r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		case r == ',':
			// dropped: grouping separator
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// Format renders a value the way the UI and alert messages display prices.
func Format(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}
