package reconcile

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var reNonAmount = regexp.MustCompile(`[^\d.,]`)

// ParseAmount normalizes a free-form monetary string ("$1,234.56", "INR 9200")
// into a decimal. Everything but digits, dots and commas is dropped and commas
// are treated as thousands separators. ok is false when nothing numeric remains.
func ParseAmount(s string) (amount decimal.Decimal, ok bool) {
	cleaned := strings.ReplaceAll(reNonAmount.ReplaceAllString(s, ""), ",", "")
	if cleaned == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
