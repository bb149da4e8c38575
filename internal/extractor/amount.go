package extractor

import (
	"strings"
	"unicode"
)

// ParseAmount parses a signed amount cell such as "+ 6 812.98 ₽" or
// "- 20 000.00 ₽". A leading "+" marks a credit; anything else is a debit.
// Text that is not a number yields a zero amount.
func ParseAmount(text string) (amount float64, isCredit bool) {
	text = strings.TrimSpace(text)
	isCredit = strings.HasPrefix(text, "+")

	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '+', r == '-', r == '₽', unicode.IsSpace(r), r == '\u00a0':
			return -1
		}
		return r
	}, text)

	v, ok := parseNumber(cleaned)
	if !ok {
		return 0, isCredit
	}
	return v, isCredit
}
