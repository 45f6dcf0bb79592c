package scraper

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	priceRe        = regexp.MustCompile(`\d+(?:\.\d+)?`)
	leadingDigitRe = regexp.MustCompile(`\d+`)
)

// ParsePrice returns the first number found in text after currency symbols,
// thousands separators and whitespace are removed: "$1,234.56" -> 1234.56,
// "₹1,299" -> 1299.
func ParsePrice(text string) (decimal.Decimal, bool) {
	match := priceRe.FindString(cleanPrice(text))
	if match == "" {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(match)
	if err != nil {
		return decimal.Zero, false
	}

	return d, true
}

// JoinPrice combines a price rendered as separate whole and fractional parts.
// An empty fraction means "00". When the combined value does not parse, the
// leading digit run of the whole part is used instead.
func JoinPrice(whole, fraction string) (decimal.Decimal, bool) {
	w := strings.TrimRight(strings.TrimSpace(cleanPrice(whole)), ".")
	f := strings.TrimSpace(cleanPrice(fraction))
	if f == "" {
		f = "00"
	}

	if d, err := decimal.NewFromString(w + "." + f); err == nil && w != "" {
		return d, true
	}

	match := leadingDigitRe.FindString(w)
	if match == "" {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(match)
	if err != nil {
		return decimal.Zero, false
	}

	return d, true
}

// cleanPrice drops whitespace (including no-break spaces), thousands
// separators and anything that is not a digit or a dot.
func cleanPrice(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	for _, r := range text {
		switch {
		case unicode.IsDigit(r) && r < unicode.MaxASCII:
			b.WriteRune(r)
		case r == '.':
			b.WriteRune(r)
		case r == ',' || unicode.IsSpace(r):
			// separators are dropped so "1,234" reads as one run
		default:
			// currency symbols and letters split runs
			b.WriteRune(' ')
		}
	}

	return b.String()
}
