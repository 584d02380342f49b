package classify

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hyperjump/toridasu/internal/models"
)

// groupingSeparators are characters stripped from a numeric literal once the
// decimal separator has been fixed. Includes non-breaking and narrow
// no-break spaces, which OCR output frequently carries.
const groupingSeparators = "',.   "

// ParseNumber parses a numeric literal under the single decimal-separator
// rule: the right-most '.' or ',' is the decimal separator iff it is followed
// by exactly 1 or 2 digits at the end of the token; every other separator
// character is thousands grouping and is stripped. Exactly one interpretation
// is ever chosen; there is no ambiguous float fallback.
//
// Returns nil when the text is not a numeric literal.
func ParseNumber(raw string) *models.NumberLiteral {
	s := strings.TrimSpace(raw)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	if s == "" || !isDigit(s[0]) || !isDigit(s[len(s)-1]) {
		return nil
	}
	for _, r := range s {
		if !isDigit(byte(r)) && !strings.ContainsRune(groupingSeparators, r) {
			return nil
		}
	}

	// Locate the decimal separator.
	decIdx := -1
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' || s[i] == ',' {
			tail := len(s) - i - 1
			if tail >= 1 && tail <= 2 && allDigits(s[i+1:]) {
				decIdx = i
			}
			break
		}
	}

	intPart, fracPart := s, ""
	if decIdx >= 0 {
		intPart, fracPart = s[:decIdx], s[decIdx+1:]
	}

	locale := detectLocale(intPart, decIdx >= 0)
	intPart = stripGrouping(intPart)
	if intPart == "" {
		return nil
	}

	canonical := intPart
	if fracPart != "" {
		canonical += "." + fracPart
	}
	if neg {
		canonical = "-" + canonical
	}
	value, err := decimal.NewFromString(canonical)
	if err != nil {
		return nil
	}
	return &models.NumberLiteral{Raw: raw, Value: value, Locale: locale}
}

// detectLocale infers the grouping convention from the integer part.
func detectLocale(intPart string, hasDecimal bool) models.NumberLocale {
	switch {
	case strings.ContainsRune(intPart, '\''):
		return models.LocaleApostrophe
	case strings.ContainsAny(intPart, "   "):
		return models.LocaleSpace
	case strings.ContainsRune(intPart, ','):
		return models.LocaleComma
	default:
		return models.LocalePlain
	}
}

func stripGrouping(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if isDigit(s[i]) {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return len(s) > 0
}

// FormatGrouped renders a decimal value with the given locale's thousands
// grouping and '.' as decimal point (',' for the space locale). Used by
// round-trip tests and display formatting.
func FormatGrouped(v decimal.Decimal, locale models.NumberLocale) string {
	s := v.String()
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, fracPart := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}

	var sep string
	decPoint := "."
	switch locale {
	case models.LocaleApostrophe:
		sep = "'"
	case models.LocaleComma:
		sep = ","
	case models.LocaleSpace:
		sep = " "
		decPoint = ","
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 && sep != "" {
			b.WriteString(sep)
		}
		b.WriteRune(c)
	}
	if fracPart != "" {
		b.WriteString(decPoint)
		b.WriteString(fracPart)
	}
	return b.String()
}
