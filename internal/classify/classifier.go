// Package classify labels positioned text tokens and parses numeric literals
// under a single, unambiguous locale rule.
package classify

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/hyperjump/toridasu/internal/config"
	"github.com/hyperjump/toridasu/internal/models"
)

var (
	dateDotted = regexp.MustCompile(`^\d{2}\.\d{2}\.\d{4}$`)
	dateISO    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Classifier assigns a kind to each raw token. Stateless across documents;
// safe for concurrent use.
type Classifier struct {
	minValue   decimal.Decimal
	maxValue   decimal.Decimal
	currencies map[string]bool
}

// New creates a classifier from the extraction config. Currency codes that
// go-money does not know are dropped from the allow-list.
func New(cfg *config.ExtractionConfig) *Classifier {
	currencies := make(map[string]bool, len(cfg.Currencies))
	for _, code := range cfg.Currencies {
		if money.GetCurrency(code) != nil {
			currencies[code] = true
		}
	}
	return &Classifier{
		minValue:   decimal.NewFromFloat(cfg.MinValue),
		maxValue:   decimal.NewFromFloat(cfg.MaxValue),
		currencies: currencies,
	}
}

// Classify labels one raw token. Tokens are immutable once classified.
func (c *Classifier) Classify(raw models.RawToken) *models.Token {
	t := &models.Token{
		Text: raw.Text,
		Pos: models.Position{
			Page: raw.Page, X: raw.X, Y: raw.Y, Width: raw.Width, Height: raw.Height,
		},
	}
	text := strings.TrimSpace(raw.Text)

	switch {
	case text == "":
		t.Kind = models.KindText
		t.Confidence = 0.1
	case identifierShape.MatchString(text):
		t.Kind = models.KindIdentifier
		t.Identifier = ParseIdentifier(text)
		if t.Identifier.ChecksumValid {
			t.Confidence = 0.95
		} else {
			t.Confidence = 0.5
		}
	case dateDotted.MatchString(text) || dateISO.MatchString(text):
		t.Kind = models.KindDate
		t.Confidence = 0.9
	case c.currencies[text]:
		t.Kind = models.KindCurrency
		t.Confidence = 0.95
	default:
		if lit := ParseNumber(text); lit != nil {
			t.Kind = models.KindNumber
			t.Number = lit
			t.Confidence = 0.9
		} else if isHeaderWord(text) {
			t.Kind = models.KindHeader
			t.Confidence = 0.7
		} else {
			t.Kind = models.KindText
			t.Confidence = 0.6
		}
	}
	return t
}

// ClassifyAll labels a whole token stream, skipping malformed tokens
// (negative page or empty text) rather than failing.
func (c *Classifier) ClassifyAll(raws []models.RawToken) []*models.Token {
	out := make([]*models.Token, 0, len(raws))
	for _, raw := range raws {
		if raw.Page < 0 || strings.TrimSpace(raw.Text) == "" {
			continue
		}
		out = append(out, c.Classify(raw))
	}
	return out
}

// Monetary reports whether a literal's magnitude falls in the plausible
// market-value range. The lower bound is exclusive so that percentages like
// 100.00 never pass.
func (c *Classifier) Monetary(lit *models.NumberLiteral) bool {
	abs := lit.Value.Abs()
	return abs.GreaterThan(c.minValue) && abs.LessThanOrEqual(c.maxValue)
}

// DominantLocale returns the most frequent grouped number locale across the
// stream, or LocalePlain when no grouped literal was seen.
func DominantLocale(tokens []*models.Token) models.NumberLocale {
	counts := make(map[models.NumberLocale]int)
	for _, t := range tokens {
		if t.IsNumeric() && t.Number.Locale != models.LocalePlain {
			counts[t.Number.Locale]++
		}
	}
	best, bestCount := models.LocalePlain, 0
	for locale, n := range counts {
		if n > bestCount {
			best, bestCount = locale, n
		}
	}
	return best
}

// isHeaderWord reports whether text looks like part of a header line: short,
// all uppercase letters, no digits.
func isHeaderWord(text string) bool {
	if len(text) < 3 || len(text) > 40 {
		return false
	}
	hasLetter := false
	for _, r := range text {
		switch {
		case unicode.IsDigit(r):
			return false
		case unicode.IsLetter(r):
			if !unicode.IsUpper(r) {
				return false
			}
			hasLetter = true
		case r == ' ' || r == '&' || r == '/' || r == '-':
		default:
			return false
		}
	}
	return hasLetter
}
