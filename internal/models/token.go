// Package models defines core data structures for tokens, document structure,
// and extracted security records.
package models

import (
	"github.com/shopspring/decimal"
)

// TokenKind classifies a positioned text token.
type TokenKind int

const (
	// KindText is any token that matched no other classification.
	KindText TokenKind = iota
	// KindNumber is a parseable numeric literal.
	KindNumber
	// KindIdentifier is a 12-character ISIN-shaped security identifier.
	KindIdentifier
	// KindCurrency is a known 3-letter currency code.
	KindCurrency
	// KindDate is a DD.MM.YYYY or YYYY-MM-DD date.
	KindDate
	// KindHeader is a short all-caps line fragment with no digits.
	KindHeader
)

// String returns a string representation of the token kind.
func (k TokenKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindIdentifier:
		return "identifier"
	case KindCurrency:
		return "currency"
	case KindDate:
		return "date"
	case KindHeader:
		return "header"
	default:
		return "unknown"
	}
}

// Position locates a token on a page. For providers without true geometry
// (plain text, spreadsheets) Y is the line/row ordinal and X the offset/column.
type Position struct {
	Page   int     `json:"page"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// NumberLocale identifies which grouping convention a numeric literal used.
type NumberLocale int

const (
	// LocalePlain has no grouping separators.
	LocalePlain NumberLocale = iota
	// LocaleApostrophe groups thousands with apostrophes (Swiss convention).
	LocaleApostrophe
	// LocaleComma groups thousands with commas (US convention).
	LocaleComma
	// LocaleSpace groups thousands with spaces (European convention).
	LocaleSpace
)

// String returns a string representation of the number locale.
func (l NumberLocale) String() string {
	switch l {
	case LocalePlain:
		return "plain"
	case LocaleApostrophe:
		return "grouped-apostrophe"
	case LocaleComma:
		return "grouped-comma"
	case LocaleSpace:
		return "grouped-space"
	default:
		return "unknown"
	}
}

// NumberLiteral is a numeric token parsed under a single, unambiguous
// decimal-separator interpretation.
type NumberLiteral struct {
	Raw    string          `json:"raw"`
	Value  decimal.Decimal `json:"value"`
	Locale NumberLocale    `json:"locale"`
}

// Identifier is an ISIN-shaped security identifier. Codes failing the checksum
// are kept as low-confidence candidates, never dropped.
type Identifier struct {
	Code          string `json:"code"`
	ChecksumValid bool   `json:"checksum_valid"`
}

// RawToken is the input contract: positioned text as produced by an external
// OCR, vision, or text-layer provider.
type RawToken struct {
	Text   string  `json:"text"`
	Page   int     `json:"page"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// Token is a classified positioned token. Immutable once classified.
type Token struct {
	Text string   `json:"text"`
	Pos  Position `json:"pos"`
	Kind TokenKind
	// Line is the reading-order line index assigned during line assembly.
	Line int
	// Number is set when Kind == KindNumber.
	Number *NumberLiteral
	// Identifier is set when Kind == KindIdentifier.
	Identifier *Identifier
	Confidence float64
}

// IsNumeric reports whether the token carries a parsed numeric value.
func (t *Token) IsNumeric() bool {
	return t.Kind == KindNumber && t.Number != nil
}
