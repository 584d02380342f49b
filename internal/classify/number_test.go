package classify

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/hyperjump/toridasu/internal/models"
)

func TestParseNumber(t *testing.T) {
	cases := []struct {
		raw    string
		want   string
		locale models.NumberLocale
	}{
		{"1'234'567.89", "1234567.89", models.LocaleApostrophe},
		{"1,234,567.89", "1234567.89", models.LocaleComma},
		{"1 234 567,89", "1234567.89", models.LocaleSpace},
		{"199'068.50", "199068.5", models.LocaleApostrophe},
		{"19'464'431", "19464431", models.LocaleApostrophe},
		{"1.234.567,89", "1234567.89", models.LocalePlain},
		{"1234.5", "1234.5", models.LocalePlain},
		{"100.00", "100", models.LocalePlain},
		{"1,234", "1234", models.LocaleComma},
		{"-42.50", "-42.5", models.LocalePlain},
		{"7", "7", models.LocalePlain},
	}
	for _, tc := range cases {
		lit := ParseNumber(tc.raw)
		if lit == nil {
			t.Errorf("ParseNumber(%q) = nil, want %s", tc.raw, tc.want)
			continue
		}
		if lit.Value.String() != tc.want {
			t.Errorf("ParseNumber(%q) = %s, want %s", tc.raw, lit.Value, tc.want)
		}
		if lit.Locale != tc.locale {
			t.Errorf("ParseNumber(%q) locale = %s, want %s", tc.raw, lit.Locale, tc.locale)
		}
	}
}

func TestParseNumber_rejectsNonNumbers(t *testing.T) {
	for _, raw := range []string{"", "USD", "12.34%", "ISIN", "1a2", "..", "'123", "123'"} {
		if lit := ParseNumber(raw); lit != nil {
			t.Errorf("ParseNumber(%q) = %v, want nil", raw, lit)
		}
	}
}

func TestParseNumber_rightmostSeparatorRule(t *testing.T) {
	// A trailing group of 3 digits is grouping, not decimals.
	lit := ParseNumber("1,234,567")
	if lit == nil || lit.Value.String() != "1234567" {
		t.Fatalf("trailing 3-digit group should be grouping, got %v", lit)
	}
	// One trailing digit is a decimal.
	lit = ParseNumber("123,4")
	if lit == nil || lit.Value.String() != "123.4" {
		t.Fatalf("single trailing digit should be decimal, got %v", lit)
	}
}

func TestNumberRoundTrip(t *testing.T) {
	values := []string{"1234567.89", "199068.5", "100", "42.1", "987654321"}
	locales := []models.NumberLocale{models.LocaleApostrophe, models.LocaleComma, models.LocaleSpace, models.LocalePlain}
	for _, v := range values {
		want, err := decimal.NewFromString(v)
		if err != nil {
			t.Fatal(err)
		}
		for _, locale := range locales {
			formatted := FormatGrouped(want, locale)
			lit := ParseNumber(formatted)
			if lit == nil {
				t.Fatalf("round trip %s via %s: parse of %q failed", v, locale, formatted)
			}
			if !lit.Value.Equal(want) {
				t.Errorf("round trip %s via %s: got %s from %q", v, locale, lit.Value, formatted)
			}
		}
	}
}
