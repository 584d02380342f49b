package source

import (
	"testing"

	"github.com/hyperjump/toridasu/internal/models"
)

func TestParseGuesses(t *testing.T) {
	raw := `[{"identifier":"XS2530201644","name":"Toronto Dominion Bank Notes","value":199068.50,"currency":"USD","confidence":0.9}]`
	guesses, err := parseGuesses(raw)
	if err != nil {
		t.Fatalf("parseGuesses: %v", err)
	}
	if len(guesses) != 1 || guesses[0].Identifier != "XS2530201644" {
		t.Errorf("unexpected guesses: %+v", guesses)
	}
}

func TestParseGuesses_repairsMalformedOutput(t *testing.T) {
	// Markdown fences and a trailing comma, as models tend to emit.
	raw := "```json\n[{'identifier': 'US0378331005', 'name': 'Apple Inc', 'value': 150250, 'currency': 'USD', 'confidence': 0.8},]\n```"
	guesses, err := parseGuesses(raw)
	if err != nil {
		t.Fatalf("parseGuesses: %v", err)
	}
	if len(guesses) != 1 || guesses[0].Name != "Apple Inc" {
		t.Errorf("unexpected guesses: %+v", guesses)
	}
}

func TestRecordsFromGuesses(t *testing.T) {
	s := NewVisionSource(nil, testExtractionConfig(), nil)
	guesses := []models.Guess{
		{Identifier: "XS2530201644", Name: "Toronto Dominion Bank Notes", Value: 199068.50, Currency: "USD", Confidence: 0.9},
		{Name: "Page footer artifact", Value: 3, Confidence: 0.9},       // below plausible range
		{Name: "Hallucinated megafund", Value: 9e9, Confidence: 0.9},    // above plausible range
		{Identifier: "XS2530201645", Name: "Corrupt code", Value: 5000, Confidence: 1.0},
		{Name: "No self-report", Value: 12000, Currency: "CHF", Confidence: 7},
	}
	records := s.recordsFromGuesses(guesses)
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	td := records[0]
	if td.Identifier != "XS2530201644" || td.Validation.ChecksumOK == nil || !*td.Validation.ChecksumOK {
		t.Errorf("valid identifier not carried over: %+v", td)
	}
	if td.Provenance != VisionName {
		t.Errorf("provenance = %q", td.Provenance)
	}

	corrupt := records[1]
	if corrupt.Validation.ChecksumOK == nil || *corrupt.Validation.ChecksumOK {
		t.Error("corrupt identifier should fail the checksum")
	}
	if corrupt.Confidence >= 1.0 {
		t.Errorf("corrupt identifier should downgrade confidence, got %f", corrupt.Confidence)
	}

	if records[2].Confidence != 0.5 {
		t.Errorf("out-of-range confidence should default to 0.5, got %f", records[2].Confidence)
	}
}
