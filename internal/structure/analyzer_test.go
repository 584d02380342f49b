package structure

import (
	"strings"
	"testing"

	"github.com/hyperjump/toridasu/internal/classify"
	"github.com/hyperjump/toridasu/internal/config"
	"github.com/hyperjump/toridasu/internal/models"
)

func newTestAnalyzer() (*Analyzer, *classify.Classifier) {
	var cfg config.Config
	config.ApplyDefaults(&cfg)
	cl := classify.New(&cfg.Extraction)
	return NewAnalyzer(&cfg.Extraction, cl, nil, nil), cl
}

// tokensFromLines builds a classified token stream where each string is one
// line; tokens are spaced 40 units apart and lines 10 units apart.
func tokensFromLines(cl *classify.Classifier, lines ...string) []*models.Token {
	var raws []models.RawToken
	for i, line := range lines {
		x := 0.0
		for _, word := range strings.Fields(line) {
			raws = append(raws, models.RawToken{Text: word, Page: 1, X: x, Y: float64(i) * 10})
			x += 40
		}
	}
	return cl.ClassifyAll(raws)
}

func TestBuildLines(t *testing.T) {
	_, cl := newTestAnalyzer()
	tokens := tokensFromLines(cl, "HOLDINGS", "XS2530201644 TORONTO 199'068.50 USD")
	lines := BuildLines(tokens, 2.5)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if len(lines[1]) != 4 {
		t.Errorf("second line should have 4 tokens, got %d", len(lines[1]))
	}
	for _, tok := range lines[1] {
		if tok.Line != 1 {
			t.Errorf("token %q should carry line index 1, got %d", tok.Text, tok.Line)
		}
	}
}

func TestAnalyze_tableWithColumnMap(t *testing.T) {
	a, cl := newTestAnalyzer()
	tokens := tokensFromLines(cl,
		"ISIN Description Valuation Currency",
		"XS2530201644 TORONTO-DOMINION-BANK 199'068.50 USD",
		"US0378331005 APPLE-INC 150'000.00 USD",
	)
	layout, _ := a.Analyze(tokens)
	if len(layout.Tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(layout.Tables))
	}
	tbl := layout.Tables[0]
	if len(tbl.Rows) != 2 {
		t.Errorf("expected 2 rows, got %d", len(tbl.Rows))
	}
	if !tbl.Mapped() {
		t.Fatal("table header should resolve to a column map")
	}
	if tbl.ColumnMap[models.FieldIdentifier] != 0 || tbl.ColumnMap[models.FieldValuation] != 2 {
		t.Errorf("unexpected column map: %v", tbl.ColumnMap)
	}
}

func TestAnalyze_unmappedTableStillExists(t *testing.T) {
	a, cl := newTestAnalyzer()
	tokens := tokensFromLines(cl,
		"XS2530201644 TORONTO-DOMINION-BANK 199'068.50 USD",
		"US0378331005 APPLE-INC 150'000.00 USD",
	)
	layout, _ := a.Analyze(tokens)
	if len(layout.Tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(layout.Tables))
	}
	if layout.Tables[0].Mapped() {
		t.Error("table without a header should have an empty column map")
	}
}

func TestAnalyze_summarySection(t *testing.T) {
	a, cl := newTestAnalyzer()
	tokens := tokensFromLines(cl,
		"HOLDINGS",
		"XS2530201644 TORONTO-DOMINION-BANK 199'068.50 USD",
		"Total assets 19'464'431 USD 100.00%",
	)
	layout, _ := a.Analyze(tokens)
	var summary *models.Section
	for _, s := range layout.Sections {
		if s.Type == models.SectionSummary {
			if summary != nil {
				t.Fatal("only one summary section expected")
			}
			summary = s
		}
	}
	if summary == nil {
		t.Fatal("summary section not detected")
	}
	if summary.StatedTotal == nil || summary.StatedTotal.String() != "19464431" {
		t.Errorf("stated total = %v, want 19464431", summary.StatedTotal)
	}
	if summary.Currency != "USD" {
		t.Errorf("summary currency = %q, want USD", summary.Currency)
	}
}

func TestAnalyze_sectionsCoverAllLines(t *testing.T) {
	a, cl := newTestAnalyzer()
	tokens := tokensFromLines(cl,
		"PORTFOLIO STATEMENT",
		"Some introductory text here",
		"XS2530201644 TORONTO-DOMINION-BANK 199'068.50 USD",
		"Total assets 19'464'431 USD",
		"Closing remarks",
	)
	layout, lines := a.Analyze(tokens)
	covered := make([]bool, len(lines))
	for _, s := range layout.Sections {
		for i := s.StartLine; i <= s.EndLine; i++ {
			if covered[i] {
				t.Fatalf("line %d covered by two sections", i)
			}
			covered[i] = true
		}
	}
	for i, c := range covered {
		if !c {
			t.Errorf("line %d not covered by any section", i)
		}
	}
}

func TestAnalyze_multiRowMerge(t *testing.T) {
	a, cl := newTestAnalyzer()
	// The anchor line has the identifier and numbers but no description;
	// the wrapped description line below must merge into the row.
	tokens := tokensFromLines(cl,
		"XS2530201644 50 99.53 12.40",
		"Toronto Dominion Bank Notes",
		"US0378331005 100 150.00 15'000.00",
	)
	layout, _ := a.Analyze(tokens)
	if len(layout.Tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(layout.Tables))
	}
	rows := layout.Tables[0].Rows
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if len(rows[0].Continuation) == 0 {
		t.Error("wrapped description should merge into the first row")
	}
}

func TestTypeKey_stableFingerprint(t *testing.T) {
	a, cl := newTestAnalyzer()
	tokens := tokensFromLines(cl,
		"CREDIT BANK",
		"XS2530201644 TORONTO-DOMINION-BANK 199'068.50 USD",
	)
	layout, _ := a.Analyze(tokens)
	if layout.TypeKey != "credit-bank:grouped-apostrophe" {
		t.Errorf("type key = %q", layout.TypeKey)
	}
}
