package record

import (
	"testing"

	"github.com/hyperjump/toridasu/internal/classify"
	"github.com/hyperjump/toridasu/internal/config"
	"github.com/hyperjump/toridasu/internal/models"
)

func newTestBuilder() (*Builder, *classify.Classifier) {
	var cfg config.Config
	config.ApplyDefaults(&cfg)
	cl := classify.New(&cfg.Extraction)
	return NewBuilder(&cfg.Extraction, cl, nil), cl
}

func toks(cl *classify.Classifier, texts ...string) []*models.Token {
	out := make([]*models.Token, 0, len(texts))
	x := 0.0
	for _, s := range texts {
		out = append(out, cl.Classify(models.RawToken{Text: s, Page: 1, X: x, Y: 50}))
		x += 40
	}
	return out
}

func rowCluster(tokens []*models.Token, columnMap map[models.Field]int) *models.Cluster {
	row := &models.TableRow{Tokens: tokens, Lines: []int{0}}
	table := &models.Table{ColumnMap: columnMap, Rows: []*models.TableRow{row}}
	return &models.Cluster{
		Tokens:  row.All(),
		Context: models.StructureContext{Table: table, Row: row},
	}
}

func TestBuild_mappedRow(t *testing.T) {
	b, cl := newTestBuilder()
	tokens := toks(cl, "XS2530201644", "TORONTO DOMINION BANK NOTES", "199'068.50", "USD")
	c := rowCluster(tokens, map[models.Field]int{
		models.FieldIdentifier:  0,
		models.FieldDescription: 1,
		models.FieldValuation:   2,
		models.FieldCurrency:    3,
	})
	r := b.Build(c, &models.Layout{}, nil, "tokens")
	if r == nil {
		t.Fatal("expected a record")
	}
	if r.Identifier != "XS2530201644" {
		t.Errorf("identifier = %q", r.Identifier)
	}
	if r.MarketValue.String() != "199068.5" {
		t.Errorf("market value = %s, want 199068.5", r.MarketValue)
	}
	if r.Currency != "USD" {
		t.Errorf("currency = %q, want USD", r.Currency)
	}
	if r.Name != "TORONTO DOMINION BANK NOTES" {
		t.Errorf("name = %q", r.Name)
	}
	if r.Validation.ChecksumOK == nil || !*r.Validation.ChecksumOK {
		t.Error("checksum flag should be computed and true")
	}
	if r.Validation.ArithmeticOK != nil {
		t.Error("arithmetic flag should be undefined without quantity and price")
	}
}

func TestBuild_mappedCellFailsFallsBackToShape(t *testing.T) {
	b, cl := newTestBuilder()
	// The valuation column points at a text cell; the real value sits
	// elsewhere in the row.
	tokens := toks(cl, "XS2530201644", "n/a", "TORONTO DOMINION BANK NOTES", "199'068.50")
	c := rowCluster(tokens, map[models.Field]int{
		models.FieldIdentifier: 0,
		models.FieldValuation:  1,
	})
	r := b.Build(c, &models.Layout{}, nil, "tokens")
	if r == nil {
		t.Fatal("expected a record")
	}
	if r.MarketValue.String() != "199068.5" {
		t.Errorf("fallback market value = %s, want 199068.5", r.MarketValue)
	}
}

func TestBuild_unmappedRowInfersQuantityPrice(t *testing.T) {
	b, cl := newTestBuilder()
	tokens := toks(cl, "US0378331005", "APPLE INC REGISTERED SHARES", "1'000", "150.25", "150'250.00", "USD")
	c := rowCluster(tokens, nil)
	r := b.Build(c, &models.Layout{}, nil, "tokens")
	if r == nil {
		t.Fatal("expected a record")
	}
	if r.MarketValue.String() != "150250" {
		t.Errorf("market value = %s, want 150250", r.MarketValue)
	}
	if r.Quantity == nil || r.Price == nil {
		t.Fatal("quantity and price should be inferred from the product match")
	}
	q, p := r.Quantity.String(), r.Price.String()
	if !(q == "1000" && p == "150.25") && !(q == "150.25" && p == "1000") {
		t.Errorf("unexpected quantity/price: %s x %s", q, p)
	}
}

func TestBuild_noMonetaryValueDiscards(t *testing.T) {
	b, cl := newTestBuilder()
	tokens := toks(cl, "US0378331005", "APPLE INC REGISTERED SHARES", "12.50", "3")
	c := rowCluster(tokens, nil)
	if r := b.Build(c, &models.Layout{}, nil, "tokens"); r != nil {
		t.Errorf("record without a monetary value must be discarded, got %+v", r)
	}
}

func TestBuild_noIdentifierDiscards(t *testing.T) {
	b, cl := newTestBuilder()
	tokens := toks(cl, "Some", "prose", "199'068.50")
	c := &models.Cluster{Tokens: tokens}
	if r := b.Build(c, &models.Layout{}, nil, "tokens"); r != nil {
		t.Errorf("cluster without an identifier must not build, got %+v", r)
	}
}

func TestBuild_proximityPrefersDominantLocale(t *testing.T) {
	b, cl := newTestBuilder()
	// Two monetary candidates at equal distance from the identifier; the
	// apostrophe-grouped one agrees with the document's dominant locale.
	id := cl.Classify(models.RawToken{Text: "CH0012032048", Page: 1, X: 100, Y: 50})
	commaNum := cl.Classify(models.RawToken{Text: "310,000.00", Page: 1, X: 60, Y: 50})
	apoNum := cl.Classify(models.RawToken{Text: "312'750.00", Page: 1, X: 140, Y: 50})
	name := cl.Classify(models.RawToken{Text: "NOVARTIS REGISTERED SHARES", Page: 1, X: 100, Y: 45})
	c := &models.Cluster{Tokens: []*models.Token{id, commaNum, apoNum, name}}
	layout := &models.Layout{DominantLocale: models.LocaleApostrophe}
	r := b.Build(c, layout, nil, "tokens")
	if r == nil {
		t.Fatal("expected a record")
	}
	if r.MarketValue.String() != "312750" {
		t.Errorf("locale-consistent candidate should win, got %s", r.MarketValue)
	}
	if r.Name == "" {
		t.Error("name should be assembled from adjacent text run")
	}
}

func TestBuildName_bounds(t *testing.T) {
	_, cl := newTestBuilder()
	long := "EXTREMELY LONG SECURITY DESIGNATION THAT KEEPS GOING AND GOING WELL PAST ANY REASONABLE DISPLAY WIDTH FOR A NAME"
	tokens := toks(cl, "XS2530201644", long, "199'068.50")
	name := buildName(tokens, nil, 0)
	if len(name) > nameMaxLen {
		t.Errorf("name length %d exceeds bound %d", len(name), nameMaxLen)
	}
	if name == "" {
		t.Error("name should not be empty")
	}
}

func TestHasKeywordNear(t *testing.T) {
	_, cl := newTestBuilder()
	tests := []struct {
		name  string
		words []string
		want  bool
	}{
		{"keyword token", []string{"Valuation", "199'068.50"}, true},
		{"keyword inside phrase", []string{"Market", "value", "199'068.50"}, true},
		{"stray short word is not a keyword", []string{"a", "199'068.50"}, false},
		{"keyword fragment is not a keyword", []string{"on", "val", "199'068.50"}, false},
		{"unrelated text", []string{"coupon", "199'068.50"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := toks(cl, tt.words...)
			target := tokens[len(tokens)-1]
			if got := hasKeywordNear(tokens, target, 500); got != tt.want {
				t.Errorf("hasKeywordNear(%v) = %v, want %v", tt.words, got, tt.want)
			}
		})
	}
}
