package cluster

import (
	"strings"
	"testing"

	"github.com/hyperjump/toridasu/internal/classify"
	"github.com/hyperjump/toridasu/internal/config"
	"github.com/hyperjump/toridasu/internal/models"
	"github.com/hyperjump/toridasu/internal/structure"
)

func setup() (*Engine, *structure.Analyzer, *classify.Classifier) {
	var cfg config.Config
	config.ApplyDefaults(&cfg)
	cl := classify.New(&cfg.Extraction)
	return NewEngine(&cfg.Extraction), structure.NewAnalyzer(&cfg.Extraction, cl, nil, nil), cl
}

func classifyLines(cl *classify.Classifier, lines ...string) []*models.Token {
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

func TestCluster_everyTokenAssignedOnce(t *testing.T) {
	e, a, cl := setup()
	tokens := classifyLines(cl,
		"PORTFOLIO",
		"XS2530201644 TORONTO-DOMINION-BANK 199'068.50 USD",
		"Some stray remark",
		"Total assets 19'464'431 USD",
	)
	layout, _ := a.Analyze(tokens)
	clusters := e.Cluster(tokens, layout)

	seen := make(map[*models.Token]int)
	for _, c := range clusters {
		for _, tok := range c.Tokens {
			seen[tok]++
		}
	}
	for _, tok := range tokens {
		if seen[tok] != 1 {
			t.Errorf("token %q assigned %d times, want exactly 1", tok.Text, seen[tok])
		}
	}
}

func TestCluster_tableRowBypassesGrid(t *testing.T) {
	e, a, cl := setup()
	tokens := classifyLines(cl,
		"XS2530201644 TORONTO-DOMINION-BANK 199'068.50 USD",
		"US0378331005 APPLE-INC 150'000.00 USD",
	)
	layout, _ := a.Analyze(tokens)
	clusters := e.Cluster(tokens, layout)

	var rowClusters int
	for _, c := range clusters {
		if c.Context.Row != nil {
			rowClusters++
			if c.Context.Table == nil {
				t.Error("row cluster should reference its table")
			}
		}
	}
	if rowClusters != 2 {
		t.Errorf("expected 2 row clusters, got %d", rowClusters)
	}
}

func TestCluster_gridSeedsOutsideTables(t *testing.T) {
	e, a, cl := setup()
	// Identifier with two nearby numbers but too few segments for a table
	// anchor: clustering must come from the grid.
	tokens := cl.ClassifyAll([]models.RawToken{
		{Text: "CH0012032048", Page: 1, X: 10, Y: 100},
		{Text: "2'500", Page: 1, X: 12, Y: 102},
		{Text: "312'750.00", Page: 1, X: 14, Y: 104},
		{Text: "Far", Page: 2, X: 500, Y: 900},
	})
	layout, _ := a.Analyze(tokens)
	clusters := e.Cluster(tokens, layout)

	var seedCluster *models.Cluster
	for _, c := range clusters {
		for _, tok := range c.Tokens {
			if tok.Kind == models.KindIdentifier {
				seedCluster = c
			}
		}
	}
	if seedCluster == nil {
		t.Fatal("grid should seed a cluster around the identifier")
	}
	if len(seedCluster.Tokens) != 3 {
		t.Errorf("seed cluster should absorb the adjacent numbers, got %d tokens", len(seedCluster.Tokens))
	}
	for _, tok := range seedCluster.Tokens {
		if tok.Pos.Page == 2 {
			t.Error("tokens on another page must not join the cluster")
		}
	}
}
