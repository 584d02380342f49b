// Package cluster groups tokens into per-record clusters using grid-based
// spatial proximity, with structural context taking precedence: a token
// inside a table row belongs to that row's cluster, no grid involved.
package cluster

import (
	"sort"

	"github.com/hyperjump/toridasu/internal/config"
	"github.com/hyperjump/toridasu/internal/models"
)

// Engine assigns every token to exactly one cluster.
type Engine struct {
	cellSize float64
	radius   int
}

// NewEngine creates a clustering engine from the extraction config.
func NewEngine(cfg *config.ExtractionConfig) *Engine {
	return &Engine{cellSize: cfg.GridSize, radius: cfg.GridRadius}
}

type cellKey struct {
	page, cx, cy int
}

// Cluster partitions the token stream. Table rows become one cluster each;
// the remaining tokens go through grid bucketing, and whatever no seed
// absorbs is collected into one residual cluster per section so that the
// partition stays total.
func (e *Engine) Cluster(tokens []*models.Token, layout *models.Layout) []*models.Cluster {
	var clusters []*models.Cluster
	claimed := make(map[*models.Token]bool, len(tokens))

	// Structural grouping first: rows are guaranteed to describe one entity.
	for _, table := range layout.Tables {
		for _, row := range table.Rows {
			c := &models.Cluster{
				Tokens: row.All(),
				Context: models.StructureContext{
					Table:   table,
					Row:     row,
					Section: layout.SectionAt(row.Lines[0]),
				},
			}
			c.Centroid = centroid(c.Tokens)
			for _, t := range c.Tokens {
				claimed[t] = true
			}
			clusters = append(clusters, c)
		}
	}

	// Grid bucketing for everything outside tables.
	cells := make(map[cellKey][]*models.Token)
	for _, t := range tokens {
		if claimed[t] {
			continue
		}
		cells[e.keyOf(t)] = append(cells[e.keyOf(t)], t)
	}

	for _, key := range sortedSeedKeys(cells) {
		if !isSeed(cells[key]) {
			continue
		}
		var members []*models.Token
		for dx := -e.radius; dx <= e.radius; dx++ {
			for dy := -e.radius; dy <= e.radius; dy++ {
				nk := cellKey{key.page, key.cx + dx, key.cy + dy}
				for _, t := range cells[nk] {
					if claimed[t] {
						continue
					}
					claimed[t] = true
					members = append(members, t)
				}
			}
		}
		if len(members) == 0 {
			continue
		}
		c := &models.Cluster{Tokens: members, Centroid: centroid(members)}
		c.Context = models.StructureContext{Section: layout.SectionAt(members[0].Line)}
		clusters = append(clusters, c)
	}

	// Residual tokens: one catch-all cluster per section.
	residual := make(map[*models.Section][]*models.Token)
	var order []*models.Section
	for _, t := range tokens {
		if claimed[t] {
			continue
		}
		s := layout.SectionAt(t.Line)
		if _, ok := residual[s]; !ok {
			order = append(order, s)
		}
		residual[s] = append(residual[s], t)
	}
	for _, s := range order {
		members := residual[s]
		clusters = append(clusters, &models.Cluster{
			Tokens:   members,
			Centroid: centroid(members),
			Context:  models.StructureContext{Section: s},
		})
	}
	return clusters
}

func (e *Engine) keyOf(t *models.Token) cellKey {
	return cellKey{
		page: t.Pos.Page,
		cx:   int(t.Pos.X / e.cellSize),
		cy:   int(t.Pos.Y / e.cellSize),
	}
}

// isSeed reports whether a cell can start a cluster: an identifier token plus
// at least two numeric tokens.
func isSeed(tokens []*models.Token) bool {
	var ids, nums int
	for _, t := range tokens {
		switch {
		case t.Kind == models.KindIdentifier:
			ids++
		case t.IsNumeric():
			nums++
		}
	}
	return ids >= 1 && nums >= 2
}

// sortedSeedKeys returns cell keys in deterministic reading order so cluster
// output is stable across runs.
func sortedSeedKeys(cells map[cellKey][]*models.Token) []cellKey {
	keys := make([]cellKey, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.page != b.page {
			return a.page < b.page
		}
		if a.cy != b.cy {
			return a.cy < b.cy
		}
		return a.cx < b.cx
	})
	return keys
}

func centroid(tokens []*models.Token) models.Position {
	if len(tokens) == 0 {
		return models.Position{}
	}
	var sx, sy float64
	for _, t := range tokens {
		sx += t.Pos.X
		sy += t.Pos.Y
	}
	n := float64(len(tokens))
	return models.Position{
		Page: tokens[0].Pos.Page,
		X:    sx / n,
		Y:    sy / n,
	}
}
