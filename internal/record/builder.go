// Package record converts token clusters into candidate security records,
// selecting the best value for each field when multiple candidates compete.
package record

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hyperjump/toridasu/internal/classify"
	"github.com/hyperjump/toridasu/internal/config"
	"github.com/hyperjump/toridasu/internal/models"
	"github.com/hyperjump/toridasu/internal/structure"
)

// fieldKeywords indicate, near a number, which semantic field it holds.
var fieldKeywords = []string{"market value", "valuation", "value", "nominal", "balance", "amount"}

// quantityMax and priceMax bound the per-field shape checks used when a
// mapped cell fails validation or no mapping exists.
var (
	quantityMax = decimal.NewFromInt(1_000_000_000)
	priceMax    = decimal.NewFromInt(10_000_000)
)

// Builder produces zero or one SecurityRecord per cluster.
type Builder struct {
	classifier *classify.Classifier
	tolerance  decimal.Decimal
	window     float64
	logger     *zap.Logger
}

// NewBuilder creates a record builder from the extraction config.
func NewBuilder(cfg *config.ExtractionConfig, cl *classify.Classifier, logger *zap.Logger) *Builder {
	return &Builder{
		classifier: cl,
		tolerance:  decimal.NewFromFloat(cfg.ArithmeticTolerance),
		window:     cfg.GridSize * float64(cfg.GridRadius) * 2,
		logger:     logger,
	}
}

// BuildAll converts clusters into candidate records. Clusters yielding no
// resolvable monetary value produce nothing: a record is never emitted with
// a zero value.
func (b *Builder) BuildAll(clusters []*models.Cluster, layout *models.Layout, lines [][]*models.Token, provenance string) []*models.SecurityRecord {
	records := make([]*models.SecurityRecord, 0, len(clusters))
	for _, c := range clusters {
		if r := b.Build(c, layout, lines, provenance); r != nil {
			records = append(records, r)
		}
	}
	return records
}

// Build converts one cluster. Returns nil when the cluster has no identifier
// or no resolvable monetary value.
func (b *Builder) Build(c *models.Cluster, layout *models.Layout, lines [][]*models.Token, provenance string) *models.SecurityRecord {
	idTok := identifierToken(c.Tokens)
	if idTok == nil {
		return nil
	}

	r := &models.SecurityRecord{
		Identifier: idTok.Identifier.Code,
		Provenance: provenance,
		Context:    c.Context,
		Summary:    c.Context.InSummary(),
		Category:   categoryFor(c, layout, lines),
	}
	ok := idTok.Identifier.ChecksumValid
	r.Validation.ChecksumOK = &ok

	switch {
	case c.Context.Row != nil && c.Context.Table.Mapped():
		b.extractMapped(r, c.Context.Row, c.Context.Table.ColumnMap, idTok)
		r.Confidence = 0.9
	case c.Context.Row != nil:
		b.extractByShape(r, c.Context.Row.All(), idTok)
		r.Confidence = 0.7
	default:
		b.extractByProximity(r, c, layout, idTok)
		r.Confidence = 0.5
	}

	if r.MarketValue.IsZero() {
		if b.logger != nil {
			b.logger.Debug("cluster discarded: no resolvable monetary value",
				zap.String("identifier", r.Identifier))
		}
		return nil
	}
	if !idTok.Identifier.ChecksumValid {
		r.Confidence *= 0.7
	}
	return r
}

// extractMapped reads each semantic field from its mapped cell, falling back
// to shape-based search over the whole row when the cell is missing or fails
// its range check.
func (b *Builder) extractMapped(r *models.SecurityRecord, row *models.TableRow, columnMap map[models.Field]int, idTok *models.Token) {
	cell := func(f models.Field) *models.Token {
		idx, ok := columnMap[f]
		if !ok || idx >= len(row.Tokens) {
			return nil
		}
		return row.Tokens[idx]
	}
	claimed := make(map[*models.Token]bool)
	claimed[idTok] = true

	if t := cell(models.FieldValuation); t != nil && t.IsNumeric() && b.classifier.Monetary(t.Number) {
		r.MarketValue = t.Number.Value
		claimed[t] = true
	}
	if t := cell(models.FieldQuantity); t != nil && t.IsNumeric() && inRange(t.Number.Value, quantityMax) {
		v := t.Number.Value
		r.Quantity = &v
		claimed[t] = true
	}
	if t := cell(models.FieldPrice); t != nil && t.IsNumeric() && inRange(t.Number.Value, priceMax) {
		v := t.Number.Value
		r.Price = &v
		claimed[t] = true
	}
	if t := cell(models.FieldCurrency); t != nil && t.Kind == models.KindCurrency {
		r.Currency = t.Text
		claimed[t] = true
	}
	if t := cell(models.FieldDescription); t != nil && isNameToken(t) {
		r.Name = t.Text
		for _, ct := range row.Continuation {
			if isNameToken(ct) {
				r.Name += " " + ct.Text
			}
		}
		if len(r.Name) > nameMaxLen {
			r.Name = r.Name[:nameMaxLen]
		}
	}

	// Shape fallback for whatever the mapping did not resolve.
	b.fillMissingByShape(r, row.All(), claimed, idTok)
}

// extractByShape handles rows of unmapped tables: any cell matching a
// field's shape can serve it.
func (b *Builder) extractByShape(r *models.SecurityRecord, tokens []*models.Token, idTok *models.Token) {
	claimed := map[*models.Token]bool{idTok: true}
	b.fillMissingByShape(r, tokens, claimed, idTok)
}

func (b *Builder) fillMissingByShape(r *models.SecurityRecord, tokens []*models.Token, claimed map[*models.Token]bool, idTok *models.Token) {
	if r.MarketValue.IsZero() {
		if t := largestMonetary(tokens, claimed, b.classifier); t != nil {
			r.MarketValue = t.Number.Value
			claimed[t] = true
		}
	}
	if r.Currency == "" {
		for _, t := range tokens {
			if t.Kind == models.KindCurrency && !claimed[t] {
				r.Currency = t.Text
				claimed[t] = true
				break
			}
		}
	}
	if r.Quantity == nil && r.Price == nil && !r.MarketValue.IsZero() {
		b.inferQuantityPrice(r, tokens, claimed)
	}
	if r.Name == "" {
		primary, continuation := tokens, []*models.Token(nil)
		r.Name = buildName(primary, continuation, indexOf(tokens, idTok))
	}
}

// inferQuantityPrice looks for an unclaimed number pair whose product lands
// within tolerance of the market value.
func (b *Builder) inferQuantityPrice(r *models.SecurityRecord, tokens []*models.Token, claimed map[*models.Token]bool) {
	var nums []*models.Token
	for _, t := range tokens {
		if t.IsNumeric() && !claimed[t] && t.Number.Value.IsPositive() {
			nums = append(nums, t)
		}
	}
	bound := b.tolerance.Mul(r.MarketValue)
	for i, q := range nums {
		if !inRange(q.Number.Value, quantityMax) {
			continue
		}
		for j, p := range nums {
			if i == j || !inRange(p.Number.Value, priceMax) {
				continue
			}
			product := q.Number.Value.Mul(p.Number.Value)
			if product.Sub(r.MarketValue).Abs().LessThanOrEqual(bound) {
				qv, pv := q.Number.Value, p.Number.Value
				r.Quantity, r.Price = &qv, &pv
				claimed[q], claimed[p] = true, true
				return
			}
		}
	}
}

// extractByProximity handles untabulated clusters: numeric candidates within
// a bounded window of the identifier are scored by distance, nearby field
// keywords, and locale consistency with the rest of the document.
func (b *Builder) extractByProximity(r *models.SecurityRecord, c *models.Cluster, layout *models.Layout, idTok *models.Token) {
	var bestValue *models.Token
	bestScore := 0.0
	for _, t := range c.Tokens {
		if !t.IsNumeric() || !b.classifier.Monetary(t.Number) {
			continue
		}
		d := dist(t.Pos, idTok.Pos)
		if d > b.window {
			continue
		}
		score := 1.0 / (1.0 + d/10.0)
		if hasKeywordNear(c.Tokens, t, b.window/2) {
			score += 0.3
		}
		if layout.DominantLocale != models.LocalePlain && t.Number.Locale == layout.DominantLocale {
			score += 0.2
		}
		if score > bestScore {
			bestScore, bestValue = score, t
		}
	}
	claimed := map[*models.Token]bool{idTok: true}
	if bestValue != nil {
		r.MarketValue = bestValue.Number.Value
		claimed[bestValue] = true
	}
	for _, t := range c.Tokens {
		if t.Kind == models.KindCurrency {
			r.Currency = t.Text
			break
		}
	}
	if !r.MarketValue.IsZero() {
		b.inferQuantityPrice(r, c.Tokens, claimed)
	}
	r.Name = buildName(c.Tokens, nil, indexOf(c.Tokens, idTok))
}

// categoryFor labels the record with the nearest preceding header line, the
// way statements group holdings under "BONDS" / "EQUITIES" captions.
func categoryFor(c *models.Cluster, layout *models.Layout, lines [][]*models.Token) string {
	if len(c.Tokens) == 0 {
		return ""
	}
	start := c.Tokens[0].Line
	for i := start; i >= 0 && i >= start-10; i-- {
		if i < len(lines) && structure.LineText(lines[i]) != "" && isHeaderLineTokens(lines[i]) {
			return structure.LineText(lines[i])
		}
	}
	return ""
}

func isHeaderLineTokens(line []*models.Token) bool {
	if len(line) == 0 {
		return false
	}
	for _, t := range line {
		if t.Kind != models.KindHeader {
			return false
		}
	}
	return true
}

// identifierToken picks the cluster's identifier, preferring checksum-valid
// candidates.
func identifierToken(tokens []*models.Token) *models.Token {
	var fallback *models.Token
	for _, t := range tokens {
		if t.Kind != models.KindIdentifier {
			continue
		}
		if t.Identifier.ChecksumValid {
			return t
		}
		if fallback == nil {
			fallback = t
		}
	}
	return fallback
}

func largestMonetary(tokens []*models.Token, claimed map[*models.Token]bool, cl *classify.Classifier) *models.Token {
	var best *models.Token
	for _, t := range tokens {
		if claimed[t] || !t.IsNumeric() || !cl.Monetary(t.Number) {
			continue
		}
		if best == nil || t.Number.Value.GreaterThan(best.Number.Value) {
			best = t
		}
	}
	return best
}

func hasKeywordNear(tokens []*models.Token, target *models.Token, radius float64) bool {
	for _, t := range tokens {
		if t.Kind != models.KindText && t.Kind != models.KindHeader {
			continue
		}
		if dist(t.Pos, target.Pos) > radius {
			continue
		}
		lower := strings.ToLower(t.Text)
		for _, kw := range fieldKeywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

func inRange(v decimal.Decimal, max decimal.Decimal) bool {
	return v.IsPositive() && v.LessThan(max)
}

func indexOf(tokens []*models.Token, target *models.Token) int {
	for i, t := range tokens {
		if t == target {
			return i
		}
	}
	return 0
}

func dist(a, b models.Position) float64 {
	if a.Page != b.Page {
		return math.MaxFloat64
	}
	dx, dy := a.X-b.X, a.Y-b.Y
	return math.Hypot(dx, dy)
}
