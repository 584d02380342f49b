// Package structure segments a classified token stream into sections and
// tables, and infers column-to-field mappings from header rows.
package structure

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hyperjump/toridasu/internal/classify"
	"github.com/hyperjump/toridasu/internal/config"
	"github.com/hyperjump/toridasu/internal/models"
	"github.com/hyperjump/toridasu/internal/pattern"
)

// summaryPattern matches lines that open a summary/total section.
var summaryPattern = regexp.MustCompile(`(?i)\b(total|portfolio|assets|grand\s+total|summe)\b`)

// Analyzer segments documents. Safe for concurrent use across documents.
type Analyzer struct {
	classifier      *classify.Classifier
	synonyms        map[models.Field][]string
	maxContinuation int
	lineTolerance   float64
	patterns        pattern.Reader
	logger          *zap.Logger
}

// NewAnalyzer creates an analyzer from the extraction config. patterns may be
// nil when no pattern memory is configured.
func NewAnalyzer(cfg *config.ExtractionConfig, cl *classify.Classifier, patterns pattern.Reader, logger *zap.Logger) *Analyzer {
	synonyms := make(map[models.Field][]string, len(cfg.ColumnSynonyms))
	for field, words := range cfg.ColumnSynonyms {
		lowered := make([]string, 0, len(words))
		for _, w := range words {
			lowered = append(lowered, strings.ToLower(w))
		}
		synonyms[models.Field(field)] = lowered
	}
	return &Analyzer{
		classifier:      cl,
		synonyms:        synonyms,
		maxContinuation: cfg.MaxContinuationRows,
		lineTolerance:   cfg.GridSize / 4,
		patterns:        patterns,
		logger:          logger,
	}
}

// Analyze builds the document layout: lines, tables, sections, a document
// type fingerprint, and the dominant number locale. Sections are
// non-overlapping and cover every line.
func (a *Analyzer) Analyze(tokens []*models.Token) (*models.Layout, [][]*models.Token) {
	lines := BuildLines(tokens, a.lineTolerance)
	layout := &models.Layout{
		DominantLocale: classify.DominantLocale(tokens),
	}
	layout.Tables = a.detectTables(lines)
	layout.Sections = a.detectSections(lines, layout.Tables)
	layout.TypeKey = a.typeKey(lines, layout.DominantLocale)
	a.applyLearnedColumns(layout)

	if a.logger != nil {
		a.logger.Debug("structure analyzed",
			zap.Int("lines", len(lines)),
			zap.Int("tables", len(layout.Tables)),
			zap.Int("sections", len(layout.Sections)),
			zap.String("type_key", layout.TypeKey),
			zap.String("locale", layout.DominantLocale.String()),
		)
	}
	return layout, lines
}

// detectSections walks the lines once, opening a summary section at each
// summary-keyword line (outside tables) and a generic section at each
// header-like line. The first section starts at line zero, so coverage is
// total and sections never overlap.
func (a *Analyzer) detectSections(lines [][]*models.Token, tables []*models.Table) []*models.Section {
	if len(lines) == 0 {
		return nil
	}
	inTable := func(i int) bool {
		for _, t := range tables {
			if i >= t.StartLine && i <= t.EndLine {
				return true
			}
		}
		return false
	}

	var sections []*models.Section
	current := &models.Section{Type: models.SectionOther, StartLine: 0}
	closeAt := func(end int) {
		current.EndLine = end
		sections = append(sections, current)
	}
	for i := 1; i < len(lines); i++ {
		switch {
		case !inTable(i) && current.Type != models.SectionSummary && a.isSummaryLine(lines[i]):
			closeAt(i - 1)
			current = &models.Section{Type: models.SectionSummary, StartLine: i}
		case isHeaderLine(lines[i]) && current.StartLine != i:
			closeAt(i - 1)
			current = &models.Section{Type: models.SectionOther, StartLine: i}
		}
	}
	closeAt(len(lines) - 1)

	for _, s := range sections {
		switch s.Type {
		case models.SectionSummary:
			a.captureStatedTotal(s, lines)
		case models.SectionOther:
			for _, t := range tables {
				if t.StartLine >= s.StartLine && t.StartLine <= s.EndLine {
					s.Type = models.SectionHoldings
					break
				}
			}
		}
	}
	return sections
}

// isSummaryLine reports whether a line opens a summary section. Table anchor
// lines never do: a holding whose description contains "total" is still a
// holding.
func (a *Analyzer) isSummaryLine(line []*models.Token) bool {
	if isAnchorLine(line) {
		return false
	}
	return summaryPattern.MatchString(LineText(line))
}

// captureStatedTotal records the largest monetary literal of a summary
// section as the document's stated total, with the first currency seen.
func (a *Analyzer) captureStatedTotal(s *models.Section, lines [][]*models.Token) {
	var best *decimal.Decimal
	for i := s.StartLine; i <= s.EndLine && i < len(lines); i++ {
		for _, t := range lines[i] {
			if t.Kind == models.KindCurrency && s.Currency == "" {
				s.Currency = t.Text
			}
			if t.IsNumeric() && a.classifier.Monetary(t.Number) {
				v := t.Number.Value
				if best == nil || v.GreaterThan(*best) {
					best = &v
				}
			}
		}
	}
	s.StatedTotal = best
}

// isHeaderLine reports whether every token of a line is a header word.
func isHeaderLine(line []*models.Token) bool {
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

// typeKey fingerprints the issuing institution's format: the first header
// line of the document combined with the dominant locale. Documents from the
// same bank hash to the same key, which is what pattern memory keys on.
func (a *Analyzer) typeKey(lines [][]*models.Token, locale models.NumberLocale) string {
	for _, line := range lines {
		if isHeaderLine(line) {
			slug := strings.ToLower(LineText(line))
			slug = strings.Join(strings.Fields(slug), "-")
			return slug + ":" + locale.String()
		}
	}
	return "generic:" + locale.String()
}

// applyLearnedColumns fills in column maps for unmapped tables from pattern
// memory. A learned mapping is a prior only: it never overrides a map that
// was resolved from an actual header row.
func (a *Analyzer) applyLearnedColumns(layout *models.Layout) {
	if a.patterns == nil {
		return
	}
	var learned map[models.Field]int
	for _, t := range layout.Tables {
		if t.Mapped() {
			continue
		}
		if learned == nil {
			m, err := a.patterns.ColumnMap(layout.TypeKey)
			if err != nil || m == nil {
				return
			}
			learned = m
		}
		t.ColumnMap = learned
		if a.logger != nil {
			a.logger.Debug("applied learned column map", zap.String("type_key", layout.TypeKey))
		}
	}
}
