// Package index provides Bleve implementation of RecordIndex.
package index

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"

	"github.com/hyperjump/toridasu/internal/models"
)

// recordDoc is the flat shape stored in the index.
type recordDoc struct {
	PortfolioID string  `json:"portfolio_id"`
	Identifier  string  `json:"identifier"`
	Name        string  `json:"name"`
	Currency    string  `json:"currency"`
	Category    string  `json:"category"`
	Value       float64 `json:"value"`
}

// BleveIndex implements RecordIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path. An existing index is
// reused; remove the directory to force a full re-index after a mapping
// change.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer: lowercase + tokenize, no stemming. Security names
	// contain issuer names and tickers that stemming would mangle.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("name", textFieldMapping)
	docMapping.AddFieldMappingsAt("category", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("identifier", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("portfolio_id", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("currency", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("value", bleve.NewNumericFieldMapping())
	im.AddDocumentMapping("record", docMapping)
	im.DefaultType = "record"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// IndexPortfolio indexes all records of a portfolio in one batch.
func (b *BleveIndex) IndexPortfolio(ctx context.Context, p *models.Portfolio) error {
	batch := b.index.NewBatch()
	for _, r := range p.Records {
		value, _ := r.MarketValue.Float64()
		doc := recordDoc{
			PortfolioID: p.ID,
			Identifier:  r.Identifier,
			Name:        r.Name,
			Currency:    r.Currency,
			Category:    r.Category,
			Value:       value,
		}
		if err := batch.Index(recordID(p.ID, r.Position), doc); err != nil {
			return fmt.Errorf("failed to batch record: %w", err)
		}
	}
	return b.index.Batch(batch)
}

// DeletePortfolio removes every indexed record of the portfolio.
func (b *BleveIndex) DeletePortfolio(ctx context.Context, portfolioID string) error {
	q := bleve.NewTermQuery(portfolioID)
	q.SetField("portfolio_id")
	req := bleve.NewSearchRequest(q)
	req.Size = 10000
	results, err := b.index.Search(req)
	if err != nil {
		return fmt.Errorf("failed to find portfolio records: %w", err)
	}
	batch := b.index.NewBatch()
	for _, hit := range results.Hits {
		batch.Delete(hit.ID)
	}
	return b.index.Batch(batch)
}

// Search matches the query against record names and categories, and exactly
// against identifiers, so both "toronto dominion" and "XS2530201644" find
// their record.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]*Hit, error) {
	match := bleve.NewMatchQuery(query)
	idQuery := bleve.NewTermQuery(strings.ToUpper(strings.TrimSpace(query)))
	idQuery.SetField("identifier")
	q := bleve.NewDisjunctionQuery(match, idQuery)

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"*"}
	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	out := make([]*Hit, 0, len(results.Hits))
	for _, hit := range results.Hits {
		h := &Hit{Score: hit.Score}
		if v, ok := hit.Fields["portfolio_id"].(string); ok {
			h.PortfolioID = v
		}
		if v, ok := hit.Fields["identifier"].(string); ok {
			h.Identifier = v
		}
		if v, ok := hit.Fields["name"].(string); ok {
			h.Name = v
		}
		if v, ok := hit.Fields["currency"].(string); ok {
			h.Currency = v
		}
		if v, ok := hit.Fields["value"].(float64); ok {
			h.Value = v
		}
		out = append(out, h)
	}
	return out, nil
}

// Count returns the total number of indexed records.
func (b *BleveIndex) Count() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

func recordID(portfolioID string, position int) string {
	return fmt.Sprintf("%s:%d", portfolioID, position)
}
