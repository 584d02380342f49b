// Package index provides full-text search over extracted security records.
package index

import (
	"context"

	"github.com/hyperjump/toridasu/internal/models"
)

// RecordIndex defines search operations over extracted records.
type RecordIndex interface {
	// IndexPortfolio indexes every record of a portfolio.
	IndexPortfolio(ctx context.Context, p *models.Portfolio) error
	// DeletePortfolio removes a portfolio's records from the index.
	DeletePortfolio(ctx context.Context, portfolioID string) error
	Search(ctx context.Context, query string, limit int) ([]*Hit, error)
	Count() (uint64, error)
	Close() error
}

// Hit is a single record search result.
type Hit struct {
	PortfolioID string  `json:"portfolio_id"`
	Identifier  string  `json:"identifier,omitempty"`
	Name        string  `json:"name"`
	Currency    string  `json:"currency,omitempty"`
	Value       float64 `json:"value"`
	Score       float64 `json:"score"`
}
