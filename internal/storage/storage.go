// Package storage defines the persistence interface for extracted portfolios.
package storage

import (
	"context"

	"github.com/hyperjump/toridasu/internal/models"
)

// Storage defines portfolio persistence operations.
type Storage interface {
	SavePortfolio(ctx context.Context, p *models.Portfolio) error
	GetPortfolio(ctx context.Context, id string) (*models.Portfolio, error)
	DeletePortfolio(ctx context.Context, id string) error
	ListPortfolios(ctx context.Context, offset, limit int) ([]*models.Portfolio, error)
	CountPortfolios(ctx context.Context) (int64, error)

	Close() error
}
