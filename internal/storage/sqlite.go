// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/hyperjump/toridasu/internal/models"
)

// SQLiteStorage implements Storage using SQLite. Records and source reports
// are stored as JSON columns; the queryable fields are first-class columns.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS portfolios (
		id TEXT PRIMARY KEY,
		currency TEXT,
		computed_total TEXT NOT NULL,
		stated_total TEXT,
		accuracy REAL NOT NULL DEFAULT 0,
		records TEXT NOT NULL,
		sources TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_portfolios_created_at ON portfolios(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// SavePortfolio inserts a portfolio.
func (s *SQLiteStorage) SavePortfolio(ctx context.Context, p *models.Portfolio) error {
	recordsJSON, err := json.Marshal(p.Records)
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}
	sourcesJSON, err := json.Marshal(p.Sources)
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	var stated sql.NullString
	if p.StatedTotal != nil {
		stated = sql.NullString{String: p.StatedTotal.String(), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO portfolios (id, currency, computed_total, stated_total, accuracy, records, sources, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Currency, p.ComputedTotal.String(), stated, p.Accuracy,
		string(recordsJSON), string(sourcesJSON), p.CreatedAt,
	)
	return err
}

// GetPortfolio returns a portfolio by ID.
func (s *SQLiteStorage) GetPortfolio(ctx context.Context, id string) (*models.Portfolio, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, currency, computed_total, stated_total, accuracy, records, sources, created_at
		 FROM portfolios WHERE id = ?`, id,
	)
	p, err := scanPortfolio(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("portfolio not found: %s", id)
	}
	return p, err
}

// DeletePortfolio removes a portfolio by ID.
func (s *SQLiteStorage) DeletePortfolio(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM portfolios WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("portfolio not found: %s", id)
	}
	return nil
}

// ListPortfolios returns portfolios with offset and limit, newest first.
func (s *SQLiteStorage) ListPortfolios(ctx context.Context, offset, limit int) ([]*models.Portfolio, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, currency, computed_total, stated_total, accuracy, records, sources, created_at
		 FROM portfolios ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var portfolios []*models.Portfolio
	for rows.Next() {
		p, err := scanPortfolio(rows.Scan)
		if err != nil {
			return nil, err
		}
		portfolios = append(portfolios, p)
	}
	return portfolios, rows.Err()
}

// CountPortfolios returns the total number of stored portfolios.
func (s *SQLiteStorage) CountPortfolios(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM portfolios`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func scanPortfolio(scan func(dest ...any) error) (*models.Portfolio, error) {
	var p models.Portfolio
	var computed string
	var stated sql.NullString
	var recordsJSON, sourcesJSON string
	err := scan(&p.ID, &p.Currency, &computed, &stated, &p.Accuracy, &recordsJSON, &sourcesJSON, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if p.ComputedTotal, err = decimal.NewFromString(computed); err != nil {
		return nil, fmt.Errorf("failed to parse computed total: %w", err)
	}
	if stated.Valid {
		d, err := decimal.NewFromString(stated.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stated total: %w", err)
		}
		p.StatedTotal = &d
	}
	if err := json.Unmarshal([]byte(recordsJSON), &p.Records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal records: %w", err)
	}
	if sourcesJSON != "" {
		if err := json.Unmarshal([]byte(sourcesJSON), &p.Sources); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sources: %w", err)
		}
	}
	return &p, nil
}
