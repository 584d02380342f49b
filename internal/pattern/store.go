// Package pattern persists learned extraction hints (column maps, confirmed
// corrections) per document type. Patterns bias future runs; they are never
// authoritative on their own.
package pattern

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/toridasu/internal/models"
)

// Reader is the read side used by the structure analyzer and record builder.
type Reader interface {
	// ColumnMap returns the learned column map for a document type, or nil
	// when none is stored.
	ColumnMap(typeKey string) (map[models.Field]int, error)
}

// Store is a SQLite-backed pattern memory. Reads may run concurrently;
// updates are serialized through a single writer lock.
type Store struct {
	db *sql.DB
	mu sync.Mutex // guards writes
}

// NewStore opens or creates the pattern database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create pattern directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pattern database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize pattern schema: %w", err)
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS learned_patterns (
		document_type_key TEXT NOT NULL,
		kind TEXT NOT NULL,
		template TEXT NOT NULL,
		confidence REAL NOT NULL DEFAULT 0,
		times_used INTEGER NOT NULL DEFAULT 0,
		success_rate REAL NOT NULL DEFAULT 0,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (document_type_key, kind)
	);
	`
	_, err := db.Exec(schema)
	return err
}

// ColumnMap returns the learned column map for typeKey, or nil when none is
// stored.
func (s *Store) ColumnMap(typeKey string) (map[models.Field]int, error) {
	p, err := s.Get(context.Background(), typeKey, models.PatternColumnMap)
	if err != nil || p == nil {
		return nil, err
	}
	var m map[models.Field]int
	if err := json.Unmarshal([]byte(p.Template), &m); err != nil {
		return nil, fmt.Errorf("failed to decode column map template: %w", err)
	}
	return m, nil
}

// Get returns one pattern, or nil when absent.
func (s *Store) Get(ctx context.Context, typeKey string, kind models.PatternKind) (*models.LearnedPattern, error) {
	var p models.LearnedPattern
	err := s.db.QueryRowContext(ctx,
		`SELECT document_type_key, kind, template, confidence, times_used, success_rate, updated_at
		 FROM learned_patterns WHERE document_type_key = ? AND kind = ?`,
		typeKey, string(kind),
	).Scan(&p.DocumentTypeKey, &p.Kind, &p.Template, &p.Confidence, &p.TimesUsed, &p.SuccessRate, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveColumnMap stores a confirmed column map for typeKey, replacing any
// previous one.
func (s *Store) SaveColumnMap(ctx context.Context, typeKey string, m map[models.Field]int, confidence float64) error {
	template, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode column map: %w", err)
	}
	return s.upsert(ctx, &models.LearnedPattern{
		DocumentTypeKey: typeKey,
		Kind:            models.PatternColumnMap,
		Template:        string(template),
		Confidence:      confidence,
	})
}

// RecordUse updates usage statistics for a pattern after a run: success
// feeds the running success rate.
func (s *Store) RecordUse(ctx context.Context, typeKey string, kind models.PatternKind, success bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	hit := 0.0
	if success {
		hit = 1.0
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE learned_patterns
		 SET times_used = times_used + 1,
		     success_rate = (success_rate * times_used + ?) / (times_used + 1),
		     updated_at = ?
		 WHERE document_type_key = ? AND kind = ?`,
		hit, time.Now(), typeKey, string(kind),
	)
	return err
}

func (s *Store) upsert(ctx context.Context, p *models.LearnedPattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO learned_patterns (document_type_key, kind, template, confidence, times_used, success_rate, updated_at)
		 VALUES (?, ?, ?, ?, 0, 0, ?)
		 ON CONFLICT(document_type_key, kind) DO UPDATE SET
		   template = excluded.template,
		   confidence = excluded.confidence,
		   updated_at = excluded.updated_at`,
		p.DocumentTypeKey, string(p.Kind), p.Template, p.Confidence, time.Now(),
	)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }
