// Package integration provides end-to-end tests (requires real storage and indices).
package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/toridasu/internal/config"
	"github.com/hyperjump/toridasu/internal/index"
	"github.com/hyperjump/toridasu/internal/pattern"
	"github.com/hyperjump/toridasu/internal/pipeline"
	"github.com/hyperjump/toridasu/internal/source"
	"github.com/hyperjump/toridasu/internal/storage"
	"github.com/hyperjump/toridasu/internal/tokenize"
	"go.uber.org/zap"
)

func TestIntegration_ExtractStoreSearch(t *testing.T) {
	dir := t.TempDir()
	statement := "CREDIT BANK\n" +
		"XS2530201644 TORONTO DOMINION BANK 199'068.50 USD\n" +
		"US0378331005 APPLE INC NOTES 150'250.00 USD\n" +
		"Total assets 349'318.50 USD\n"
	path := filepath.Join(dir, "statement.txt")
	if err := os.WriteFile(path, []byte(statement), 0600); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		Storage: config.StorageConfig{
			DatabasePath:   filepath.Join(dir, "db.sqlite"),
			BleveIndexPath: filepath.Join(dir, "bleve"),
		},
	}
	config.ApplyDefaults(cfg)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	idx, err := index.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	patterns, err := pattern.NewStore(filepath.Join(dir, "patterns.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer patterns.Close()

	pipe := pipeline.New(cfg, patterns, zap.NewNop())
	ctx := context.Background()

	tokens, err := tokenize.New().FromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	p, err := pipe.Extract(ctx, source.Input{Filename: filepath.Base(path), Tokens: tokens})
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(p.Records))
	}
	if p.StatedTotal == nil {
		t.Fatal("stated total should be captured from the summary line")
	}
	if p.Accuracy != 1.0 {
		t.Errorf("accuracy = %f, want 1.0 (computed total matches stated)", p.Accuracy)
	}

	if err := store.SavePortfolio(ctx, p); err != nil {
		t.Fatal(err)
	}
	if err := idx.IndexPortfolio(ctx, p); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetPortfolio(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.ComputedTotal.Equal(p.ComputedTotal) {
		t.Errorf("stored total = %s, want %s", got.ComputedTotal, p.ComputedTotal)
	}

	hits, err := idx.Search(ctx, "toronto dominion", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 {
		t.Fatal("expected at least one hit for indexed record")
	}
	if hits[0].Identifier != "XS2530201644" {
		t.Errorf("top hit = %s, want XS2530201644", hits[0].Identifier)
	}
	if hits[0].PortfolioID != p.ID {
		t.Errorf("top hit portfolio = %s, want %s", hits[0].PortfolioID, p.ID)
	}
}
