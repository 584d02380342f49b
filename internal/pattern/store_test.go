package pattern

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/toridasu/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "patterns.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_columnMapRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m, err := s.ColumnMap("creditbank:grouped-apostrophe")
	if err != nil {
		t.Fatal(err)
	}
	if m != nil {
		t.Fatal("empty store should return nil map")
	}

	want := map[models.Field]int{
		models.FieldIdentifier: 0,
		models.FieldDescription: 1,
		models.FieldValuation:  2,
	}
	if err := s.SaveColumnMap(ctx, "creditbank:grouped-apostrophe", want, 0.8); err != nil {
		t.Fatal(err)
	}
	got, err := s.ColumnMap("creditbank:grouped-apostrophe")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) || got[models.FieldValuation] != 2 {
		t.Errorf("round trip mismatch: %v", got)
	}
}

func TestStore_recordUseUpdatesStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := "bank:grouped-comma"
	if err := s.SaveColumnMap(ctx, key, map[models.Field]int{models.FieldIdentifier: 0, models.FieldValuation: 3}, 0.5); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordUse(ctx, key, models.PatternColumnMap, true); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordUse(ctx, key, models.PatternColumnMap, false); err != nil {
		t.Fatal(err)
	}
	p, err := s.Get(ctx, key, models.PatternColumnMap)
	if err != nil {
		t.Fatal(err)
	}
	if p == nil {
		t.Fatal("pattern should exist")
	}
	if p.TimesUsed != 2 {
		t.Errorf("times_used = %d, want 2", p.TimesUsed)
	}
	if p.SuccessRate != 0.5 {
		t.Errorf("success_rate = %f, want 0.5", p.SuccessRate)
	}
}
