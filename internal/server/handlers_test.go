package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/toridasu/internal/config"
	"github.com/hyperjump/toridasu/internal/index"
	"github.com/hyperjump/toridasu/internal/models"
	"github.com/hyperjump/toridasu/internal/pipeline"
	"github.com/hyperjump/toridasu/internal/storage"
)

type mockWatchService struct {
	dirs []string
}

func (m *mockWatchService) Directories() []string {
	return append([]string(nil), m.dirs...)
}

func (m *mockWatchService) AddDirectory(path string) error {
	for _, d := range m.dirs {
		if d == path {
			return nil
		}
	}
	m.dirs = append(m.dirs, path)
	return nil
}

func (m *mockWatchService) RemoveDirectory(path string) error {
	for i, d := range m.dirs {
		if d == path {
			m.dirs = append(m.dirs[:i], m.dirs[i+1:]...)
			return nil
		}
	}
	return nil
}

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	dir := t.TempDir()
	var cfg config.Config
	config.ApplyDefaults(&cfg)
	cfg.Storage.DatabasePath = filepath.Join(dir, "db.sqlite")
	cfg.Storage.BleveIndexPath = filepath.Join(dir, "bleve")

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	idx, err := index.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })

	p := pipeline.New(&cfg, nil, zap.NewNop())
	srv := NewServer(p, store, idx, &cfg, zap.NewNop())
	return srv, srv.routes()
}

// statementTokens models two holdings rows and a totals line.
func statementTokens() []models.RawToken {
	lines := [][]string{
		{"CREDIT", "BANK"},
		{"XS2530201644", "TORONTO", "DOMINION", "BANK", "199'068.50", "USD"},
		{"US0378331005", "APPLE", "INC", "NOTES", "150'250.00", "USD"},
		{"Total", "assets", "349'318.50", "USD"},
	}
	var raws []models.RawToken
	for li, words := range lines {
		x := 10.0
		for _, w := range words {
			raws = append(raws, models.RawToken{
				Text: w, Page: 1, X: x, Y: float64(li) * 10, Width: float64(len(w)) * 5,
			})
			x += float64(len(w))*5 + 10
		}
	}
	return raws
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestExtractAndRetrieve(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/extract", extractRequest{
		Filename: "statement.pdf",
		Tokens:   statementTokens(),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("extract status = %d, body = %s", rec.Code, rec.Body)
	}
	var portfolio models.Portfolio
	if err := json.Unmarshal(rec.Body.Bytes(), &portfolio); err != nil {
		t.Fatal(err)
	}
	if portfolio.ID == "" || len(portfolio.Records) != 2 {
		t.Fatalf("unexpected portfolio: %s", rec.Body)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/portfolios/"+portfolio.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var got models.Portfolio
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Records) != 2 || !got.ComputedTotal.Equal(portfolio.ComputedTotal) {
		t.Errorf("stored portfolio differs: %s", rec.Body)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/portfolios", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list struct {
		Total int64 `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 1 {
		t.Errorf("list total = %d", list.Total)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/records/search", searchRequest{Query: "toronto dominion"})
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d, body = %s", rec.Code, rec.Body)
	}
	var search struct {
		Hits []index.Hit `json:"hits"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &search); err != nil {
		t.Fatal(err)
	}
	if len(search.Hits) == 0 || search.Hits[0].Identifier != "XS2530201644" {
		t.Errorf("search hits = %+v", search.Hits)
	}

	rec = doJSON(t, h, http.MethodDelete, "/api/v1/portfolios/"+portfolio.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/api/v1/portfolios/"+portfolio.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d", rec.Code)
	}
}

func TestExtract_badRequests(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/extract", extractRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty request status = %d", rec.Code)
	}

	// Tokens carrying no recognizable holdings still succeed: the result is
	// an empty portfolio, not an error.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/extract", extractRequest{
		Tokens: []models.RawToken{{Text: "hello", Page: 1, X: 1, Y: 1}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("no-holdings status = %d, body = %s", rec.Code, rec.Body)
	}
	var empty models.Portfolio
	if err := json.Unmarshal(rec.Body.Bytes(), &empty); err != nil {
		t.Fatal(err)
	}
	if len(empty.Records) != 0 {
		t.Errorf("expected empty portfolio, got %d records", len(empty.Records))
	}
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t)
	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	_, h := newTestServer(t)
	rec := doJSON(t, h, http.MethodGet, "/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if _, ok := body["portfolios"]; !ok {
		t.Errorf("status body missing portfolios: %s", rec.Body)
	}
	if _, ok := body["config"]; !ok {
		t.Errorf("status body missing config: %s", rec.Body)
	}
}

func TestWatchEndpoints(t *testing.T) {
	srv, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/watch/directories", nil)
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("watch disabled status = %d", rec.Code)
	}

	srv.SetWatch(&mockWatchService{}, "")
	dir := t.TempDir()

	rec = doJSON(t, h, http.MethodPost, "/api/v1/watch/directories", map[string]string{"path": dir})
	if rec.Code != http.StatusCreated {
		t.Fatalf("watch add status = %d, body = %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/watch/directories", nil)
	var list struct {
		Directories []string `json:"directories"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Directories) != 1 {
		t.Errorf("directories = %+v", list.Directories)
	}

	rec = doJSON(t, h, http.MethodDelete, fmt.Sprintf("/api/v1/watch/directories?path=%s", dir), nil)
	if rec.Code != http.StatusOK {
		t.Errorf("watch remove status = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/watch/directories", map[string]string{"path": filepath.Join(dir, "missing")})
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing dir status = %d", rec.Code)
	}
}
