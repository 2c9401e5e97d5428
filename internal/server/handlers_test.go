package server

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/munnellg/tri/internal/catalog"
	"github.com/munnellg/tri/internal/config"
	"github.com/munnellg/tri/internal/keyword"
	"github.com/munnellg/tri/internal/storage"
	"github.com/munnellg/tri/internal/temporal"
	"github.com/munnellg/tri/internal/vector"
	"go.uber.org/zap"
)

const corpus = "war\tpeace\t1900\t3\n" +
	"war\tbattle\t1901\t1\n" +
	"peace\twar\t1900\t3\n" +
	"treaty\tpeace\t1900\t4\n"

type testEnv struct {
	srv   *Server
	store *storage.SQLiteStorage
	dir   string
}

func newTestEnv(t *testing.T, withIndex bool) *testEnv {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, err := store.Import(ctx, strings.NewReader(corpus)); err != nil {
		t.Fatalf("Import: %v", err)
	}
	gen, err := vector.NewGenerator(300, 10, vector.DefaultNonZero)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	acc, err := temporal.New(store, vector.NewElementalCache(gen))
	if err != nil {
		t.Fatalf("temporal.New: %v", err)
	}

	vectorsDir := filepath.Join(dir, "vectors")
	if err := os.MkdirAll(vectorsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := acc.WriteSpace(ctx, temporal.SpacePath(vectorsDir, "tri", 1900), temporal.Window{Start: 1900, End: 1900}); err != nil {
		t.Fatalf("WriteSpace: %v", err)
	}
	cat, err := catalog.Scan(vectorsDir, 0, 3000)
	if err != nil {
		t.Fatalf("catalog.Scan: %v", err)
	}

	cfg := &config.Config{Storage: config.StorageConfig{
		DatabasePath: filepath.Join(dir, "db.sqlite"),
		VectorsDir:   vectorsDir,
	}}
	config.ApplyDefaults(cfg)
	cfg.Storage.BleveIndexPath = filepath.Join(dir, "bleve")

	var terms keyword.TermIndex
	if withIndex {
		idx, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
		if err != nil {
			t.Fatalf("NewBleveIndex: %v", err)
		}
		t.Cleanup(func() { _ = idx.Close() })
		if _, err := keyword.IndexAll(ctx, idx, store); err != nil {
			t.Fatalf("IndexAll: %v", err)
		}
		terms = idx
	}
	return &testEnv{
		srv:   NewServer(acc, store, terms, cat, cfg, zap.NewNop()),
		store: store,
		dir:   dir,
	}
}

func (e *testEnv) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.get(t, "/health")
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type: got %s", ct)
	}
}

func TestHandleVector(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.get(t, "/api/v1/vectors/war?start=1900&end=1901")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var out vectorResponse
	decode(t, w, &out)
	if out.Term != "war" || out.Start != 1900 || out.End != 1901 {
		t.Errorf("unexpected header fields: %+v", out)
	}
	if len(out.Vector) != 300 {
		t.Errorf("vector length: got %d, want 300", len(out.Vector))
	}
	if math.Abs(out.Norm-1) > 1e-5 {
		t.Errorf("norm: got %f, want 1", out.Norm)
	}
}

func TestHandleVector_DefaultWindow(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.get(t, "/api/v1/vectors/war")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out vectorResponse
	decode(t, w, &out)
	if out.Start != 1900 || out.End != 1901 {
		t.Errorf("window: got [%d, %d], want the store's [1900, 1901]", out.Start, out.End)
	}
}

func TestHandleVector_Errors(t *testing.T) {
	env := newTestEnv(t, false)
	tests := []struct {
		target string
		want   int
	}{
		{"/api/v1/vectors/nothing?start=1900&end=1900", http.StatusNotFound},
		{"/api/v1/vectors/war?start=abc", http.StatusBadRequest},
		{"/api/v1/vectors/war?start=1910&end=1900", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if w := env.get(t, tt.target); w.Code != tt.want {
			t.Errorf("GET %s: got %d, want %d", tt.target, w.Code, tt.want)
		}
	}
}

func TestHandleSimilarity(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.get(t, "/api/v1/similarity?a=war&b=treaty&start=1900&end=1900")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var out similarityResponse
	decode(t, w, &out)
	if math.Abs(out.Similarity-1) > 1e-5 {
		t.Errorf("war and treaty share their only neighbor in 1900, similarity = %f", out.Similarity)
	}

	if w := env.get(t, "/api/v1/similarity?a=war"); w.Code != http.StatusBadRequest {
		t.Errorf("missing b: got %d, want 400", w.Code)
	}
	if w := env.get(t, "/api/v1/similarity?a=war&b=nothing"); w.Code != http.StatusNotFound {
		t.Errorf("unknown b: got %d, want 404", w.Code)
	}
}

func TestHandleNeighbors(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.get(t, "/api/v1/neighbors/war?start=1900&end=1900&n=2")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var out scoresResponse
	decode(t, w, &out)
	if len(out.Results) != 2 {
		t.Fatalf("results: got %d, want 2", len(out.Results))
	}
	keys := map[string]bool{out.Results[0].Key: true, out.Results[1].Key: true}
	if !keys["war"] || !keys["treaty"] {
		t.Errorf("nearest to war in 1900: got %+v", out.Results)
	}

	if w := env.get(t, "/api/v1/neighbors/war?n=0"); w.Code != http.StatusBadRequest {
		t.Errorf("n=0: got %d, want 400", w.Code)
	}
}

func TestHandleWords(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.get(t, "/api/v1/words/war?start=1900&end=1901&n=5")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var out scoresResponse
	decode(t, w, &out)
	if len(out.Results) != 2 || out.Results[0].Key != "peace" || out.Results[0].Score != 3 {
		t.Errorf("words of war: got %+v", out.Results)
	}
	if w := env.get(t, "/api/v1/words/nothing"); w.Code != http.StatusNotFound {
		t.Errorf("unknown term: got %d, want 404", w.Code)
	}
}

func TestHandleTerms(t *testing.T) {
	env := newTestEnv(t, true)
	w := env.get(t, "/api/v1/terms?q=pea*")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var out struct {
		Results []struct {
			Term      string `json:"term"`
			Frequency int64  `json:"frequency"`
		} `json:"results"`
	}
	decode(t, w, &out)
	if len(out.Results) != 1 || out.Results[0].Term != "peace" || out.Results[0].Frequency != 3 {
		t.Errorf("results: got %+v", out.Results)
	}
	if w := env.get(t, "/api/v1/terms"); w.Code != http.StatusBadRequest {
		t.Errorf("missing q: got %d, want 400", w.Code)
	}
}

func TestHandleTerms_NotEnabled(t *testing.T) {
	env := newTestEnv(t, false)
	if w := env.get(t, "/api/v1/terms?q=war"); w.Code != http.StatusNotImplemented {
		t.Errorf("status: got %d, want 501", w.Code)
	}
}

func TestHandleYears(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.get(t, "/api/v1/years")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out yearsResponse
	decode(t, w, &out)
	if len(out.Spaces) != 1 || out.Spaces[0] != 1900 {
		t.Errorf("spaces: got %v", out.Spaces)
	}
	if out.First == nil || out.Last == nil || *out.First != 1900 || *out.Last != 1901 {
		t.Errorf("evidence range: got %v..%v", out.First, out.Last)
	}
}

func TestHandleStatus(t *testing.T) {
	env := newTestEnv(t, true)
	w := env.get(t, "/api/v1/status")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out StatusResponse
	decode(t, w, &out)
	if out.Terms != 4 || out.Cooccurrences != 4 {
		t.Errorf("counts: got terms=%d cooccurrences=%d", out.Terms, out.Cooccurrences)
	}
	if out.IndexedTerms == nil || *out.IndexedTerms != 4 {
		t.Errorf("indexed terms: got %v", out.IndexedTerms)
	}
	if out.Spaces != 1 {
		t.Errorf("spaces: got %d", out.Spaces)
	}
	if out.DiskUsageBytes == nil || *out.DiskUsageBytes <= 0 {
		t.Errorf("disk usage: got %v", out.DiskUsageBytes)
	}
	if out.Config == nil || out.Config.Dimension != config.DefaultDimension {
		t.Errorf("config: got %+v", out.Config)
	}
}
