package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/munnellg/tri/internal/cli"
	"github.com/munnellg/tri/internal/keyword"
	"github.com/munnellg/tri/internal/storage"
	"github.com/munnellg/tri/internal/vector"
	"go.uber.org/zap"
)

const (
	defaultLimit = 10
	maxLimit     = 1000
)

var errBadParam = errors.New("bad parameter")

// intParam reads an integer query parameter, returning def when it is absent.
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errBadParam, name)
	}
	return n, nil
}

// window reads start and end. Missing bounds default to the years covered by
// the store.
func (s *Server) window(r *http.Request) (int, int, error) {
	lo, hi, _, err := s.storage.YearRange(r.Context())
	if err != nil {
		return 0, 0, err
	}
	start, err := intParam(r, "start", lo)
	if err != nil {
		return 0, 0, err
	}
	end, err := intParam(r, "end", hi)
	if err != nil {
		return 0, 0, err
	}
	if end < start {
		return 0, 0, fmt.Errorf("%w: end %d before start %d", errBadParam, end, start)
	}
	return start, end, nil
}

func limitParam(r *http.Request) (int, error) {
	n, err := intParam(r, "n", defaultLimit)
	if err != nil {
		return 0, err
	}
	if n <= 0 || n > maxLimit {
		return 0, fmt.Errorf("%w: n must be between 1 and %d", errBadParam, maxLimit)
	}
	return n, nil
}

// fail maps err to a status: bad parameters are the client's fault, the rest is ours.
func (s *Server) fail(w http.ResponseWriter, what string, err error) {
	if errors.Is(err, errBadParam) {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Error(what+" failed", zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type vectorResponse struct {
	Term   string    `json:"term"`
	Start  int       `json:"start"`
	End    int       `json:"end"`
	Norm   float64   `json:"norm"`
	Vector []float32 `json:"vector"`
}

func (s *Server) handleVector(w http.ResponseWriter, r *http.Request) {
	term := chi.URLParam(r, "term")
	start, end, err := s.window(r)
	if err != nil {
		s.fail(w, "vector", err)
		return
	}
	v, ok, err := s.acc.Build(r.Context(), term, start, end)
	if err != nil {
		s.fail(w, "vector", err)
		return
	}
	if !ok {
		s.respondError(w, http.StatusNotFound, "term not found")
		return
	}
	s.respondJSON(w, http.StatusOK, vectorResponse{Term: term, Start: start, End: end, Norm: v.Norm(), Vector: v})
}

type similarityResponse struct {
	A          string  `json:"a"`
	B          string  `json:"b"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Similarity float64 `json:"similarity"`
}

func (s *Server) handleSimilarity(w http.ResponseWriter, r *http.Request) {
	a, b := r.URL.Query().Get("a"), r.URL.Query().Get("b")
	if a == "" || b == "" {
		s.respondError(w, http.StatusBadRequest, "a and b are required")
		return
	}
	start, end, err := s.window(r)
	if err != nil {
		s.fail(w, "similarity", err)
		return
	}
	va, okA, err := s.acc.Build(r.Context(), a, start, end)
	if err != nil {
		s.fail(w, "similarity", err)
		return
	}
	vb, okB, err := s.acc.Build(r.Context(), b, start, end)
	if err != nil {
		s.fail(w, "similarity", err)
		return
	}
	if !okA || !okB {
		s.respondError(w, http.StatusNotFound, "term not found")
		return
	}
	s.respondJSON(w, http.StatusOK, similarityResponse{
		A: a, B: b, Start: start, End: end,
		Similarity: vector.Overlap(va, vb),
	})
}

type scoresResponse struct {
	Term    string      `json:"term"`
	Start   int         `json:"start"`
	End     int         `json:"end"`
	Results []cli.Score `json:"results"`
}

func toScores(res []vector.ObjectVector) []cli.Score {
	out := make([]cli.Score, len(res))
	for i, r := range res {
		out[i] = cli.Score{Key: r.Key, Score: r.Score}
	}
	return out
}

func (s *Server) handleNeighbors(w http.ResponseWriter, r *http.Request) {
	term := chi.URLParam(r, "term")
	start, end, err := s.window(r)
	if err != nil {
		s.fail(w, "neighbors", err)
		return
	}
	n, err := limitParam(r)
	if err != nil {
		s.fail(w, "neighbors", err)
		return
	}
	v, ok, err := s.acc.Build(r.Context(), term, start, end)
	if err != nil {
		s.fail(w, "neighbors", err)
		return
	}
	if !ok {
		s.respondError(w, http.StatusNotFound, "term not found")
		return
	}
	s.logger.Debug("neighbors request", zap.String("term", term), zap.Int("start", start), zap.Int("end", end), zap.Int("n", n))
	res, err := s.acc.NearestVectors(r.Context(), v, start, end, n)
	if err != nil {
		s.fail(w, "neighbors", err)
		return
	}
	s.respondJSON(w, http.StatusOK, scoresResponse{Term: term, Start: start, End: end, Results: toScores(res)})
}

func (s *Server) handleWords(w http.ResponseWriter, r *http.Request) {
	term := chi.URLParam(r, "term")
	start, end, err := s.window(r)
	if err != nil {
		s.fail(w, "words", err)
		return
	}
	n, err := limitParam(r)
	if err != nil {
		s.fail(w, "words", err)
		return
	}
	res, ok, err := s.acc.NearestWords(r.Context(), term, start, end, n)
	if err != nil {
		s.fail(w, "words", err)
		return
	}
	if !ok {
		s.respondError(w, http.StatusNotFound, "term not found")
		return
	}
	s.respondJSON(w, http.StatusOK, scoresResponse{Term: term, Start: start, End: end, Results: toScores(res)})
}

func (s *Server) handleTerms(w http.ResponseWriter, r *http.Request) {
	if s.terms == nil {
		s.respondError(w, http.StatusNotImplemented, "term index not enabled")
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	n, err := limitParam(r)
	if err != nil {
		s.fail(w, "terms", err)
		return
	}
	var opts *keyword.SearchOptions
	if fuzzy, _ := strconv.ParseBool(r.URL.Query().Get("fuzzy")); fuzzy {
		opts = &keyword.SearchOptions{FuzzyEnabled: true}
	}
	res, err := s.terms.Search(r.Context(), q, n, opts)
	if err != nil {
		s.fail(w, "terms", err)
		return
	}
	out := make([]cli.Term, len(res))
	for i, t := range res {
		out[i] = cli.Term{Term: t.Term, Frequency: t.Frequency}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"query": q, "results": out})
}

type yearsResponse struct {
	// Spaces are the years with a vector file on disk.
	Spaces []int `json:"spaces"`
	// First and Last bound the years with co-occurrence evidence.
	First *int `json:"first,omitempty"`
	Last  *int `json:"last,omitempty"`
}

func (s *Server) handleYears(w http.ResponseWriter, r *http.Request) {
	resp := yearsResponse{Spaces: []int{}}
	if s.catalog != nil {
		resp.Spaces = s.catalog.Years()
	}
	lo, hi, ok, err := s.storage.YearRange(r.Context())
	if err != nil {
		s.fail(w, "years", err)
		return
	}
	if ok {
		resp.First, resp.Last = &lo, &hi
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// StatusResponse is the shape of GET /api/v1/status.
type StatusResponse struct {
	Terms          int64         `json:"terms"`
	Cooccurrences  int64         `json:"cooccurrences"`
	IndexedTerms   *uint64       `json:"indexed_terms,omitempty"`
	Spaces         int           `json:"spaces"`
	DiskUsageBytes *int64        `json:"disk_usage_bytes,omitempty"`
	Config         *StatusConfig `json:"config,omitempty"`
}

// StatusConfig is the configuration part of a status report.
type StatusConfig struct {
	Dimension      int    `json:"dimension"`
	Seed           int64  `json:"seed"`
	NonZero        int    `json:"non_zero"`
	ReaderMode     string `json:"reader_mode"`
	DatabasePath   string `json:"database_path,omitempty"`
	VectorsDir     string `json:"vectors_dir,omitempty"`
	BleveIndexPath string `json:"bleve_index_path,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	terms, err := s.storage.CountTerms(ctx)
	if err != nil {
		s.fail(w, "status: count terms", err)
		return
	}
	cooc, err := s.storage.CountCooccurrences(ctx)
	if err != nil {
		s.fail(w, "status: count co-occurrences", err)
		return
	}
	resp := StatusResponse{Terms: terms, Cooccurrences: cooc}
	if s.terms != nil {
		if n, err := s.terms.DocCount(); err == nil {
			resp.IndexedTerms = &n
		}
	}
	if s.catalog != nil {
		resp.Spaces = s.catalog.Len()
	}
	if s.config != nil {
		st := s.config.Storage
		resp.Config = &StatusConfig{
			Dimension:      s.config.Space.Dimension,
			Seed:           s.config.Space.Seed,
			NonZero:        s.config.Space.NonZero,
			ReaderMode:     s.config.Space.ReaderMode,
			DatabasePath:   st.DatabasePath,
			VectorsDir:     st.VectorsDir,
			BleveIndexPath: st.BleveIndexPath,
		}
		if diskBytes, err := storage.DiskUsageBytes(st.DatabasePath, st.VectorsDir, st.BleveIndexPath); err == nil {
			resp.DiskUsageBytes = &diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
