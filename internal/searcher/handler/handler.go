// Package handler serves the BM25 operations as JSON over HTTP. Index names
// in requests are resolved below the configured data directory.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/coordinator"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/service"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/stats"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/middleware"
)

const maxBodyBytes = 16 << 20

// Searcher is the single-index API. *service.Service implements it.
type Searcher interface {
	BM25NaturalLanguageSearch(ctx context.Context, path string, p service.SearchParams) ([]executor.RowIDWithScore, error)
	BM25StandardSearch(ctx context.Context, path string, p service.SearchParams) ([]executor.RowIDWithScore, error)
	GetDocFreq(ctx context.Context, path, sentence string) ([]stats.DocWithFreq, error)
	GetTotalNumDocs(ctx context.Context, path string) (uint64, error)
	GetTotalNumTokens(ctx context.Context, path string) (uint64, error)
}

// Distributor runs queries across all shards. *coordinator.Coordinator
// implements it.
type Distributor interface {
	Search(ctx context.Context, req coordinator.Request) (*coordinator.Response, error)
}

type Handler struct {
	searcher    Searcher
	distributor Distributor
	statsCache  *cache.StatsCache
	root        string
	defaultTopK int
	maxTopK     int
	logger      *slog.Logger
}

// New creates a Handler. distributor and statsCache may be nil.
func New(searcher Searcher, distributor Distributor, statsCache *cache.StatsCache, index config.IndexConfig, search config.SearchConfig) *Handler {
	return &Handler{
		searcher:    searcher,
		distributor: distributor,
		statsCache:  statsCache,
		root:        index.DataDir,
		defaultTopK: search.DefaultTopK,
		maxTopK:     search.MaxTopK,
		logger:      logger.WithComponent("search-handler"),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/search/natural", h.NaturalLanguageSearch)
	mux.HandleFunc("POST /api/v1/search/standard", h.StandardSearch)
	mux.HandleFunc("POST /api/v1/stats/doc-freq", h.DocFreq)
	mux.HandleFunc("GET /api/v1/stats/total-docs", h.TotalDocs)
	mux.HandleFunc("GET /api/v1/stats/total-tokens", h.TotalTokens)
	mux.HandleFunc("POST /api/v1/distributed/search", h.DistributedSearch)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
}

type searchRequest struct {
	Index         string                   `json:"index"`
	Sentence      string                   `json:"sentence"`
	TopK          *int                     `json:"topk"`
	AliveBitmap   []byte                   `json:"alive_bitmap"`
	ApplyFilter   bool                     `json:"apply_filter"`
	CombineWithOr bool                     `json:"combine_with_or"`
	Statistics    stats.PerShardStatistics `json:"statistics"`
	NeedDocument  bool                     `json:"need_document"`
}

type searchResponse struct {
	Index   string                    `json:"index,omitempty"`
	Results []executor.RowIDWithScore `json:"results"`
	Count   int                       `json:"count"`
	TookMs  int64                     `json:"took_ms"`
}

func (h *Handler) NaturalLanguageSearch(w http.ResponseWriter, r *http.Request) {
	h.search(w, r, h.searcher.BM25NaturalLanguageSearch)
}

func (h *Handler) StandardSearch(w http.ResponseWriter, r *http.Request) {
	h.search(w, r, h.searcher.BM25StandardSearch)
}

type searchFunc func(ctx context.Context, path string, p service.SearchParams) ([]executor.RowIDWithScore, error)

func (h *Handler) search(w http.ResponseWriter, r *http.Request, run searchFunc) {
	start := time.Now()
	var req searchRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	path, err := h.resolve(req.Index)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	results, err := run(r.Context(), path, service.SearchParams{
		Sentence:      req.Sentence,
		TopK:          h.topK(req.TopK),
		AliveBitmap:   req.AliveBitmap,
		ApplyFilter:   req.ApplyFilter,
		CombineWithOr: req.CombineWithOr,
		Statistics:    req.Statistics,
		NeedDocument:  req.NeedDocument,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, searchResponse{
		Index:   req.Index,
		Results: nonNil(results),
		Count:   len(results),
		TookMs:  time.Since(start).Milliseconds(),
	})
}

type docFreqRequest struct {
	Index    string `json:"index"`
	Sentence string `json:"sentence"`
}

func (h *Handler) DocFreq(w http.ResponseWriter, r *http.Request) {
	var req docFreqRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	path, err := h.resolve(req.Index)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	docs, err := h.searcher.GetDocFreq(r.Context(), path, req.Sentence)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"index": req.Index, "docs_freq": docs})
}

func (h *Handler) TotalDocs(w http.ResponseWriter, r *http.Request) {
	h.total(w, r, "total_num_docs", h.searcher.GetTotalNumDocs)
}

func (h *Handler) TotalTokens(w http.ResponseWriter, r *http.Request) {
	h.total(w, r, "total_num_tokens", h.searcher.GetTotalNumTokens)
}

func (h *Handler) total(w http.ResponseWriter, r *http.Request, key string, get func(context.Context, string) (uint64, error)) {
	name := r.URL.Query().Get("index")
	path, err := h.resolve(name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	n, err := get(r.Context(), path)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"index": name, key: n})
}

type distributedRequest struct {
	Sentence      string `json:"sentence"`
	Strategy      string `json:"strategy"`
	TopK          *int   `json:"topk"`
	AliveBitmap   []byte `json:"alive_bitmap"`
	ApplyFilter   bool   `json:"apply_filter"`
	CombineWithOr bool   `json:"combine_with_or"`
	NeedDocument  bool   `json:"need_document"`
}

func (h *Handler) DistributedSearch(w http.ResponseWriter, r *http.Request) {
	if h.distributor == nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrIndexNotFound, http.StatusNotFound, "distributed search is not configured"))
		return
	}
	start := time.Now()
	var req distributedRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	resp, err := h.distributor.Search(r.Context(), coordinator.Request{
		Sentence:      req.Sentence,
		Strategy:      req.Strategy,
		TopK:          h.topK(req.TopK),
		AliveBitmap:   req.AliveBitmap,
		ApplyFilter:   req.ApplyFilter,
		CombineWithOr: req.CombineWithOr,
		NeedDocument:  req.NeedDocument,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"results":    nonNil(resp.Results),
		"count":      len(resp.Results),
		"shards":     resp.Shards,
		"statistics": resp.Statistics,
		"took_ms":    time.Since(start).Milliseconds(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.statsCache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.statsCache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

// topK applies the default when the request leaves topk out and caps it at
// the configured maximum. An explicit 0 is passed on and rejected.
func (h *Handler) topK(requested *int) int {
	if requested == nil {
		return h.defaultTopK
	}
	if h.maxTopK > 0 && *requested > h.maxTopK {
		return h.maxTopK
	}
	return *requested
}

func (h *Handler) resolve(name string) (string, error) {
	if name == "" {
		return "", apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "index is required")
	}
	if !filepath.IsLocal(name) {
		return "", apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid index name %q", name)
	}
	return filepath.Join(h.root, name), nil
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid request body: %v", err)
	}
	return nil
}

func nonNil(results []executor.RowIDWithScore) []executor.RowIDWithScore {
	if results == nil {
		return []executor.RowIDWithScore{}
	}
	return results
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		message = "internal error"
		if errors.Is(err, apperrors.ErrEngine) {
			message = "engine error"
		}
	}
	body := map[string]string{"error": message, "kind": apperrors.Kind(err)}
	if id := middleware.GetRequestID(r.Context()); id != "" {
		body["request_id"] = id
	}
	h.writeJSON(w, status, body)
}
