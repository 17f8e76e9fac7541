package searcher

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/pagemind/pagemind/internal/embedcache"
	"github.com/pagemind/pagemind/internal/embedder"
	"github.com/pagemind/pagemind/internal/vectorindex"
	"github.com/pagemind/pagemind/pkg/types"
)

type fakeStore struct {
	pages []*types.Page
	err   error
	calls int
}

func (f *fakeStore) SearchKeyword(_ context.Context, _ string, _ int) ([]*types.Page, error) {
	f.calls++
	return f.pages, f.err
}

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) GenerateEmbedding(_ context.Context, _ embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &embedder.Embedding{Vector: f.vector, Dimension: len(f.vector)}, nil
}

func (f *fakeEmbedder) GenerateBatch(_ context.Context, _ embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeEmbedder) Dimension() int   { return len(f.vector) }
func (f *fakeEmbedder) Provider() string { return "fake" }
func (f *fakeEmbedder) Model() string    { return "fake-model" }
func (f *fakeEmbedder) Close() error     { return nil }

func newTestSearcher(t *testing.T, store *fakeStore, emb *fakeEmbedder, index *vectorindex.Index) *Searcher {
	t.Helper()
	queries := embedcache.New(filepath.Join(t.TempDir(), "queries.json"), 100, time.Hour)
	return NewSearcher(store, emb, queries, index)
}

func indexWithPages(t *testing.T, entries map[int64][]float32, snaps map[int64]vectorindex.Snapshot) *vectorindex.Index {
	t.Helper()
	index := vectorindex.New(3)
	for id, vec := range entries {
		if err := index.Add(vec, snaps[id]); err != nil {
			t.Fatalf("Add(%d) failed: %v", id, err)
		}
	}
	return index
}

func TestSearchMergesBothSignals(t *testing.T) {
	index := indexWithPages(t,
		map[int64][]float32{1: {1, 0, 0}},
		map[int64]vectorindex.Snapshot{
			1: {PageID: 1, URL: "https://a.example.com", Title: "Alpha"},
		},
	)
	store := &fakeStore{pages: []*types.Page{
		{ID: 1, URL: "https://a.example.com", Title: "Alpha"},
		{ID: 2, URL: "https://b.example.com", Title: "Beta"},
	}}
	emb := &fakeEmbedder{vector: []float32{1, 0, 0}}
	s := newTestSearcher(t, store, emb, index)

	resp, err := s.Search(context.Background(), SearchRequest{Query: "alpha"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if resp.Total != 2 {
		t.Fatalf("Total = %d, want 2", resp.Total)
	}

	// Page 1 scores 1.0 on both signals: 1.0*0.3 + 1.0*0.7 = 1.0.
	first := resp.Results[0]
	if first.PageID != 1 {
		t.Errorf("first result PageID = %d, want 1", first.PageID)
	}
	if math.Abs(first.RelevanceScore-1.0) > 1e-9 {
		t.Errorf("first RelevanceScore = %f, want 1.0", first.RelevanceScore)
	}
	if math.Abs(first.Scores.VectorScore-1.0) > 1e-9 {
		t.Errorf("first VectorScore = %f, want 1.0", first.Scores.VectorScore)
	}
	if math.Abs(first.Scores.KeywordScore-1.0) > 1e-9 {
		t.Errorf("first KeywordScore = %f, want 1.0", first.Scores.KeywordScore)
	}

	// Page 2 only appears in keyword results at the last position:
	// 0.1*0.3 = 0.03, no vector component.
	second := resp.Results[1]
	if second.PageID != 2 {
		t.Errorf("second result PageID = %d, want 2", second.PageID)
	}
	if math.Abs(second.RelevanceScore-0.03) > 1e-9 {
		t.Errorf("second RelevanceScore = %f, want 0.03", second.RelevanceScore)
	}
	if second.Scores.VectorScore != 0 {
		t.Errorf("second VectorScore = %f, want 0", second.Scores.VectorScore)
	}

	if resp.Fallback {
		t.Error("Fallback should be false when the provider succeeds")
	}
	if first.Rank != 1 || second.Rank != 2 {
		t.Errorf("ranks = %d, %d, want 1, 2", first.Rank, second.Rank)
	}
}

func TestPositionScore(t *testing.T) {
	tests := []struct {
		name  string
		index int
		total int
		want  float64
	}{
		{"single result", 0, 1, 1.0},
		{"first of many", 0, 10, 1.0},
		{"last of many", 9, 10, 0.1},
		{"middle", 1, 3, 0.55},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := positionScore(tt.index, tt.total)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("positionScore(%d, %d) = %f, want %f", tt.index, tt.total, got, tt.want)
			}
		})
	}
}

func TestFrequencyBoostCaps(t *testing.T) {
	tests := []struct {
		name      string
		visits    int
		admission float64
		want      float64
	}{
		{"no history", 0, 0, 0},
		{"moderate visits", 10, 0, 0.2},
		{"visit cap", 500, 0, 0.2},
		{"admission only", 0, 1.0, 0.1},
		{"both maxed", 500, 1.0, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := frequencyBoost(tt.visits, tt.admission)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("frequencyBoost(%d, %f) = %f, want %f", tt.visits, tt.admission, got, tt.want)
			}
		})
	}
}

func TestBoostOnlyNearTop(t *testing.T) {
	// No vectors: scores come from keyword positions alone.
	index := vectorindex.New(3)
	store := &fakeStore{pages: []*types.Page{
		{ID: 1, URL: "https://a.example.com", VisitCount: 100},
		{ID: 2, URL: "https://b.example.com", VisitCount: 100},
	}}
	emb := &fakeEmbedder{vector: []float32{1, 0, 0}}
	s := newTestSearcher(t, store, emb, index)

	resp, err := s.Search(context.Background(), SearchRequest{Query: "test"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	// First: 1.0*0.3 = 0.30, within the window of itself, boosted by 0.2.
	// Second: 0.1*0.3 = 0.03, 0.27 below the max, not boosted.
	if math.Abs(resp.Results[0].RelevanceScore-0.5) > 1e-9 {
		t.Errorf("top RelevanceScore = %f, want 0.5", resp.Results[0].RelevanceScore)
	}
	if math.Abs(resp.Results[1].RelevanceScore-0.03) > 1e-9 {
		t.Errorf("second RelevanceScore = %f, want 0.03 (unboosted)", resp.Results[1].RelevanceScore)
	}
}

func TestVectorFallbackUsesStoredEmbedding(t *testing.T) {
	index := indexWithPages(t,
		map[int64][]float32{
			1: {1, 0, 0},
			2: {0.9, 0.1, 0},
		},
		map[int64]vectorindex.Snapshot{
			1: {PageID: 1, URL: "https://a.example.com", Title: "Alpha"},
			2: {PageID: 2, URL: "https://b.example.com", Title: "Beta"},
		},
	)
	store := &fakeStore{pages: []*types.Page{
		{ID: 1, URL: "https://a.example.com", Embedding: []float32{1, 0, 0}},
	}}
	emb := &fakeEmbedder{vector: []float32{1, 0, 0}, err: errors.New("provider down")}
	s := newTestSearcher(t, store, emb, index)

	resp, err := s.Search(context.Background(), SearchRequest{Query: "alpha"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if !resp.Fallback {
		t.Error("Fallback = false, want true when the provider is down")
	}
	if resp.VectorResults == 0 {
		t.Error("expected vector results from the surrogate query")
	}
	if resp.Results[0].PageID != 1 {
		t.Errorf("top result PageID = %d, want 1", resp.Results[0].PageID)
	}
}

func TestBothSignalsFailReturnsEmpty(t *testing.T) {
	index := vectorindex.New(3)
	store := &fakeStore{err: errors.New("fts down")}
	emb := &fakeEmbedder{vector: []float32{1, 0, 0}, err: errors.New("provider down")}
	s := newTestSearcher(t, store, emb, index)

	resp, err := s.Search(context.Background(), SearchRequest{Query: "anything"})
	if err != nil {
		t.Fatalf("Search() error = %v, want graceful empty response", err)
	}
	if resp.Total != 0 || len(resp.Results) != 0 {
		t.Errorf("Total = %d, want 0", resp.Total)
	}
}

func TestEmptyQueryRejected(t *testing.T) {
	s := newTestSearcher(t, &fakeStore{}, &fakeEmbedder{vector: []float32{1, 0, 0}}, vectorindex.New(3))
	if _, err := s.Search(context.Background(), SearchRequest{Query: ""}); err == nil {
		t.Error("expected error for empty query")
	}
}

func TestResponseCache(t *testing.T) {
	index := vectorindex.New(3)
	store := &fakeStore{pages: []*types.Page{
		{ID: 1, URL: "https://a.example.com", Title: "Alpha"},
	}}
	emb := &fakeEmbedder{vector: []float32{1, 0, 0}}
	s := newTestSearcher(t, store, emb, index)

	req := SearchRequest{Query: "alpha", UseCache: true}

	first, err := s.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if first.CacheHit {
		t.Error("first search should not be a cache hit")
	}

	second, err := s.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if !second.CacheHit {
		t.Error("second search should be a cache hit")
	}
	if store.calls != 1 {
		t.Errorf("store calls = %d, want 1 (second served from cache)", store.calls)
	}
	if second.Total != first.Total {
		t.Errorf("cached Total = %d, want %d", second.Total, first.Total)
	}

	s.InvalidateCache()
	if s.CachedResponses() != 0 {
		t.Errorf("CachedResponses() = %d after invalidation, want 0", s.CachedResponses())
	}

	third, err := s.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if third.CacheHit {
		t.Error("search after invalidation should miss the cache")
	}
}

func TestResponseCacheExpiry(t *testing.T) {
	index := vectorindex.New(3)
	store := &fakeStore{pages: []*types.Page{
		{ID: 1, URL: "https://a.example.com"},
	}}
	emb := &fakeEmbedder{vector: []float32{1, 0, 0}}
	s := newTestSearcher(t, store, emb, index)

	req := SearchRequest{Query: "alpha", UseCache: true, CacheTTL: -time.Second}

	if _, err := s.Search(context.Background(), req); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	resp, err := s.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if resp.CacheHit {
		t.Error("entry with elapsed TTL should not produce a cache hit")
	}
}

func TestQueryVectorCached(t *testing.T) {
	index := indexWithPages(t,
		map[int64][]float32{1: {1, 0, 0}},
		map[int64]vectorindex.Snapshot{1: {PageID: 1, URL: "https://a.example.com"}},
	)
	store := &fakeStore{pages: []*types.Page{
		{ID: 1, URL: "https://a.example.com"},
	}}
	emb := &fakeEmbedder{vector: []float32{1, 0, 0}}
	s := newTestSearcher(t, store, emb, index)

	for i := 0; i < 3; i++ {
		if _, err := s.Search(context.Background(), SearchRequest{Query: "repeat me"}); err != nil {
			t.Fatalf("Search() error = %v", err)
		}
	}
	if emb.calls != 1 {
		t.Errorf("embedder calls = %d, want 1 (later queries served from embedding cache)", emb.calls)
	}
}

func TestLimitTruncation(t *testing.T) {
	pages := make([]*types.Page, 8)
	for i := range pages {
		pages[i] = &types.Page{
			ID:  int64(i + 1),
			URL: "https://example.com/" + string(rune('a'+i)),
		}
	}
	store := &fakeStore{pages: pages}
	emb := &fakeEmbedder{vector: []float32{1, 0, 0}}
	s := newTestSearcher(t, store, emb, vectorindex.New(3))

	resp, err := s.Search(context.Background(), SearchRequest{Query: "many", Limit: 3})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if resp.Total != 3 {
		t.Errorf("Total = %d, want 3", resp.Total)
	}
	for i, r := range resp.Results {
		if r.Rank != i+1 {
			t.Errorf("Results[%d].Rank = %d, want %d", i, r.Rank, i+1)
		}
	}
}

func TestWeightsSumToOne(t *testing.T) {
	if math.Abs(VectorWeight+KeywordWeight-1.0) > 1e-12 {
		t.Errorf("VectorWeight + KeywordWeight = %f, want 1.0", VectorWeight+KeywordWeight)
	}
}
