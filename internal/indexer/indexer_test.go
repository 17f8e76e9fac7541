package indexer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pagemind/pagemind/internal/embedder"
	"github.com/pagemind/pagemind/internal/eviction"
	"github.com/pagemind/pagemind/internal/vectorindex"
	"github.com/pagemind/pagemind/pkg/types"
)

type fakeStore struct {
	mu         sync.Mutex
	nextID     int64
	pages      map[int64]*types.Page
	byURL      map[string]int64
	embeddings map[int64][]float32
	deleted    []int64
	stats      []eviction.PageStats
	statsErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		pages:      make(map[int64]*types.Page),
		byURL:      make(map[string]int64),
		embeddings: make(map[int64][]float32),
	}
}

func (f *fakeStore) UpsertPage(_ context.Context, page *types.Page) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.byURL[page.URL]; ok {
		page.ID = id
	} else {
		f.nextID++
		page.ID = f.nextID
		f.byURL[page.URL] = page.ID
	}
	stored := *page
	f.pages[page.ID] = &stored
	return nil
}

func (f *fakeStore) FindOrCreateByURL(ctx context.Context, url string) (*types.Page, error) {
	f.mu.Lock()
	id, ok := f.byURL[url]
	f.mu.Unlock()
	if ok {
		f.mu.Lock()
		defer f.mu.Unlock()
		page := *f.pages[id]
		return &page, nil
	}
	page := &types.Page{URL: url}
	if err := f.UpsertPage(ctx, page); err != nil {
		return nil, err
	}
	return page, nil
}

func (f *fakeStore) RecordVisit(_ context.Context, pageID int64) (*types.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page, ok := f.pages[pageID]
	if !ok {
		return nil, errors.New("not found")
	}
	page.VisitCount++
	page.LastVisited = time.Now()
	updated := *page
	return &updated, nil
}

func (f *fakeStore) UpdateEmbedding(_ context.Context, pageID int64, vector []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embeddings[pageID] = vector
	return nil
}

func (f *fakeStore) AllIndexed(_ context.Context) ([]*types.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pages []*types.Page
	for id, vec := range f.embeddings {
		page := *f.pages[id]
		page.Embedding = vec
		pages = append(pages, &page)
	}
	return pages, nil
}

func (f *fakeStore) PageStatistics(_ context.Context) ([]eviction.PageStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	if f.stats != nil {
		return f.stats, nil
	}
	var stats []eviction.PageStats
	for id, page := range f.pages {
		stats = append(stats, eviction.PageStats{
			ID:          id,
			URL:         page.URL,
			Title:       page.Title,
			VisitCount:  page.VisitCount,
			LastVisited: page.LastVisited,
		})
	}
	return stats, nil
}

func (f *fakeStore) DeletePages(_ context.Context, pageIDs []int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	deleted := 0
	for _, id := range pageIDs {
		if page, ok := f.pages[id]; ok {
			delete(f.byURL, page.URL)
			delete(f.pages, id)
			delete(f.embeddings, id)
			f.deleted = append(f.deleted, id)
			deleted++
		}
	}
	return deleted, nil
}

type fakeEmbedder struct {
	mu     sync.Mutex
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) GenerateEmbedding(_ context.Context, _ embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &embedder.Embedding{Vector: f.vector, Dimension: len(f.vector)}, nil
}

func (f *fakeEmbedder) GenerateBatch(_ context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	embeddings := make([]*embedder.Embedding, len(req.Texts))
	for i := range req.Texts {
		embeddings[i] = &embedder.Embedding{Vector: f.vector, Dimension: len(f.vector)}
	}
	return &embedder.BatchEmbeddingResponse{Embeddings: embeddings}, nil
}

func (f *fakeEmbedder) Dimension() int   { return len(f.vector) }
func (f *fakeEmbedder) Provider() string { return "fake" }
func (f *fakeEmbedder) Model() string    { return "fake-model" }
func (f *fakeEmbedder) Close() error     { return nil }

func newTestIndexer(store *fakeStore, emb *fakeEmbedder) (*Indexer, *vectorindex.Index) {
	index := vectorindex.New(3)
	idx := New(store, emb, index, &Config{Workers: 2, SweepRate: 1000000})
	return idx, index
}

func TestIndexPageStoresAndEnriches(t *testing.T) {
	store := newFakeStore()
	emb := &fakeEmbedder{vector: []float32{1, 0, 0}}
	idx, index := newTestIndexer(store, emb)

	page, err := idx.IndexPage(context.Background(), types.PageCreate{
		URL:     "https://go.dev/blog/slices",
		Title:   "Go Slices",
		Content: "usage and internals",
	})
	if err != nil {
		t.Fatalf("IndexPage() error = %v", err)
	}
	if page.ID == 0 {
		t.Fatal("page.ID not assigned")
	}

	idx.Wait()

	if _, ok := store.embeddings[page.ID]; !ok {
		t.Error("embedding was not persisted")
	}
	if index.Len() != 1 {
		t.Errorf("index.Len() = %d, want 1", index.Len())
	}
	snap, ok := index.Metadata(page.ID)
	if !ok {
		t.Fatal("vector index missing page metadata")
	}
	if snap.URL != "https://go.dev/blog/slices" {
		t.Errorf("snapshot URL = %s", snap.URL)
	}
}

func TestIndexPageRejectsInvalidURL(t *testing.T) {
	idx, _ := newTestIndexer(newFakeStore(), &fakeEmbedder{vector: []float32{1, 0, 0}})
	_, err := idx.IndexPage(context.Background(), types.PageCreate{URL: "ftp://example.com"})
	if err == nil {
		t.Error("expected error for non-http URL")
	}
}

func TestIndexPageEnrichmentFailureIsNonFatal(t *testing.T) {
	store := newFakeStore()
	emb := &fakeEmbedder{vector: []float32{1, 0, 0}, err: errors.New("provider down")}
	idx, index := newTestIndexer(store, emb)

	page, err := idx.IndexPage(context.Background(), types.PageCreate{
		URL:   "https://example.com",
		Title: "Example",
	})
	if err != nil {
		t.Fatalf("IndexPage() error = %v, enrichment failures must not fail the call", err)
	}

	idx.Wait()

	if len(store.embeddings) != 0 {
		t.Error("no embedding should be stored when the provider fails")
	}
	if index.Len() != 0 {
		t.Errorf("index.Len() = %d, want 0", index.Len())
	}
	if page.ID == 0 {
		t.Error("page should still be stored")
	}
}

func TestTrackVisit(t *testing.T) {
	store := newFakeStore()
	emb := &fakeEmbedder{vector: []float32{1, 0, 0}}
	idx, index := newTestIndexer(store, emb)

	page, err := idx.TrackVisit(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("TrackVisit() error = %v", err)
	}
	if page.VisitCount != 1 {
		t.Errorf("VisitCount = %d, want 1", page.VisitCount)
	}

	again, err := idx.TrackVisit(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("TrackVisit() error = %v", err)
	}
	if again.VisitCount != 2 {
		t.Errorf("VisitCount = %d, want 2", again.VisitCount)
	}
	if again.ID != page.ID {
		t.Errorf("second visit created a new page: %d != %d", again.ID, page.ID)
	}

	stats := idx.AdmissionStats()
	if stats.Size != 1 {
		t.Errorf("admission Size = %d, want 1", stats.Size)
	}

	// A visit to an indexed page refreshes its vector metadata snapshot.
	if err := index.Add([]float32{1, 0, 0}, snapshotFor(page)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	third, err := idx.TrackVisit(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("TrackVisit() error = %v", err)
	}
	snap, ok := index.Metadata(page.ID)
	if !ok {
		t.Fatal("metadata missing")
	}
	if snap.VisitCount != third.VisitCount {
		t.Errorf("snapshot VisitCount = %d, want %d", snap.VisitCount, third.VisitCount)
	}
}

func TestShouldSweepAtRateOne(t *testing.T) {
	idx := New(newFakeStore(), &fakeEmbedder{vector: []float32{1, 0, 0}}, vectorindex.New(3), &Config{SweepRate: 1})
	for i := 0; i < 10; i++ {
		if !idx.shouldSweep() {
			t.Fatal("SweepRate 1 must always sweep")
		}
	}
}

func TestRunEviction(t *testing.T) {
	store := newFakeStore()
	emb := &fakeEmbedder{vector: []float32{1, 0, 0}}
	idx, index := newTestIndexer(store, emb)

	ctx := context.Background()
	stale, _ := idx.TrackVisit(ctx, "https://stale.example.com")
	fresh, _ := idx.TrackVisit(ctx, "https://fresh.example.com")

	// Make one page old and rarely visited, the other recent and popular.
	store.stats = []eviction.PageStats{
		{ID: stale.ID, URL: stale.URL, VisitCount: 0, LastVisited: time.Now().Add(-200 * 24 * time.Hour)},
		{ID: fresh.ID, URL: fresh.URL, VisitCount: 50, LastVisited: time.Now()},
	}

	if err := index.Add([]float32{1, 0, 0}, snapshotFor(stale)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	result, err := idx.RunEviction(ctx, 1)
	if err != nil {
		t.Fatalf("RunEviction() error = %v", err)
	}
	if result.Deleted != 1 {
		t.Fatalf("Deleted = %d, want 1", result.Deleted)
	}
	if result.PageIDs[0] != stale.ID {
		t.Errorf("evicted page %d, want %d (the stale one)", result.PageIDs[0], stale.ID)
	}
	if index.Len() != 0 {
		t.Errorf("vector index still holds %d entries", index.Len())
	}
	if idx.AdmissionStats().Size != 1 {
		t.Errorf("admission Size = %d, want 1 (stale URL removed)", idx.AdmissionStats().Size)
	}
}

func TestRunEvictionSkipsWhenSweepInProgress(t *testing.T) {
	idx, _ := newTestIndexer(newFakeStore(), &fakeEmbedder{vector: []float32{1, 0, 0}})

	if !idx.sweepLock.TryAcquire() {
		t.Fatal("could not acquire sweep lock")
	}
	defer idx.sweepLock.Release()

	result, err := idx.RunEviction(context.Background(), 10)
	if err != nil {
		t.Fatalf("RunEviction() error = %v", err)
	}
	if result.Deleted != 0 || result.Requested != 0 {
		t.Errorf("overlapping eviction should be a no-op, got %+v", result)
	}
}

func TestPreviewEviction(t *testing.T) {
	store := newFakeStore()
	idx, _ := newTestIndexer(store, &fakeEmbedder{vector: []float32{1, 0, 0}})

	now := time.Now()
	store.stats = []eviction.PageStats{
		{ID: 1, URL: "https://old.example.com", Title: "Old", VisitCount: 0, LastVisited: now.Add(-120 * 24 * time.Hour)},
		{ID: 2, URL: "https://new.example.com", Title: "New", VisitCount: 30, LastVisited: now},
	}

	candidates, err := idx.PreviewEviction(context.Background(), 2)
	if err != nil {
		t.Fatalf("PreviewEviction() error = %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(candidates))
	}
	if candidates[0].PageID != 1 {
		t.Errorf("top candidate = %d, want the old unvisited page", candidates[0].PageID)
	}
	if candidates[0].Score <= candidates[1].Score {
		t.Errorf("candidates not ordered by score: %f <= %f", candidates[0].Score, candidates[1].Score)
	}
	if candidates[0].Reason == "" {
		t.Error("candidate missing reason")
	}

	if len(store.deleted) != 0 {
		t.Error("preview must not delete pages")
	}
}

func TestLoadVectors(t *testing.T) {
	store := newFakeStore()
	emb := &fakeEmbedder{vector: []float32{1, 0, 0}}
	idx, index := newTestIndexer(store, emb)

	ctx := context.Background()
	for _, url := range []string{"https://a.example.com", "https://b.example.com", "https://c.example.com"} {
		page := &types.Page{URL: url}
		if err := store.UpsertPage(ctx, page); err != nil {
			t.Fatal(err)
		}
		if err := store.UpdateEmbedding(ctx, page.ID, []float32{1, 0, 0}); err != nil {
			t.Fatal(err)
		}
	}

	loaded, err := idx.LoadVectors(ctx)
	if err != nil {
		t.Fatalf("LoadVectors() error = %v", err)
	}
	if loaded != 3 {
		t.Errorf("loaded = %d, want 3", loaded)
	}
	if index.Len() != 3 {
		t.Errorf("index.Len() = %d, want 3", index.Len())
	}
}

func TestReindexStale(t *testing.T) {
	store := newFakeStore()
	emb := &fakeEmbedder{vector: []float32{0, 1, 0}}
	idx, index := newTestIndexer(store, emb)

	ctx := context.Background()
	staleAt := time.Now().Add(-10 * 24 * time.Hour)
	freshAt := time.Now().Add(-time.Hour)

	stale := &types.Page{URL: "https://stale.example.com"}
	fresh := &types.Page{URL: "https://fresh.example.com"}
	for _, p := range []*types.Page{stale, fresh} {
		if err := store.UpsertPage(ctx, p); err != nil {
			t.Fatal(err)
		}
		if err := store.UpdateEmbedding(ctx, p.ID, []float32{1, 0, 0}); err != nil {
			t.Fatal(err)
		}
	}
	store.pages[stale.ID].IndexedAt = staleAt
	store.pages[fresh.ID].IndexedAt = freshAt

	reindexed, err := idx.ReindexStale(ctx)
	if err != nil {
		t.Fatalf("ReindexStale() error = %v", err)
	}
	if reindexed != 1 {
		t.Fatalf("reindexed = %d, want 1", reindexed)
	}

	vec, ok := index.Vector(stale.ID)
	if !ok {
		t.Fatal("stale page missing from index after reindex")
	}
	if vec[1] != 1 {
		t.Errorf("stale page vector not refreshed: %v", vec)
	}
	if _, ok := index.Vector(fresh.ID); ok {
		t.Error("fresh page should not have been reindexed")
	}
}

func TestEmbeddingText(t *testing.T) {
	tests := []struct {
		name string
		page *types.Page
		want string
	}{
		{"title and content", &types.Page{Title: "T", Content: "C"}, "T\nC"},
		{"title only", &types.Page{Title: "T"}, "T"},
		{"content only", &types.Page{Content: "C"}, "C"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := embeddingText(tt.page); got != tt.want {
				t.Errorf("embeddingText() = %q, want %q", got, tt.want)
			}
		})
	}
}
