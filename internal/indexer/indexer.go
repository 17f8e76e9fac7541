package indexer

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pagemind/pagemind/internal/arc"
	"github.com/pagemind/pagemind/internal/embedder"
	"github.com/pagemind/pagemind/internal/eviction"
	"github.com/pagemind/pagemind/internal/vectorindex"
	"github.com/pagemind/pagemind/pkg/types"
)

// Defaults for Config fields left zero.
const (
	DefaultAdmissionCapacity = 1000
	DefaultSweepRate         = 100
	DefaultEvictionBatch     = 50
	DefaultReindexAfter      = 3 * 24 * time.Hour
	enrichTimeout            = 60 * time.Second
)

// PageStore is the slice of the storage layer the indexer needs.
type PageStore interface {
	UpsertPage(ctx context.Context, page *types.Page) error
	FindOrCreateByURL(ctx context.Context, url string) (*types.Page, error)
	RecordVisit(ctx context.Context, pageID int64) (*types.Page, error)
	UpdateEmbedding(ctx context.Context, pageID int64, vector []float32) error
	AllIndexed(ctx context.Context) ([]*types.Page, error)
	PageStatistics(ctx context.Context) ([]eviction.PageStats, error)
	DeletePages(ctx context.Context, pageIDs []int64) (int, error)
}

// Config contains configuration for the indexer
type Config struct {
	Workers           int             // Concurrent workers for bulk vector loads (default: runtime.NumCPU())
	AdmissionCapacity int             // ARC working-set size (default: 1000)
	SweepRate         int             // Run an eviction sweep on about 1 visit in SweepRate (default: 100)
	EvictionBatch     int             // Pages removed per sweep (default: 50)
	ReindexAfter      time.Duration   // Embedding staleness horizon (default: 72h)
	Policy            eviction.Policy // Candidate selection strategy (default: scored)
}

// Indexer coordinates the ingestion pipeline: store page -> enrich
// asynchronously -> maintain the admission working set and vector index.
type Indexer struct {
	storage  PageStore
	embedder embedder.Embedder
	index    *vectorindex.Index

	admitted   *arc.Cache[string, int64]
	admittedMu sync.Mutex

	policy eviction.Policy
	scorer *eviction.ScoredPolicy

	workers       int
	sweepRate     int
	evictionBatch int
	reindexAfter  time.Duration

	sweepLock SweepLock
	enriching sync.WaitGroup
	rng       *rand.Rand
	rngMu     sync.Mutex
}

// New creates a new Indexer instance
func New(store PageStore, emb embedder.Embedder, index *vectorindex.Index, config *Config) *Indexer {
	if config == nil {
		config = &Config{}
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.AdmissionCapacity <= 0 {
		config.AdmissionCapacity = DefaultAdmissionCapacity
	}
	if config.SweepRate <= 0 {
		config.SweepRate = DefaultSweepRate
	}
	if config.EvictionBatch <= 0 {
		config.EvictionBatch = DefaultEvictionBatch
	}
	if config.ReindexAfter <= 0 {
		config.ReindexAfter = DefaultReindexAfter
	}
	policy := config.Policy
	if policy == nil {
		policy = eviction.NewScoredPolicy()
	}

	return &Indexer{
		storage:       store,
		embedder:      emb,
		index:         index,
		admitted:      arc.New[string, int64](config.AdmissionCapacity),
		policy:        policy,
		scorer:        eviction.NewScoredPolicy(),
		workers:       config.Workers,
		sweepRate:     config.SweepRate,
		evictionBatch: config.EvictionBatch,
		reindexAfter:  config.ReindexAfter,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// IndexPage stores the page immediately and kicks off asynchronous
// enrichment (embedding generation and vector-index insert). The caller
// never waits on the embedding provider.
func (idx *Indexer) IndexPage(ctx context.Context, create types.PageCreate) (*types.Page, error) {
	if err := create.Validate(); err != nil {
		return nil, fmt.Errorf("invalid page: %w", err)
	}

	page := &types.Page{
		URL:        create.URL,
		Title:      create.Title,
		Content:    create.Content,
		FaviconURL: create.FaviconURL,
	}
	if err := idx.storage.UpsertPage(ctx, page); err != nil {
		return nil, fmt.Errorf("failed to store page: %w", err)
	}

	idx.enriching.Add(1)
	go func() {
		defer idx.enriching.Done()
		// Enrichment outlives the request; it gets its own deadline.
		enrichCtx, cancel := context.WithTimeout(context.Background(), enrichTimeout)
		defer cancel()
		if err := idx.enrichPage(enrichCtx, page); err != nil {
			log.Printf("indexer: enrichment failed for %s: %v", page.URL, err)
		}
	}()

	return page, nil
}

// enrichPage generates the embedding for a page and registers it with the
// vector index.
func (idx *Indexer) enrichPage(ctx context.Context, page *types.Page) error {
	emb, err := idx.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
		Text: embeddingText(page),
	})
	if err != nil {
		return fmt.Errorf("failed to generate embedding: %w", err)
	}

	if err := idx.storage.UpdateEmbedding(ctx, page.ID, emb.Vector); err != nil {
		return fmt.Errorf("failed to persist embedding: %w", err)
	}

	if err := idx.index.Add(emb.Vector, snapshotFor(page)); err != nil {
		return fmt.Errorf("failed to index vector: %w", err)
	}
	return nil
}

// Wait blocks until all in-flight enrichment goroutines finish. Used on
// shutdown and in tests.
func (idx *Indexer) Wait() {
	idx.enriching.Wait()
}

// TrackVisit registers a visit to a URL: the page is created if it has never
// been seen, its visit metrics are updated, the URL is touched in the
// admission working set, and the vector index's metadata snapshot is
// refreshed. About one visit in SweepRate triggers a background eviction
// sweep.
func (idx *Indexer) TrackVisit(ctx context.Context, url string) (*types.Page, error) {
	page, err := idx.storage.FindOrCreateByURL(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve page for visit: %w", err)
	}

	updated, err := idx.storage.RecordVisit(ctx, page.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to record visit: %w", err)
	}

	idx.admittedMu.Lock()
	idx.admitted.Put(url, updated.ID)
	idx.admittedMu.Unlock()

	idx.index.UpdateMetadata(snapshotFor(updated))

	if idx.shouldSweep() {
		go func() {
			sweepCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if _, err := idx.RunEviction(sweepCtx, idx.evictionBatch); err != nil {
				log.Printf("indexer: eviction sweep failed: %v", err)
			}
		}()
	}

	return updated, nil
}

func (idx *Indexer) shouldSweep() bool {
	idx.rngMu.Lock()
	n := idx.rng.Intn(idx.sweepRate)
	idx.rngMu.Unlock()
	return n == 0
}

// Candidate describes one page an eviction run would remove.
type Candidate struct {
	PageID int64   `json:"page_id"`
	URL    string  `json:"url"`
	Title  string  `json:"title"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// PreviewEviction returns the pages the configured policy would remove
// next, with scores and human-readable reasons, without deleting anything.
func (idx *Indexer) PreviewEviction(ctx context.Context, count int) ([]Candidate, error) {
	if count <= 0 {
		count = idx.evictionBatch
	}

	stats, err := idx.storage.PageStatistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load page statistics: %w", err)
	}

	byID := make(map[int64]eviction.PageStats, len(stats))
	for _, st := range stats {
		byID[st.ID] = st
	}

	now := time.Now()
	ids := idx.policy.Candidates(stats, count)
	candidates := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		st := byID[id]
		candidates = append(candidates, Candidate{
			PageID: id,
			URL:    st.URL,
			Title:  st.Title,
			Score:  idx.scorer.Score(st, now),
			Reason: idx.scorer.Explain(stats, id),
		})
	}
	return candidates, nil
}

// EvictionResult reports the outcome of an eviction run.
type EvictionResult struct {
	Requested int     `json:"requested"`
	Deleted   int     `json:"deleted"`
	PageIDs   []int64 `json:"page_ids"`
}

// RunEviction removes up to count pages chosen by the configured policy
// from storage, the vector index, and the admission working set. Only one
// run executes at a time; overlapping calls return immediately with an
// empty result.
func (idx *Indexer) RunEviction(ctx context.Context, count int) (*EvictionResult, error) {
	if !idx.sweepLock.TryAcquire() {
		return &EvictionResult{}, nil
	}
	defer idx.sweepLock.Release()

	if count <= 0 {
		count = idx.evictionBatch
	}

	stats, err := idx.storage.PageStatistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load page statistics: %w", err)
	}

	ids := idx.policy.Candidates(stats, count)
	if len(ids) == 0 {
		return &EvictionResult{Requested: count}, nil
	}

	urlByID := make(map[int64]string, len(stats))
	for _, st := range stats {
		urlByID[st.ID] = st.URL
	}

	deleted, err := idx.storage.DeletePages(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to delete pages: %w", err)
	}

	idx.admittedMu.Lock()
	for _, id := range ids {
		idx.index.Remove(id)
		if url, ok := urlByID[id]; ok {
			idx.admitted.Delete(url)
		}
	}
	idx.admittedMu.Unlock()

	return &EvictionResult{
		Requested: count,
		Deleted:   deleted,
		PageIDs:   ids,
	}, nil
}

// LoadVectors rebuilds the in-memory vector index from every embedded page
// in storage. Called once at startup. Returns how many vectors were loaded.
func (idx *Indexer) LoadVectors(ctx context.Context) (int, error) {
	pages, err := idx.storage.AllIndexed(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load indexed pages: %w", err)
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)
	for _, page := range pages {
		g.Go(func() error {
			if err := idx.index.Add(page.Embedding, snapshotFor(page)); err != nil {
				return fmt.Errorf("page %d: %w", page.ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return idx.index.Len(), err
	}
	return len(pages), nil
}

// ReindexStale re-embeds pages whose vectors are older than the staleness
// horizon or whose content changed after they were last embedded. Batches
// provider calls.
func (idx *Indexer) ReindexStale(ctx context.Context) (int, error) {
	pages, err := idx.storage.AllIndexed(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load indexed pages: %w", err)
	}

	now := time.Now()
	var stale []*types.Page
	for _, page := range pages {
		if idx.isStale(page, now) {
			stale = append(stale, page)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	reindexed := 0
	for start := 0; start < len(stale); start += embedder.DefaultBatchSize {
		end := start + embedder.DefaultBatchSize
		if end > len(stale) {
			end = len(stale)
		}
		batch := stale[start:end]

		texts := make([]string, len(batch))
		for i, page := range batch {
			texts[i] = embeddingText(page)
		}

		resp, err := idx.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
		if err != nil {
			return reindexed, fmt.Errorf("failed to embed batch: %w", err)
		}

		for i, page := range batch {
			vector := resp.Embeddings[i].Vector
			if err := idx.storage.UpdateEmbedding(ctx, page.ID, vector); err != nil {
				log.Printf("indexer: failed to persist embedding for %s: %v", page.URL, err)
				continue
			}
			if err := idx.index.Add(vector, snapshotFor(page)); err != nil {
				log.Printf("indexer: failed to index vector for %s: %v", page.URL, err)
				continue
			}
			reindexed++
		}
	}
	return reindexed, nil
}

func (idx *Indexer) isStale(page *types.Page, now time.Time) bool {
	if page.IndexedAt.IsZero() {
		return true
	}
	if now.Sub(page.IndexedAt) > idx.reindexAfter {
		return true
	}
	return page.LastUpdatedAt.After(page.IndexedAt)
}

// AdmissionStats reports hit/miss/eviction counters and list sizes of the
// admission working set.
func (idx *Indexer) AdmissionStats() arc.Stats {
	idx.admittedMu.Lock()
	defer idx.admittedMu.Unlock()
	return idx.admitted.Stats()
}

// AdmissionCandidates previews which URLs the working set would shed next.
func (idx *Indexer) AdmissionCandidates(count int) []arc.Candidate[string] {
	idx.admittedMu.Lock()
	defer idx.admittedMu.Unlock()
	return idx.admitted.EvictionCandidates(count)
}

// embeddingText builds the text fed to the embedding provider for a page.
func embeddingText(page *types.Page) string {
	if page.Content == "" {
		return page.Title
	}
	if page.Title == "" {
		return page.Content
	}
	return page.Title + "\n" + page.Content
}

func snapshotFor(page *types.Page) vectorindex.Snapshot {
	return vectorindex.Snapshot{
		PageID:         page.ID,
		URL:            page.URL,
		Title:          page.Title,
		Description:    page.Description,
		FaviconURL:     page.FaviconURL,
		VisitCount:     page.VisitCount,
		AdmissionScore: page.AdmissionScore,
	}
}
