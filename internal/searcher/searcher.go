package searcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pagemind/pagemind/internal/embedcache"
	"github.com/pagemind/pagemind/internal/embedder"
	"github.com/pagemind/pagemind/internal/vectorindex"
	"github.com/pagemind/pagemind/pkg/types"
)

// Fusion parameters fixed by the service configuration.
const (
	// MaxResults caps how many results a single search returns.
	MaxResults = 10

	// VectorWeight and KeywordWeight blend the two relevance signals.
	// They sum to 1.0.
	VectorWeight  = 0.7
	KeywordWeight = 0.3

	// MinSimilarity filters out weak vector matches before fusion.
	MinSimilarity = 0.1

	// DropThreshold is the absolute score gap treated as a relevance cliff.
	DropThreshold = 0.15

	// boostWindow limits the frequency boost to results already within
	// this distance of the best combined score, so popularity never
	// overrides a strong topical match.
	boostWindow = 0.05

	responseCacheSize = 1000
)

// DefaultCacheTTL is how long a cached search response stays valid.
const DefaultCacheTTL = 1 * time.Hour

// PageStore is the slice of the storage layer rank fusion needs.
type PageStore interface {
	SearchKeyword(ctx context.Context, query string, limit int) ([]*types.Page, error)
}

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query    string
	Limit    int  // Defaults to MaxResults, capped at MaxResults
	UseCache bool // Whether to use the response cache
	CacheTTL time.Duration
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results        []types.SearchResult
	Total          int
	Fallback       bool // True when vector results came from the surrogate-vector path
	Duration       time.Duration
	CacheHit       bool
	KeywordResults int
	VectorResults  int
}

// cacheEntry represents a cached search response with expiration time
type cacheEntry struct {
	response  *SearchResponse
	expiresAt time.Time
}

// Searcher fuses keyword and vector relevance signals into one ranked list.
type Searcher struct {
	pages    PageStore
	embedder embedder.Embedder
	queries  *embedcache.Cache
	index    *vectorindex.Index
	cache    *lru.Cache[[32]byte, *cacheEntry]
	cacheMu  sync.RWMutex
}

// NewSearcher creates a new Searcher instance
func NewSearcher(pages PageStore, emb embedder.Embedder, queries *embedcache.Cache, index *vectorindex.Index) *Searcher {
	cache, err := lru.New[[32]byte, *cacheEntry](responseCacheSize)
	if err != nil {
		// This should never happen with valid size parameter
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	return &Searcher{
		pages:    pages,
		embedder: emb,
		queries:  queries,
		index:    index,
		cache:    cache,
	}
}

// Search runs keyword and vector lookups concurrently, merges them by URL
// with the configured weights, applies the bounded frequency boost, and
// returns up to Limit results best first. A failing embedding provider
// degrades to the surrogate-vector fallback; only when both signals fail
// does the response come back empty.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if err := s.validateRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	if req.UseCache {
		if cached := s.checkCache(req); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(startTime)
			return cached, nil
		}
	}

	keywordChan := make(chan keywordResult, 1)
	vectorChan := make(chan vectorResult, 1)

	go s.runKeywordSearch(ctx, req, keywordChan)
	go s.runVectorSearch(ctx, req, vectorChan)

	var kwRes keywordResult
	var vecRes vectorResult
	var kwDone, vecDone bool
	for !kwDone || !vecDone {
		select {
		case kwRes = <-keywordChan:
			kwDone = true
		case vecRes = <-vectorChan:
			vecDone = true
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	fallback := false
	if vecRes.err != nil {
		// Provider unavailable: borrow the top keyword result's stored
		// vector as a surrogate query.
		vecRes = s.fallbackVectorSearch(kwRes.pages, req)
		fallback = vecRes.err == nil && len(vecRes.matches) > 0
	}

	if kwRes.err != nil && vecRes.err != nil {
		log.Printf("searcher: both signals failed: keyword=%v vector=%v", kwRes.err, vecRes.err)
		return &SearchResponse{
			Results:  []types.SearchResult{},
			Duration: time.Since(startTime),
		}, nil
	}

	results := fuse(kwRes.pages, vecRes.matches, req.Limit)
	response := &SearchResponse{
		Results:        results,
		Total:          len(results),
		Fallback:       fallback,
		Duration:       time.Since(startTime),
		KeywordResults: len(kwRes.pages),
		VectorResults:  len(vecRes.matches),
	}

	if req.UseCache && len(response.Results) > 0 {
		s.storeInCache(req, response)
	}

	return response, nil
}

type keywordResult struct {
	pages []*types.Page
	err   error
}

type vectorResult struct {
	matches []vectorindex.Match
	err     error
}

// runKeywordSearch executes the full-text lookup in a goroutine
func (s *Searcher) runKeywordSearch(ctx context.Context, req SearchRequest, resultChan chan<- keywordResult) {
	var res keywordResult
	res.pages, res.err = s.pages.SearchKeyword(ctx, req.Query, req.Limit*2)
	select {
	case resultChan <- res:
	case <-ctx.Done():
	}
}

// runVectorSearch resolves the query vector and scans the index in a goroutine
func (s *Searcher) runVectorSearch(ctx context.Context, req SearchRequest, resultChan chan<- vectorResult) {
	var res vectorResult
	vector, err := s.queryVector(ctx, req.Query)
	if err != nil {
		res.err = fmt.Errorf("failed to resolve query vector: %w", err)
	} else {
		res.matches, res.err = s.index.Search(vector, s.searchOptions(req))
	}
	select {
	case resultChan <- res:
	case <-ctx.Done():
	}
}

// queryVector returns the embedding for a query, consulting the embedding
// cache before calling the provider. Provider responses are cached; provider
// failures are not.
func (s *Searcher) queryVector(ctx context.Context, query string) ([]float32, error) {
	if vector, ok := s.queries.Get(query); ok {
		return vector, nil
	}

	emb, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		return nil, err
	}

	s.queries.Put(query, emb.Vector)
	return emb.Vector, nil
}

// fallbackVectorSearch reuses the stored vector of the best keyword match as
// a surrogate query when the embedding provider is unavailable.
func (s *Searcher) fallbackVectorSearch(pages []*types.Page, req SearchRequest) vectorResult {
	for _, page := range pages {
		if len(page.Embedding) == 0 {
			continue
		}
		matches, err := s.index.Search(page.Embedding, s.searchOptions(req))
		return vectorResult{matches: matches, err: err}
	}
	return vectorResult{err: fmt.Errorf("no keyword result with a stored vector")}
}

func (s *Searcher) searchOptions(req SearchRequest) vectorindex.SearchOptions {
	return vectorindex.SearchOptions{
		Limit:         req.Limit * 2,
		MinSimilarity: MinSimilarity,
		EnableCutoff:  true,
		DropThreshold: DropThreshold,
	}
}

// fusedResult accumulates both relevance signals for one URL
type fusedResult struct {
	pageID         int64
	url            string
	title          string
	description    string
	faviconURL     string
	visitCount     int
	admissionScore float64
	keywordScore   float64
	vectorScore    float64
	combined       float64
}

// fuse merges the two ranked lists by URL, weights the signals, applies the
// bounded frequency boost, and truncates to limit.
func fuse(pages []*types.Page, matches []vectorindex.Match, limit int) []types.SearchResult {
	merged := make(map[string]*fusedResult)

	for i, page := range pages {
		merged[page.URL] = &fusedResult{
			pageID:         page.ID,
			url:            page.URL,
			title:          page.Title,
			description:    page.Description,
			faviconURL:     page.FaviconURL,
			visitCount:     page.VisitCount,
			admissionScore: page.AdmissionScore,
			keywordScore:   positionScore(i, len(pages)),
		}
	}

	for _, match := range matches {
		fr, ok := merged[match.URL]
		if !ok {
			fr = &fusedResult{
				pageID:         match.PageID,
				url:            match.URL,
				title:          match.Title,
				description:    match.Description,
				faviconURL:     match.FaviconURL,
				visitCount:     match.VisitCount,
				admissionScore: match.AdmissionScore,
			}
			merged[match.URL] = fr
		}
		fr.vectorScore = match.Similarity
	}

	fused := make([]*fusedResult, 0, len(merged))
	maxCombined := 0.0
	for _, fr := range merged {
		fr.combined = fr.keywordScore*KeywordWeight + fr.vectorScore*VectorWeight
		if fr.combined > maxCombined {
			maxCombined = fr.combined
		}
		fused = append(fused, fr)
	}

	// Boost only results already competitive with the best match.
	for _, fr := range fused {
		if maxCombined-fr.combined <= boostWindow {
			fr.combined += frequencyBoost(fr.visitCount, fr.admissionScore)
		}
	}

	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].combined > fused[j].combined
	})

	if limit > len(fused) {
		limit = len(fused)
	}

	results := make([]types.SearchResult, 0, limit)
	for i := 0; i < limit; i++ {
		fr := fused[i]
		results = append(results, types.SearchResult{
			PageID:         fr.pageID,
			URL:            fr.url,
			Rank:           i + 1,
			RelevanceScore: fr.combined,
			Title:          fr.title,
			Description:    fr.description,
			FaviconURL:     fr.faviconURL,
			Scores: types.ScoreBreakdown{
				VectorScore:  fr.vectorScore,
				KeywordScore: fr.keywordScore,
				AccessCount:  fr.visitCount,
				FinalScore:   fr.combined,
			},
		})
	}
	return results
}

// positionScore converts a keyword rank into a linear score from 1.0 for
// the first result down to 0.1 for the last. A single result scores 1.0.
func positionScore(index, total int) float64 {
	if total <= 1 {
		return 1.0
	}
	return 1.0 - (float64(index)/float64(total-1))*0.9
}

// frequencyBoost rewards frequently revisited pages, capped so popularity
// adds at most 0.3 to a score.
func frequencyBoost(visitCount int, admissionScore float64) float64 {
	visits := float64(visitCount) / 50.0
	if visits > 0.2 {
		visits = 0.2
	}
	return visits + admissionScore*0.1
}

// validateRequest ensures search request is valid
func (s *Searcher) validateRequest(req *SearchRequest) error {
	if req.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}

	if req.Limit <= 0 || req.Limit > MaxResults {
		req.Limit = MaxResults
	}

	if req.CacheTTL == 0 {
		req.CacheTTL = DefaultCacheTTL
	}

	return nil
}

// checkCache looks up a cached search response, returning nil on miss
func (s *Searcher) checkCache(req SearchRequest) *SearchResponse {
	hash := computeQueryHash(req)
	now := time.Now()

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)

	if !found {
		s.cacheMu.RUnlock()
		return nil
	}

	if now.After(entry.expiresAt) {
		s.cacheMu.RUnlock()

		s.cacheMu.Lock()
		s.cache.Remove(hash)
		s.cacheMu.Unlock()
		return nil
	}

	// Copy while still holding the read lock so the entry cannot change
	// mid-copy.
	response := copySearchResponse(entry.response)
	s.cacheMu.RUnlock()

	return response
}

// storeInCache saves a search response with its expiration time
func (s *Searcher) storeInCache(req SearchRequest, response *SearchResponse) {
	hash := computeQueryHash(req)
	entry := &cacheEntry{
		response:  copySearchResponse(response),
		expiresAt: time.Now().Add(req.CacheTTL),
	}

	s.cacheMu.Lock()
	s.cache.Add(hash, entry)
	s.cacheMu.Unlock()
}

// InvalidateCache drops every cached response. Called after indexing or
// eviction changes what a query should return.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// CachedResponses returns how many responses are currently cached.
func (s *Searcher) CachedResponses() int {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.cache.Len()
}

// copySearchResponse creates a deep copy of a SearchResponse
func copySearchResponse(src *SearchResponse) *SearchResponse {
	if src == nil {
		return nil
	}

	dst := &SearchResponse{
		Total:          src.Total,
		Fallback:       src.Fallback,
		Duration:       src.Duration,
		CacheHit:       src.CacheHit,
		KeywordResults: src.KeywordResults,
		VectorResults:  src.VectorResults,
		Results:        make([]types.SearchResult, len(src.Results)),
	}
	// SearchResult holds only value fields, so element copy is sufficient.
	copy(dst.Results, src.Results)

	return dst
}

// computeQueryHash computes a unique hash for a search request
func computeQueryHash(req SearchRequest) [32]byte {
	return sha256.Sum256([]byte(fmt.Sprintf("%s|%d", req.Query, req.Limit)))
}
