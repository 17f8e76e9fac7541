// Package searcher fuses keyword and vector relevance signals into a single
// ranked result list.
//
// A search fans out into two concurrent lookups: a full-text query against
// the page store (BM25 rank order) and a cosine-similarity scan of the
// in-memory vector index. Keyword ranks are converted to a linear score from
// 1.0 down to 0.1; the two signals are merged by page URL with fixed weights
// (0.7 vector, 0.3 keyword); results already within 0.05 of the best
// combined score receive a bounded frequency boost so revisited pages win
// ties without burying stronger topical matches.
//
// # Basic Usage
//
//	s := searcher.NewSearcher(store, emb, queryCache, index)
//
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    Query:    "garbage collector tuning",
//	    UseCache: true,
//	})
//	for _, r := range resp.Results {
//	    fmt.Printf("%d. %s (%.3f)\n", r.Rank, r.URL, r.RelevanceScore)
//	}
//
// # Degraded Modes
//
// The vector side resolves its query embedding through a three-step chain:
// embedding cache, then the provider, then a surrogate vector borrowed from
// the best keyword match's stored embedding. Responses produced through the
// surrogate path set Fallback. Only when both the keyword and vector signals
// fail does Search return an empty response, and even then without an error.
//
// # Response Cache
//
// Responses can be cached in an LRU keyed by query hash with a per-request
// TTL. Indexing and eviction paths call InvalidateCache to drop stale
// responses.
package searcher
