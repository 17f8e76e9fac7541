// Package embedcache caches query embeddings so repeated searches skip the
// embedding provider entirely.
//
// The cache combines three mechanisms: LRU eviction bounded by capacity,
// per-entry TTL expiry (7 days by default), and periodic disk persistence.
// Queries are normalized with lowercasing and whitespace trimming, so
// "Rust Tutorial" and "  rust tutorial " share one entry.
//
//	cache := embedcache.New("query_cache.json", 1000, 7*24*time.Hour)
//	if n, err := cache.Load(); err == nil {
//	    log.Printf("restored %d cached embeddings", n)
//	}
//
//	if vec, ok := cache.Get(query); ok {
//	    return vec
//	}
//	vec, err := provider.GenerateEmbedding(ctx, query)
//	if err == nil {
//	    cache.Put(query, vec)
//	}
//
// Every 20th mutating operation snapshots the cache and rewrites the file
// through a temp-file rename, so a crash mid-write never corrupts the
// previous snapshot. Call ForceSave during shutdown to capture the tail of
// the operation window.
package embedcache
