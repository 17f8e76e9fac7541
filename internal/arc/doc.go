// Package arc implements an adaptive replacement cache (ARC).
//
// ARC balances recency and frequency by keeping two resident lists, T1 for
// entries seen once and T2 for entries seen repeatedly, alongside two ghost
// lists, B1 and B2, that remember recently evicted keys without their values.
// A miss on a key remembered in B1 means the cache evicted something it
// should have kept for recency, so the adaptive target p grows; a miss on a
// key in B2 means frequency deserved more room, and p shrinks. Over time the
// split between T1 and T2 converges to the workload's actual mix.
//
// The cache is generic over key and value types:
//
//	cache := arc.New[string, int64](1000)
//	cache.Put("https://go.dev", 42)
//	if id, ok := cache.Get("https://go.dev"); ok {
//	    // second access promotes the entry to the frequency list
//	}
//
// EvictionCandidates exposes the cache's internal ordering so callers can
// preview which resident entries would be discarded first:
//
//	for _, cand := range cache.EvictionCandidates(10) {
//	    fmt.Println(cand.Key, cand.Score)
//	}
//
// The resident size never exceeds the configured capacity, and the ghost
// lists together never track more than capacity additional keys.
package arc
