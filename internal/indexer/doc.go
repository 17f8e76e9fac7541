// Package indexer coordinates the ingestion side of the service: storing
// pages, tracking visits, maintaining the admission working set and the
// in-memory vector index, and running eviction.
//
// # Indexing
//
// IndexPage stores the page synchronously and enriches it in the
// background, so callers never wait on the embedding provider:
//
//	page, err := idx.IndexPage(ctx, types.PageCreate{
//	    URL:     "https://go.dev/blog/slices",
//	    Title:   "Go Slices: usage and internals",
//	    Content: bodyText,
//	})
//	// page.ID is set; the embedding lands a moment later.
//
// A failed enrichment is logged and leaves the page searchable by keyword
// only until the next reindex pass picks it up.
//
// # Visit Tracking
//
// TrackVisit resolves the URL (creating a bare page if needed), updates
// visit metrics in storage, touches the ARC admission working set, and
// refreshes the page's vector-index metadata snapshot. Roughly one visit
// in SweepRate kicks off a background eviction sweep; overlapping sweeps
// are skipped via a non-blocking lock rather than queued.
//
// # Eviction
//
// PreviewEviction ranks removal candidates with scores and reasons without
// touching anything; RunEviction deletes them from storage, the vector
// index, and the working set:
//
//	candidates, _ := idx.PreviewEviction(ctx, 20)
//	result, _ := idx.RunEviction(ctx, 20)
//
// # Startup
//
// LoadVectors rebuilds the vector index from every embedded page in
// storage, bounded by the configured worker count. ReindexStale re-embeds
// pages whose vectors are older than the staleness horizon or whose
// content changed after embedding.
package indexer
