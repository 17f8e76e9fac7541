// Package types provides shared type definitions for the PageMind MCP server.
//
// This package defines domain types used across multiple components of
// PageMind, including pages, usage metrics, and search results.
//
// # Core Types
//
// Page represents a browsed web page together with the usage metrics that
// drive ranking and eviction:
//
//	page := &types.Page{
//	    URL:        "https://go.dev/blog/slices",
//	    Title:      "Go Slices: usage and internals",
//	    VisitCount: 12,
//	}
//
// PageCreate carries the fields a client supplies when indexing a page;
// descriptions, keywords, and embeddings are filled in asynchronously:
//
//	req := &types.PageCreate{
//	    URL:     "https://go.dev/blog/slices",
//	    Title:   "Go Slices: usage and internals",
//	    Content: pageText,
//	}
//	if err := req.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Search Results
//
// SearchResult combines page metadata with relevance scoring. The
// ScoreBreakdown field exposes the per-channel scores behind the final
// relevance value:
//
//	result := &types.SearchResult{
//	    PageID:         123,
//	    Rank:           1,
//	    RelevanceScore: 0.92,
//	    URL:            "https://go.dev/blog/slices",
//	}
//
// Relevance scores are normalized to [0, 1] range, with higher values
// indicating better matches.
package types
