// Package vectorindex provides an in-memory cosine similarity index over
// page embeddings.
//
// Vectors are L2-normalized at insert time, so similarity search is a dot
// product scan. Each vector carries a metadata snapshot of its page, which
// lets the search path rank and return results without touching storage:
//
//	ix := vectorindex.New(1536)
//	ix.Add(embedding, vectorindex.Snapshot{PageID: 42, URL: url, Title: title})
//
//	matches, err := ix.Search(queryVec, vectorindex.SearchOptions{
//	    Limit:         10,
//	    MinSimilarity: 0.1,
//	    EnableCutoff:  true,
//	})
//
// # Score cutoff filtering
//
// With EnableCutoff set, result lists longer than 3 are trimmed where
// relevance falls off. Two detectors propose a boundary: one looks for a
// significant score drop (absolute or 30% relative), the other splits the
// score distribution into two clusters and keeps the contiguous
// high-relevance run at the top. The smaller proposal wins, so a tight
// cluster of strong matches is preserved while a long tail of weak ones is
// cut. A lone strong match (top score above 0.3) is always kept.
package vectorindex
