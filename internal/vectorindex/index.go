package vectorindex

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

// DefaultDimension matches the embedding size of the default provider.
const DefaultDimension = 1536

// ErrDimensionMismatch is returned when a vector's length does not match
// the index dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Snapshot is the page metadata stored alongside each vector so search
// results can be ranked without a storage round trip.
type Snapshot struct {
	PageID         int64
	URL            string
	Title          string
	Description    string
	FaviconURL     string
	VisitCount     int
	AdmissionScore float64
}

// Match pairs a page snapshot with its similarity to the query.
type Match struct {
	Snapshot
	Similarity float64
}

// SearchOptions controls one similarity search.
type SearchOptions struct {
	// Limit caps the number of results. Zero or negative means no cap.
	Limit int
	// MinSimilarity filters out weaker matches before ranking.
	MinSimilarity float64
	// EnableCutoff turns on drop and cluster based score filtering. The
	// filter only engages when more than 3 results survive MinSimilarity.
	EnableCutoff bool
	// DropThreshold is the absolute score drop treated as a relevance
	// boundary. Zero uses DefaultDropThreshold.
	DropThreshold float64
}

// DefaultDropThreshold is the absolute similarity drop that separates
// relevant results from the long tail.
const DefaultDropThreshold = 0.15

// Index is an in-memory vector index over page embeddings. Vectors are
// L2-normalized on insert so a dot product against a normalized query gives
// cosine similarity. Safe for concurrent use.
type Index struct {
	mu        sync.RWMutex
	dimension int
	vectors   map[int64][]float32
	meta      map[int64]Snapshot
}

// Stats summarizes the index contents.
type Stats struct {
	TotalVectors  int     `json:"total_vectors"`
	Dimension     int     `json:"dimension"`
	AvgNorm       float64 `json:"avg_norm"`
	MemoryUsageMB float64 `json:"memory_usage_mb"`
}

// New creates an index for vectors of the given dimension. Non-positive
// dimensions fall back to DefaultDimension.
func New(dimension int) *Index {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Index{
		dimension: dimension,
		vectors:   make(map[int64][]float32),
		meta:      make(map[int64]Snapshot),
	}
}

// Dimension returns the expected vector length.
func (ix *Index) Dimension() int {
	return ix.dimension
}

// Add inserts or replaces the vector and metadata for snap.PageID. The
// vector is copied and L2-normalized; the caller's slice is not modified.
func (ix *Index) Add(vector []float32, snap Snapshot) error {
	if len(vector) != ix.dimension {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), ix.dimension)
	}
	normalized := normalize(vector)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.vectors[snap.PageID] = normalized
	ix.meta[snap.PageID] = snap
	return nil
}

// Remove deletes the vector and metadata for pageID.
func (ix *Index) Remove(pageID int64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.vectors, pageID)
	delete(ix.meta, pageID)
}

// UpdateMetadata refreshes the stored snapshot for an indexed page without
// touching its vector. Returns false if the page is not indexed.
func (ix *Index) UpdateMetadata(snap Snapshot) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.vectors[snap.PageID]; !ok {
		return false
	}
	ix.meta[snap.PageID] = snap
	return true
}

// Vector returns a copy of the normalized vector for pageID.
func (ix *Index) Vector(pageID int64) ([]float32, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	v, ok := ix.vectors[pageID]
	if !ok {
		return nil, false
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, true
}

// Metadata returns the snapshot stored for pageID.
func (ix *Index) Metadata(pageID int64) (Snapshot, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	snap, ok := ix.meta[pageID]
	return snap, ok
}

// Len returns the number of indexed vectors.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

// PageIDs returns all indexed page IDs in unspecified order.
func (ix *Index) PageIDs() []int64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	ids := make([]int64, 0, len(ix.vectors))
	for id := range ix.vectors {
		ids = append(ids, id)
	}
	return ids
}

// Clear removes all vectors and metadata.
func (ix *Index) Clear() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	clear(ix.vectors)
	clear(ix.meta)
}

// Search ranks all indexed pages by cosine similarity to query. Results
// below MinSimilarity are dropped, the optional score cutoff trims the long
// tail, and Limit caps the final slice.
func (ix *Index) Search(query []float32, opts SearchOptions) ([]Match, error) {
	if len(query) != ix.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(query), ix.dimension)
	}

	ix.mu.RLock()
	if len(ix.vectors) == 0 {
		ix.mu.RUnlock()
		return nil, nil
	}

	normalized := normalize(query)
	matches := make([]Match, 0, len(ix.vectors))
	for pageID, vector := range ix.vectors {
		similarity := dot(normalized, vector)
		if similarity >= opts.MinSimilarity {
			matches = append(matches, Match{
				Snapshot:   ix.meta[pageID],
				Similarity: similarity,
			})
		}
	}
	ix.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if opts.EnableCutoff && len(matches) > 3 {
		threshold := opts.DropThreshold
		if threshold == 0 {
			threshold = DefaultDropThreshold
		}
		matches = applyCutoff(matches, threshold)
	}

	if opts.Limit > 0 && len(matches) > opts.Limit {
		matches = matches[:opts.Limit]
	}
	return matches, nil
}

// Stats reports index size and an estimate of vector memory use.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	stats := Stats{
		TotalVectors: len(ix.vectors),
		Dimension:    ix.dimension,
	}
	if len(ix.vectors) == 0 {
		return stats
	}

	var normSum float64
	for _, v := range ix.vectors {
		var sq float64
		for _, x := range v {
			sq += float64(x) * float64(x)
		}
		normSum += math.Sqrt(sq)
	}
	stats.AvgNorm = normSum / float64(len(ix.vectors))

	bytes := len(ix.vectors) * ix.dimension * 4
	stats.MemoryUsageMB = math.Round(float64(bytes)/(1024*1024)*100) / 100
	return stats
}

// normalize returns an L2-normalized copy of v. Zero vectors are returned
// as an unnormalized copy.
func normalize(v []float32) []float32 {
	var sq float64
	for _, x := range v {
		sq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sq)
	out := make([]float32, len(v))
	if norm == 0 {
		copy(out, v)
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
