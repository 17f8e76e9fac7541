package vectorindex

import (
	"errors"
	"math"
	"testing"
)

// unitVec builds a 2-d unit vector whose cosine similarity to [1, 0]
// equals cos.
func unitVec(cos float64) []float32 {
	return []float32{float32(cos), float32(math.Sqrt(1 - cos*cos))}
}

func TestAddDimensionMismatch(t *testing.T) {
	ix := New(3)
	err := ix.Add([]float32{1, 2}, Snapshot{PageID: 1})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Add short vector: err = %v, want ErrDimensionMismatch", err)
	}
}

func TestSearchDimensionMismatch(t *testing.T) {
	ix := New(3)
	_, err := ix.Search([]float32{1, 2}, SearchOptions{})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Search short query: err = %v, want ErrDimensionMismatch", err)
	}
}

func TestVectorsNormalizedOnInsert(t *testing.T) {
	ix := New(2)
	if err := ix.Add([]float32{3, 4}, Snapshot{PageID: 1}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	stored, ok := ix.Vector(1)
	if !ok {
		t.Fatal("Vector(1) missing")
	}
	norm := math.Sqrt(float64(stored[0])*float64(stored[0]) + float64(stored[1])*float64(stored[1]))
	if math.Abs(norm-1.0) > 1e-6 {
		t.Errorf("stored norm = %v, want 1.0", norm)
	}

	// The same unnormalized vector as a query matches itself perfectly.
	matches, err := ix.Search([]float32{3, 4}, SearchOptions{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 || math.Abs(matches[0].Similarity-1.0) > 1e-6 {
		t.Errorf("self-similarity = %+v, want 1.0", matches)
	}
}

func TestSearchRanking(t *testing.T) {
	ix := New(2)
	pages := map[int64]float64{1: 0.95, 2: 0.5, 3: 0.8}
	for id, cos := range pages {
		if err := ix.Add(unitVec(cos), Snapshot{PageID: id}); err != nil {
			t.Fatalf("Add(%d): %v", id, err)
		}
	}

	matches, err := ix.Search([]float32{1, 0}, SearchOptions{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("got %d matches, want 3", len(matches))
	}
	want := []int64{1, 3, 2}
	for i, id := range want {
		if matches[i].PageID != id {
			t.Errorf("matches[%d].PageID = %d, want %d", i, matches[i].PageID, id)
		}
	}
}

func TestSearchMinSimilarity(t *testing.T) {
	ix := New(2)
	ix.Add(unitVec(0.9), Snapshot{PageID: 1})
	ix.Add(unitVec(0.05), Snapshot{PageID: 2})

	matches, err := ix.Search([]float32{1, 0}, SearchOptions{MinSimilarity: 0.1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 || matches[0].PageID != 1 {
		t.Errorf("matches = %+v, want only page 1", matches)
	}
}

func TestSearchLimit(t *testing.T) {
	ix := New(2)
	for i := int64(1); i <= 5; i++ {
		ix.Add(unitVec(0.5+float64(i)*0.05), Snapshot{PageID: i})
	}

	matches, err := ix.Search([]float32{1, 0}, SearchOptions{Limit: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("got %d matches, want 2", len(matches))
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	ix := New(2)
	matches, err := ix.Search([]float32{1, 0}, SearchOptions{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if matches != nil {
		t.Errorf("matches = %v, want nil", matches)
	}
}

// TestSearchScoreCutoff reproduces the canonical relevance cliff: three
// strong matches followed by two weak ones. Both cutoff detectors agree on
// keeping exactly the strong three.
func TestSearchScoreCutoff(t *testing.T) {
	ix := New(2)
	cosines := map[int64]float64{1: 0.91, 2: 0.88, 3: 0.85, 4: 0.40, 5: 0.38}
	for id, cos := range cosines {
		if err := ix.Add(unitVec(cos), Snapshot{PageID: id}); err != nil {
			t.Fatalf("Add(%d): %v", id, err)
		}
	}

	matches, err := ix.Search([]float32{1, 0}, SearchOptions{
		Limit:        10,
		EnableCutoff: true,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("got %d matches after cutoff, want 3: %+v", len(matches), matches)
	}
	for _, m := range matches {
		if m.Similarity < 0.8 {
			t.Errorf("weak match %+v survived the cutoff", m)
		}
	}
}

func TestSearchCutoffSkippedForSmallSets(t *testing.T) {
	ix := New(2)
	for id, cos := range map[int64]float64{1: 0.9, 2: 0.4, 3: 0.2} {
		ix.Add(unitVec(cos), Snapshot{PageID: id})
	}

	matches, err := ix.Search([]float32{1, 0}, SearchOptions{EnableCutoff: true})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	// Three or fewer results are returned as-is, cliff or not.
	if len(matches) != 3 {
		t.Errorf("got %d matches, want all 3", len(matches))
	}
}

func TestUpdateMetadata(t *testing.T) {
	ix := New(2)
	ix.Add(unitVec(0.9), Snapshot{PageID: 1, VisitCount: 1})

	if !ix.UpdateMetadata(Snapshot{PageID: 1, VisitCount: 7}) {
		t.Fatal("UpdateMetadata returned false for indexed page")
	}
	snap, ok := ix.Metadata(1)
	if !ok || snap.VisitCount != 7 {
		t.Errorf("Metadata(1) = %+v, want VisitCount 7", snap)
	}

	if ix.UpdateMetadata(Snapshot{PageID: 99}) {
		t.Error("UpdateMetadata returned true for unknown page")
	}
}

func TestRemoveAndClear(t *testing.T) {
	ix := New(2)
	ix.Add(unitVec(0.9), Snapshot{PageID: 1})
	ix.Add(unitVec(0.8), Snapshot{PageID: 2})

	ix.Remove(1)
	if _, ok := ix.Vector(1); ok {
		t.Error("vector 1 still present after Remove")
	}
	if ix.Len() != 1 {
		t.Errorf("Len() = %d, want 1", ix.Len())
	}

	ix.Clear()
	if ix.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", ix.Len())
	}
}

func TestStats(t *testing.T) {
	ix := New(2)
	empty := ix.Stats()
	if empty.TotalVectors != 0 || empty.AvgNorm != 0 {
		t.Errorf("empty Stats = %+v", empty)
	}

	ix.Add([]float32{3, 4}, Snapshot{PageID: 1})
	stats := ix.Stats()
	if stats.TotalVectors != 1 {
		t.Errorf("TotalVectors = %d, want 1", stats.TotalVectors)
	}
	if math.Abs(stats.AvgNorm-1.0) > 1e-6 {
		t.Errorf("AvgNorm = %v, want 1.0 for normalized vectors", stats.AvgNorm)
	}
}
