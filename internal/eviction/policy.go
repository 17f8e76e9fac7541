package eviction

import (
	"sort"
	"time"
)

// PageStats carries the per-page usage metrics a policy scores against.
// ContentSize is the stored content length in bytes; AdmissionScore is the
// combined frequency/recency score maintained by the visit tracker.
type PageStats struct {
	ID             int64
	URL            string
	Title          string
	VisitCount     int
	FirstVisited   time.Time
	LastVisited    time.Time
	AdmissionScore float64
	ContentSize    int
}

// Policy selects pages to evict from a snapshot of page statistics.
// Implementations return up to count page IDs ordered by eviction priority,
// most evictable first.
type Policy interface {
	Candidates(pages []PageStats, count int) []int64
}

// RecencyPolicy evicts the least recently visited pages first. Pages that
// were never visited sort ahead of everything else.
type RecencyPolicy struct{}

func (RecencyPolicy) Candidates(pages []PageStats, count int) []int64 {
	if len(pages) == 0 || count <= 0 {
		return nil
	}
	sorted := make([]PageStats, len(pages))
	copy(sorted, pages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LastVisited.Before(sorted[j].LastVisited)
	})
	return collectIDs(sorted, count)
}

// FrequencyPolicy evicts the least visited pages first.
type FrequencyPolicy struct{}

func (FrequencyPolicy) Candidates(pages []PageStats, count int) []int64 {
	if len(pages) == 0 || count <= 0 {
		return nil
	}
	sorted := make([]PageStats, len(pages))
	copy(sorted, pages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].VisitCount < sorted[j].VisitCount
	})
	return collectIDs(sorted, count)
}

// HybridPolicy combines recency, frequency, content size, and admission
// score into a weighted eviction score. Weights are normalized to sum to 1.
type HybridPolicy struct {
	recencyWeight   float64
	frequencyWeight float64
	sizeWeight      float64
	relevanceWeight float64
}

// NewHybridPolicy builds a hybrid policy from raw weights. The weights are
// normalized against their sum; if all weights are zero the defaults
// (0.4, 0.3, 0.2, 0.1) apply.
func NewHybridPolicy(recency, frequency, size, relevance float64) *HybridPolicy {
	total := recency + frequency + size + relevance
	if total == 0 {
		recency, frequency, size, relevance = 0.4, 0.3, 0.2, 0.1
		total = 1.0
	}
	return &HybridPolicy{
		recencyWeight:   recency / total,
		frequencyWeight: frequency / total,
		sizeWeight:      size / total,
		relevanceWeight: relevance / total,
	}
}

func (p *HybridPolicy) Candidates(pages []PageStats, count int) []int64 {
	if len(pages) == 0 || count <= 0 {
		return nil
	}

	now := time.Now()
	maxVisits := 1
	maxSize := 1
	for _, page := range pages {
		if page.VisitCount > maxVisits {
			maxVisits = page.VisitCount
		}
		if page.ContentSize > maxSize {
			maxSize = page.ContentSize
		}
	}

	type scored struct {
		id    int64
		score float64
	}
	candidates := make([]scored, 0, len(pages))
	for _, page := range pages {
		recency := 1.0
		if !page.LastVisited.IsZero() {
			daysOld := now.Sub(page.LastVisited).Hours() / 24
			recency = min(daysOld/30.0, 1.0)
		}
		frequency := 1.0 - float64(page.VisitCount)/float64(maxVisits)
		size := float64(page.ContentSize) / float64(maxSize)
		relevance := 1.0 - page.AdmissionScore

		combined := recency*p.recencyWeight +
			frequency*p.frequencyWeight +
			size*p.sizeWeight +
			relevance*p.relevanceWeight
		candidates = append(candidates, scored{id: page.ID, score: combined})
	}

	// Highest combined score first.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if count > len(candidates) {
		count = len(candidates)
	}
	ids := make([]int64, count)
	for i := 0; i < count; i++ {
		ids[i] = candidates[i].id
	}
	return ids
}

func collectIDs(sorted []PageStats, count int) []int64 {
	if count > len(sorted) {
		count = len(sorted)
	}
	ids := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		ids = append(ids, sorted[i].ID)
	}
	return ids
}
