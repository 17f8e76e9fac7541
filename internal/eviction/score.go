package eviction

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Default thresholds for the scored policy.
const (
	DefaultMaxAgeDays        = 90
	DefaultMinVisitThreshold = 1
)

// ScoredPolicy ranks pages by a multiplicative eviction score built from
// age, visit count, and admission score. Higher scores evict first.
type ScoredPolicy struct {
	MaxAgeDays        int
	MinVisitThreshold int
}

// NewScoredPolicy returns a ScoredPolicy with the default thresholds.
func NewScoredPolicy() *ScoredPolicy {
	return &ScoredPolicy{
		MaxAgeDays:        DefaultMaxAgeDays,
		MinVisitThreshold: DefaultMinVisitThreshold,
	}
}

func (p *ScoredPolicy) Candidates(pages []PageStats, count int) []int64 {
	if len(pages) == 0 || count <= 0 {
		return nil
	}

	now := time.Now()
	type scored struct {
		id    int64
		score float64
	}
	candidates := make([]scored, 0, len(pages))
	for _, page := range pages {
		candidates = append(candidates, scored{
			id:    page.ID,
			score: p.Score(page, now),
		})
	}

	// Highest eviction score first.
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

// Score computes the eviction score for one page at the given time.
// The base score of 1.0 is multiplied by three factors:
//
//   - age: recent visits halve the score, while pages past MaxAgeDays
//     grow it linearly with a month granularity
//   - visits: unvisited pages triple it, frequent pages damp it by
//     1/log10(visits+1) with a 0.1 floor
//   - admission: a missing admission score multiplies by 1.5, otherwise
//     by (2 - score) so well-admitted pages resist eviction
//
// The result is rounded to 4 decimal places. Higher means more evictable.
func (p *ScoredPolicy) Score(page PageStats, now time.Time) float64 {
	score := 1.0

	lastVisited := page.LastVisited
	if lastVisited.IsZero() {
		lastVisited = now
	}
	daysSince := int(now.Sub(lastVisited).Hours() / 24)
	switch {
	case daysSince > p.MaxAgeDays:
		score *= 2.0 + float64(daysSince-p.MaxAgeDays)/30.0
	case daysSince > 30:
		score *= 1.0 + float64(daysSince-30)/60.0
	default:
		score *= 0.5
	}

	switch {
	case page.VisitCount == 0:
		score *= 3.0
	case page.VisitCount < p.MinVisitThreshold:
		score *= 2.0
	case page.VisitCount < 5:
		score *= 1.2
	default:
		score *= math.Max(0.1, 1.0/math.Log10(float64(page.VisitCount)+1))
	}

	if page.AdmissionScore == 0.0 {
		score *= 1.5
	} else {
		score *= 2.0 - page.AdmissionScore
	}

	return math.Round(score*10000) / 10000
}

// Explain produces a human-readable account of why page id ranks for
// eviction. It reports "Page not found" when id is absent from pages.
func (p *ScoredPolicy) Explain(pages []PageStats, id int64) string {
	var page *PageStats
	for i := range pages {
		if pages[i].ID == id {
			page = &pages[i]
			break
		}
	}
	if page == nil {
		return "Page not found"
	}

	var reasons []string
	if page.VisitCount == 0 {
		reasons = append(reasons, "never visited")
	} else if page.VisitCount < p.MinVisitThreshold {
		reasons = append(reasons, fmt.Sprintf("low visit count (%d)", page.VisitCount))
	}

	if !page.LastVisited.IsZero() {
		daysOld := int(time.Since(page.LastVisited).Hours() / 24)
		if daysOld > p.MaxAgeDays {
			reasons = append(reasons, fmt.Sprintf("very old (%d days since last visit)", daysOld))
		} else if daysOld > 30 {
			reasons = append(reasons, fmt.Sprintf("moderately old (%d days since last visit)", daysOld))
		}
	}

	if page.AdmissionScore < 0.2 {
		reasons = append(reasons, fmt.Sprintf("low relevance score (%.2f)", page.AdmissionScore))
	}

	if len(reasons) == 0 {
		reasons = append(reasons, "lowest priority among candidates")
	}

	return "Eviction candidate: " + strings.Join(reasons, ", ")
}

// AdmissionScore combines visit frequency and recency into a single score
// in [0, 1]. Frequency is visits per active day capped at 5/day and weighted
// 0.6; recency is an exponential decay with a 24-hour half-life weighted
// 0.4. Pages with no visit history score 0. Rounded to 4 decimal places.
func AdmissionScore(visitCount int, lastVisited, firstVisited, now time.Time) float64 {
	if lastVisited.IsZero() || firstVisited.IsZero() {
		return 0.0
	}

	daysActive := int(now.Sub(firstVisited).Hours() / 24)
	if daysActive < 1 {
		daysActive = 1
	}
	frequency := math.Min(float64(visitCount)/float64(daysActive)/5.0, 1.0)

	hoursSince := now.Sub(lastVisited).Hours()
	recency := TimeDecay(hoursSince)

	return math.Round((frequency*0.6+recency*0.4)*10000) / 10000
}

// TimeDecay is the exponential recency decay with a 24-hour half-life,
// floored at 0.01. One hour retains 97% of the score, a day retains 50%,
// a week retains under 1%.
func TimeDecay(hoursSinceAccess float64) float64 {
	return math.Max(math.Pow(0.5, hoursSinceAccess/24.0), 0.01)
}

// NormalizeScores rescales scores into [0, 1]. Equal inputs all map to 0.5.
func NormalizeScores(scores []float64) []float64 {
	if len(scores) == 0 {
		return scores
	}
	minScore, maxScore := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < minScore {
			minScore = s
		}
		if s > maxScore {
			maxScore = s
		}
	}
	normalized := make([]float64, len(scores))
	if maxScore == minScore {
		for i := range normalized {
			normalized[i] = 0.5
		}
		return normalized
	}
	span := maxScore - minScore
	for i, s := range scores {
		normalized[i] = (s - minScore) / span
	}
	return normalized
}
