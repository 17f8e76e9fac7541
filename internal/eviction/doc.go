// Package eviction provides scoring and candidate selection for pruning
// stored pages when the collection grows past its configured bound.
//
// The Policy interface abstracts candidate selection over a snapshot of
// per-page usage statistics:
//
//	policy := eviction.NewScoredPolicy()
//	ids := policy.Candidates(pages, 50)
//
// Four policies are available. ScoredPolicy multiplies age, visit count,
// and admission score factors into an eviction score; RecencyPolicy and
// FrequencyPolicy are plain LRU and LFU orderings; HybridPolicy blends
// recency, frequency, content size, and admission score with configurable
// weights.
//
// The package also owns the admission score used throughout the service:
//
//	score := eviction.AdmissionScore(visits, lastVisited, firstVisited, time.Now())
//
// which weights visit frequency at 0.6 and an exponential 24-hour-half-life
// recency decay at 0.4. The visit tracker recomputes it on every visit and
// search ranking uses it for frequency boosts.
package eviction
