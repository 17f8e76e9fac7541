package vectorindex

// applyCutoff trims the low-relevance tail of a descending-sorted match
// list. Two detectors propose cutoff positions: a score drop detector and a
// two-cluster analysis of the score distribution. The smaller (more
// conservative) proposal wins, with a floor of one result when the top
// score is strong enough to be worth returning on its own.
func applyCutoff(matches []Match, dropThreshold float64) []Match {
	if len(matches) <= 3 {
		return matches
	}

	scores := make([]float64, len(matches))
	for i, m := range matches {
		scores[i] = m.Similarity
	}

	cutoff := detectDrop(scores, dropThreshold)
	clusterIdx := clusterCutoff(scores, 2)
	if clusterIdx > 0 && clusterIdx < cutoff {
		cutoff = clusterIdx
	}

	if cutoff == 0 && scores[0] > 0.3 {
		cutoff = 1
	}
	if cutoff > 0 {
		return matches[:cutoff]
	}
	return matches[:1]
}

// detectDrop returns the index of the first significant score drop, either
// an absolute drop of at least threshold or a relative drop of 30% when the
// preceding score is large enough to make the ratio meaningful. Returns
// len(scores) when no drop is found.
func detectDrop(scores []float64, threshold float64) int {
	if len(scores) <= 2 {
		return len(scores)
	}
	for i := 1; i < len(scores); i++ {
		drop := scores[i-1] - scores[i]
		if drop >= threshold {
			return i
		}
		if scores[i-1] > 0.1 && drop/scores[i-1] >= 0.3 {
			return i
		}
	}
	return len(scores)
}

// clusterCutoff splits the scores into two clusters with 1-D k-means and
// returns the length of the contiguous high-relevance run at the top of the
// list. Returns 0 when the run is shorter than minClusterSize or the input
// is too small to cluster.
func clusterCutoff(scores []float64, minClusterSize int) int {
	if len(scores) < 4 {
		return 0
	}

	labels, ok := twoMeans(scores)
	if !ok {
		return 0
	}

	cutoff := 0
	for _, label := range labels {
		if label != highCluster {
			break
		}
		cutoff++
	}
	if cutoff >= minClusterSize {
		return cutoff
	}
	return 0
}

const (
	highCluster = 0
	lowCluster  = 1
)

// twoMeans runs Lloyd's algorithm with k=2 on one-dimensional data,
// seeding the centroids at the extremes. Labels are highCluster for points
// assigned to the larger centroid. Returns ok=false when the scores are
// degenerate (all equal), where no split exists.
func twoMeans(scores []float64) ([]int, bool) {
	minV, maxV := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < minV {
			minV = s
		}
		if s > maxV {
			maxV = s
		}
	}
	if minV == maxV {
		return nil, false
	}

	high, low := maxV, minV
	labels := make([]int, len(scores))
	for iter := 0; iter < 100; iter++ {
		changed := false
		for i, s := range scores {
			label := lowCluster
			if diff(s, high) <= diff(s, low) {
				label = highCluster
			}
			if labels[i] != label {
				labels[i] = label
				changed = true
			}
		}

		var highSum, lowSum float64
		var highN, lowN int
		for i, s := range scores {
			if labels[i] == highCluster {
				highSum += s
				highN++
			} else {
				lowSum += s
				lowN++
			}
		}
		if highN == 0 || lowN == 0 {
			return nil, false
		}
		high = highSum / float64(highN)
		low = lowSum / float64(lowN)

		if !changed && iter > 0 {
			break
		}
	}
	return labels, true
}

func diff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
