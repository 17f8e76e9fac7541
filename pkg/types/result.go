package types

// SearchResult represents a single ranked search result returned to clients.
type SearchResult struct {
	// Identification
	PageID int64
	URL    string
	Rank   int // Position in result set (1-based)

	// Scoring
	RelevanceScore float64 // Weighted fusion of vector + keyword scores

	// Metadata
	Title       string
	Description string
	FaviconURL  string
	Scores      ScoreBreakdown
}

// ScoreBreakdown exposes the per-channel scores that produced the final
// relevance score. Kept separate from the result body so clients can ignore it.
type ScoreBreakdown struct {
	VectorScore  float64 `json:"vector_score"`
	KeywordScore float64 `json:"keyword_score"`
	AccessCount  int     `json:"access_count"`
	FinalScore   float64 `json:"final_score"`
}

// SearchResponse is the full response for one search request.
type SearchResponse struct {
	Query    string
	Results  []SearchResult
	Total    int
	Fallback bool // true when the vector channel used a stored-embedding fallback
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.PageID == 0 {
		return ErrInvalidPageID
	}

	if sr.Rank < 1 {
		return ErrInvalidRank
	}

	if sr.RelevanceScore < 0 || sr.RelevanceScore > 1 {
		return ErrInvalidRelevanceScore
	}

	if sr.URL == "" {
		return ErrEmptyURL
	}

	return nil
}
