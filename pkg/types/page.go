package types

import (
	"strings"
	"time"
)

// Page represents a browsed web page tracked by the service, including the
// usage metrics that drive ranking boosts and eviction decisions.
type Page struct {
	ID          int64
	URL         string
	Title       string
	Description string
	Keywords    string
	Content     string
	FaviconURL  string

	// Embedding is the page's vector representation. Nil until the
	// asynchronous enrichment pass has run.
	Embedding []float32

	// Usage metrics
	VisitCount      int
	FirstVisited    time.Time
	LastVisited     time.Time
	AccessFrequency float64 // visits per day since first visit
	RecencyScore    float64 // exponential time decay, 1.0 = just visited
	AdmissionScore  float64 // combined frequency/recency score in [0, 1]

	CreatedAt     time.Time
	IndexedAt     time.Time // zero until enrichment completes
	LastUpdatedAt time.Time
}

// PageCreate carries the caller-supplied fields for indexing a page.
// Description and keywords are produced later by enrichment.
type PageCreate struct {
	URL        string
	Title      string
	Content    string
	FaviconURL string
}

// Validate checks that the page creation request is well formed.
func (pc *PageCreate) Validate() error {
	if strings.TrimSpace(pc.URL) == "" {
		return ErrEmptyURL
	}
	if !strings.HasPrefix(pc.URL, "http://") && !strings.HasPrefix(pc.URL, "https://") {
		return ErrInvalidURL
	}
	if strings.TrimSpace(pc.Title) == "" {
		return ErrEmptyTitle
	}
	return nil
}

// Indexed reports whether the page has completed enrichment.
func (p *Page) Indexed() bool {
	return !p.IndexedAt.IsZero()
}
