package storage

import (
	"context"
	"time"

	"github.com/pagemind/pagemind/internal/eviction"
	"github.com/pagemind/pagemind/pkg/types"
)

// Storage defines the interface for persisting and querying tracked pages
type Storage interface {
	// Page operations
	UpsertPage(ctx context.Context, page *types.Page) error
	GetPage(ctx context.Context, pageID int64) (*types.Page, error)
	GetPageByURL(ctx context.Context, url string) (*types.Page, error)
	FindOrCreateByURL(ctx context.Context, url string) (*types.Page, error)
	DeletePage(ctx context.Context, pageID int64) error
	ListPages(ctx context.Context, limit, offset int) ([]*types.Page, error)
	CountPages(ctx context.Context) (int, error)

	// Enrichment operations
	UpdateContent(ctx context.Context, pageID int64, title, description, keywords string) error
	UpdateEmbedding(ctx context.Context, pageID int64, vector []float32) error
	GetEmbedding(ctx context.Context, pageID int64) ([]float32, error)
	AllIndexed(ctx context.Context) ([]*types.Page, error)

	// Search operations
	SearchKeyword(ctx context.Context, query string, limit int) ([]*types.Page, error)

	// Visit tracking
	RecordVisit(ctx context.Context, pageID int64) (*types.Page, error)
	VisitsSince(ctx context.Context, since time.Time) (int, error)

	// Eviction support
	PageStatistics(ctx context.Context) ([]eviction.PageStats, error)
	DeletePages(ctx context.Context, pageIDs []int64) (deletedCount int, err error)
	MostVisited(ctx context.Context, limit int) ([]*types.Page, error)

	// Status operations
	Stats(ctx context.Context) (*StoreStats, error)

	// Database operations
	Close() error
}

// StoreStats contains statistics about the page store
type StoreStats struct {
	TotalPages    int       `json:"total_pages"`
	IndexedPages  int       `json:"indexed_pages"`
	TotalVisits   int       `json:"total_visits"`
	DBSizeMB      float64   `json:"db_size_mb"`
	OldestVisit   time.Time `json:"oldest_visit,omitempty"`
	NewestVisit   time.Time `json:"newest_visit,omitempty"`
	HalvingEvents int       `json:"halving_events"`
}
