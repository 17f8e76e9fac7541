package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pagemind/pagemind/internal/eviction"
	"github.com/pagemind/pagemind/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrNoEmbedding is returned when a page exists but has not been embedded yet
	ErrNoEmbedding = errors.New("page has no embedding")
)

// DefaultHalvingThreshold is the visit count at which all counters are
// halved to keep long-lived stores from drifting toward stale favorites.
const DefaultHalvingThreshold = 1_000_000

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db               *sql.DB
	halvingThreshold int
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db, halvingThreshold: DefaultHalvingThreshold}, nil
}

// SetHalvingThreshold overrides the visit count that triggers global counter
// halving. Values below 1 are ignored.
func (s *SQLiteStorage) SetHalvingThreshold(n int) {
	if n >= 1 {
		s.halvingThreshold = n
	}
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

const pageColumns = `id, url, title, description, keywords, content, favicon_url,
       embedding, visit_count, first_visited, last_visited,
       access_frequency, recency_score, admission_score,
       created_at, indexed_at, last_updated_at`

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPage(row rowScanner) (*types.Page, error) {
	var page types.Page
	var embedding []byte
	var firstVisited, lastVisited, indexedAt sql.NullTime
	err := row.Scan(
		&page.ID, &page.URL, &page.Title, &page.Description, &page.Keywords,
		&page.Content, &page.FaviconURL, &embedding, &page.VisitCount,
		&firstVisited, &lastVisited, &page.AccessFrequency, &page.RecencyScore,
		&page.AdmissionScore, &page.CreatedAt, &indexedAt, &page.LastUpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(embedding) > 0 {
		page.Embedding = deserializeVector(embedding)
	}
	if firstVisited.Valid {
		page.FirstVisited = firstVisited.Time
	}
	if lastVisited.Valid {
		page.LastVisited = lastVisited.Time
	}
	if indexedAt.Valid {
		page.IndexedAt = indexedAt.Time
	}
	return &page, nil
}

// Page operations

// upsertPageWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) upsertPageWithQuerier(ctx context.Context, q querier, page *types.Page) error {
	query := `
		INSERT INTO pages (url, title, description, keywords, content, favicon_url, created_at, last_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			keywords = excluded.keywords,
			content = excluded.content,
			favicon_url = excluded.favicon_url,
			last_updated_at = excluded.last_updated_at
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		page.URL, page.Title, page.Description, page.Keywords,
		page.Content, page.FaviconURL, now, now).Scan(&page.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert page: %w", err)
	}

	page.LastUpdatedAt = now
	return nil
}

// UpsertPage inserts a page or refreshes its content by URL. Visit metrics
// and embeddings of an existing row are left untouched.
func (s *SQLiteStorage) UpsertPage(ctx context.Context, page *types.Page) error {
	return s.upsertPageWithQuerier(ctx, s.db, page)
}

func (s *SQLiteStorage) getPageWithQuerier(ctx context.Context, q querier, pageID int64) (*types.Page, error) {
	query := `SELECT ` + pageColumns + ` FROM pages WHERE id = ?`
	return scanPage(q.QueryRowContext(ctx, query, pageID))
}

func (s *SQLiteStorage) GetPage(ctx context.Context, pageID int64) (*types.Page, error) {
	return s.getPageWithQuerier(ctx, s.db, pageID)
}

func (s *SQLiteStorage) GetPageByURL(ctx context.Context, url string) (*types.Page, error) {
	query := `SELECT ` + pageColumns + ` FROM pages WHERE url = ?`
	return scanPage(s.db.QueryRowContext(ctx, query, url))
}

// FindOrCreateByURL returns the page for url, inserting a bare row when the
// URL has never been seen. Visit tracking uses this so a visit to an
// unindexed page still registers.
func (s *SQLiteStorage) FindOrCreateByURL(ctx context.Context, url string) (*types.Page, error) {
	page, err := s.GetPageByURL(ctx, url)
	if err == nil {
		return page, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	query := `
		INSERT INTO pages (url, created_at, last_updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET last_updated_at = excluded.last_updated_at
		RETURNING id
	`
	var pageID int64
	if err := s.db.QueryRowContext(ctx, query, url, now, now).Scan(&pageID); err != nil {
		return nil, fmt.Errorf("failed to create page for %s: %w", url, err)
	}
	return s.GetPage(ctx, pageID)
}

func (s *SQLiteStorage) DeletePage(ctx context.Context, pageID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pages WHERE id = ?`, pageID)
	return err
}

// DeletePages removes a batch of pages in one transaction and reports how
// many rows were actually deleted.
func (s *SQLiteStorage) DeletePages(ctx context.Context, pageIDs []int64) (int, error) {
	if len(pageIDs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	deleted := 0
	for _, id := range pageIDs {
		result, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE id = ?`, id)
		if err != nil {
			return 0, fmt.Errorf("failed to delete page %d: %w", id, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, err
		}
		deleted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return deleted, nil
}

func (s *SQLiteStorage) ListPages(ctx context.Context, limit, offset int) ([]*types.Page, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + pageColumns + ` FROM pages ORDER BY id LIMIT ? OFFSET ?`
	return s.queryPages(ctx, query, limit, offset)
}

func (s *SQLiteStorage) CountPages(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages`).Scan(&count)
	return count, err
}

func (s *SQLiteStorage) queryPages(ctx context.Context, query string, args ...interface{}) ([]*types.Page, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var pages []*types.Page
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

// Enrichment operations

// UpdateContent stores the enrichment output for a page. Empty title keeps
// the existing title.
func (s *SQLiteStorage) UpdateContent(ctx context.Context, pageID int64, title, description, keywords string) error {
	query := `
		UPDATE pages
		SET title = CASE WHEN ? != '' THEN ? ELSE title END,
		    description = ?,
		    keywords = ?,
		    last_updated_at = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, title, title, description, keywords, time.Now(), pageID)
	if err != nil {
		return fmt.Errorf("failed to update page content: %w", err)
	}
	return requireAffected(result)
}

// UpdateEmbedding stores the vector for a page and stamps indexed_at.
func (s *SQLiteStorage) UpdateEmbedding(ctx context.Context, pageID int64, vector []float32) error {
	query := `
		UPDATE pages
		SET embedding = ?, indexed_at = ?, last_updated_at = ?
		WHERE id = ?
	`
	now := time.Now()
	result, err := s.db.ExecContext(ctx, query, serializeVector(vector), now, now, pageID)
	if err != nil {
		return fmt.Errorf("failed to update embedding: %w", err)
	}
	return requireAffected(result)
}

func (s *SQLiteStorage) GetEmbedding(ctx context.Context, pageID int64) ([]float32, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT embedding FROM pages WHERE id = ?`, pageID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		return nil, ErrNoEmbedding
	}
	return deserializeVector(blob), nil
}

// AllIndexed returns every page that has an embedding, with the vector
// deserialized. Used to rebuild the in-memory vector index at startup.
func (s *SQLiteStorage) AllIndexed(ctx context.Context) ([]*types.Page, error) {
	query := `SELECT ` + pageColumns + ` FROM pages WHERE embedding IS NOT NULL ORDER BY id`
	return s.queryPages(ctx, query)
}

// Search operations

// SearchKeyword runs a BM25-ranked full-text query over titles,
// descriptions, keywords, content, and URLs. Results come back best first.
func (s *SQLiteStorage) SearchKeyword(ctx context.Context, query string, limit int) ([]*types.Page, error) {
	sanitized := sanitizeFTSQuery(query)
	if sanitized == "" {
		return nil, fmt.Errorf("empty search query")
	}
	if limit <= 0 {
		limit = 10
	}

	sqlQuery := `
		SELECT ` + prefixedPageColumns("p") + `
		FROM pages_fts
		INNER JOIN pages p ON pages_fts.rowid = p.id
		WHERE pages_fts MATCH ?
		ORDER BY bm25(pages_fts)
		LIMIT ?
	`
	return s.queryPages(ctx, sqlQuery, sanitized, limit)
}

// Visit tracking

// RecordVisit bumps a page's visit metrics inside one transaction: visit
// count, access frequency (visits per day since first visit), recency score,
// and admission score. When the new count crosses the halving threshold all
// visit counters in the store are halved and admission scores recomputed.
// Returns the updated page.
func (s *SQLiteStorage) RecordVisit(ctx context.Context, pageID int64) (*types.Page, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	page, err := s.getPageWithQuerier(ctx, tx, pageID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	firstVisited := page.FirstVisited
	if firstVisited.IsZero() {
		firstVisited = now
	}
	newCount := page.VisitCount + 1

	daysActive := int(now.Sub(firstVisited).Hours() / 24)
	if daysActive < 1 {
		daysActive = 1
	}
	accessFrequency := float64(newCount) / float64(daysActive)
	recencyScore := eviction.TimeDecay(0)
	admissionScore := eviction.AdmissionScore(newCount, now, firstVisited, now)

	query := `
		UPDATE pages
		SET visit_count = ?, first_visited = ?, last_visited = ?,
		    access_frequency = ?, recency_score = ?, admission_score = ?,
		    last_updated_at = ?
		WHERE id = ?
	`
	if _, err := tx.ExecContext(ctx, query,
		newCount, firstVisited, now, accessFrequency, recencyScore,
		admissionScore, now, pageID); err != nil {
		return nil, fmt.Errorf("failed to update visit metrics: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO visits (page_id, visited_at) VALUES (?, ?)`, pageID, now); err != nil {
		return nil, fmt.Errorf("failed to record visit: %w", err)
	}

	if newCount > s.halvingThreshold {
		if err := s.halveCountersWithQuerier(ctx, tx, now); err != nil {
			return nil, err
		}
	}

	updated, err := s.getPageWithQuerier(ctx, tx, pageID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return updated, nil
}

// halveCountersWithQuerier halves every visit count and access frequency,
// then recomputes admission scores from the shrunken counts. Runs inside
// the caller's transaction.
func (s *SQLiteStorage) halveCountersWithQuerier(ctx context.Context, q querier, now time.Time) error {
	result, err := q.ExecContext(ctx, `
		UPDATE pages
		SET visit_count = visit_count / 2,
		    access_frequency = access_frequency / 2
		WHERE visit_count > 0
	`)
	if err != nil {
		return fmt.Errorf("failed to halve visit counters: %w", err)
	}
	affected, _ := result.RowsAffected()

	rows, err := q.QueryContext(ctx, `
		SELECT id, visit_count, first_visited, last_visited
		FROM pages
		WHERE visit_count > 0
	`)
	if err != nil {
		return fmt.Errorf("failed to load pages for rescoring: %w", err)
	}

	type rescore struct {
		id    int64
		score float64
	}
	var rescores []rescore
	for rows.Next() {
		var id int64
		var count int
		var first, last sql.NullTime
		if err := rows.Scan(&id, &count, &first, &last); err != nil {
			_ = rows.Close()
			return err
		}
		rescores = append(rescores, rescore{
			id:    id,
			score: eviction.AdmissionScore(count, last.Time, first.Time, now),
		})
	}
	if err := rows.Close(); err != nil {
		return err
	}

	for _, r := range rescores {
		if _, err := q.ExecContext(ctx,
			`UPDATE pages SET admission_score = ? WHERE id = ?`, r.score, r.id); err != nil {
			return fmt.Errorf("failed to rescore page %d: %w", r.id, err)
		}
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO counter_events (event, affected_pages) VALUES ('halving', ?)`, affected)
	return err
}

func (s *SQLiteStorage) VisitsSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM visits WHERE visited_at >= ?`, since).Scan(&count)
	return count, err
}

// Eviction support

// PageStatistics returns the usage snapshot the eviction policies score.
func (s *SQLiteStorage) PageStatistics(ctx context.Context) ([]eviction.PageStats, error) {
	query := `
		SELECT id, url, title, visit_count, first_visited, last_visited,
		       admission_score, LENGTH(content)
		FROM pages
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query page statistics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stats []eviction.PageStats
	for rows.Next() {
		var st eviction.PageStats
		var first, last sql.NullTime
		var size sql.NullInt64
		if err := rows.Scan(&st.ID, &st.URL, &st.Title, &st.VisitCount,
			&first, &last, &st.AdmissionScore, &size); err != nil {
			return nil, err
		}
		if first.Valid {
			st.FirstVisited = first.Time
		}
		if last.Valid {
			st.LastVisited = last.Time
		}
		st.ContentSize = int(size.Int64)
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func (s *SQLiteStorage) MostVisited(ctx context.Context, limit int) ([]*types.Page, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT ` + pageColumns + ` FROM pages WHERE visit_count > 0 ORDER BY visit_count DESC, last_visited DESC LIMIT ?`
	return s.queryPages(ctx, query, limit)
}

// Status operations

func (s *SQLiteStorage) Stats(ctx context.Context) (*StoreStats, error) {
	stats := &StoreStats{}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages`).Scan(&stats.TotalPages); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pages WHERE embedding IS NOT NULL`).Scan(&stats.IndexedPages); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM visits`).Scan(&stats.TotalVisits); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM counter_events WHERE event = 'halving'`).Scan(&stats.HalvingEvents); err != nil {
		return nil, err
	}

	var oldest, newest sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT MIN(visited_at), MAX(visited_at) FROM visits`).Scan(&oldest, &newest)
	if err != nil {
		return nil, err
	}
	if oldest.Valid {
		stats.OldestVisit = oldest.Time
	}
	if newest.Valid {
		stats.NewestVisit = newest.Time
	}

	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pageCount); err == nil {
		if err := s.db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&pageSize); err == nil {
			stats.DBSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
		}
	}

	return stats, nil
}

// requireAffected converts a zero-row UPDATE into ErrNotFound.
func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
