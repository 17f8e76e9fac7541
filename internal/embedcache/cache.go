package embedcache

import (
	"container/list"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Defaults for the query embedding cache.
const (
	DefaultCapacity = 1000
	DefaultTTL      = 7 * 24 * time.Hour

	// saveInterval is the number of mutating operations between automatic
	// persists to disk.
	saveInterval = 20
)

// entry is a cached query embedding with access bookkeeping.
type entry struct {
	query        string
	embedding    []float32
	timestamp    time.Time
	accessCount  int
	lastAccessed time.Time
}

// Cache is an LRU cache of query embeddings with TTL expiry and periodic
// disk persistence. Keys are normalized (lowercased, trimmed) so query
// variants share one entry. Every saveInterval mutating operations the cache
// snapshots itself and writes the snapshot atomically via a temp file
// rename; persistence failures are logged and never fail the operation.
//
// All methods are safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	path     string

	ll  *list.List // front = LRU, back = MRU
	idx map[string]*list.Element

	hits   int64
	misses int64
	ops    int64

	now func() time.Time
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Capacity       int     `json:"capacity"`
	Size           int     `json:"size"`
	Hits           int64   `json:"hits"`
	Misses         int64   `json:"misses"`
	HitRate        float64 `json:"hit_rate"`
	TotalRequests  int64   `json:"total_requests"`
	Operations     int64   `json:"operations_count"`
	ExpiredEvicted int     `json:"expired_evicted"`
	CacheFile      string  `json:"cache_file"`
	TTLDays        float64 `json:"ttl_days"`
}

// QueryInfo describes one cached query for diagnostics.
type QueryInfo struct {
	Query        string    `json:"query"`
	AccessCount  int       `json:"access_count"`
	LastAccessed time.Time `json:"last_accessed"`
}

// New creates a cache persisting to path. Capacity values below 1 fall back
// to DefaultCapacity and non-positive TTLs to DefaultTTL. Call Load to
// restore a previous snapshot.
func New(path string, capacity int, ttl time.Duration) *Cache {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		path:     path,
		ll:       list.New(),
		idx:      make(map[string]*list.Element),
		now:      time.Now,
	}
}

func normalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

func (c *Cache) expired(e *entry, now time.Time) bool {
	return now.Sub(e.timestamp) > c.ttl
}

// Get returns the cached embedding for query, refreshing its recency.
// Expired entries are removed and count as misses.
func (c *Cache) Get(query string) ([]float32, bool) {
	key := normalizeQuery(query)

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.idx[key]
	if !ok {
		c.misses++
		return nil, false
	}
	e := el.Value.(*entry)
	now := c.now()
	if c.expired(e, now) {
		c.ll.Remove(el)
		delete(c.idx, key)
		c.misses++
		return nil, false
	}

	c.ll.MoveToBack(el)
	e.accessCount++
	e.lastAccessed = now
	c.hits++
	return e.embedding, true
}

// Put caches an embedding for query, evicting expired entries and then the
// LRU entry while over capacity. Returns false for empty embeddings.
func (c *Cache) Put(query string, embedding []float32) bool {
	if len(embedding) == 0 {
		return false
	}
	key := normalizeQuery(query)

	c.mu.Lock()
	now := c.now()
	c.evictExpiredLocked(now)
	for len(c.idx) >= c.capacity {
		if _, ok := c.evictLRULocked(); !ok {
			break
		}
	}

	e := &entry{
		query:        key,
		embedding:    embedding,
		timestamp:    now,
		accessCount:  1,
		lastAccessed: now,
	}
	if el, ok := c.idx[key]; ok {
		el.Value = e
		c.ll.MoveToBack(el)
	} else {
		c.idx[key] = c.ll.PushBack(e)
	}
	c.ops++
	snap := c.maybeSnapshotLocked()
	c.mu.Unlock()

	c.writeIfNeeded(snap)
	return true
}

// Delete removes the entry for query if present.
func (c *Cache) Delete(query string) bool {
	key := normalizeQuery(query)

	c.mu.Lock()
	el, ok := c.idx[key]
	if !ok {
		c.mu.Unlock()
		return false
	}
	c.ll.Remove(el)
	delete(c.idx, key)
	c.ops++
	snap := c.maybeSnapshotLocked()
	c.mu.Unlock()

	c.writeIfNeeded(snap)
	return true
}

// Clear drops all entries, resets counters, and persists the empty state.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.ll.Init()
	clear(c.idx)
	c.hits = 0
	c.misses = 0
	c.ops = 0
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.writeIfNeeded(snap)
}

func (c *Cache) evictExpiredLocked(now time.Time) int {
	var expired []*list.Element
	for el := c.ll.Front(); el != nil; el = el.Next() {
		if c.expired(el.Value.(*entry), now) {
			expired = append(expired, el)
		}
	}
	for _, el := range expired {
		e := el.Value.(*entry)
		c.ll.Remove(el)
		delete(c.idx, e.query)
	}
	return len(expired)
}

func (c *Cache) evictLRULocked() (string, bool) {
	el := c.ll.Front()
	if el == nil {
		return "", false
	}
	e := el.Value.(*entry)
	c.ll.Remove(el)
	delete(c.idx, e.query)
	return e.query, true
}

// CleanupExpired removes expired entries and returns how many were dropped.
func (c *Cache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictExpiredLocked(c.now())
}

// Len returns the current number of entries, including any not yet expired.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.idx)
}

// Stats reports counters, sweeping expired entries as a side effect. Size
// reflects the entry count before the sweep; ExpiredEvicted how many the
// sweep removed.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = math.Round(float64(c.hits)/float64(total)*1000) / 1000
	}
	size := len(c.idx)
	expired := c.evictExpiredLocked(c.now())

	return Stats{
		Capacity:       c.capacity,
		Size:           size,
		Hits:           c.hits,
		Misses:         c.misses,
		HitRate:        hitRate,
		TotalRequests:  total,
		Operations:     c.ops,
		ExpiredEvicted: expired,
		CacheFile:      c.path,
		TTLDays:        c.ttl.Hours() / 24,
	}
}

// TopQueries returns up to limit cached queries ordered by access count,
// most accessed first.
func (c *Cache) TopQueries(limit int) []QueryInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	infos := make([]QueryInfo, 0, len(c.idx))
	for el := c.ll.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		infos = append(infos, QueryInfo{
			Query:        e.query,
			AccessCount:  e.accessCount,
			LastAccessed: e.lastAccessed,
		})
	}
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].AccessCount > infos[j].AccessCount
	})
	if limit > 0 && len(infos) > limit {
		infos = infos[:limit]
	}
	return infos
}

// maybeSnapshotLocked returns a snapshot when the operation count crosses
// the auto-save interval, nil otherwise.
func (c *Cache) maybeSnapshotLocked() *snapshot {
	if c.ops%saveInterval != 0 {
		return nil
	}
	return c.snapshotLocked()
}

func (c *Cache) writeIfNeeded(snap *snapshot) {
	if snap == nil {
		return
	}
	if err := c.writeSnapshot(snap); err != nil {
		log.Printf("embedcache: persist failed: %v", err)
	}
}

// ForceSave persists the cache immediately, regardless of the auto-save
// interval.
func (c *Cache) ForceSave() error {
	c.mu.Lock()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	return c.writeSnapshot(snap)
}

// Load restores the cache from its file, skipping entries that have already
// expired. A missing file is not an error. Returns the number of entries
// loaded.
func (c *Cache) Load() (int, error) {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cache file: %w", err)
	}

	var file cacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("parse cache file: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.hits = file.Metadata.Hits
	c.misses = file.Metadata.Misses
	c.ops = file.Metadata.Operations

	c.ll.Init()
	clear(c.idx)
	now := c.now()
	for query, pe := range file.Entries {
		ts := time.Unix(pe.Timestamp, 0)
		if now.Sub(ts) > c.ttl {
			continue
		}
		e := &entry{
			query:        query,
			embedding:    pe.Embedding,
			timestamp:    ts,
			accessCount:  pe.AccessCount,
			lastAccessed: time.Unix(pe.LastAccessed, 0),
		}
		c.idx[query] = c.ll.PushBack(e)
	}
	return len(c.idx), nil
}
