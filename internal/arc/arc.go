package arc

import (
	"container/list"
	"math"
	"sort"
)

// entry is a resident cache item stored in T1 or T2.
type entry[K comparable, V any] struct {
	key   K
	value V
}

// Cache is an adaptive replacement cache. It maintains two resident lists,
// T1 (seen once recently) and T2 (seen at least twice), plus two ghost lists
// B1 and B2 that remember the keys of recently evicted entries. Hits in the
// ghost lists move the adaptive target p toward recency (B1) or frequency
// (B2), so the cache tunes itself to the workload.
//
// Lists are ordered with the LRU entry at the front and the MRU entry at the
// back. Ghost lists hold keys only.
//
// Cache is not internally synchronized; callers that share one instance
// across goroutines must serialize access.
type Cache[K comparable, V any] struct {
	capacity int
	p        int // target size for T1

	t1, t2 *list.List
	b1, b2 *list.List

	t1Idx, t2Idx map[K]*list.Element // element value: *entry[K, V]
	b1Idx, b2Idx map[K]*list.Element // element value: K

	hits      uint64
	misses    uint64
	evictions uint64
}

// Stats is a point-in-time snapshot of cache state and counters.
type Stats struct {
	Capacity      int     `json:"capacity"`
	Size          int     `json:"size"`
	T1Size        int     `json:"t1_size"`
	T2Size        int     `json:"t2_size"`
	B1Size        int     `json:"b1_size"`
	B2Size        int     `json:"b2_size"`
	P             int     `json:"p"`
	Hits          uint64  `json:"hits"`
	Misses        uint64  `json:"misses"`
	Evictions     uint64  `json:"evictions"`
	TotalRequests uint64  `json:"total_requests"`
	HitRate       float64 `json:"hit_rate"`
}

// Candidate is a resident key paired with an eviction priority score.
// Lower scores indicate higher eviction priority.
type Candidate[K comparable] struct {
	Key   K       `json:"key"`
	Score float64 `json:"score"`
}

// New creates an ARC cache with the given capacity. Capacities below 1 are
// clamped to 1.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache[K, V]{
		capacity: capacity,
		t1:       list.New(),
		t2:       list.New(),
		b1:       list.New(),
		b2:       list.New(),
		t1Idx:    make(map[K]*list.Element),
		t2Idx:    make(map[K]*list.Element),
		b1Idx:    make(map[K]*list.Element),
		b2Idx:    make(map[K]*list.Element),
	}
}

// Get returns the value for key if resident. A hit in T1 promotes the entry
// to T2; a hit in T2 refreshes its recency. Ghost hits count as misses.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	if el, ok := c.t1Idx[key]; ok {
		c.hits++
		ent := el.Value.(*entry[K, V])
		c.t1.Remove(el)
		delete(c.t1Idx, key)
		c.t2Idx[key] = c.t2.PushBack(ent)
		return ent.value, true
	}
	if el, ok := c.t2Idx[key]; ok {
		c.hits++
		c.t2.MoveToBack(el)
		return el.Value.(*entry[K, V]).value, true
	}
	c.misses++
	var zero V
	return zero, false
}

// Put inserts or updates key. Ghost hits adapt p and re-admit the key
// directly into T2; fresh keys enter T1, evicting per the ARC policy.
func (c *Cache[K, V]) Put(key K, value V) {
	if el, ok := c.b1Idx[key]; ok {
		// Ghost hit in B1: grow the recency target.
		delta := 1
		if c.b1.Len() < c.b2.Len() {
			delta = c.b2.Len() / c.b1.Len()
		}
		c.p = min(c.capacity, c.p+delta)
		c.replace(false)
		c.b1.Remove(el)
		delete(c.b1Idx, key)
		c.t2Idx[key] = c.t2.PushBack(&entry[K, V]{key: key, value: value})
		return
	}
	if el, ok := c.b2Idx[key]; ok {
		// Ghost hit in B2: shrink the recency target.
		delta := 1
		if c.b2.Len() < c.b1.Len() {
			delta = c.b1.Len() / c.b2.Len()
		}
		c.p = max(0, c.p-delta)
		c.replace(true)
		c.b2.Remove(el)
		delete(c.b2Idx, key)
		c.t2Idx[key] = c.t2.PushBack(&entry[K, V]{key: key, value: value})
		return
	}
	if el, ok := c.t1Idx[key]; ok {
		// Resident update promotes to T2.
		ent := el.Value.(*entry[K, V])
		ent.value = value
		c.t1.Remove(el)
		delete(c.t1Idx, key)
		c.t2Idx[key] = c.t2.PushBack(ent)
		return
	}
	if el, ok := c.t2Idx[key]; ok {
		ent := el.Value.(*entry[K, V])
		ent.value = value
		c.t2.MoveToBack(el)
		return
	}
	c.admit(key, value)
}

// admit inserts a key seen in neither the resident nor the ghost lists.
func (c *Cache[K, V]) admit(key K, value V) {
	l1 := c.t1.Len() + c.b1.Len()
	l2 := c.t2.Len() + c.b2.Len()

	switch {
	case l1 == c.capacity:
		if c.t1.Len() < c.capacity {
			c.dropLRUGhost(c.b1, c.b1Idx)
			c.replace(false)
		} else {
			// B1 is empty and T1 is full: evict T1's LRU outright.
			c.dropLRUResident(c.t1, c.t1Idx)
			c.evictions++
		}
	case l1 < c.capacity && l1+l2 >= c.capacity:
		if l1+l2 == 2*c.capacity {
			c.dropLRUGhost(c.b2, c.b2Idx)
		}
		c.replace(false)
	}

	c.t1Idx[key] = c.t1.PushBack(&entry[K, V]{key: key, value: value})
}

// replace demotes one resident entry to its ghost list, choosing T1 when it
// exceeds the target p (or meets it on a B2 ghost hit), else T2.
func (c *Cache[K, V]) replace(ghostHitInB2 bool) {
	if c.t1.Len() >= 1 && (c.t1.Len() > c.p || (ghostHitInB2 && c.t1.Len() == c.p)) {
		key := c.dropLRUResident(c.t1, c.t1Idx)
		c.b1Idx[key] = c.b1.PushBack(key)
		c.evictions++
	} else if c.t2.Len() > 0 {
		key := c.dropLRUResident(c.t2, c.t2Idx)
		c.b2Idx[key] = c.b2.PushBack(key)
		c.evictions++
	}
}

func (c *Cache[K, V]) dropLRUResident(l *list.List, idx map[K]*list.Element) K {
	el := l.Front()
	ent := l.Remove(el).(*entry[K, V])
	delete(idx, ent.key)
	return ent.key
}

func (c *Cache[K, V]) dropLRUGhost(l *list.List, idx map[K]*list.Element) {
	el := l.Front()
	if el == nil {
		return
	}
	key := l.Remove(el).(K)
	delete(idx, key)
}

// Delete removes key from whichever list holds it, resident or ghost.
func (c *Cache[K, V]) Delete(key K) bool {
	if el, ok := c.t1Idx[key]; ok {
		c.t1.Remove(el)
		delete(c.t1Idx, key)
		return true
	}
	if el, ok := c.t2Idx[key]; ok {
		c.t2.Remove(el)
		delete(c.t2Idx, key)
		return true
	}
	if el, ok := c.b1Idx[key]; ok {
		c.b1.Remove(el)
		delete(c.b1Idx, key)
		return true
	}
	if el, ok := c.b2Idx[key]; ok {
		c.b2.Remove(el)
		delete(c.b2Idx, key)
		return true
	}
	return false
}

// Contains reports whether key is resident, without affecting recency or
// hit counters.
func (c *Cache[K, V]) Contains(key K) bool {
	_, inT1 := c.t1Idx[key]
	_, inT2 := c.t2Idx[key]
	return inT1 || inT2
}

// Len returns the number of resident entries.
func (c *Cache[K, V]) Len() int {
	return c.t1.Len() + c.t2.Len()
}

// Keys returns all resident keys, T1 before T2, each in LRU-to-MRU order.
func (c *Cache[K, V]) Keys() []K {
	keys := make([]K, 0, c.Len())
	for el := c.t1.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[K, V]).key)
	}
	for el := c.t2.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[K, V]).key)
	}
	return keys
}

// Clear drops all resident and ghost entries. Counters are preserved.
func (c *Cache[K, V]) Clear() {
	c.t1.Init()
	c.t2.Init()
	c.b1.Init()
	c.b2.Init()
	clear(c.t1Idx)
	clear(c.t2Idx)
	clear(c.b1Idx)
	clear(c.b2Idx)
	c.p = 0
}

// EvictionCandidates returns up to count resident keys with eviction
// priority scores, lowest score first. T1 entries score in a lower band
// than T2 entries, so recency-only entries surface before frequent ones.
func (c *Cache[K, V]) EvictionCandidates(count int) []Candidate[K] {
	if count <= 0 {
		return nil
	}
	candidates := make([]Candidate[K], 0, count)
	i := 0
	for el := c.t1.Front(); el != nil && i < count; el = el.Next() {
		candidates = append(candidates, Candidate[K]{
			Key:   el.Value.(*entry[K, V]).key,
			Score: 0.1 - float64(i)*0.01,
		})
		i++
	}
	remaining := count - len(candidates)
	i = 0
	for el := c.t2.Front(); el != nil && i < remaining; el = el.Next() {
		candidates = append(candidates, Candidate[K]{
			Key:   el.Value.(*entry[K, V]).key,
			Score: 0.3 - float64(i)*0.01,
		})
		i++
	}
	// Lowest score first.
	sort.Slice(candidates, func(a, b int) bool {
		return candidates[a].Score < candidates[b].Score
	})
	if len(candidates) > count {
		candidates = candidates[:count]
	}
	return candidates
}

// Stats returns a snapshot of list sizes and counters.
func (c *Cache[K, V]) Stats() Stats {
	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = math.Round(float64(c.hits)/float64(total)*1000) / 1000
	}
	return Stats{
		Capacity:      c.capacity,
		Size:          c.t1.Len() + c.t2.Len(),
		T1Size:        c.t1.Len(),
		T2Size:        c.t2.Len(),
		B1Size:        c.b1.Len(),
		B2Size:        c.b2.Len(),
		P:             c.p,
		Hits:          c.hits,
		Misses:        c.misses,
		Evictions:     c.evictions,
		TotalRequests: total,
		HitRate:       hitRate,
	}
}
