package embedcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// cacheFile is the on-disk JSON layout.
type cacheFile struct {
	Metadata fileMetadata              `json:"metadata"`
	Entries  map[string]persistedEntry `json:"entries"`
}

type fileMetadata struct {
	Version    string `json:"version"`
	CreatedAt  string `json:"created_at"`
	Capacity   int    `json:"capacity"`
	TTLSeconds int64  `json:"ttl_seconds"`
	Hits       int64  `json:"hits"`
	Misses     int64  `json:"misses"`
	Operations int64  `json:"operations_count"`
}

type persistedEntry struct {
	Embedding    []float32 `json:"embedding"`
	Timestamp    int64     `json:"timestamp"`
	AccessCount  int       `json:"access_count"`
	LastAccessed int64     `json:"last_accessed"`
}

// snapshot is an immutable copy of the cache state taken under the lock so
// serialization and disk IO can happen outside it.
type snapshot struct {
	metadata fileMetadata
	entries  map[string]persistedEntry
}

func (c *Cache) snapshotLocked() *snapshot {
	entries := make(map[string]persistedEntry, len(c.idx))
	for el := c.ll.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		entries[e.query] = persistedEntry{
			Embedding:    e.embedding,
			Timestamp:    e.timestamp.Unix(),
			AccessCount:  e.accessCount,
			LastAccessed: e.lastAccessed.Unix(),
		}
	}
	return &snapshot{
		metadata: fileMetadata{
			Version:    "1.0",
			CreatedAt:  time.Now().Format(time.RFC3339),
			Capacity:   c.capacity,
			TTLSeconds: int64(c.ttl.Seconds()),
			Hits:       c.hits,
			Misses:     c.misses,
			Operations: c.ops,
		},
		entries: entries,
	}
}

// writeSnapshot serializes snap and writes it atomically by writing a temp
// file in the target directory and renaming it into place.
func (c *Cache) writeSnapshot(snap *snapshot) error {
	data, err := json.MarshalIndent(cacheFile{
		Metadata: snap.metadata,
		Entries:  snap.entries,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}
