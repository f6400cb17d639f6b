// Package evalcache caches finished analyses by FEN so repeated runs over
// the same games skip engine work. A cache can be snapshotted to disk as
// zstd-compressed JSON and reloaded on the next run.
package evalcache

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/klauspost/compress/zstd"

	"github.com/pawnsight/coach/internal/analysis"
)

// Cache is a concurrency-safe FEN -> analysis result map.
type Cache struct {
	mu    sync.RWMutex
	items map[string]analysis.Result

	hits   uint64
	misses uint64
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{items: make(map[string]analysis.Result)}
}

// Get retrieves a cached result. The returned value is a copy; mutating
// it does not affect the cache.
func (c *Cache) Get(fen string) (*analysis.Result, bool) {
	c.mu.RLock()
	res, ok := c.items[fen]
	c.mu.RUnlock()

	if !ok {
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}
	atomic.AddUint64(&c.hits, 1)
	return &res, true
}

// Put stores a result for a FEN, overwriting any previous entry.
func (c *Cache) Put(fen string, res *analysis.Result) {
	if res == nil {
		return
	}
	c.mu.Lock()
	c.items[fen] = *res
	c.mu.Unlock()
}

// Len returns the number of cached positions.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stats returns hit/miss counters.
func (c *Cache) Stats() (hits, misses uint64) {
	return atomic.LoadUint64(&c.hits), atomic.LoadUint64(&c.misses)
}

// SaveFile writes a zstd-compressed JSON snapshot of the cache.
func (c *Cache) SaveFile(path string) error {
	c.mu.RLock()
	raw, err := json.Marshal(c.items)
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return err
	}
	defer encoder.Close()

	compressed := encoder.EncodeAll(raw, nil)

	// Write to a temp file then rename so a crash never leaves a torn snapshot.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadFile merges a snapshot written by SaveFile into the cache.
func (c *Cache) LoadFile(path string) error {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		return err
	}
	defer decoder.Close()

	raw, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		return fmt.Errorf("decompress snapshot: %w", err)
	}

	var items map[string]analysis.Result
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("unmarshal snapshot: %w", err)
	}

	c.mu.Lock()
	for fen, res := range items {
		c.items[fen] = res
	}
	c.mu.Unlock()
	return nil
}
