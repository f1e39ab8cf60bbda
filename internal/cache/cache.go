// Package cache memoizes aggregated documents per entity key.
package cache

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/econolens/econolens/backend/internal/models"
)

type slot struct {
	doc     models.AggregatedDocument
	created time.Time
}

type stamp struct {
	key string
	ts  time.Time
}

// Cache keeps one document per normalized entity key with TTL expiry and a
// bounded capacity. Expired entries are evicted lazily; when the cache is
// over capacity the oldest entries go first.
type Cache struct {
	mu       sync.Mutex
	items    map[string]slot
	order    []stamp
	capacity int
	ttl      time.Duration

	group singleflight.Group
}

// New creates a cache with the provided capacity and ttl.
func New(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		items:    make(map[string]slot, capacity),
		order:    make([]stamp, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
	}
}

// Get returns the cached document for a key. A stale entry behaves as a
// miss and is removed.
func (c *Cache) Get(key string) (models.AggregatedDocument, bool) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.items[key]
	if !ok {
		return models.AggregatedDocument{}, false
	}
	if now.Sub(s.created) > c.ttl {
		delete(c.items, key)
		return models.AggregatedDocument{}, false
	}
	return s.doc, true
}

// Put stores a document, replacing any previous entry wholesale.
func (c *Cache) Put(key string, doc models.AggregatedDocument) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = slot{doc: doc, created: now}
	c.order = append(c.order, stamp{key: key, ts: now})
	c.compact(now)
}

// Invalidate drops the entry for a key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Do runs fn under the per-key in-flight guard: at most one aggregation per
// key at a time, concurrent callers for the same key share its result.
func (c *Cache) Do(key string, fn func() (models.AggregatedDocument, error)) (models.AggregatedDocument, error) {
	v, err, _ := c.group.Do(key, func() (any, error) {
		return fn()
	})
	doc, _ := v.(models.AggregatedDocument)
	return doc, err
}

func (c *Cache) compact(now time.Time) {
	cutoff := now.Add(-c.ttl)

	for len(c.order) > 0 && (len(c.items) > c.capacity || c.order[0].ts.Before(cutoff)) {
		oldest := c.order[0]
		c.order = c.order[1:]

		if s, ok := c.items[oldest.key]; ok {
			if s.created.Equal(oldest.ts) {
				delete(c.items, oldest.key)
			}
		}
	}
}
