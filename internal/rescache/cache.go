package rescache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quantfold/analytics/pkg/config"
	"github.com/quantfold/analytics/pkg/errs"
	"github.com/quantfold/analytics/pkg/logger"
)

// Entry is one cached result. Values are held by copy; the cache is their
// sole owner and callers receive copies.
type Entry struct {
	Key        Key
	Value      interface{}
	CreatedAt  time.Time
	LastAccess time.Time
	Bytes      int64 // approximate
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Inserts   uint64  `json:"inserts"`
	Evictions uint64  `json:"evictions"`
	Entries   int     `json:"entries"`
	HitRate   float64 `json:"hit_rate"`
	Bytes     int64   `json:"bytes"`
}

// Cache is a process-scoped, bounded LRU with per-entry TTL. Reads take the
// shared lock; inserts and evictions take the exclusive lock. Insertion
// never blocks readers: when the exclusive lock cannot be acquired
// immediately the result is simply not cached.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]*list.Element
	lru     *list.List // front = most recently used
	cfg     config.CacheConfig
	log     *logger.Logger

	// Hit and miss counters are atomic so the read paths never take the
	// exclusive lock just to record an outcome.
	hits   atomic.Uint64
	misses atomic.Uint64

	inserts   uint64
	evictions uint64
	bytes     int64
}

// New creates a cache with the given policy.
func New(cfg config.CacheConfig, log *logger.Logger) *Cache {
	if log == nil {
		log = logger.Nop()
	}
	return &Cache{
		entries: make(map[Key]*list.Element),
		lru:     list.New(),
		cfg:     cfg,
		log:     log,
	}
}

// Get returns the cached value for k. Expired entries are skipped and count
// as misses; they are removed by the next cleanup. A successful lookup
// touches the entry's LRU position when the exclusive lock is free.
func (c *Cache) Get(k Key) (interface{}, bool) {
	c.mu.RLock()
	elem, ok := c.entries[k]
	var value interface{}
	expired := false
	if ok {
		e := elem.Value.(*Entry)
		if time.Since(e.CreatedAt) > c.cfg.MaxAge {
			expired = true
		} else {
			value = e.Value
		}
	}
	c.mu.RUnlock()

	if !ok || expired {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)

	// LRU touch is best-effort: readers are never blocked behind it.
	if c.mu.TryLock() {
		if elem, still := c.entries[k]; still {
			e := elem.Value.(*Entry)
			e.LastAccess = time.Now()
			c.lru.MoveToFront(elem)
		}
		c.mu.Unlock()
	}

	return value, true
}

// Put inserts a value computed in elapsed time. Results cheaper than the
// configured minimum are not admitted; this keeps trivially cheap results
// from polluting the cache. Under contention the insert is skipped and
// ErrCacheUnavailable is returned, which callers treat as advisory.
func (c *Cache) Put(k Key, value interface{}, elapsed time.Duration) error {
	if elapsed < c.cfg.MinComputeTime {
		return nil
	}
	if !c.mu.TryLock() {
		return errs.ErrCacheUnavailable
	}
	defer c.mu.Unlock()

	now := time.Now()
	if elem, ok := c.entries[k]; ok {
		e := elem.Value.(*Entry)
		c.bytes += approxBytes(value) - e.Bytes
		e.Value = value
		e.CreatedAt = now
		e.LastAccess = now
		e.Bytes = approxBytes(value)
		c.lru.MoveToFront(elem)
		return nil
	}

	e := &Entry{
		Key:        k,
		Value:      value,
		CreatedAt:  now,
		LastAccess: now,
		Bytes:      approxBytes(value),
	}
	c.entries[k] = c.lru.PushFront(e)
	c.bytes += e.Bytes
	c.inserts++

	// Soft cap with hysteresis: trip at 1.1x, reduce to 0.9x.
	if len(c.entries) > c.cfg.MaxEntries+c.cfg.MaxEntries/10 {
		c.evictLocked(c.cfg.MaxEntries - c.cfg.MaxEntries/10)
	}
	return nil
}

// evictLocked removes expired entries first, then LRU tail entries, until
// at most target remain. Caller holds the exclusive lock.
func (c *Cache) evictLocked(target int) {
	now := time.Now()
	for elem := c.lru.Back(); elem != nil && len(c.entries) > target; {
		prev := elem.Prev()
		e := elem.Value.(*Entry)
		if now.Sub(e.CreatedAt) > c.cfg.MaxAge {
			c.removeLocked(elem)
		}
		elem = prev
	}
	for len(c.entries) > target {
		elem := c.lru.Back()
		if elem == nil {
			break
		}
		c.removeLocked(elem)
	}
}

func (c *Cache) removeLocked(elem *list.Element) {
	e := elem.Value.(*Entry)
	c.lru.Remove(elem)
	delete(c.entries, e.Key)
	c.bytes -= e.Bytes
	c.evictions++
}

// Cleanup removes all expired entries and returns how many were dropped.
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	count := 0
	for elem := c.lru.Back(); elem != nil; {
		prev := elem.Prev()
		if now.Sub(elem.Value.(*Entry).CreatedAt) > c.cfg.MaxAge {
			c.removeLocked(elem)
			count++
		}
		elem = prev
	}
	if count > 0 {
		c.log.WithField("count", count).Debug("removed expired cache entries")
	}
	return count
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]*list.Element)
	c.lru.Init()
	c.bytes = 0
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hits := c.hits.Load()
	misses := c.misses.Load()
	s := Stats{
		Hits:      hits,
		Misses:    misses,
		Inserts:   c.inserts,
		Evictions: c.evictions,
		Entries:   len(c.entries),
		Bytes:     c.bytes,
	}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}

// approxBytes estimates the in-memory footprint of a cached value.
func approxBytes(value interface{}) int64 {
	const entryOverhead = 96
	switch v := value.(type) {
	case float64:
		return entryOverhead + 8
	case []float64:
		return entryOverhead + int64(len(v))*8
	default:
		return entryOverhead + 64
	}
}
