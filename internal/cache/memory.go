package cache

import (
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sec-scan/depscan/internal/model"
)

// Memory is an in-process Store backed by hashicorp/golang-lru. TTL is
// tracked alongside each entry and checked lazily on Get; size-bounding is
// enforced on Put by evicting least-recently-accessed live entries.
type Memory struct {
	mu        sync.Mutex
	entries   *lru.Cache[string, model.CacheEntry]
	maxBytes  int64
	curBytes  int64
	hitCount  int64
	missCount int64
}

// NewMemory creates an in-memory cache store. maxEntries bounds the LRU's
// slot count (a backstop independent of maxBytes); maxBytes bounds total
// live payload size.
func NewMemory(maxEntries int, maxBytes int64) *Memory {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	m := &Memory{maxBytes: maxBytes}
	// OnEvict callback keeps curBytes in sync when the underlying LRU
	// evicts on its own slot-count bound.
	c, err := lru.NewWithEvict[string, model.CacheEntry](maxEntries, func(_ string, v model.CacheEntry) {
		atomic.AddInt64(&m.curBytes, -v.SizeBytes)
	})
	if err != nil {
		// lru.New only errors on size <= 0, which we've already guarded.
		c, _ = lru.New[string, model.CacheEntry](maxEntries)
	}
	m.entries = c
	return m
}

func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries.Get(key)
	if !ok {
		atomic.AddInt64(&m.missCount, 1)
		return nil, false
	}
	if !entry.Live(time.Now()) {
		m.entries.Remove(key)
		atomic.AddInt64(&m.curBytes, -entry.SizeBytes)
		atomic.AddInt64(&m.missCount, 1)
		return nil, false
	}

	entry.LastAccessedAt = time.Now()
	entry.HitCount++
	m.entries.Add(key, entry)
	atomic.AddInt64(&m.hitCount, 1)
	return entry.Value, true
}

func (m *Memory) Put(key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.entries.Peek(key); ok {
		atomic.AddInt64(&m.curBytes, -old.SizeBytes)
	}

	size := int64(len(value))
	m.evictUntilFits(size)

	now := time.Now()
	m.entries.Add(key, model.CacheEntry{
		Key:            key,
		Value:          value,
		CreatedAt:      now,
		LastAccessedAt: now,
		TTLSeconds:     int64(ttl.Seconds()),
		SizeBytes:      size,
	})
	atomic.AddInt64(&m.curBytes, size)
}

// evictUntilFits evicts least-recently-used live entries (the LRU's
// natural eviction order) until adding `incoming` more bytes would not
// exceed maxBytes. Caller holds m.mu.
func (m *Memory) evictUntilFits(incoming int64) {
	if m.maxBytes <= 0 {
		return
	}
	for atomic.LoadInt64(&m.curBytes)+incoming > m.maxBytes {
		oldestKey, oldest, ok := m.entries.GetOldest()
		if !ok {
			return
		}
		m.entries.Remove(oldestKey)
		atomic.AddInt64(&m.curBytes, -oldest.SizeBytes)
	}
}

func (m *Memory) Invalidate(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.entries.Peek(key); ok {
		atomic.AddInt64(&m.curBytes, -old.SizeBytes)
	}
	m.entries.Remove(key)
}

func (m *Memory) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	removed := 0
	for _, key := range m.entries.Keys() {
		entry, ok := m.entries.Peek(key)
		if !ok {
			continue
		}
		if !entry.Live(now) {
			m.entries.Remove(key)
			atomic.AddInt64(&m.curBytes, -entry.SizeBytes)
			removed++
		}
	}
	return removed
}

func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Entries:   m.entries.Len(),
		Bytes:     atomic.LoadInt64(&m.curBytes),
		HitCount:  atomic.LoadInt64(&m.hitCount),
		MissCount: atomic.LoadInt64(&m.missCount),
	}
}
