// Package cache implements the TTL+LRU content-hash cache store shared by
// the Registry Client and the Parallel OSV Client. Any cache error is
// logged and treated as a miss — callers never abort on cache failure,
// mirroring the teacher's graceful-degradation idiom (dephealth.go's
// slog.Warn-then-continue pattern).
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Key derives a deterministic cache key from a prefix and arbitrary
// content. Key(p, c) is identical across runs for identical (p, c) —
// this is the cache determinism property (P1).
func Key(prefix string, content ...string) string {
	h := sha256.New()
	for _, c := range content {
		h.Write([]byte(c))
		h.Write([]byte{0})
	}
	return prefix + hex.EncodeToString(h.Sum(nil))
}

// Stats summarizes a Store's current occupancy.
type Stats struct {
	Entries   int
	Bytes     int64
	HitCount  int64
	MissCount int64
}

// Store is the Cache Store contract (spec.md §4.1): get/put/invalidate/
// cleanup_expired/stats, with content-hash keys and TTL+LRU eviction.
type Store interface {
	// Get returns the cached blob for key, or ok=false on a miss
	// (including an expired or errored lookup).
	Get(key string) (value []byte, ok bool)
	// Put stores value under key with the given TTL, replacing any
	// existing entry. If storing would exceed the configured max size,
	// least-recently-accessed live entries are evicted until it fits.
	Put(key string, value []byte, ttl time.Duration)
	// Invalidate removes key if present; it is a no-op otherwise.
	Invalidate(key string)
	// CleanupExpired proactively removes all entries whose TTL has
	// elapsed and returns how many were removed.
	CleanupExpired() int
	// Stats reports current occupancy and cumulative hit/miss counts.
	Stats() Stats
}
