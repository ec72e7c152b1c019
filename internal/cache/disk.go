package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sec-scan/depscan/internal/model"
)

// Disk is a durable Store backed by one JSON file per key under dir,
// modeled on the teacher's internal/state file-persistence idiom
// (read-whole-file, unmarshal, write-whole-file on mutation).
type Disk struct {
	mu        sync.Mutex
	dir       string
	maxBytes  int64
	hitCount  int64
	missCount int64
}

// NewDisk creates a disk-backed cache store rooted at dir. dir is created
// on first write if it does not already exist.
func NewDisk(dir string, maxBytes int64) *Disk {
	return &Disk{dir: dir, maxBytes: maxBytes}
}

func (d *Disk) path(key string) string {
	return filepath.Join(d.dir, key+".json")
}

func (d *Disk) Get(key string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.read(key)
	if !ok {
		d.missCount++
		return nil, false
	}
	if !entry.Live(time.Now()) {
		d.remove(key)
		d.missCount++
		return nil, false
	}

	entry.LastAccessedAt = time.Now()
	entry.HitCount++
	d.write(key, entry)
	d.hitCount++
	return entry.Value, true
}

func (d *Disk) Put(key string, value []byte, ttl time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.evictUntilFits(int64(len(value)))

	now := time.Now()
	d.write(key, model.CacheEntry{
		Key:            key,
		Value:          value,
		CreatedAt:      now,
		LastAccessedAt: now,
		TTLSeconds:     int64(ttl.Seconds()),
		SizeBytes:      int64(len(value)),
	})
}

func (d *Disk) Invalidate(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.remove(key)
}

func (d *Disk) CleanupExpired() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	removed := 0
	for _, key := range d.listKeys() {
		entry, ok := d.read(key)
		if !ok {
			continue
		}
		if !entry.Live(now) {
			d.remove(key)
			removed++
		}
	}
	return removed
}

func (d *Disk) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	keys := d.listKeys()
	var total int64
	for _, key := range keys {
		if entry, ok := d.read(key); ok {
			total += entry.SizeBytes
		}
	}
	return Stats{
		Entries:   len(keys),
		Bytes:     total,
		HitCount:  d.hitCount,
		MissCount: d.missCount,
	}
}

// evictUntilFits evicts least-recently-accessed live entries until adding
// `incoming` more bytes would not exceed maxBytes. Caller holds d.mu.
func (d *Disk) evictUntilFits(incoming int64) {
	if d.maxBytes <= 0 {
		return
	}
	type candidate struct {
		key        string
		entry      model.CacheEntry
	}
	for {
		keys := d.listKeys()
		var total int64
		candidates := make([]candidate, 0, len(keys))
		for _, key := range keys {
			entry, ok := d.read(key)
			if !ok {
				continue
			}
			total += entry.SizeBytes
			candidates = append(candidates, candidate{key, entry})
		}
		if total+incoming <= d.maxBytes || len(candidates) == 0 {
			return
		}
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].entry.LastAccessedAt.Before(candidates[j].entry.LastAccessedAt)
		})
		d.remove(candidates[0].key)
	}
}

func (d *Disk) read(key string) (model.CacheEntry, bool) {
	data, err := os.ReadFile(d.path(key)) //nolint:gosec // key is content-hash derived
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("cache: disk read failed, treating as miss", "key", key, "error", err)
		}
		return model.CacheEntry{}, false
	}
	var entry model.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		slog.Warn("cache: disk entry corrupt, treating as miss", "key", key, "error", err)
		return model.CacheEntry{}, false
	}
	return entry, true
}

func (d *Disk) write(key string, entry model.CacheEntry) {
	if err := os.MkdirAll(d.dir, 0o750); err != nil {
		slog.Warn("cache: cannot create cache dir", "dir", d.dir, "error", err)
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		slog.Warn("cache: cannot marshal entry", "key", key, "error", err)
		return
	}
	if err := os.WriteFile(d.path(key), data, 0o600); err != nil {
		slog.Warn("cache: disk write failed", "key", key, "error", err)
	}
}

func (d *Disk) remove(key string) {
	if err := os.Remove(d.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("cache: disk remove failed", "key", key, "error", err)
	}
}

func (d *Disk) listKeys() []string {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		const suffix = ".json"
		if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
			keys = append(keys, name[:len(name)-len(suffix)])
		}
	}
	return keys
}
