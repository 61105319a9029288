// Package cache provides an in-memory memo of resolver results.
//
// Resolution is a pure function of the known values and the precision, so a
// result computed once can be served again verbatim. Entries expire after a
// TTL and the map is bounded; a background sweeper evicts expired entries.
package cache

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/star/kinematics1d/internal/kinematics"
	"github.com/star/kinematics1d/internal/metrics"
)

// Config holds cache configuration loaded from environment variables.
type Config struct {
	TTL           time.Duration // How long an entry is served (default: 10m)
	MaxEntries    int           // Upper bound on entries (default: 10000)
	SweepInterval time.Duration // Background eviction interval (default: 30s)
}

// CacheEntry wraps a resolution with the time it was stored.
type CacheEntry struct {
	Resolution kinematics.Resolution
	StoredAt   time.Time
}

// ResolutionCache is safe for concurrent use by multiple goroutines.
type ResolutionCache struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry

	config Config
	logger *slog.Logger
	now    func() time.Time

	// Counters (lock-free).
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewResolutionCache creates an empty cache.
func NewResolutionCache(config Config, logger *slog.Logger) *ResolutionCache {
	if config.MaxEntries <= 0 {
		config.MaxEntries = 10000
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = 30 * time.Second
	}

	logger.Info("cache initialized",
		"ttl_seconds", config.TTL.Seconds(),
		"max_entries", config.MaxEntries,
		"sweep_interval_seconds", config.SweepInterval.Seconds(),
	)

	return &ResolutionCache{
		entries: make(map[string]*CacheEntry),
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
}

// Key builds the canonical cache key for a state and precision. Quantities
// appear in a fixed order and values use the shortest exact representation,
// so equal inputs always produce equal keys.
func Key(s kinematics.MotionState, precision int) string {
	var b strings.Builder
	for _, q := range kinematics.Quantities {
		v, ok := s.Get(q)
		if !ok {
			continue
		}
		b.WriteString(q.String())
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		b.WriteByte(';')
	}
	b.WriteString("p=")
	b.WriteString(strconv.Itoa(precision))
	return b.String()
}

// Get returns the cached resolution for key. Expired entries count as misses.
func (c *ResolutionCache) Get(key string) (kinematics.Resolution, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && !c.expired(entry) {
		c.hits.Add(1)
		metrics.IncCacheHits()
		res := entry.Resolution
		res.Steps = slices.Clone(res.Steps)
		return res, true
	}

	c.misses.Add(1)
	metrics.IncCacheMisses()
	return kinematics.Resolution{}, false
}

// Put stores res under key, evicting the oldest entry when the cache is full.
func (c *ResolutionCache) Put(key string, res kinematics.Resolution) {
	res.Steps = slices.Clone(res.Steps)
	entry := &CacheEntry{Resolution: res, StoredAt: c.now()}

	var evicted int
	c.mu.Lock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.config.MaxEntries {
		evicted = c.evictOldestLocked()
	}
	c.entries[key] = entry
	count := len(c.entries)
	c.mu.Unlock()

	if evicted > 0 {
		c.evictions.Add(int64(evicted))
		metrics.AddCacheEvictions(evicted)
	}
	metrics.SetCacheEntries(count)
}

func (c *ResolutionCache) expired(e *CacheEntry) bool {
	return c.config.TTL > 0 && c.now().Sub(e.StoredAt) > c.config.TTL
}

// evictOldestLocked removes the entry stored earliest. Caller must hold mu.
func (c *ResolutionCache) evictOldestLocked() int {
	var oldestKey string
	var oldest time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.StoredAt.Before(oldest) {
			oldestKey = k
			oldest = e.StoredAt
		}
	}
	if oldestKey == "" {
		return 0
	}
	delete(c.entries, oldestKey)
	return 1
}

// evictExpired removes entries older than the TTL.
func (c *ResolutionCache) evictExpired() int {
	if c.config.TTL <= 0 {
		return 0
	}
	var removed int

	c.mu.Lock()
	for k, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, k)
			removed++
		}
	}
	count := len(c.entries)
	c.mu.Unlock()

	if removed > 0 {
		c.evictions.Add(int64(removed))
		metrics.AddCacheEvictions(removed)
		metrics.SetCacheEntries(count)
		c.logger.Debug("cache eviction", "entries_removed", removed)
	}

	return removed
}

// Start runs the eviction sweep every SweepInterval. Blocks until ctx is
// cancelled.
func (c *ResolutionCache) Start(ctx context.Context) {
	ticker := time.NewTicker(c.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("cache sweeper stopped")
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

// Stats holds cache statistics for the stats endpoint.
type Stats struct {
	Entries   int   `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// Stats returns current cache statistics.
func (c *ResolutionCache) Stats() Stats {
	c.mu.RLock()
	count := len(c.entries)
	c.mu.RUnlock()

	return Stats{
		Entries:   count,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
