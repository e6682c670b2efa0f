package precompute

import (
	"math"
	"sync"
	"time"

	"github.com/dsa110/dsa110-pointing/internal/metrics"
)

// DefaultTTL is how long a ranking stays valid once computed.
const DefaultTTL = time.Hour

// Cache memoizes selector rankings per declination bucket. Declinations
// within the same 0.1 degree bucket share an entry, so jitter in the
// reported pointing does not defeat the cache.
type Cache struct {
	mu      sync.Mutex
	ranker  Ranker
	ttl     time.Duration
	entries map[int]cacheEntry
}

type cacheEntry struct {
	ranked  []Prediction
	expires time.Time
}

// NewCache builds a Cache over the given ranker. ttl <= 0 selects the
// default of one hour.
func NewCache(ranker Ranker, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ranker:  ranker,
		ttl:     ttl,
		entries: make(map[int]cacheEntry),
	}
}

// bucket keys a declination to integer tenths of a degree.
func bucket(decDeg float64) int {
	return int(math.Round(decDeg * 10))
}

// Get returns the cached ranking for the declination bucket, recomputing
// through the ranker when the entry is missing or expired at `from`. The
// lookup, recompute and store happen under one lock, so concurrent
// callers of the same bucket never race a half-written entry.
func (c *Cache) Get(decDeg float64, from time.Time) (*Prediction, []Prediction) {
	key := bucket(decDeg)

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && from.Before(e.expires) {
		metrics.IncCacheHits()
		return cloneRanked(e.ranked)
	}

	metrics.IncCacheMisses()
	_, ranked := c.ranker.Rank(decDeg, from)
	c.entries[key] = cacheEntry{ranked: ranked, expires: from.Add(c.ttl)}
	metrics.SetCacheEntries(len(c.entries))
	return cloneRanked(ranked)
}

// Invalidate drops the entry for the declination bucket so the next Get
// recomputes.
func (c *Cache) Invalidate(decDeg float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, bucket(decDeg))
	metrics.SetCacheEntries(len(c.entries))
}

// Len reports the number of live buckets, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// cloneRanked hands callers their own copy so cached slices are never
// aliased outside the lock.
func cloneRanked(ranked []Prediction) (*Prediction, []Prediction) {
	if len(ranked) == 0 {
		return nil, nil
	}
	out := make([]Prediction, len(ranked))
	copy(out, ranked)
	return &out[0], out
}
