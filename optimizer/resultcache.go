package optimizer

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// CachedResult is a single cached query result set.
type CachedResult struct {
	Rows []map[string]interface{}
}

// resultEntry is one doubly-linked-list node, grounded on
// iperfex-team-burrowctl/server/query_cache.go's CacheEntry/LRUNode shape.
type resultEntry struct {
	key         Signature
	result      CachedResult
	createdAt   time.Time
	accessedAt  time.Time
	accessCount int64
	effTTL      time.Duration
	prev, next  *resultEntry
}

// ResultCacheStats mirrors the teacher's CacheStats shape.
type ResultCacheStats struct {
	mu          sync.Mutex
	Hits        int64
	Misses      int64
	Evictions   int64
	Expirations int64
}

// ResultCache is an adaptive-TTL, doubly-linked-list LRU over query
// results. Every hit moves the entry to the front, and every hit after the
// fifth extends its effective TTL by 20%, up to a hard ceiling of 5x the
// base TTL, so hot results
// stay cached longer than cold ones without needing an unbounded TTL.
type ResultCache struct {
	mu       sync.Mutex
	entries  map[Signature]*resultEntry
	head     *resultEntry
	tail     *resultEntry
	size     int
	maxSize  int
	baseTTL  time.Duration
	stats    ResultCacheStats
}

const resultCacheMaxTTLMultiple = 5

// NewResultCache creates a result cache holding at most maxSize entries,
// each starting with baseTTL and extendable up to 5x that on repeat hits.
func NewResultCache(maxSize int, baseTTL time.Duration) *ResultCache {
	return &ResultCache{
		entries: make(map[Signature]*resultEntry),
		maxSize: maxSize,
		baseTTL: baseTTL,
	}
}

// Get retrieves a cached result, evicting it first if it has expired.
func (c *ResultCache) Get(sig Signature) (CachedResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[sig]
	if !ok {
		c.stats.recordMiss()
		return CachedResult{}, false
	}

	if time.Since(entry.createdAt) > entry.effTTL {
		c.removeEntry(entry)
		c.stats.recordExpiration()
		c.stats.recordMiss()
		return CachedResult{}, false
	}

	entry.accessedAt = time.Now()
	entry.accessCount++
	entry.effTTL = extendOnHit(c.baseTTL, entry.effTTL, entry.accessCount)
	c.moveToFront(entry)
	c.stats.recordHit()
	return entry.result, true
}

// resultCacheHitExtensionThreshold and resultCacheHitExtensionFactor
// implement the "a result that keeps getting re-requested earns a 20%
// extension of its effective TTL on every hit once it has been hit more
// than 5 times" rule: growth is bounded by resultCacheMaxTTLMultiple, and a
// result under sustained load outlives one computed for a one-off query.
const (
	resultCacheHitExtensionThreshold = 5
	resultCacheHitExtensionFactor    = 1.2
)

// extendOnHit applies one 20% extension per call once accessCount passes
// the threshold, saturating at resultCacheMaxTTLMultiple x base.
func extendOnHit(base, current time.Duration, accessCount int64) time.Duration {
	if accessCount <= resultCacheHitExtensionThreshold {
		return current
	}
	extended := time.Duration(float64(current) * resultCacheHitExtensionFactor)
	ceiling := base * resultCacheMaxTTLMultiple
	if extended > ceiling {
		return ceiling
	}
	return extended
}

// complexityTTLCap is the max multiple of base TTL the complexity term
// alone can contribute: 1 + min(complexity/10, 3).
const complexityTTLCap = 3

// computeInitialTTL implements the adaptive base-TTL formula: the plan's
// estimated complexity stretches the TTL (capped at 4x base from that term
// alone), a small estimated result (likely to be re-requested cheaply, and
// cheap to keep around) earns a further 1.5x, and a CREATE/MERGE statement
// — whose result depends on data this very statement just changed — is
// halved so a mutated graph doesn't serve a stale read for as long. The
// combined TTL never exceeds resultCacheMaxTTLMultiple x base.
func computeInitialTTL(base time.Duration, complexity int, cypher string, rows []map[string]interface{}) time.Duration {
	factor := 1 + float64(complexity)/10
	if factor > 1+complexityTTLCap {
		factor = 1 + complexityTTLCap
	}
	ttl := time.Duration(float64(base) * factor)

	if estimatedResultSize(rows) < 1000 {
		ttl = time.Duration(float64(ttl) * 1.5)
	}
	upper := strings.ToUpper(cypher)
	if strings.Contains(upper, "CREATE") || strings.Contains(upper, "MERGE") {
		ttl = time.Duration(float64(ttl) * 0.5)
	}

	ceiling := base * resultCacheMaxTTLMultiple
	if ttl > ceiling {
		ttl = ceiling
	}
	return ttl
}

// estimatedResultSize approximates a result set's wire size in bytes.
func estimatedResultSize(rows []map[string]interface{}) int {
	b, err := json.Marshal(rows)
	if err != nil {
		return 0
	}
	return len(b)
}

// Put inserts or refreshes a cached result under the cache's plain base
// TTL, with no complexity/size/statement-kind adjustment. Used directly by
// callers (and tests) that don't carry plan metadata; CacheResult below is
// the adaptive-TTL entry point the optimizer itself uses.
func (c *ResultCache) Put(sig Signature, result CachedResult) {
	c.PutWithTTL(sig, result, c.baseTTL)
}

// PutWithTTL inserts or refreshes a cached result with an explicit initial
// TTL, as computed by computeInitialTTL.
func (c *ResultCache) PutWithTTL(sig Signature, result CachedResult, initialTTL time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[sig]; ok {
		existing.result = result
		existing.createdAt = time.Now()
		existing.accessedAt = time.Now()
		existing.accessCount++
		existing.effTTL = initialTTL
		c.moveToFront(existing)
		return
	}

	if c.size >= c.maxSize {
		c.evictTail()
	}

	entry := &resultEntry{
		key:         sig,
		result:      result,
		createdAt:   time.Now(),
		accessedAt:  time.Now(),
		accessCount: 0,
		effTTL:      initialTTL,
	}
	c.entries[sig] = entry
	c.pushFront(entry)
}

// Invalidate drops a single entry, used when a write statement is known to
// affect a cached read's underlying data.
func (c *ResultCache) Invalidate(sig Signature) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[sig]; ok {
		c.removeEntry(entry)
	}
}

// Sweep removes every expired entry and returns how many were evicted.
func (c *ResultCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	entry := c.head
	for entry != nil {
		next := entry.next
		if time.Since(entry.createdAt) > entry.effTTL {
			c.removeEntry(entry)
			c.stats.recordExpiration()
			removed++
		}
		entry = next
	}
	return removed
}

// Stats returns a point-in-time snapshot of the cache counters.
func (c *ResultCache) Stats() (hits, misses, evictions, expirations int64) {
	c.stats.mu.Lock()
	defer c.stats.mu.Unlock()
	return c.stats.Hits, c.stats.Misses, c.stats.Evictions, c.stats.Expirations
}

func (s *ResultCacheStats) recordHit()        { s.mu.Lock(); s.Hits++; s.mu.Unlock() }
func (s *ResultCacheStats) recordMiss()       { s.mu.Lock(); s.Misses++; s.mu.Unlock() }
func (s *ResultCacheStats) recordEviction()   { s.mu.Lock(); s.Evictions++; s.mu.Unlock() }
func (s *ResultCacheStats) recordExpiration() { s.mu.Lock(); s.Expirations++; s.mu.Unlock() }

func (c *ResultCache) pushFront(e *resultEntry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
	c.size++
}

func (c *ResultCache) moveToFront(e *resultEntry) {
	if c.head == e {
		return
	}
	c.unlink(e)
	c.pushFrontLinked(e)
}

func (c *ResultCache) pushFrontLinked(e *resultEntry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *ResultCache) unlink(e *resultEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else if c.head == e {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else if c.tail == e {
		c.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

func (c *ResultCache) removeEntry(e *resultEntry) {
	c.unlink(e)
	delete(c.entries, e.key)
	c.size--
}

func (c *ResultCache) evictTail() {
	if c.tail == nil {
		return
	}
	evicted := c.tail
	c.removeEntry(evicted)
	c.stats.recordEviction()
}
