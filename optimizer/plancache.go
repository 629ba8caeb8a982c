package optimizer

import (
	"sync"
	"sync/atomic"
)

// Plan is a compiled, cacheable description of how a query shape should be
// executed: its rewritten text and the analysis that produced it.
type Plan struct {
	Signature    Signature
	Cypher       string
	Analysis     Analysis
	Rewrites     []Rewrite
	HitCount     atomic.Int64
}

// PlanCacheStats mirrors the teacher's CacheStats shape
// (client/statement_cache.go).
type PlanCacheStats struct {
	Hits        atomic.Int64
	Misses      atomic.Int64
	Evictions   atomic.Int64
	CurrentSize atomic.Int64
}

// PlanCache is an access-order-slice LRU over compiled Plans, grounded on
// dan-strohschein-syndrdb-drivers/client/statement_cache.go: plans are
// comparatively few and hot, so the O(n) access-order maintenance this
// idiom costs on a hit is cheap in practice next to the win of a tiny,
// lock-simple implementation.
type PlanCache struct {
	mu          sync.Mutex
	plans       map[Signature]*Plan
	accessOrder []Signature
	maxSize     int
	stats       PlanCacheStats
}

// NewPlanCache creates a plan cache holding at most maxSize plans.
func NewPlanCache(maxSize int) *PlanCache {
	return &PlanCache{
		plans:       make(map[Signature]*Plan),
		accessOrder: make([]Signature, 0, maxSize),
		maxSize:     maxSize,
	}
}

// Get retrieves a plan, recording a hit and refreshing its recency.
func (c *PlanCache) Get(sig Signature) (*Plan, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	plan, ok := c.plans[sig]
	if !ok {
		c.stats.Misses.Add(1)
		return nil, false
	}
	c.stats.Hits.Add(1)
	plan.HitCount.Add(1)
	c.touch(sig)
	return plan, true
}

// Put inserts or replaces a plan, evicting the least recently used entry
// when the cache is full.
func (c *PlanCache) Put(plan *Plan) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.plans[plan.Signature]; exists {
		c.plans[plan.Signature] = plan
		c.touch(plan.Signature)
		return
	}

	if len(c.accessOrder) >= c.maxSize {
		c.evictLRU()
	}

	c.plans[plan.Signature] = plan
	c.accessOrder = append(c.accessOrder, plan.Signature)
	c.stats.CurrentSize.Store(int64(len(c.accessOrder)))
}

// Remove evicts a single plan.
func (c *PlanCache) Remove(sig Signature) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.plans, sig)
	c.removeFromAccessOrder(sig)
	c.stats.CurrentSize.Store(int64(len(c.accessOrder)))
}

// Stats returns a snapshot of cache counters.
func (c *PlanCache) Stats() *PlanCacheStats { return &c.stats }

func (c *PlanCache) touch(sig Signature) {
	c.removeFromAccessOrder(sig)
	c.accessOrder = append(c.accessOrder, sig)
}

func (c *PlanCache) evictLRU() {
	if len(c.accessOrder) == 0 {
		return
	}
	oldest := c.accessOrder[0]
	c.accessOrder = c.accessOrder[1:]
	delete(c.plans, oldest)
	c.stats.Evictions.Add(1)
	c.stats.CurrentSize.Store(int64(len(c.accessOrder)))
}

func (c *PlanCache) removeFromAccessOrder(sig Signature) {
	for i, s := range c.accessOrder {
		if s == sig {
			c.accessOrder = append(c.accessOrder[:i], c.accessOrder[i+1:]...)
			return
		}
	}
}
