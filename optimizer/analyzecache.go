package optimizer

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// analysisCache memoizes Analyze by normalized query text. It is kept
// separate from the plan cache because Optimizer.Explain returns raw
// Analysis for a query shape without paying for (or triggering) a full
// rewrite-and-plan cycle. Backed
// by hashicorp/golang-lru/v2 rather than a hand-rolled LRU, since this
// cache has no TTL or per-entry-mutation requirement — a plain
// size-bounded LRU is the right tool and the ecosystem already has one.
type analysisCache struct {
	cache *lru.Cache[string, Analysis]
}

func newAnalysisCache(size int) *analysisCache {
	if size <= 0 {
		size = 256
	}
	c, _ := lru.New[string, Analysis](size)
	return &analysisCache{cache: c}
}

func (a *analysisCache) get(cypher string) (Analysis, bool) {
	return a.cache.Get(normalizeCypher(cypher))
}

func (a *analysisCache) put(cypher string, analysis Analysis) {
	a.cache.Add(normalizeCypher(cypher), analysis)
}
