package optimizer

import (
	"github.com/graphkit/cyphercoord/config"
)

// Optimized is the result of running a validated query through the
// optimizer: its compiled plan, any cached result already available, and
// whether the plan came from cache.
type Optimized struct {
	Plan        *Plan
	CachedRows  []map[string]interface{}
	ResultHit   bool
	PlanHit     bool
	ResultKey   Signature
}

// Optimizer analyzes, rewrites, and caches query plans and results.
type Optimizer struct {
	cfg      config.OptimizerConfig
	plans    *PlanCache
	results  *ResultCache
	analyses *analysisCache
}

// New builds an Optimizer from configuration.
func New(cfg config.OptimizerConfig) *Optimizer {
	return &Optimizer{
		cfg:      cfg,
		plans:    NewPlanCache(cfg.PlanCacheSize),
		results:  NewResultCache(cfg.ResultCacheSize, cfg.BaseTTL),
		analyses: newAnalysisCache(cfg.PlanCacheSize),
	}
}

// Explain returns the structural Analysis for cypher without rewriting or
// compiling a plan, memoized by normalized query text.
func (o *Optimizer) Explain(cypher string) Analysis {
	if a, ok := o.analyses.get(cypher); ok {
		return a
	}
	a := Analyze(cypher)
	o.analyses.put(cypher, a)
	return a
}

// Optimize analyzes cypher/params, reusing a cached plan when the query
// shape has been seen before, and reports whether a cached result is
// already available for the exact param values.
func (o *Optimizer) Optimize(cypher string, params map[string]interface{}) *Optimized {
	planSig := PlanSignature(cypher, params)
	resultSig := ResultSignature(cypher, params)

	opt := &Optimized{ResultKey: resultSig}

	if plan, ok := o.plans.Get(planSig); ok {
		opt.Plan = plan
		opt.PlanHit = true
	} else {
		rewritten, applied := ApplyRules(cypher, o.cfg.ConservativeRewrite)
		analysis := Analyze(rewritten)
		plan = &Plan{
			Signature: planSig,
			Cypher:    rewritten,
			Analysis:  analysis,
			Rewrites:  applied,
		}
		o.plans.Put(plan)
		opt.Plan = plan
	}

	if rows, ok := o.results.Get(resultSig); ok {
		opt.CachedRows = rows.Rows
		opt.ResultHit = true
	}

	return opt
}

// CacheResult stores a freshly computed result set under the key produced
// by the matching Optimize call, computing an adaptive initial TTL from the
// plan's complexity, the result's estimated size, and whether the
// statement is a CREATE/MERGE (spec's adaptive-TTL formula).
func (o *Optimizer) CacheResult(opt *Optimized, rows []map[string]interface{}) {
	complexity := 0
	cypher := ""
	if opt.Plan != nil {
		complexity = opt.Plan.Analysis.Complexity
		cypher = opt.Plan.Cypher
	}
	ttl := computeInitialTTL(o.cfg.BaseTTL, complexity, cypher, rows)
	o.results.PutWithTTL(opt.ResultKey, CachedResult{Rows: rows}, ttl)
}

// InvalidateResult drops a single cached result, used after a write
// statement that may have changed the data the result was computed from.
func (o *Optimizer) InvalidateResult(key Signature) {
	o.results.Invalidate(key)
}

// Sweep removes expired result-cache entries. The coordinator calls it
// every cfg.SweepInterval.
func (o *Optimizer) Sweep() int { return o.results.Sweep() }

// PlanCacheStats exposes the plan cache's counters.
func (o *Optimizer) PlanCacheStats() *PlanCacheStats { return o.plans.Stats() }

// ResultCacheStats exposes the result cache's counters.
func (o *Optimizer) ResultCacheStats() (hits, misses, evictions, expirations int64) {
	return o.results.Stats()
}
