package optimizer

import (
	"testing"
	"time"

	"github.com/graphkit/cyphercoord/config"
)

func TestPlanSignatureIgnoresParamValues(t *testing.T) {
	a := PlanSignature("MATCH (n) WHERE n.id = $id RETURN n", map[string]interface{}{"id": 1})
	b := PlanSignature("MATCH (n) WHERE n.id = $id RETURN n", map[string]interface{}{"id": 2})
	if a != b {
		t.Fatal("expected plan signature to ignore parameter values")
	}
}

func TestResultSignatureDependsOnParamValues(t *testing.T) {
	a := ResultSignature("MATCH (n) WHERE n.id = $id RETURN n", map[string]interface{}{"id": 1})
	b := ResultSignature("MATCH (n) WHERE n.id = $id RETURN n", map[string]interface{}{"id": 2})
	if a == b {
		t.Fatal("expected result signature to vary with parameter values")
	}
}

func TestAnalyzeFlagsMultiMatchWithoutFilter(t *testing.T) {
	a := Analyze("MATCH (a) MATCH (b) RETURN a, b")
	if !a.HasMultiMatch {
		t.Fatal("expected multi-match detection")
	}
	if len(a.Bottlenecks) == 0 {
		t.Fatal("expected a bottleneck to be flagged")
	}
}

func TestApplyRulesCollapsesRedundantDistinct(t *testing.T) {
	out, applied := ApplyRules("MATCH (n) RETURN DISTINCT DISTINCT n", false)
	if out == "MATCH (n) RETURN DISTINCT DISTINCT n" {
		t.Fatal("expected the redundant DISTINCT to be collapsed")
	}
	if len(applied) == 0 {
		t.Fatal("expected a rewrite to be recorded")
	}
}

func TestApplyRulesSkipsAggressiveRulesWhenConservative(t *testing.T) {
	cypher := "MATCH (n) WHERE n.id = $id RETURN n"
	out, applied := ApplyRules(cypher, true)
	if out != cypher {
		t.Fatalf("expected no change in conservative mode, got %q", out)
	}
	for _, r := range applied {
		if r.Aggressive {
			t.Fatalf("aggressive rule %s should not apply in conservative mode", r.Name)
		}
	}
}

func TestPlanCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewPlanCache(2)
	c.Put(&Plan{Signature: 1})
	c.Put(&Plan{Signature: 2})
	c.Get(1) // touch 1, making 2 the LRU
	c.Put(&Plan{Signature: 3})

	if _, ok := c.Get(2); ok {
		t.Fatal("expected signature 2 to have been evicted")
	}
	if _, ok := c.Get(1); !ok {
		t.Fatal("expected signature 1 to survive")
	}
	if _, ok := c.Get(3); !ok {
		t.Fatal("expected signature 3 to be present")
	}
}

func TestResultCacheExpiresAfterTTL(t *testing.T) {
	c := NewResultCache(10, time.Millisecond)
	c.Put(1, CachedResult{Rows: []map[string]interface{}{{"a": 1}}})
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get(1); ok {
		t.Fatal("expected entry to have expired")
	}
	_, misses, _, expirations := c.Stats()
	if misses == 0 || expirations == 0 {
		t.Fatalf("expected miss and expiration to be recorded, got misses=%d expirations=%d", misses, expirations)
	}
}

func TestResultCacheExtendsTTLOnlyPastFiveHits(t *testing.T) {
	c := NewResultCache(10, 10*time.Millisecond)
	c.Put(1, CachedResult{Rows: nil})
	for i := 0; i < 5; i++ {
		if _, ok := c.Get(1); !ok {
			t.Fatalf("expected hit on access %d", i)
		}
	}
	if c.entries[1].effTTL != 10*time.Millisecond {
		t.Fatalf("expected no extension within the first 5 hits, got %v", c.entries[1].effTTL)
	}

	for i := 0; i < 10; i++ {
		if _, ok := c.Get(1); !ok {
			t.Fatalf("expected hit on access %d", i)
		}
	}
	entry := c.entries[1]
	if entry.effTTL <= 10*time.Millisecond {
		t.Fatalf("expected TTL to have extended past the 5-hit threshold, got %v", entry.effTTL)
	}
	if entry.effTTL > 10*time.Millisecond*resultCacheMaxTTLMultiple {
		t.Fatalf("expected TTL to respect the 5x ceiling, got %v", entry.effTTL)
	}
}

func TestComputeInitialTTLAppliesComplexityCapAndAdjustments(t *testing.T) {
	base := 10 * time.Millisecond

	plain := computeInitialTTL(base, 0, "MATCH (n) RETURN n", []map[string]interface{}{{"n": 1}})
	if plain != time.Duration(float64(base)*1.5) {
		t.Fatalf("expected a small result to earn the 1.5x size bonus, got %v", plain)
	}

	big := make([]map[string]interface{}, 0)
	for i := 0; i < 200; i++ {
		big = append(big, map[string]interface{}{"n": "a fairly long string value to pad out the payload size"})
	}
	noBonus := computeInitialTTL(base, 0, "MATCH (n) RETURN n", big)
	if noBonus != base {
		t.Fatalf("expected a large result to skip the size bonus, got %v", noBonus)
	}

	write := computeInitialTTL(base, 0, "CREATE (n:Foo) RETURN n", []map[string]interface{}{{"n": 1}})
	if write != time.Duration(float64(base)*1.5*0.5) {
		t.Fatalf("expected CREATE to halve the TTL after the size bonus, got %v", write)
	}

	capped := computeInitialTTL(base, 100, "CREATE (n:Foo) RETURN n", big)
	ceiling := base * resultCacheMaxTTLMultiple
	if capped > ceiling {
		t.Fatalf("expected the combined TTL to respect the 5x ceiling, got %v", capped)
	}
}

func TestOptimizeReusesPlanOnSecondCall(t *testing.T) {
	cfg := testOptimizerConfig()
	o := New(cfg)
	params := map[string]interface{}{"id": 1}
	first := o.Optimize("MATCH (n) WHERE n.id = $id RETURN n", params)
	if first.PlanHit {
		t.Fatal("expected the first call to miss the plan cache")
	}
	second := o.Optimize("MATCH (n) WHERE n.id = $id RETURN n", params)
	if !second.PlanHit {
		t.Fatal("expected the second call to hit the plan cache")
	}
}

func TestOptimizeCachesAndReturnsResults(t *testing.T) {
	cfg := testOptimizerConfig()
	o := New(cfg)
	params := map[string]interface{}{"id": 1}
	opt := o.Optimize("MATCH (n) RETURN n", params)
	if opt.ResultHit {
		t.Fatal("expected no cached result on first call")
	}
	o.CacheResult(opt, []map[string]interface{}{{"n": 1}})

	second := o.Optimize("MATCH (n) RETURN n", params)
	if !second.ResultHit {
		t.Fatal("expected the cached result to be returned")
	}
}

func TestExplainMemoizesAnalysis(t *testing.T) {
	o := New(testOptimizerConfig())
	first := o.Explain("MATCH (a) MATCH (b) RETURN a, b")
	second := o.Explain("match (a) match (b) return a, b")
	if first.Complexity != second.Complexity {
		t.Fatalf("expected memoized analysis for a case-normalized repeat, got %+v vs %+v", first, second)
	}
}

func testOptimizerConfig() config.OptimizerConfig {
	return config.OptimizerConfig{
		PlanCacheSize:       10,
		ResultCacheSize:     10,
		BaseTTL:             time.Minute,
		ConservativeRewrite: false,
		SweepInterval:       time.Minute,
	}
}
