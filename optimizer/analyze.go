package optimizer

import "strings"

// Analysis summarizes the structural shape of a Cypher statement. It is
// attached to every Plan, its Complexity sets the adaptive result-cache
// TTL, and Optimizer.Explain returns it directly.
type Analysis struct {
	Complexity      int
	ClauseCounts    map[string]int
	HasFilter       bool
	HasMultiMatch   bool
	HasAggregation  bool
	HasUnboundedVar bool
	Bottlenecks     []string
}

var aggregationFns = []string{"COUNT(", "SUM(", "AVG(", "MIN(", "MAX(", "COLLECT("}

// Analyze inspects cypher and produces an Analysis. It is grounded on the
// teacher's schema_validator.go clause-scanning approach, generalized to
// also flag the patterns the optimizer's rewrite rules act on.
func Analyze(cypher string) Analysis {
	upper := strings.ToUpper(cypher)
	counts := map[string]int{
		"MATCH":  strings.Count(upper, "MATCH"),
		"WHERE":  strings.Count(upper, "WHERE"),
		"CREATE": strings.Count(upper, "CREATE"),
		"MERGE":  strings.Count(upper, "MERGE"),
		"WITH":   strings.Count(upper, "WITH"),
		"UNWIND": strings.Count(upper, "UNWIND"),
		"ORDER":  strings.Count(upper, "ORDER"),
	}

	a := Analysis{ClauseCounts: counts}
	a.HasFilter = counts["WHERE"] > 0
	a.HasMultiMatch = counts["MATCH"] > 1

	for _, fn := range aggregationFns {
		if strings.Contains(upper, fn) {
			a.HasAggregation = true
			break
		}
	}

	a.HasUnboundedVar = strings.Contains(cypher, "()") && !strings.Contains(upper, "LIMIT")

	a.Complexity = counts["MATCH"]*1 + counts["MERGE"]*3 + counts["CREATE"]*2 +
		counts["WITH"] + counts["UNWIND"]*2 + counts["ORDER"]

	if a.HasMultiMatch && !a.HasFilter {
		a.Bottlenecks = append(a.Bottlenecks, "multiple MATCH clauses with no WHERE filter")
	}
	if a.HasUnboundedVar {
		a.Bottlenecks = append(a.Bottlenecks, "unbounded pattern with no LIMIT")
	}
	if a.HasAggregation && a.HasMultiMatch {
		a.Bottlenecks = append(a.Bottlenecks, "aggregation over a multi-pattern match")
	}

	return a
}
