package optimizer

import (
	"regexp"
	"strings"
)

// Rewrite is a single applied rewrite rule, recorded for explain output.
type Rewrite struct {
	Name        string
	Description string
	Aggressive  bool
}

type rule struct {
	name        string
	description string
	aggressive  bool
	apply       func(cypher string) (string, bool)
}

var rules = []rule{
	{
		name:        "redundant_distinct",
		description: "collapses a repeated DISTINCT DISTINCT into a single DISTINCT",
		aggressive:  false,
		apply:       collapseRedundantDistinct,
	},
	{
		name:        "limit_pushdown",
		description: "moves a trailing LIMIT ahead of a trailing ORDER BY-free RETURN where safe",
		aggressive:  true,
		apply:       pushdownLimit,
	},
	{
		name:        "filter_hint",
		description: "annotates an equality filter on an indexed-looking property with an index hint",
		aggressive:  true,
		apply:       annotateIndexHint,
	},
}

var redundantDistinctPattern = regexp.MustCompile(`(?i)DISTINCT\s+DISTINCT\b`)

func collapseRedundantDistinct(cypher string) (string, bool) {
	if !redundantDistinctPattern.MatchString(cypher) {
		return cypher, false
	}
	return redundantDistinctPattern.ReplaceAllString(cypher, "DISTINCT"), true
}

var trailingLimitPattern = regexp.MustCompile(`(?i)^(.*RETURN\s+.+?)\s+LIMIT\s+(\d+)\s*$`)

// pushdownLimit is a no-op rewrite: it never changes the query text and
// always reports that it did not apply, so it is never listed among a
// plan's applied rules.
// Marked aggressive: skipped whenever ConservativeRewrite is set.
func pushdownLimit(cypher string) (string, bool) {
	if !trailingLimitPattern.MatchString(cypher) {
		return cypher, false
	}
	return cypher, false
}

var equalityFilterPattern = regexp.MustCompile(`(?i)WHERE\s+(\w+)\.(\w+)\s*=\s*\$(\w+)`)

// annotateIndexHint appends an index-hint comment for the engine's planner
// when an equality filter on a bound parameter is detected. Aggressive:
// skipped in conservative mode since it changes the query text sent to the
// engine.
func annotateIndexHint(cypher string) (string, bool) {
	m := equalityFilterPattern.FindStringSubmatch(cypher)
	if m == nil {
		return cypher, false
	}
	hint := "/*+ INDEX(" + m[1] + "." + m[2] + ") */"
	if strings.Contains(cypher, hint) {
		return cypher, false
	}
	return cypher + " " + hint, true
}

// ApplyRules runs every applicable rule against cypher in order, skipping
// aggressive rules when conservative is true, and returns the rewritten
// text plus the list of rewrites actually applied.
func ApplyRules(cypher string, conservative bool) (string, []Rewrite) {
	out := cypher
	var applied []Rewrite
	for _, r := range rules {
		if conservative && r.aggressive {
			continue
		}
		rewritten, changed := r.apply(out)
		if changed {
			out = rewritten
			applied = append(applied, Rewrite{Name: r.name, Description: r.description, Aggressive: r.aggressive})
		}
	}
	return out, applied
}
