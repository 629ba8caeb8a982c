package validator

import "regexp"

// securityPattern is one compiled rejection rule from spec §4.1 step 4,
// grounded on iperfex-team-burrowctl/server/sql_validator.go's
// compileInjectionPatterns, adapted from SQL injection signatures to the
// Cypher-specific threats spec.md names: stacked DDL after `;`, inline
// comments, EXEC/EVAL/SYSTEM(, template-literal interpolation, and a
// tool-specific surface pattern (CALL { … } subqueries and administrative
// procedures, which Kuzu-style Cypher does not expose to callers).
type securityPattern struct {
	name string
	re   *regexp.Regexp
}

var securityPatterns = compileSecurityPatterns()

func compileSecurityPatterns() []securityPattern {
	specs := []struct {
		name    string
		pattern string
	}{
		{"stacked_ddl", `(?i);\s*(DROP|TRUNCATE|ALTER)\b`},
		{"line_comment", `--[^\n]*`},
		{"block_comment", `/\*.*?\*/`},
		{"exec_eval_system", `(?i)\b(EXEC|EVAL|SYSTEM)\s*\(`},
		{"template_dollar", `\$\{[^}]*\}`},
		{"template_ejs", `<%[^%]*%>`},
		{"call_subquery", `(?i)\bCALL\s*\{`},
		{"admin_procedure", `(?i)\bCALL\s+db\.(loadCSV|createUser|dropUser|grantRole)\b`},
		{"file_load", `(?i)\bLOAD\s+CSV\b`},
	}

	out := make([]securityPattern, 0, len(specs))
	for _, s := range specs {
		out = append(out, securityPattern{name: s.name, re: regexp.MustCompile(s.pattern)})
	}
	return out
}

// detectSecurityViolation returns the first matching pattern name and the
// matched substring, or ("", "", false) if the query is clean.
func detectSecurityViolation(query string) (name, matched string, found bool) {
	for _, p := range securityPatterns {
		if loc := p.re.FindStringIndex(query); loc != nil {
			return p.name, query[loc[0]:loc[1]], true
		}
	}
	return "", "", false
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validIdentifier reports whether name matches the parameter-name pattern
// from spec §3: [A-Za-z_][A-Za-z0-9_]*.
func validIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

var paramRefPattern = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)

// extractParamRefs finds every $name reference in a query.
func extractParamRefs(query string) []string {
	matches := paramRefPattern.FindAllStringSubmatch(query, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

var bareTokenPattern = regexp.MustCompile(`\b[A-Z][A-Z_]{1,30}\b`)

// extractBareTokens returns every bare uppercase token (candidate Cypher
// keyword) in the query, for the keyword allow-list check.
func extractBareTokens(query string) []string {
	return bareTokenPattern.FindAllString(query, -1)
}

var propertyRefPattern = regexp.MustCompile(`\b[A-Za-z_][A-Za-z0-9_]*\.([A-Za-z_][A-Za-z0-9_]*)\b`)

// extractPropertyRefs finds every var.property reference in a query. It
// does not resolve var back to a node/relation label, so the caller can
// only check a property name against the schema's full property set, not
// against the specific table the variable is bound to.
func extractPropertyRefs(query string) []string {
	matches := propertyRefPattern.FindAllStringSubmatch(query, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}
