package validator

import (
	"testing"

	"github.com/graphkit/cyphercoord/config"
	"github.com/graphkit/cyphercoord/engine"
)

func testConfig() config.ValidatorConfig {
	return config.Defaults().Validator
}

type fakeSchema struct {
	nodes map[string]engine.TableDefinition
}

func (f fakeSchema) NodeTable(name string) (engine.TableDefinition, bool) {
	t, ok := f.nodes[name]
	return t, ok
}
func (f fakeSchema) RelationTable(name string) (engine.TableDefinition, bool) {
	return engine.TableDefinition{}, false
}
func (f fakeSchema) NodeTableNames() []string {
	names := make([]string, 0, len(f.nodes))
	for n := range f.nodes {
		names = append(names, n)
	}
	return names
}
func (f fakeSchema) RelationTableNames() []string { return nil }

func TestValidateAcceptsWellFormedQuery(t *testing.T) {
	v := New(testConfig(), nil)
	res, err := v.Validate(Query{
		ID:     "q1",
		Cypher: "MATCH (n:CodeEntity) WHERE n.name = $name RETURN n",
		Params: map[string]interface{}{"name": "foo"},
	})
	if err != nil {
		t.Fatalf("expected acceptance, got error: %v", err)
	}
	if res.Risk != RiskMinimal {
		t.Fatalf("expected minimal risk for a simple query, got %s", res.Risk)
	}
}

func TestValidateRejectsEmptyQuery(t *testing.T) {
	v := New(testConfig(), nil)
	if _, err := v.Validate(Query{Cypher: ""}); err == nil {
		t.Fatal("expected rejection of empty query")
	}
}

func TestValidateRejectsOversizedQuery(t *testing.T) {
	cfg := testConfig()
	cfg.MaxQueryLength = 10
	v := New(cfg, nil)
	if _, err := v.Validate(Query{Cypher: "MATCH (n) RETURN n"}); err == nil {
		t.Fatal("expected rejection of oversized query")
	}
}

func TestValidateRejectsInvalidParamName(t *testing.T) {
	v := New(testConfig(), nil)
	_, err := v.Validate(Query{
		Cypher: "MATCH (n) WHERE n.id = $1bad RETURN n",
		Params: map[string]interface{}{"1bad": "x"},
	})
	if err == nil {
		t.Fatal("expected rejection of an invalid param name")
	}
}

func TestValidateRejectsDisallowedKeyword(t *testing.T) {
	v := New(testConfig(), nil)
	_, err := v.Validate(Query{Cypher: "CALL db.createUser('x') RETURN 1"})
	if err == nil {
		t.Fatal("expected rejection of a non-allow-listed keyword")
	}
}

func TestValidateRejectsInjectionPattern(t *testing.T) {
	v := New(testConfig(), nil)
	_, err := v.Validate(Query{Cypher: "MATCH (n) RETURN n, ${evil}"})
	if err == nil {
		t.Fatal("expected rejection on injection pattern")
	}
	var ierr *InjectionError
	if ie, ok := err.(*InjectionError); ok {
		ierr = ie
	}
	if ierr == nil {
		t.Fatalf("expected *InjectionError, got %T", err)
	}
}

func TestValidateRejectsUnbalancedBrackets(t *testing.T) {
	v := New(testConfig(), nil)
	_, err := v.Validate(Query{Cypher: "MATCH (n RETURN n"})
	if err == nil {
		t.Fatal("expected rejection of unbalanced brackets")
	}
}

func TestValidateWarnsOnUnboundParamReference(t *testing.T) {
	v := New(testConfig(), nil)
	res, err := v.Validate(Query{Cypher: "MATCH (n) WHERE n.id = $missing RETURN n"})
	if err != nil {
		t.Fatalf("unbound param reference must warn, not reject: %v", err)
	}
	if !res.Valid {
		t.Fatal("expected the result to remain valid")
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected a warning about the unbound param reference")
	}
}

func TestValidateWarnsOnUnusedParam(t *testing.T) {
	v := New(testConfig(), nil)
	res, err := v.Validate(Query{
		Cypher: "MATCH (n) RETURN n",
		Params: map[string]interface{}{"unused": "x"},
	})
	if err != nil {
		t.Fatalf("unused param must warn, not reject: %v", err)
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected a warning about the unused param")
	}
}

func TestValidateSanitizesComments(t *testing.T) {
	cfg := testConfig()
	cfg.SanitizeByDefault = true
	cfg.MaxComplexity = 1
	v := New(cfg, nil)
	res, err := v.Validate(Query{Cypher: "MATCH (n) -- trailing comment\nRETURN n"})
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	if !res.Sanitized {
		t.Fatal("expected the query to be marked sanitized")
	}
}

func TestValidateRejectsOverlyComplexQuery(t *testing.T) {
	cfg := testConfig()
	cfg.MaxComplexity = 1
	v := New(cfg, nil)
	_, err := v.Validate(Query{Cypher: "MATCH (a) MATCH (b) MATCH (c) RETURN a, b, c"})
	if err == nil {
		t.Fatal("expected rejection for exceeding the complexity budget")
	}
}

func TestValidateRejectsUnknownPropertyAgainstSchema(t *testing.T) {
	schema := fakeSchema{nodes: map[string]engine.TableDefinition{
		"CodeEntity": {Name: "CodeEntity", Properties: []engine.PropertyDefinition{{Name: "name", Type: "STRING"}}},
	}}
	v := New(testConfig(), schema)
	_, err := v.Validate(Query{
		Cypher: "MATCH (n:CodeEntity) WHERE n.bogus = $x RETURN n",
		Params: map[string]interface{}{"x": "v"},
	})
	if err == nil {
		t.Fatal("expected rejection of a property not present in the schema")
	}
}

func TestValidateAcceptsKnownPropertyAgainstSchema(t *testing.T) {
	schema := fakeSchema{nodes: map[string]engine.TableDefinition{
		"CodeEntity": {Name: "CodeEntity", Properties: []engine.PropertyDefinition{{Name: "name", Type: "STRING"}}},
	}}
	v := New(testConfig(), schema)
	_, err := v.Validate(Query{
		Cypher: "MATCH (n:CodeEntity) WHERE n.name = $x RETURN n",
		Params: map[string]interface{}{"x": "v"},
	})
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
}

func TestValidateWarnsOnDisallowedKeywordWhenNotStrict(t *testing.T) {
	cfg := testConfig()
	cfg.StrictMode = false
	v := New(cfg, nil)
	res, err := v.Validate(Query{Cypher: "CALL proc() RETURN 1"})
	if err != nil {
		t.Fatalf("non-strict mode must warn, not reject: %v", err)
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected a warning about the disallowed keyword")
	}
}

func TestValidateWarnsOnOverComplexQueryWhenNotStrict(t *testing.T) {
	cfg := testConfig()
	cfg.StrictMode = false
	cfg.MaxComplexity = 1
	v := New(cfg, nil)
	res, err := v.Validate(Query{Cypher: "MATCH (a) MATCH (b) MATCH (c) RETURN a, b, c"})
	if err != nil {
		t.Fatalf("non-strict mode must warn, not reject: %v", err)
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected a warning about exceeding the complexity budget")
	}
}

func TestValidateNonStrictRunsAllStepsAfterAnError(t *testing.T) {
	cfg := testConfig()
	cfg.StrictMode = false
	cfg.MaxQueryLength = 10
	v := New(cfg, nil)
	res, err := v.Validate(Query{Cypher: "MATCH (n) WHERE n.id = $missing RETURN n"})
	if err == nil {
		t.Fatal("expected the oversized-query error to still be recorded")
	}
	if res.Valid {
		t.Fatal("expected Valid to be false")
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected the pipeline to keep running past the error and record the unbound-param warning too")
	}
}

func TestErrorFormatRespectsDebugMode(t *testing.T) {
	e := newError("E_TEST", "boom", RiskLow, nil)
	if got := e.FormatError(false); got != "E_TEST: boom" {
		t.Fatalf("unexpected terse format: %q", got)
	}
	if got := e.FormatError(true); got == "" {
		t.Fatal("expected non-empty debug format")
	}
}

func TestStatsTrackAcceptedAndRejected(t *testing.T) {
	v := New(testConfig(), nil)
	if _, err := v.Validate(Query{Cypher: "MATCH (n) RETURN n"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := v.Validate(Query{Cypher: ""}); err == nil {
		t.Fatal("expected rejection")
	}
	stats := v.Stats()
	if stats.Accepted.Load() != 1 {
		t.Fatalf("expected 1 accepted, got %d", stats.Accepted.Load())
	}
	if stats.Rejected.Load() != 1 {
		t.Fatalf("expected 1 rejected, got %d", stats.Rejected.Load())
	}
}
