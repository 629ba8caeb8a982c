package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureLayoutCreatesAllSubdirectories(t *testing.T) {
	dir := t.TempDir()
	root, err := EnsureLayout(filepath.Join(dir, "data"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, sub := range Subdirectories {
		marker := filepath.Join(root, sub, ".gitkeep")
		if _, err := os.Stat(marker); err != nil {
			t.Fatalf("expected marker file at %s: %v", marker, err)
		}
	}
}

func TestEnsureLayoutIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "data")

	if _, err := EnsureLayout(target); err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	if _, err := EnsureLayout(target); err != nil {
		t.Fatalf("second call failed: %v", err)
	}
}

func TestBuildFixedSchemaHasAllFixedTables(t *testing.T) {
	sv := BuildFixedSchema(nil, nil)

	for _, name := range FixedNodeTables {
		if _, ok := sv.NodeTable(name); !ok {
			t.Fatalf("expected fixed node table %s", name)
		}
	}
	for _, name := range FixedRelationTables {
		if _, ok := sv.RelationTable(name); !ok {
			t.Fatalf("expected fixed relation table %s", name)
		}
	}
}
