// Package bootstrap creates the persisted-state working directory layout
// described in spec §6: a root directory containing the database files plus
// auxiliary subdirectories, each preserved in source control with an empty
// marker file. Schema bootstrap (node/relation table creation) itself is out
// of scope — this package only prepares the filesystem layout consumed by
// it.
package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/graphkit/cyphercoord/engine"
)

// Subdirectories created under the working directory on first run.
var Subdirectories = []string{"backups", "exports", "imports", "logs", "cache", "temp"}

// FixedNodeTables are the node tables schema bootstrap must create.
var FixedNodeTables = []string{"CodeEntity", "Pattern", "Rule", "Standard", "Decision"}

// FixedRelationTables are the relation tables schema bootstrap must create.
var FixedRelationTables = []string{"IMPLEMENTS", "DEPENDS_ON", "VIOLATES", "FOLLOWS", "SUPPORTS"}

// markerFile is the empty file written into each subdirectory so it survives
// in source control even while empty, grounded on the teacher's migration
// directory-marker convention.
const markerFile = ".gitkeep"

// EnsureLayout creates WorkingDir and every subdirectory in Subdirectories
// under it, each containing an empty marker file, and returns the resolved
// absolute root path.
func EnsureLayout(workingDir string) (string, error) {
	root, err := filepath.Abs(workingDir)
	if err != nil {
		return "", fmt.Errorf("bootstrap: resolving working dir: %w", err)
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("bootstrap: creating working dir %s: %w", root, err)
	}

	for _, sub := range Subdirectories {
		dir := filepath.Join(root, sub)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("bootstrap: creating %s: %w", dir, err)
		}
		marker := filepath.Join(dir, markerFile)
		if _, err := os.Stat(marker); os.IsNotExist(err) {
			if err := os.WriteFile(marker, nil, 0o644); err != nil {
				return "", fmt.Errorf("bootstrap: writing marker in %s: %w", dir, err)
			}
		}
	}

	return root, nil
}

// BuildFixedSchema constructs the fixed node/relation table definitions
// schema bootstrap (out of scope) is expected to create, so the validator's
// SchemaView fixture can be populated consistently in tests and by callers
// who have not yet wired a live engine.SchemaView.
func BuildFixedSchema(nodeProps, relationProps map[string][]engine.PropertyDefinition) *schemaView {
	nodes := make([]engine.TableDefinition, 0, len(FixedNodeTables))
	for _, name := range FixedNodeTables {
		nodes = append(nodes, engine.TableDefinition{Name: name, Properties: nodeProps[name]})
	}
	relations := make([]engine.TableDefinition, 0, len(FixedRelationTables))
	for _, name := range FixedRelationTables {
		relations = append(relations, engine.TableDefinition{Name: name, Properties: relationProps[name]})
	}
	return newSchemaView(nodes, relations)
}

type schemaView struct {
	nodes     map[string]engine.TableDefinition
	relations map[string]engine.TableDefinition
}

func newSchemaView(nodes, relations []engine.TableDefinition) *schemaView {
	sv := &schemaView{nodes: make(map[string]engine.TableDefinition), relations: make(map[string]engine.TableDefinition)}
	for _, n := range nodes {
		sv.nodes[n.Name] = n
	}
	for _, r := range relations {
		sv.relations[r.Name] = r
	}
	return sv
}

func (s *schemaView) NodeTable(name string) (engine.TableDefinition, bool) {
	t, ok := s.nodes[name]
	return t, ok
}

func (s *schemaView) RelationTable(name string) (engine.TableDefinition, bool) {
	t, ok := s.relations[name]
	return t, ok
}

func (s *schemaView) NodeTableNames() []string {
	out := make([]string, 0, len(s.nodes))
	for n := range s.nodes {
		out = append(out, n)
	}
	return out
}

func (s *schemaView) RelationTableNames() []string {
	out := make([]string, 0, len(s.relations))
	for n := range s.relations {
		out = append(out, n)
	}
	return out
}
