// Package engine defines the external collaborator contract cyphercoord
// expects from the embedded graph database it orchestrates. Nothing in this
// package binds to a concrete engine (Kuzu or otherwise) — that is supplied
// by the caller, mirroring the teacher's transport.ConnectionInterface split
// between protocol definition and concrete TCP/mock transports.
package engine

import "context"

// Row is a single result row: column name to scalar or graph value.
// The stream and the rest of cyphercoord treat rows opaquely.
type Row map[string]interface{}

// RowIterator yields Row values from a single query execution.
type RowIterator interface {
	// Next advances to the next row, returning false when exhausted or on
	// error (check Err after Next returns false).
	Next(ctx context.Context) bool
	// Row returns the current row. Valid only after a true Next.
	Row() Row
	// Err returns the first error encountered, if any.
	Err() error
	// Close releases iterator resources.
	Close() error
}

// Connection is a single logical connection to the graph engine. Only one
// Transaction may hold a Connection at a time (see the txn package).
type Connection interface {
	// Query executes a single Cypher statement with no native bind
	// parameters. The validator does not inline parameters: the batch
	// executor inlines them into the query text before calling Query, while
	// Coordinator.Execute and txn.Transaction.Query pass the validated text,
	// $name references included, through unchanged.
	Query(ctx context.Context, cypher string) (RowIterator, error)

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error

	// Close releases the connection.
	Close() error

	// TransactionalConnection, if the underlying engine supports native
	// transaction control, exposes it; ok is false when the engine has no
	// native transaction support. There is no fallback to BEGIN/COMMIT/
	// ROLLBACK issued as plain queries: txn.Manager.Begin rejects such a
	// connection, and the batch executor runs a transactional chunk's
	// operations individually on it.
	TransactionalConnection() (TxConnection, bool)
}

// TxConnection is the native transaction control surface a Connection may
// optionally expose.
type TxConnection interface {
	BeginTx(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Savepoint(ctx context.Context, id string) error
	ReleaseSavepoint(ctx context.Context, id string) error
	RollbackToSavepoint(ctx context.Context, id string) error
}

// Database is an opened handle to the graph database's storage; Connect
// yields Connections against it.
type Database interface {
	Connect(ctx context.Context) (Connection, error)
	Close() error
}

// Open opens a Database at path. Supplied by the caller; cyphercoord itself
// never constructs one (it only consumes the interface), matching §6's
// "engine driver contract (consumed)".
type Open func(path string) (Database, error)

// PropertyDefinition describes a single property of a node or relation
// table in the schema bootstrap fixture (§6).
type PropertyDefinition struct {
	Name string
	Type string
}

// TableDefinition describes one bootstrapped node or relation table.
type TableDefinition struct {
	Name       string
	Properties []PropertyDefinition
}

// SchemaView is the read-only schema surface the validator consults for
// field-existence checks. Schema bootstrap itself (creating the fixed
// CodeEntity/Pattern/Rule/Standard/Decision node tables and
// IMPLEMENTS/DEPENDS_ON/VIOLATES/FOLLOWS/SUPPORTS relation tables) is
// explicitly out of scope per §6; cyphercoord only reads from it.
type SchemaView interface {
	NodeTable(name string) (TableDefinition, bool)
	RelationTable(name string) (TableDefinition, bool)
	NodeTableNames() []string
	RelationTableNames() []string
}
