// Package enginemock provides an in-memory fake of the engine package's
// interfaces, grounded on the teacher's transport/mock fluent-configuration
// idiom (WithX builder methods plus call counters), adapted from a raw
// byte-transport mock to a row-producing query mock.
package enginemock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/graphkit/cyphercoord/engine"
)

// Database is an in-memory engine.Database. Each Connect yields the
// Connection built by the connector passed to NewDatabase, or a fresh
// NewConnection with no canned responses when that connector is nil.
type Database struct {
	mu       sync.Mutex
	closed   bool
	connector func(ctx context.Context) (*Connection, error)
}

// NewDatabase creates a mock database. newConn, if nil, uses NewConnection.
func NewDatabase(newConn func(ctx context.Context) (*Connection, error)) *Database {
	return &Database{connector: newConn}
}

func (d *Database) Connect(ctx context.Context) (engine.Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, fmt.Errorf("enginemock: database closed")
	}
	if d.connector != nil {
		return d.connector(ctx)
	}
	return NewConnection(), nil
}

func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Connection is a configurable fake engine.Connection.
type Connection struct {
	mu         sync.Mutex
	closed     bool
	pingErr    error
	queryErr   error
	queryCalls atomic.Int32
	pingCalls  atomic.Int32
	// responses maps a query string to the rows it should yield. Queries
	// not present yield no rows.
	responses map[string][]engine.Row
	// queryErrs maps a query string to the error it should fail with,
	// independent of the blanket queryErr.
	queryErrs map[string]error
	// lastQueries records every query string seen, for assertions.
	lastQueries []string
	txSupport   *txConnection
}

// NewConnection creates a mock connection with no canned responses.
func NewConnection() *Connection {
	return &Connection{responses: make(map[string][]engine.Row)}
}

// WithPingError configures Ping to fail with err.
func (c *Connection) WithPingError(err error) *Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pingErr = err
	return c
}

// WithQueryError configures Query to fail with err for every call.
func (c *Connection) WithQueryError(err error) *Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queryErr = err
	return c
}

// WithResponse registers the rows returned for an exact query string.
func (c *Connection) WithResponse(query string, rows []engine.Row) *Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses[query] = rows
	return c
}

// WithErrorFor configures Query to fail with err only for the given exact
// query string, leaving every other query unaffected.
func (c *Connection) WithErrorFor(query string, err error) *Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.queryErrs == nil {
		c.queryErrs = make(map[string]error)
	}
	c.queryErrs[query] = err
	return c
}

// WithTransactionSupport enables the native transaction control surface.
func (c *Connection) WithTransactionSupport() *Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.txSupport = newTxConnection()
	return c
}

// QueryCount returns how many times Query was called.
func (c *Connection) QueryCount() int { return int(c.queryCalls.Load()) }

// LastQueries returns a copy of every query string observed.
func (c *Connection) LastQueries() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.lastQueries))
	copy(out, c.lastQueries)
	return out
}

func (c *Connection) Query(ctx context.Context, cypher string) (engine.RowIterator, error) {
	c.queryCalls.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastQueries = append(c.lastQueries, cypher)

	if c.queryErr != nil {
		return nil, c.queryErr
	}
	if err, ok := c.queryErrs[cypher]; ok {
		return nil, err
	}
	rows, ok := c.responses[cypher]
	if !ok {
		rows = []engine.Row{}
	}
	return &rowIterator{rows: rows, idx: -1}, nil
}

func (c *Connection) Ping(ctx context.Context) error {
	c.pingCalls.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pingErr
}

func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Connection) TransactionalConnection() (engine.TxConnection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.txSupport == nil {
		return nil, false
	}
	return c.txSupport, true
}

type rowIterator struct {
	rows []engine.Row
	idx  int
	err  error
}

func (it *rowIterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	it.idx++
	return it.idx < len(it.rows)
}

func (it *rowIterator) Row() engine.Row {
	if it.idx < 0 || it.idx >= len(it.rows) {
		return nil
	}
	return it.rows[it.idx]
}

func (it *rowIterator) Err() error { return it.err }

func (it *rowIterator) Close() error { return nil }

type txConnection struct {
	mu         sync.Mutex
	active     bool
	savepoints map[string]bool
}

func newTxConnection() *txConnection {
	return &txConnection{savepoints: make(map[string]bool)}
}

func (t *txConnection) BeginTx(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = true
	return nil
}

func (t *txConnection) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = false
	return nil
}

func (t *txConnection) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = false
	return nil
}

func (t *txConnection) Savepoint(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.savepoints[id] = true
	return nil
}

func (t *txConnection) ReleaseSavepoint(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.savepoints, id)
	return nil
}

func (t *txConnection) RollbackToSavepoint(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.savepoints[id] {
		return fmt.Errorf("enginemock: unknown savepoint %q", id)
	}
	return nil
}

// SchemaView is a static, in-memory engine.SchemaView for tests.
type SchemaView struct {
	nodes     map[string]engine.TableDefinition
	relations map[string]engine.TableDefinition
}

// NewSchemaView builds a SchemaView from the given tables.
func NewSchemaView(nodes, relations []engine.TableDefinition) *SchemaView {
	sv := &SchemaView{
		nodes:     make(map[string]engine.TableDefinition),
		relations: make(map[string]engine.TableDefinition),
	}
	for _, n := range nodes {
		sv.nodes[n.Name] = n
	}
	for _, r := range relations {
		sv.relations[r.Name] = r
	}
	return sv
}

func (s *SchemaView) NodeTable(name string) (engine.TableDefinition, bool) {
	t, ok := s.nodes[name]
	return t, ok
}

func (s *SchemaView) RelationTable(name string) (engine.TableDefinition, bool) {
	t, ok := s.relations[name]
	return t, ok
}

func (s *SchemaView) NodeTableNames() []string {
	names := make([]string, 0, len(s.nodes))
	for n := range s.nodes {
		names = append(names, n)
	}
	return names
}

func (s *SchemaView) RelationTableNames() []string {
	names := make([]string, 0, len(s.relations))
	for n := range s.relations {
		names = append(names, n)
	}
	return names
}
