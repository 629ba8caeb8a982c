package txn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/graphkit/cyphercoord/engine"
	"github.com/graphkit/cyphercoord/optimizer"
	"github.com/graphkit/cyphercoord/validator"
)

// Transaction is a single managed transaction: a state machine, a
// savepoint registry, and the engine connection it holds for its duration.
// It holds the full engine.Connection (not just the native TxConnection
// control surface) so that Query can dispatch through the same
// Validator/Optimizer pipeline an ad-hoc query uses.
type Transaction struct {
	ID         string
	fullConn   engine.Connection
	txConn     engine.TxConnection
	validator  *validator.Validator
	optimizer  *optimizer.Optimizer
	retry      RetryPolicy
	sm         *stateMachine
	savepoints *savepointRegistry
	startedAt  time.Time
	timeout    time.Duration

	mu           sync.Mutex
	lastActivity time.Time
}

func newTransaction(fullConn engine.Connection, txConn engine.TxConnection, timeout time.Duration, handlers []ChangeHandler, v *validator.Validator, o *optimizer.Optimizer, retry RetryPolicy) *Transaction {
	id := uuid.NewString()
	now := time.Now()
	return &Transaction{
		ID:           id,
		fullConn:     fullConn,
		txConn:       txConn,
		validator:    v,
		optimizer:    o,
		retry:        retry,
		sm:           newStateMachine(id, handlers),
		savepoints:   newSavepointRegistry(),
		startedAt:    now,
		lastActivity: now,
		timeout:      timeout,
	}
}

// State returns the transaction's current lifecycle state.
func (t *Transaction) State() State { return t.sm.state() }

// Age returns how long the transaction has been open.
func (t *Transaction) Age() time.Duration { return time.Since(t.startedAt) }

// IdleFor returns how long it has been since the transaction's last
// operation, used by the timeout sweeper.
func (t *Transaction) IdleFor() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Since(t.lastActivity)
}

func (t *Transaction) touch() {
	t.mu.Lock()
	t.lastActivity = time.Now()
	t.mu.Unlock()
}

// Begin moves the transaction from PENDING to ACTIVE and opens the engine
// connection's native transaction.
func (t *Transaction) Begin(ctx context.Context) error {
	if err := t.txConn.BeginTx(ctx); err != nil {
		t.sm.transitionTo(Failed, err)
		return wrapError(t.ID, "E_BEGIN_FAILED", "failed to begin transaction", err)
	}
	if err := t.sm.transitionTo(Active, nil); err != nil {
		return wrapError(t.ID, "E_ILLEGAL_TRANSITION", "cannot activate transaction", err)
	}
	t.touch()
	return nil
}

// Commit moves the transaction to COMMITTED.
func (t *Transaction) Commit(ctx context.Context) error {
	if t.State() != Active {
		return newError(t.ID, "E_NOT_ACTIVE", "transaction is not active")
	}
	if err := t.txConn.Commit(ctx); err != nil {
		t.sm.transitionTo(Failed, err)
		return wrapError(t.ID, "E_COMMIT_FAILED", "commit failed", err)
	}
	t.sm.transitionTo(Committed, nil)
	t.touch()
	return nil
}

// Rollback moves the transaction to ROLLED_BACK.
func (t *Transaction) Rollback(ctx context.Context) error {
	if t.State() != Active {
		return newError(t.ID, "E_NOT_ACTIVE", "transaction is not active")
	}
	if err := t.txConn.Rollback(ctx); err != nil {
		t.sm.transitionTo(Failed, err)
		return wrapError(t.ID, "E_ROLLBACK_FAILED", "rollback failed", err)
	}
	t.sm.transitionTo(RolledBack, nil)
	t.touch()
	return nil
}

// Fail forces the transaction into FAILED, used by the timeout sweeper.
func (t *Transaction) Fail(ctx context.Context, cause error) error {
	_ = t.txConn.Rollback(ctx)
	return t.sm.transitionTo(Failed, cause)
}

// Savepoint creates a named savepoint within the transaction.
func (t *Transaction) Savepoint(ctx context.Context, name string) error {
	if t.State() != Active {
		return newError(t.ID, "E_NOT_ACTIVE", "transaction is not active")
	}
	if err := t.txConn.Savepoint(ctx, name); err != nil {
		return wrapError(t.ID, "E_SAVEPOINT_FAILED", "failed to create savepoint", err)
	}
	t.savepoints.create(name)
	t.touch()
	return nil
}

// ReleaseSavepoint discards a single savepoint without rolling back.
// Releasing a name that does not exist is a no-op that returns success,
// per spec — it never reaches the connection.
func (t *Transaction) ReleaseSavepoint(ctx context.Context, name string) error {
	if !t.savepoints.has(name) {
		return nil
	}
	_ = t.savepoints.release(name)
	if err := t.txConn.ReleaseSavepoint(ctx, name); err != nil {
		return wrapError(t.ID, "E_SAVEPOINT_FAILED", "failed to release savepoint", err)
	}
	t.touch()
	return nil
}

// RollbackToSavepoint rolls back to name, discarding every savepoint
// created after it while leaving name itself addressable.
func (t *Transaction) RollbackToSavepoint(ctx context.Context, name string) error {
	discarded, err := t.savepoints.rollbackTo(name)
	if err != nil {
		return wrapError(t.ID, "E_UNKNOWN_SAVEPOINT", "cannot roll back to unknown savepoint", err)
	}
	if err := t.txConn.RollbackToSavepoint(ctx, name); err != nil {
		return wrapError(t.ID, "E_SAVEPOINT_FAILED", "failed to roll back to savepoint", err)
	}
	_ = discarded
	t.touch()
	return nil
}

// Savepoints returns the currently live savepoint names in creation order.
func (t *Transaction) Savepoints() []string { return t.savepoints.names() }

// Query runs cypher inside the transaction: validated and optimized like
// any ad-hoc query, but it ignores any cached result Optimize reports and
// never populates the result cache (spec §4.3) — a transaction's reads must
// see its own uncommitted writes
// and stay isolated from other transactions' cached results.
func (t *Transaction) Query(ctx context.Context, cypher string, params map[string]interface{}) ([]map[string]interface{}, error) {
	if t.State() != Active {
		return nil, newError(t.ID, "E_NOT_ACTIVE", "transaction is not active")
	}

	vr, err := t.validator.Validate(validator.Query{Cypher: cypher, Params: params})
	if err != nil {
		return nil, wrapError(t.ID, "E_VALIDATION_FAILED", "query rejected by validator", err)
	}

	opt := t.optimizer.Optimize(vr.Cypher, vr.Params)

	it, err := t.fullConn.Query(ctx, opt.Plan.Cypher)
	if err != nil {
		return nil, wrapError(t.ID, "E_QUERY_FAILED", "query execution failed", err)
	}
	defer it.Close()

	var rows []map[string]interface{}
	for it.Next(ctx) {
		rows = append(rows, map[string]interface{}(it.Row()))
	}
	if err := it.Err(); err != nil {
		return nil, wrapError(t.ID, "E_QUERY_FAILED", "reading results failed", err)
	}

	t.touch()
	return rows, nil
}

// Op is a single statement submitted to ExecuteOps.
type Op struct {
	Cypher string
	Params map[string]interface{}
}

// OpResult carries one Op's outcome; Err is nil unless that op failed.
type OpResult struct {
	Rows []map[string]interface{}
	Err  error
}

// ExecuteOps runs ops in order against the transaction, applying strategy
// to the first failure (spec §4.3's per-transaction error-handling
// strategies):
//
//   - Rollback (the default): the failure propagates and the whole
//     transaction is rolled back; later ops do not run, and the returned
//     results end at the failing op.
//   - Continue: each op runs inside its own savepoint; a failing op's
//     savepoint is rolled back to but the transaction itself stays ACTIVE
//     and later ops still run.
//   - Retry: each op is retried per the manager's configured RetryPolicy
//     before falling through to Rollback behavior once attempts are
//     exhausted.
func (t *Transaction) ExecuteOps(ctx context.Context, ops []Op, strategy Strategy) ([]OpResult, error) {
	results := make([]OpResult, len(ops))
	for i, op := range ops {
		rows, err := t.runOp(ctx, op, strategy, i)
		results[i] = OpResult{Rows: rows, Err: err}
		if err == nil {
			continue
		}
		if strategy == StrategyContinue {
			continue
		}
		_ = t.Rollback(ctx)
		return results[:i+1], wrapError(t.ID, "E_OP_FAILED", fmt.Sprintf("operation %d failed", i), err)
	}
	return results, nil
}

func (t *Transaction) runOp(ctx context.Context, op Op, strategy Strategy, index int) ([]map[string]interface{}, error) {
	spName := fmt.Sprintf("__op_%d", index)
	if strategy == StrategyContinue {
		if err := t.Savepoint(ctx, spName); err != nil {
			return nil, err
		}
	}

	var rows []map[string]interface{}
	attempt := func(int) error {
		r, err := t.Query(ctx, op.Cypher, op.Params)
		if err != nil {
			return err
		}
		rows = r
		return nil
	}

	var err error
	if strategy == StrategyRetry {
		err = t.retry.Run(attempt)
	} else {
		err = attempt(1)
	}

	if strategy == StrategyContinue {
		if err != nil {
			_ = t.RollbackToSavepoint(ctx, spName)
		} else {
			_ = t.ReleaseSavepoint(ctx, spName)
		}
	}
	return rows, err
}
