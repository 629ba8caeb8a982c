package txn

// Strategy selects how ExecuteOps reacts to a failing operation, per spec
// §4.3's per-transaction error-handling strategies.
type Strategy int

const (
	// StrategyRollback propagates the first failure and rolls back the
	// whole transaction. It is the default.
	StrategyRollback Strategy = iota
	// StrategyContinue isolates each op behind its own savepoint, so a
	// failing op's effects are undone but later ops still run.
	StrategyContinue
	// StrategyRetry applies the transaction's RetryPolicy to a failing op
	// before falling through to StrategyRollback once exhausted.
	StrategyRetry
)

func (s Strategy) String() string {
	switch s {
	case StrategyRollback:
		return "ROLLBACK"
	case StrategyContinue:
		return "CONTINUE"
	case StrategyRetry:
		return "RETRY"
	default:
		return "UNKNOWN"
	}
}
