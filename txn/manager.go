package txn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/graphkit/cyphercoord/config"
	"github.com/graphkit/cyphercoord/engine"
	"github.com/graphkit/cyphercoord/optimizer"
	"github.com/graphkit/cyphercoord/validator"
)

// Alert is emitted by the deadlock detector when two or more transactions
// appear to be contending for the same resource past the deadlock
// threshold. No victim is selected automatically (see DESIGN.md); the
// manager only surfaces the alert.
type Alert struct {
	TxnIDs    []string
	DetectedAt time.Time
	HeldFor   time.Duration
}

// AlertHandler receives deadlock alerts.
type AlertHandler func(Alert)

// Manager is the transaction registry: it enforces the active-transaction
// cap, runs the timeout sweeper and deadlock detector, and applies the
// retry policy to caller-supplied operations.
type Manager struct {
	cfg       config.TxnConfig
	validator *validator.Validator
	optimizer *optimizer.Optimizer
	mu       sync.Mutex
	active   map[string]*Transaction
	handlers []ChangeHandler
	alertHandlers []AlertHandler

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Manager from configuration, dispatching every transaction's
// Query calls through v and o (spec §4.3 — transactional queries share the
// validator and plan optimizer with ad-hoc queries, just not the result
// cache). Call Start to launch its background sweepers and Stop to shut
// them down.
func New(cfg config.TxnConfig, v *validator.Validator, o *optimizer.Optimizer) *Manager {
	return &Manager{cfg: cfg, validator: v, optimizer: o, active: make(map[string]*Transaction), stopCh: make(chan struct{})}
}

// OnStateChange registers a handler invoked on every transaction's state
// transitions.
func (m *Manager) OnStateChange(h ChangeHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, h)
}

// OnDeadlockAlert registers a handler invoked when the deadlock detector
// fires.
func (m *Manager) OnDeadlockAlert(h AlertHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alertHandlers = append(m.alertHandlers, h)
}

// Begin opens a new transaction against conn, rejecting the request if the
// active-transaction cap (spec §4.3) is already reached. conn must expose
// native transaction control via TransactionalConnection; engines that
// don't are out of scope for the transaction manager.
func (m *Manager) Begin(ctx context.Context, conn engine.Connection) (*Transaction, error) {
	txConn, ok := conn.TransactionalConnection()
	if !ok {
		return nil, fmt.Errorf("txn: connection does not support native transaction control")
	}

	m.mu.Lock()
	if len(m.active) >= m.cfg.MaxActiveTransactions {
		m.mu.Unlock()
		return nil, fmt.Errorf("txn: active transaction cap (%d) reached", m.cfg.MaxActiveTransactions)
	}
	handlers := make([]ChangeHandler, len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	timeout := m.cfg.DefaultTimeout
	t := newTransaction(conn, txConn, timeout, handlers, m.validator, m.optimizer, m.RetryPolicy())
	if err := t.Begin(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.active[t.ID] = t
	m.mu.Unlock()
	return t, nil
}

// Get looks up an active transaction by id.
func (m *Manager) Get(id string) (*Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.active[id]
	return t, ok
}

// Finish removes a transaction from the active registry once it has
// reached a terminal state (commit, rollback, or failure).
func (m *Manager) Finish(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, id)
}

// ActiveCount returns the number of currently tracked transactions.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// RetryPolicy builds the configured linear-backoff retry policy.
func (m *Manager) RetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: m.cfg.MaxRetries, BaseDelay: m.cfg.BaseRetryDelay}
}

// Start launches the timeout sweeper and deadlock detector goroutines.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(2)
	go m.runSweeper(ctx)
	go m.runDeadlockDetector(ctx)
}

// Stop signals both background goroutines to exit and waits for them.
func (m *Manager) Stop() {
	close(m.stopCh)
	m.wg.Wait()
}

func (m *Manager) runSweeper(ctx context.Context) {
	defer m.wg.Done()
	interval := m.cfg.SweepInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.sweepTimedOut(ctx)
		}
	}
}

func (m *Manager) sweepTimedOut(ctx context.Context) {
	m.mu.Lock()
	var stale []*Transaction
	for _, t := range m.active {
		if t.State() == Active && t.IdleFor() > m.cfg.DefaultTimeout {
			stale = append(stale, t)
		}
	}
	m.mu.Unlock()

	for _, t := range stale {
		_ = t.Fail(ctx, fmt.Errorf("TIMEOUT: transaction exceeded %s idle", m.cfg.DefaultTimeout))
		m.Finish(t.ID)
	}
}

func (m *Manager) runDeadlockDetector(ctx context.Context) {
	defer m.wg.Done()
	interval := m.cfg.DeadlockCheckInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.detectDeadlocks()
		}
	}
}

// detectDeadlocks flags any set of transactions that have all been active
// past the deadlock timeout simultaneously. This is a coarse, alert-only
// heuristic (spec §9 leaves true wait-for-graph detection and automatic
// victim selection as an open question) — it does not resolve contention,
// only surfaces it.
func (m *Manager) detectDeadlocks() {
	m.mu.Lock()
	var suspects []string
	var longest time.Duration
	for _, t := range m.active {
		if t.State() == Active && t.Age() > m.cfg.DeadlockTimeout {
			suspects = append(suspects, t.ID)
			if t.Age() > longest {
				longest = t.Age()
			}
		}
	}
	handlers := make([]AlertHandler, len(m.alertHandlers))
	copy(handlers, m.alertHandlers)
	m.mu.Unlock()

	if len(suspects) < 2 {
		return
	}
	alert := Alert{TxnIDs: suspects, DetectedAt: time.Now(), HeldFor: longest}
	for _, h := range handlers {
		h(alert)
	}
}
