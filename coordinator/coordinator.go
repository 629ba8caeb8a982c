package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/graphkit/cyphercoord/batch"
	"github.com/graphkit/cyphercoord/config"
	"github.com/graphkit/cyphercoord/engine"
	"github.com/graphkit/cyphercoord/logging"
	"github.com/graphkit/cyphercoord/monitor"
	"github.com/graphkit/cyphercoord/optimizer"
	"github.com/graphkit/cyphercoord/ratelimit"
	"github.com/graphkit/cyphercoord/txn"
	"github.com/graphkit/cyphercoord/validator"
)

// Coordinator is the single facade described by spec §4.6: every query a
// caller submits passes through it, and it owns the lifecycle of the five
// subsystems beneath it. Grounded on
// dan-strohschein-syndrdb-drivers/client/client.go, the teacher's
// equivalent single entry point over its own pool/transaction/cache
// subsystems.
type Coordinator struct {
	cfg    config.Config
	db     engine.Database
	log    logging.Logger

	Validator *validator.Validator
	Optimizer *optimizer.Optimizer
	Txn       *txn.Manager
	Batch     *batch.Executor
	Streams   *batch.StreamManager
	Monitor   *monitor.Monitor
	Governor  *ratelimit.Governor
	Quota     *ratelimit.QuotaTracker
	Bus       *EventBus

	health *healthTracker

	stopCh chan struct{}
}

// New builds a Coordinator wiring every subsystem from cfg. schema may be
// nil if the caller has not yet established a live engine.SchemaView.
func New(cfg config.Config, db engine.Database, schema engine.SchemaView, log logging.Logger) *Coordinator {
	if log == nil {
		log = logging.NewNoop()
	}
	bus := NewEventBus()
	v := validator.New(cfg.Validator, schema)
	o := optimizer.New(cfg.Optimizer)
	return &Coordinator{
		cfg:       cfg,
		db:        db,
		log:       log,
		Validator: v,
		Optimizer: o,
		Txn:       txn.New(cfg.Txn, v, o),
		Batch:     batch.New(cfg.Batch),
		Streams:   batch.NewStreamManager(cfg.Batch),
		Monitor:   monitor.New(cfg.Monitor),
		Governor:  ratelimit.NewGovernor(cfg.RateLimit),
		Quota:     ratelimit.NewQuotaTracker(cfg.RateLimit),
		Bus:       bus,
		health:    newHealthTracker(cfg.Coordinator, bus),
		stopCh:    make(chan struct{}),
	}
}

// Start launches every subsystem's background goroutines and the
// coordinator's own periodic health evaluation and result-cache sweep.
func (c *Coordinator) Start(ctx context.Context) {
	c.Txn.Start(ctx)
	c.Streams.Start(ctx)
	c.Monitor.Start(ctx)
	c.Quota.Start(ctx)

	interval := c.cfg.Coordinator.HealthCheckInterval
	if interval <= 0 {
		interval = time.Minute
	}
	sweepInterval := c.cfg.Optimizer.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		sweep := time.NewTicker(sweepInterval)
		defer sweep.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stopCh:
				return
			case <-ticker.C:
				c.health.Evaluate(c.Monitor.Report(), c.activeTxnPercent())
			case <-sweep.C:
				c.Optimizer.Sweep()
			}
		}
	}()
}

// Stop halts the coordinator's own goroutines and every subsystem's.
func (c *Coordinator) Stop() {
	close(c.stopCh)
	c.Txn.Stop()
	c.Streams.Stop()
	c.Monitor.Stop()
	c.Quota.Stop()
}

func (c *Coordinator) activeTxnPercent() float64 {
	if c.cfg.Txn.MaxActiveTransactions <= 0 {
		return 0
	}
	return float64(c.Txn.ActiveCount()) / float64(c.cfg.Txn.MaxActiveTransactions)
}

// Health returns the last-evaluated health grade.
func (c *Coordinator) Health() Health { return c.health.Current() }

// QueryResult is the outcome of a single coordinated query.
type QueryResult struct {
	Rows      []map[string]interface{}
	FromCache bool
	Risk      validator.Risk
	Sanitized bool
}

// Execute runs the full pipeline spec §4's OVERVIEW describes: admission
// control, validation, plan/result cache lookup, engine execution, result
// caching, and monitoring — for a single ad-hoc query outside any explicit
// transaction.
func (c *Coordinator) Execute(ctx context.Context, clientID, cypher string, params map[string]interface{}) (*QueryResult, error) {
	if !c.Governor.Allow() {
		return nil, fmt.Errorf("coordinator: global rate limit exceeded")
	}
	if d := c.Quota.Allow(clientID); !d.Allowed {
		return nil, fmt.Errorf("coordinator: %s", d.Reason)
	}

	start := time.Now()
	vr, err := c.Validator.Validate(validator.Query{Cypher: cypher, Params: params})
	if err != nil {
		c.Monitor.Record(monitor.Sample{Timestamp: start, Duration: time.Since(start), Err: true, SecurityRisk: true})
		c.Bus.Publish(Event{Kind: EventQueryRejected, Payload: err})
		return nil, err
	}

	opt := c.Optimizer.Optimize(vr.Cypher, vr.Params)
	if opt.ResultHit {
		c.Monitor.Record(monitor.Sample{Timestamp: start, Duration: time.Since(start)})
		return &QueryResult{Rows: opt.CachedRows, FromCache: true, Risk: vr.Risk, Sanitized: vr.Sanitized}, nil
	}

	conn, err := c.db.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("coordinator: acquiring connection: %w", err)
	}
	defer conn.Close()

	it, err := conn.Query(ctx, opt.Plan.Cypher)
	if err != nil {
		c.Monitor.Record(monitor.Sample{Timestamp: start, Duration: time.Since(start), Err: true})
		return nil, fmt.Errorf("coordinator: executing query: %w", err)
	}
	defer it.Close()

	var rows []map[string]interface{}
	for it.Next(ctx) {
		rows = append(rows, map[string]interface{}(it.Row()))
	}
	if err := it.Err(); err != nil {
		c.Monitor.Record(monitor.Sample{Timestamp: start, Duration: time.Since(start), Err: true})
		return nil, fmt.Errorf("coordinator: reading results: %w", err)
	}

	c.Optimizer.CacheResult(opt, rows)
	c.Monitor.Record(monitor.Sample{Timestamp: start, Duration: time.Since(start), SecurityRisk: vr.Risk >= validator.RiskHigh})
	c.Bus.Publish(Event{Kind: EventQueryAccepted, Payload: vr.Risk})

	return &QueryResult{Rows: rows, Risk: vr.Risk, Sanitized: vr.Sanitized}, nil
}

// BeginTxn opens a managed transaction against conn.
func (c *Coordinator) BeginTxn(ctx context.Context, conn engine.Connection) (*txn.Transaction, error) {
	t, err := c.Txn.Begin(ctx, conn)
	if err != nil {
		return nil, err
	}
	c.Bus.Publish(Event{Kind: EventTxnOpened, Payload: t.ID})
	return t, nil
}

// FinishTxn removes a completed transaction from the manager's registry
// and publishes its closure.
func (c *Coordinator) FinishTxn(id string) {
	c.Txn.Finish(id)
	c.Bus.Publish(Event{Kind: EventTxnClosed, Payload: id})
}

// ExecuteBatch runs job against conn through the batch executor, publishing
// a batchProgress event per chunk completion (in addition to invoking the
// caller's own progress callback, if any) and a final batchCompleted or
// batchFailed event once the job settles.
func (c *Coordinator) ExecuteBatch(ctx context.Context, conn engine.Connection, job batch.Job, progress batch.ProgressFunc) batch.Result {
	res := c.Batch.Execute(ctx, conn, job, func(p batch.BatchProgress) {
		c.Bus.Publish(Event{Kind: EventBatchProgress, Payload: p})
		if progress != nil {
			progress(p)
		}
	})
	if res.Status == batch.StatusFailed {
		c.Bus.Publish(Event{Kind: EventBatchFailed, Payload: res})
	} else {
		c.Bus.Publish(Event{Kind: EventBatchCompleted, Payload: res})
	}
	return res
}

// CancelBatch marks job as cancelled in the batch executor (spec §5): chunks
// already in flight finish, but no further chunk is started.
func (c *Coordinator) CancelBatch(jobID string) {
	c.Batch.CancelBatch(jobID)
}

// OpenStream starts a paginated stream over cypher.
func (c *Coordinator) OpenStream(conn engine.Connection, cypher string, pageSize int) *batch.Stream {
	return c.Streams.Open(conn, cypher, pageSize)
}
