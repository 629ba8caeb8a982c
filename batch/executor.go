package batch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/graphkit/cyphercoord/config"
	"github.com/graphkit/cyphercoord/engine"
)

// Executor runs Jobs in fixed-size chunks. Chunks themselves run through a
// semaphore of size cfg.DefaultConcurrency — spec §4.4's "maxConcurrency" —
// so multiple chunks execute concurrently; operations within one chunk run
// in submission order, either individually or, when Job.UseTransaction is
// set and the chunk holds more than one operation, as a single native
// transaction. Chunk concurrency is grounded on the teacher's
// buffered-channel-as-semaphore idiom (client/pool.go's ConnectionPool);
// a whole failing chunk is attempted up to cfg.RetryAttempts times in total
// with linear backoff before every operation in it is marked failed.
type Executor struct {
	cfg config.BatchConfig

	mu        sync.Mutex
	cancelled map[string]bool
}

// New builds an Executor from configuration.
func New(cfg config.BatchConfig) *Executor {
	return &Executor{cfg: cfg, cancelled: make(map[string]bool)}
}

// CancelBatch marks job as cancelled: chunks already in flight finish, but
// no further chunk is started (spec §5 cancellation model).
func (e *Executor) CancelBatch(jobID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelled[jobID] = true
}

func (e *Executor) isCancelled(jobID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled[jobID]
}

func (e *Executor) clearCancelled(jobID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.cancelled, jobID)
}

type chunkSpan struct{ offset, end int }

// Execute runs every operation in job against conn, chunked at
// cfg.DefaultBatchSize with up to cfg.DefaultConcurrency chunks in flight
// at once, and returns results in the job's original order.
func (e *Executor) Execute(ctx context.Context, conn engine.Connection, job Job, progress ProgressFunc) Result {
	start := time.Now()
	total := len(job.Operations)
	results := make([]OpResult, total)

	chunkSize := e.cfg.DefaultBatchSize
	if chunkSize <= 0 {
		chunkSize = total
	}
	if chunkSize <= 0 {
		chunkSize = 1
	}

	var spans []chunkSpan
	for offset := 0; offset < total; offset += chunkSize {
		end := offset + chunkSize
		if end > total {
			end = total
		}
		spans = append(spans, chunkSpan{offset, end})
	}

	maxConcurrency := e.cfg.DefaultConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	sem := make(chan struct{}, maxConcurrency)

	var completed int32
	var wg sync.WaitGroup
	var progressMu sync.Mutex
	cancelled := false

	for i, span := range spans {
		if e.isCancelled(job.ID) {
			cancelled = true
			e.markDropped(results, spans[i:], job.ID)
			break
		}

		span := span
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			e.runChunk(ctx, conn, job, job.Operations[span.offset:span.end], span.offset, results)

			progressMu.Lock()
			n := int(atomic.AddInt32(&completed, int32(span.end-span.offset)))
			if progress != nil {
				progress(BatchProgress{BatchID: job.ID, Completed: n, Total: total, Percentage: percentage(n, total)})
			}
			progressMu.Unlock()
		}()
	}
	wg.Wait()
	e.clearCancelled(job.ID)

	res := Result{JobID: job.ID, Results: results, Duration: time.Since(start)}
	for _, r := range results {
		if r.Err != nil {
			res.Failed++
		} else {
			res.Succeeded++
		}
	}
	switch {
	case cancelled:
		res.Status = StatusCancelled
	case res.Failed > 0:
		res.Status = StatusFailed
	default:
		res.Status = StatusCompleted
	}
	return res
}

func percentage(completed, total int) float64 {
	if total == 0 {
		return 100
	}
	return float64(completed) / float64(total) * 100
}

func (e *Executor) markDropped(results []OpResult, spans []chunkSpan, jobID string) {
	for _, span := range spans {
		for i := span.offset; i < span.end; i++ {
			results[i] = OpResult{Index: i, Err: newError(jobID, "E_BATCH_CANCELLED", "batch cancelled before this chunk started", nil)}
		}
	}
}

// runChunk executes one chunk, running the whole chunk up to
// cfg.RetryAttempts times in total (the first run included) with linear
// backoff cfg.RetryDelay × attempt. If
// every attempt fails, every operation in the chunk is marked failed with
// the last error (spec §4.4).
func (e *Executor) runChunk(ctx context.Context, conn engine.Connection, job Job, ops []Operation, offset int, results []OpResult) {
	maxAttempts := e.cfg.RetryAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var err error
		if job.UseTransaction && len(ops) > 1 {
			err = e.runChunkTransactional(ctx, conn, ops, offset, results, attempt)
		} else {
			err = e.runChunkIndividually(ctx, conn, ops, offset, results, attempt)
		}
		if err == nil {
			return
		}
		lastErr = err
		if attempt < maxAttempts {
			time.Sleep(e.cfg.RetryDelay * time.Duration(attempt))
		}
	}

	failure := newError(job.ID, "E_CHUNK_FAILED", fmt.Sprintf("chunk failed after %d attempts", maxAttempts), lastErr)
	for i := range ops {
		results[offset+i] = OpResult{Index: offset + i, Err: failure, Attempts: maxAttempts}
	}
}

// runChunkIndividually runs ops in submission order, stopping at the first
// failure (the whole chunk is retried by the caller, so there is no value
// in continuing past it within one attempt).
func (e *Executor) runChunkIndividually(ctx context.Context, conn engine.Connection, ops []Operation, offset int, results []OpResult, attempt int) error {
	for i, op := range ops {
		opStart := time.Now()
		rows, err := e.execOp(ctx, conn, offset+i, op)
		if err != nil {
			return fmt.Errorf("operation %d: %w", offset+i, err)
		}
		results[offset+i] = OpResult{Index: offset + i, Rows: rows, Attempts: attempt, Duration: time.Since(opStart)}
	}
	return nil
}

// runChunkTransactional wraps the chunk in a single native transaction on
// conn. If the connection has no native transaction support, it falls back
// to running the chunk's operations individually rather than silently
// dropping the isolation request.
func (e *Executor) runChunkTransactional(ctx context.Context, conn engine.Connection, ops []Operation, offset int, results []OpResult, attempt int) error {
	txConn, ok := conn.TransactionalConnection()
	if !ok {
		return e.runChunkIndividually(ctx, conn, ops, offset, results, attempt)
	}
	if err := txConn.BeginTx(ctx); err != nil {
		return fmt.Errorf("beginning chunk transaction: %w", err)
	}
	for i, op := range ops {
		opStart := time.Now()
		rows, err := e.execOp(ctx, conn, offset+i, op)
		if err != nil {
			_ = txConn.Rollback(ctx)
			return fmt.Errorf("operation %d: %w", offset+i, err)
		}
		results[offset+i] = OpResult{Index: offset + i, Rows: rows, Attempts: attempt, Duration: time.Since(opStart)}
	}
	if err := txConn.Commit(ctx); err != nil {
		return fmt.Errorf("committing chunk transaction: %w", err)
	}
	return nil
}

func (e *Executor) execOp(ctx context.Context, conn engine.Connection, index int, op Operation) ([]map[string]interface{}, error) {
	cypher, params := resolveCypher(op, index)
	inlined, err := inlineParams(cypher, params)
	if err != nil {
		return nil, err
	}

	it, err := conn.Query(ctx, inlined)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var rows []map[string]interface{}
	for it.Next(ctx) {
		rows = append(rows, map[string]interface{}(it.Row()))
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// resolveCypher turns op into a (cypher, params) pair ready for inlining.
// OpInsert is synthesized per spec §4.4's insert dialect: {table, data} ->
// CREATE (n:<table> {field1: $p1, ...}) RETURN n, with parameter names
// keyed by this operation's global index so two operations built
// concurrently in different chunks never collide.
func resolveCypher(op Operation, index int) (string, map[string]interface{}) {
	if op.Kind == OpInsert {
		return synthesizeInsert(op.Table, op.Data, index)
	}
	return op.Cypher, op.Params
}

func synthesizeInsert(table string, data map[string]interface{}, index int) (string, map[string]interface{}) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	params := make(map[string]interface{}, len(keys))
	var b strings.Builder
	b.WriteString("CREATE (n:")
	b.WriteString(table)
	b.WriteString(" {")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		pname := fmt.Sprintf("p%d_%d", index, i)
		fmt.Fprintf(&b, "%s: $%s", k, pname)
		params[pname] = data[k]
	}
	b.WriteString("}) RETURN n")
	return b.String(), params
}
