// Package batch implements chunked batch execution and result streaming
// over the engine. Bounded concurrency is grounded on the teacher's
// buffered-channel-as-semaphore idiom
// (dan-strohschein-syndrdb-drivers/client/pool.go's ConnectionPool), and
// the worker-pool shape is additionally informed by
// iperfex-team-burrowctl/server/worker_pool.go.
package batch

import (
	"time"

	"github.com/google/uuid"
)

// OperationKind distinguishes the batch executor's insert-dialect
// synthesis (spec §4.4) from raw Cypher operations.
type OperationKind int

const (
	// OpFree is a plain Cypher statement plus bind params — the default
	// for zero-value Operations.
	OpFree OperationKind = iota
	// OpInsert carries {Table, Data} and is synthesized into a CREATE
	// statement with freshly minted parameter names.
	OpInsert
	// OpUpdate carries a raw query and params, same shape as OpFree but
	// tagged for callers that distinguish it (spec: "UPDATE ops carry a
	// raw query and params").
	OpUpdate
)

func (k OperationKind) String() string {
	switch k {
	case OpInsert:
		return "INSERT"
	case OpUpdate:
		return "UPDATE"
	default:
		return "FREE"
	}
}

// Operation is a single statement within a batch job. For OpFree/OpUpdate,
// the executor inlines Params into Cypher itself, since engines have no
// native bind support. For OpInsert, Table and Data replace
// Cypher/Params entirely.
type Operation struct {
	Kind   OperationKind
	Cypher string
	Params map[string]interface{}
	Table  string
	Data   map[string]interface{}
}

// OpResult is the outcome of executing a single Operation, stably indexed
// to its position in the submitted Job.
type OpResult struct {
	Index    int
	Rows     []map[string]interface{}
	Err      error
	Attempts int
	Duration time.Duration
}

// Job is a batch of operations submitted for chunked execution. When
// UseTransaction is set, any chunk with more than one operation runs as a
// single native transaction on the engine connection (spec §4.4); chunks
// of size 1, and chunks on a connection with no native transaction
// support, always run their operation(s) individually.
type Job struct {
	ID             string
	Operations     []Operation
	UseTransaction bool
}

// NewJob wraps ops in a Job with a fresh id.
func NewJob(ops []Operation) Job {
	return Job{ID: uuid.NewString(), Operations: ops}
}

// JobStatus is a BatchJob's lifecycle stage (spec §3's BatchJob type).
type JobStatus int

const (
	StatusRunning JobStatus = iota
	StatusCompleted
	StatusFailed
	StatusCancelled
)

func (s JobStatus) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result is the aggregate outcome of executing a Job.
type Result struct {
	JobID     string
	Status    JobStatus
	Results   []OpResult
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// BatchProgress is the {batchId, completed, total, percentage} shape spec
// §4.4 requires the progress callback and the batchProgress event to
// carry, reported once per completed chunk (not per operation).
type BatchProgress struct {
	BatchID    string
	Completed  int
	Total      int
	Percentage float64
}

// ProgressFunc is invoked after each chunk completes.
type ProgressFunc func(BatchProgress)
