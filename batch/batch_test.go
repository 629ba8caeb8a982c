package batch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/graphkit/cyphercoord/config"
	"github.com/graphkit/cyphercoord/engine"
	"github.com/graphkit/cyphercoord/engine/enginemock"
)

func testConfig() config.BatchConfig {
	return config.BatchConfig{
		DefaultBatchSize:     2,
		DefaultConcurrency:   2,
		RetryAttempts:        2,
		RetryDelay:           time.Millisecond,
		StreamSweepInterval:  10 * time.Millisecond,
		StreamIdleExpiry:     20 * time.Millisecond,
		StreamSingletonLimit: 10,
	}
}

func TestExecuteRunsEveryOperationInOrder(t *testing.T) {
	c := enginemock.NewConnection()
	c.WithResponse("RETURN 1", []engine.Row{{"x": 1}})
	c.WithResponse("RETURN 2", []engine.Row{{"x": 2}})
	c.WithResponse("RETURN 3", []engine.Row{{"x": 3}})

	job := NewJob([]Operation{{Cypher: "RETURN 1"}, {Cypher: "RETURN 2"}, {Cypher: "RETURN 3"}})
	e := New(testConfig())
	res := e.Execute(context.Background(), c, job, nil)

	if res.Succeeded != 3 || res.Failed != 0 {
		t.Fatalf("expected 3 successes, got succeeded=%d failed=%d", res.Succeeded, res.Failed)
	}
	for i, r := range res.Results {
		if r.Index != i {
			t.Fatalf("expected stable ordering, result %d has index %d", i, r.Index)
		}
	}
}

func TestExecuteFailsOperationAfterExhaustingRetries(t *testing.T) {
	c := enginemock.NewConnection().WithQueryError(context.DeadlineExceeded)
	job := NewJob([]Operation{{Cypher: "RETURN 1"}})
	e := New(testConfig())
	res := e.Execute(context.Background(), c, job, nil)

	if res.Failed != 1 {
		t.Fatalf("expected 1 failure, got %d", res.Failed)
	}
	if res.Status != StatusFailed {
		t.Fatalf("expected StatusFailed, got %s", res.Status)
	}
	if res.Results[0].Attempts != testConfig().RetryAttempts {
		t.Fatalf("expected %d attempts, got %d", testConfig().RetryAttempts, res.Results[0].Attempts)
	}
}

func TestExecuteReportsProgress(t *testing.T) {
	c := enginemock.NewConnection()
	job := NewJob([]Operation{{Cypher: "a"}, {Cypher: "b"}, {Cypher: "c"}, {Cypher: "d"}})
	e := New(testConfig())

	var mu sync.Mutex
	var calls []BatchProgress
	res := e.Execute(context.Background(), c, job, func(p BatchProgress) {
		mu.Lock()
		calls = append(calls, p)
		mu.Unlock()
	})
	if len(calls) == 0 {
		t.Fatal("expected at least one progress callback")
	}
	for _, p := range calls {
		if p.BatchID != job.ID {
			t.Fatalf("expected every progress event to carry the batch id, got %+v", p)
		}
	}
	last := calls[len(calls)-1]
	if last.Completed != 4 || last.Total != 4 || last.Percentage != 100 {
		t.Fatalf("expected final progress 4/4 (100%%), got %+v", last)
	}
	if res.Status != StatusCompleted {
		t.Fatalf("expected StatusCompleted, got %s", res.Status)
	}
}

func TestExecuteRunsChunkAsTransactionWhenRequested(t *testing.T) {
	c := enginemock.NewConnection().WithTransactionSupport()
	c.WithResponse("RETURN 1", []engine.Row{{"x": 1}})
	c.WithResponse("RETURN 2", []engine.Row{{"x": 2}})

	cfg := testConfig()
	cfg.DefaultBatchSize = 2
	job := NewJob([]Operation{{Cypher: "RETURN 1"}, {Cypher: "RETURN 2"}})
	job.UseTransaction = true
	e := New(cfg)

	res := e.Execute(context.Background(), c, job, nil)
	if res.Succeeded != 2 {
		t.Fatalf("expected both operations to succeed inside the chunk transaction, got %+v", res)
	}
}

func TestExecuteSynthesizesInsertDialect(t *testing.T) {
	c := enginemock.NewConnection()
	c.WithResponse("CREATE (n:users {age: 30, name: 'Alice'}) RETURN n", []engine.Row{{"n": "created"}})

	job := NewJob([]Operation{{Kind: OpInsert, Table: "users", Data: map[string]interface{}{"name": "Alice", "age": 30}}})
	e := New(testConfig())
	res := e.Execute(context.Background(), c, job, nil)

	if res.Failed != 0 {
		t.Fatalf("expected the synthesized INSERT to succeed, got %+v", res.Results[0])
	}
	queries := c.LastQueries()
	if len(queries) != 1 || queries[0] != "CREATE (n:users {age: 30, name: 'Alice'}) RETURN n" {
		t.Fatalf("unexpected synthesized query: %v", queries)
	}
}

func TestCancelBatchDropsQueuedChunks(t *testing.T) {
	c := enginemock.NewConnection()
	cfg := testConfig()
	cfg.DefaultBatchSize = 1
	cfg.DefaultConcurrency = 1
	job := NewJob([]Operation{{Cypher: "a"}, {Cypher: "b"}, {Cypher: "c"}})
	e := New(cfg)
	e.CancelBatch(job.ID)

	res := e.Execute(context.Background(), c, job, nil)
	if res.Status != StatusCancelled {
		t.Fatalf("expected StatusCancelled, got %s", res.Status)
	}
	for _, r := range res.Results {
		if r.Err == nil {
			t.Fatalf("expected every op to be dropped when cancelled before start, got %+v", r)
		}
	}
}

func TestStreamPollPaginatesAndDetectsExhaustion(t *testing.T) {
	c := enginemock.NewConnection()
	c.WithResponse("MATCH (n) RETURN n SKIP 0 LIMIT 2", []engine.Row{{"n": 1}, {"n": 2}})
	c.WithResponse("MATCH (n) RETURN n SKIP 2 LIMIT 2", []engine.Row{{"n": 3}})

	sm := NewStreamManager(testConfig())
	s := sm.Open(c, "MATCH (n) RETURN n", 2)

	page1, err := s.Poll(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page1.Rows) != 2 || page1.Done {
		t.Fatalf("expected a full, non-final page, got %+v", page1)
	}

	page2, err := s.Poll(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page2.Rows) != 1 || !page2.Done {
		t.Fatalf("expected a short, final page, got %+v", page2)
	}
}

func TestStreamPollMarksSingletonBelowThreshold(t *testing.T) {
	c := enginemock.NewConnection()
	c.WithResponse("MATCH (n) RETURN n SKIP 0 LIMIT 50", []engine.Row{{"n": 1}})

	sm := NewStreamManager(testConfig())
	s := sm.Open(c, "MATCH (n) RETURN n", 50)

	page, err := s.Poll(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !page.Singleton {
		t.Fatal("expected a 1-row page under the singleton threshold to be marked Singleton")
	}
}

func TestStreamManagerSweepsIdleStreams(t *testing.T) {
	cfg := testConfig()
	cfg.StreamIdleExpiry = time.Millisecond
	cfg.StreamSweepInterval = 2 * time.Millisecond
	sm := NewStreamManager(cfg)

	c := enginemock.NewConnection()
	sm.Open(c, "MATCH (n) RETURN n", 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sm.Start(ctx)
	defer sm.Stop()

	deadline := time.After(200 * time.Millisecond)
	for sm.OpenCount() != 0 {
		select {
		case <-deadline:
			t.Fatal("expected the idle stream to be swept")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}
