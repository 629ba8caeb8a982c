package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/graphkit/cyphercoord/config"
	"github.com/graphkit/cyphercoord/engine"
	"github.com/graphkit/cyphercoord/engine/enginemock"
	"github.com/graphkit/cyphercoord/monitor"
)

func reportWithErrorRate(rate float64) monitor.Report {
	return monitor.Report{SampleCount: 10, ErrorRate: rate}
}

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.RateLimit.GlobalRatePerSecond = 1000
	cfg.RateLimit.GlobalBurst = 1000
	cfg.RateLimit.PerMinuteLimit = 1000
	cfg.RateLimit.PerHourLimit = 10000
	return cfg
}

func TestExecuteReturnsRowsAndCachesResult(t *testing.T) {
	conn := enginemock.NewConnection()
	conn.WithResponse("MATCH (n) RETURN n", []engine.Row{{"n": 1}})
	db := enginemock.NewDatabase(func(ctx context.Context) (*enginemock.Connection, error) { return conn, nil })

	c := New(testConfig(), db, nil, nil)
	res, err := c.Execute(context.Background(), "client-a", "MATCH (n) RETURN n", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(res.Rows))
	}
	if res.FromCache {
		t.Fatal("expected the first call to miss the result cache")
	}

	res2, err := c.Execute(context.Background(), "client-a", "MATCH (n) RETURN n", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res2.FromCache {
		t.Fatal("expected the second call to hit the result cache")
	}
}

func TestExecuteRejectsInvalidQuery(t *testing.T) {
	conn := enginemock.NewConnection()
	db := enginemock.NewDatabase(func(ctx context.Context) (*enginemock.Connection, error) { return conn, nil })
	c := New(testConfig(), db, nil, nil)

	if _, err := c.Execute(context.Background(), "client-a", "", nil); err == nil {
		t.Fatal("expected rejection of an empty query")
	}
}

func TestExecuteEnforcesPerClientQuota(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.PerMinuteLimit = 1
	cfg.RateLimit.PerHourLimit = 100

	conn := enginemock.NewConnection()
	conn.WithResponse("MATCH (n) RETURN n", []engine.Row{{"n": 1}})
	db := enginemock.NewDatabase(func(ctx context.Context) (*enginemock.Connection, error) { return conn, nil })
	c := New(cfg, db, nil, nil)

	if _, err := c.Execute(context.Background(), "client-a", "MATCH (n) RETURN n", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Execute(context.Background(), "client-a", "MATCH (n) RETURN n", nil); err == nil {
		t.Fatal("expected the second request to exceed the per-minute quota")
	}
}

func TestHealthEvaluateTransitionsAndPublishes(t *testing.T) {
	cfg := testConfig()
	cfg.Coordinator.WarningErrorRate = 0.1
	cfg.Coordinator.UnhealthyErrorRate = 0.5

	bus := NewEventBus()
	h := newHealthTracker(cfg.Coordinator, bus)
	events, unsub := bus.Subscribe()
	defer unsub()

	grade := h.Evaluate(reportWithErrorRate(0.8), 0)
	if grade != Unhealthy {
		t.Fatalf("expected Unhealthy, got %s", grade)
	}

	select {
	case e := <-events:
		if e.Kind != EventHealthChanged {
			t.Fatalf("expected EventHealthChanged, got %v", e.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a health change event to be published")
	}
}

func TestEventBusDropsEventsForFullSubscriberBuffer(t *testing.T) {
	bus := NewEventBus()
	ch, unsub := bus.Subscribe()
	defer unsub()

	for i := 0; i < defaultSubscriberBuffer+10; i++ {
		bus.Publish(Event{Kind: EventQueryAccepted})
	}
	if len(ch) != defaultSubscriberBuffer {
		t.Fatalf("expected the channel to be full at %d, got %d", defaultSubscriberBuffer, len(ch))
	}
}
