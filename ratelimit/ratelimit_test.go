package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/graphkit/cyphercoord/config"
)

func TestGovernorAllowsWithinBurst(t *testing.T) {
	g := NewGovernor(config.RateLimitConfig{GlobalRatePerSecond: 1, GlobalBurst: 2})
	if !g.Allow() {
		t.Fatal("expected first request to be allowed")
	}
	if !g.Allow() {
		t.Fatal("expected second request within burst to be allowed")
	}
}

func TestGovernorRejectsBeyondBurst(t *testing.T) {
	g := NewGovernor(config.RateLimitConfig{GlobalRatePerSecond: 0.001, GlobalBurst: 1})
	if !g.Allow() {
		t.Fatal("expected the first request to be allowed")
	}
	if g.Allow() {
		t.Fatal("expected the second immediate request to be rejected")
	}
}

func TestQuotaTrackerEnforcesPerMinuteLimit(t *testing.T) {
	q := NewQuotaTracker(config.RateLimitConfig{PerMinuteLimit: 2, PerHourLimit: 100})
	if d := q.Allow("client-a"); !d.Allowed {
		t.Fatalf("expected first request allowed, got %v", d)
	}
	if d := q.Allow("client-a"); !d.Allowed {
		t.Fatalf("expected second request allowed, got %v", d)
	}
	if d := q.Allow("client-a"); d.Allowed {
		t.Fatal("expected the third request within the minute to be rejected")
	}
}

func TestQuotaTrackerTracksClientsIndependently(t *testing.T) {
	q := NewQuotaTracker(config.RateLimitConfig{PerMinuteLimit: 1, PerHourLimit: 100})
	if d := q.Allow("client-a"); !d.Allowed {
		t.Fatal("expected client-a's first request to be allowed")
	}
	if d := q.Allow("client-b"); !d.Allowed {
		t.Fatal("expected client-b's first request to be allowed independently of client-a")
	}
}

func TestQuotaTrackerEvictsStaleClients(t *testing.T) {
	q := NewQuotaTracker(config.RateLimitConfig{PerMinuteLimit: 10, PerHourLimit: 10, CleanupInterval: 5 * time.Millisecond})
	q.Allow("client-a")
	if q.ClientCount() != 1 {
		t.Fatalf("expected 1 tracked client, got %d", q.ClientCount())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	deadline := time.After(300 * time.Millisecond)
	for q.ClientCount() != 0 {
		select {
		case <-deadline:
			t.Fatal("expected the stale client to be evicted")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}
