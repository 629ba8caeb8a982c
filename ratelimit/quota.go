package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/graphkit/cyphercoord/config"
)

// clientQuota tracks one client's consumption within the current minute and
// hour windows, grounded on the teacher's TokenBucket struct shape
// (iperfex-team-burrowctl/server/rate_limiter.go) but using fixed counting
// windows instead of a continuously-refilling bucket, since spec §4 states
// the limits as discrete per-minute/per-hour caps rather than a smooth
// rate.
type clientQuota struct {
	mu               sync.Mutex
	minuteCount      int
	minuteWindowFrom time.Time
	hourCount        int
	hourWindowFrom   time.Time
	lastSeen         time.Time
}

// Decision explains why a quota check failed, for the caller to surface to
// the client.
type Decision struct {
	Allowed bool
	Reason  string
}

// QuotaTracker enforces independent per-minute and per-hour request caps
// per client id.
type QuotaTracker struct {
	cfg     config.RateLimitConfig
	mu      sync.Mutex
	clients map[string]*clientQuota

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewQuotaTracker builds a QuotaTracker from configuration.
func NewQuotaTracker(cfg config.RateLimitConfig) *QuotaTracker {
	return &QuotaTracker{cfg: cfg, clients: make(map[string]*clientQuota), stopCh: make(chan struct{})}
}

// Allow checks and, if permitted, consumes one unit of clientID's quota.
func (q *QuotaTracker) Allow(clientID string) Decision {
	q.mu.Lock()
	c, ok := q.clients[clientID]
	if !ok {
		c = &clientQuota{minuteWindowFrom: time.Now(), hourWindowFrom: time.Now()}
		q.clients[clientID] = c
	}
	q.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.lastSeen = now

	if now.Sub(c.minuteWindowFrom) >= time.Minute {
		c.minuteCount = 0
		c.minuteWindowFrom = now
	}
	if now.Sub(c.hourWindowFrom) >= time.Hour {
		c.hourCount = 0
		c.hourWindowFrom = now
	}

	if q.cfg.PerMinuteLimit > 0 && c.minuteCount >= q.cfg.PerMinuteLimit {
		return Decision{Allowed: false, Reason: "per-minute quota exceeded"}
	}
	if q.cfg.PerHourLimit > 0 && c.hourCount >= q.cfg.PerHourLimit {
		return Decision{Allowed: false, Reason: "per-hour quota exceeded"}
	}

	c.minuteCount++
	c.hourCount++
	return Decision{Allowed: true}
}

// Start launches the background goroutine that evicts clients that have
// not been seen for two cleanup intervals, mirroring the teacher's
// RateLimiter.cleanup goroutine.
func (q *QuotaTracker) Start(ctx context.Context) {
	interval := q.cfg.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-q.stopCh:
				return
			case <-ticker.C:
				q.evictStale(interval * 2)
			}
		}
	}()
}

// Stop halts the cleanup goroutine.
func (q *QuotaTracker) Stop() {
	close(q.stopCh)
	q.wg.Wait()
}

func (q *QuotaTracker) evictStale(staleAfter time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now()
	for id, c := range q.clients {
		c.mu.Lock()
		stale := now.Sub(c.lastSeen) > staleAfter
		c.mu.Unlock()
		if stale {
			delete(q.clients, id)
		}
	}
}

// ClientCount returns how many distinct clients are currently tracked.
func (q *QuotaTracker) ClientCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.clients)
}
