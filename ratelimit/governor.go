// Package ratelimit implements the two-layer admission control spec §4's
// coordinator relies on before a query reaches the validator: a process-wide
// admission governor backed by golang.org/x/time/rate, and a per-client
// QuotaTracker grounded on
// iperfex-team-burrowctl/server/rate_limiter.go's hand-rolled TokenBucket,
// generalized from a single requests-per-second bucket into separate
// per-minute and per-hour windows.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/graphkit/cyphercoord/config"
)

// Governor is the process-wide admission gate: every query, regardless of
// client, competes for the same token bucket before any per-client quota is
// even consulted.
type Governor struct {
	limiter *rate.Limiter
}

// NewGovernor builds a Governor from configuration.
func NewGovernor(cfg config.RateLimitConfig) *Governor {
	burst := cfg.GlobalBurst
	if burst <= 0 {
		burst = 1
	}
	return &Governor{limiter: rate.NewLimiter(rate.Limit(cfg.GlobalRatePerSecond), burst)}
}

// Allow reports whether a request may proceed immediately without
// consuming from the future.
func (g *Governor) Allow() bool { return g.limiter.Allow() }

// Wait blocks until a token is available or ctx is done.
func (g *Governor) Wait(ctx context.Context) error { return g.limiter.Wait(ctx) }
