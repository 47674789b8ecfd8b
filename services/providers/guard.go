package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/postflow/aicore/services/circuitbreaker"
	"github.com/postflow/aicore/services/ratelimit"
	"go.uber.org/zap"
)

// Guard bundles the limiter and breaker every adapter owns and runs one
// public generation call through them: breaker guard, rate-limit admission,
// the operation itself under an overall deadline, then exactly one terminal
// breaker outcome. Poll iterations inside the operation do not consume
// additional rate-limit slots.
type Guard struct {
	provider string
	limiter  *ratelimit.Limiter
	breaker  *circuitbreaker.Breaker
	logger   *zap.Logger
}

// NewGuard constructs the guard for one adapter instance. Nil override
// configs fall back to the given defaults.
func NewGuard(provider string, rl ratelimit.Config, cb circuitbreaker.Config, cfg Config, logger *zap.Logger) *Guard {
	if cfg.RateLimit != nil {
		rl = *cfg.RateLimit
	}
	if cfg.Breaker != nil {
		cb = *cfg.Breaker
	}
	return &Guard{
		provider: provider,
		limiter:  ratelimit.NewLimiter(rl, logger),
		breaker:  circuitbreaker.NewBreaker(cb, logger),
		logger:   logger,
	}
}

// Run executes op behind the breaker and limiter and records the terminal
// outcome. Admission failures (circuit open, rate limited) are returned as
// canonical errors and do not count as breaker outcomes.
func (g *Guard) Run(ctx context.Context, overall time.Duration, op func(ctx context.Context) error) error {
	if err := g.breaker.Allow(); err != nil {
		var openErr *circuitbreaker.OpenError
		if errors.As(err, &openErr) {
			return NewError(KindCircuitOpen, g.provider,
				fmt.Sprintf("provider temporarily unavailable, retry in %s", openErr.RetryAfter.Round(time.Second)))
		}
		return WrapError(KindCircuitOpen, g.provider, "", err)
	}

	if err := g.limiter.Acquire(ctx); err != nil {
		switch {
		case errors.Is(err, ratelimit.ErrLimited):
			status := g.limiter.Status()
			return NewError(KindRateLimited, g.provider,
				fmt.Sprintf("rate limit of %d requests reached, next slot in %s",
					status.Max, status.NextSlotIn.Round(time.Millisecond)))
		case errors.Is(err, ratelimit.ErrWaitTimeout):
			return NewError(KindRateLimitTimeout, g.provider, "gave up waiting for a rate limit slot")
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			return WrapError(KindTimeout, g.provider, "request cancelled while waiting for a rate limit slot", err)
		default:
			return WrapError(KindRateLimited, g.provider, "", err)
		}
	}

	// The overall deadline is an absolute instant fixed here, so slow poll
	// iterations cannot stretch total wall time.
	opCtx, cancel := context.WithDeadline(ctx, time.Now().Add(overall))
	defer cancel()

	err := op(opCtx)
	if err != nil {
		g.breaker.RecordFailure()
		return err
	}
	g.breaker.RecordSuccess()
	return nil
}

// Health snapshots the guard's limiter and breaker.
func (g *Guard) Health() Health {
	return Health{
		RateLimit: g.limiter.Status(),
		Breaker:   g.breaker.Snapshot(),
	}
}

// RunWithTimeout runs a single request/response call under its own short
// deadline and classifies deadline expiry as a canonical timeout.
func RunWithTimeout(ctx context.Context, provider string, timeout time.Duration, op func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := op(callCtx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return WrapError(KindTimeout, provider,
			fmt.Sprintf("provider call exceeded %s deadline", timeout), err)
	case errors.Is(err, context.Canceled):
		return WrapError(KindTimeout, provider, "provider call cancelled", err)
	default:
		return err
	}
}
