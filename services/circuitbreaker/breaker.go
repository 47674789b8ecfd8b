package circuitbreaker

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the breaker's position in its Closed/Open/HalfOpen cycle.
type State string

const (
	// StateClosed admits all requests and counts consecutive failures.
	StateClosed State = "closed"

	// StateOpen rejects all requests until the cool-down elapses.
	StateOpen State = "open"

	// StateHalfOpen admits a single probe request after the cool-down.
	StateHalfOpen State = "half_open"
)

// OpenError is returned by Allow while the breaker is open.
type OpenError struct {
	// RetryAfter is the remaining cool-down before a probe is permitted.
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker open, retry in %s", e.RetryAfter.Round(time.Millisecond))
}

// Config holds breaker tuning.
type Config struct {
	// Threshold is the number of consecutive failures that trips the
	// breaker open.
	Threshold int

	// ResetTimeout is the cool-down after the last failure before a
	// single probe is allowed through.
	ResetTimeout time.Duration
}

// DefaultConfig returns the standard breaker tuning.
func DefaultConfig() Config {
	return Config{
		Threshold:    5,
		ResetTimeout: 60 * time.Second,
	}
}

// Snapshot is a read-only view of the breaker.
type Snapshot struct {
	State               State
	ConsecutiveFailures int
	LastFailure         time.Time
}

// Breaker trips open after a run of consecutive failures and recovers through
// a single timed probe. One instance is owned by exactly one provider
// adapter. Safe for concurrent use; no lock is held outside the
// check-and-update sections.
type Breaker struct {
	mu          sync.Mutex
	cfg         Config
	state       State
	failures    int
	lastFailure time.Time
	logger      *zap.Logger
}

// NewBreaker creates a closed breaker. Zero or negative settings fall back
// to defaults.
func NewBreaker(cfg Config, logger *zap.Logger) *Breaker {
	def := DefaultConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	return &Breaker{
		cfg:    cfg,
		state:  StateClosed,
		logger: logger,
	}
}

// Allow guards one request attempt. Closed passes through; open returns
// *OpenError until the cool-down elapses, at which point the next call
// transitions to half-open and admits exactly one probe. While that probe
// is in flight, further calls are rejected until its outcome is recorded.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateHalfOpen:
		// A probe is already in flight; its outcome decides what happens
		// next, so everyone else waits out another cool-down.
		return &OpenError{RetryAfter: b.cfg.ResetTimeout}
	}

	elapsed := time.Since(b.lastFailure)
	if elapsed < b.cfg.ResetTimeout {
		return &OpenError{RetryAfter: b.cfg.ResetTimeout - elapsed}
	}

	b.state = StateHalfOpen
	b.logger.Info("circuit breaker half-open, allowing probe request")
	return nil
}

// RecordSuccess resets the consecutive-failure count and closes the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.logger.Info("circuit breaker probe succeeded, closing")
	}
	b.state = StateClosed
	b.failures = 0
}

// RecordFailure counts one failure. Reaching the threshold while closed, or
// any failure while half-open, opens the breaker and refreshes the failure
// timestamp.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = time.Now()

	switch b.state {
	case StateHalfOpen:
		// One failed probe is enough to re-open.
		b.state = StateOpen
		b.logger.Warn("circuit breaker probe failed, re-opening")
	case StateClosed:
		if b.failures >= b.cfg.Threshold {
			b.state = StateOpen
			b.logger.Warn("circuit breaker tripped open",
				zap.Int("consecutive_failures", b.failures),
				zap.Duration("reset_timeout", b.cfg.ResetTimeout))
		}
	}
}

// Snapshot returns the current breaker state without mutating it.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Snapshot{
		State:               b.state,
		ConsecutiveFailures: b.failures,
		LastFailure:         b.lastFailure,
	}
}
