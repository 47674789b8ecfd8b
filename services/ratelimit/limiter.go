package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrLimited is returned when the window is full and the limiter is
	// configured to fail fast instead of waiting.
	ErrLimited = errors.New("rate limit exceeded")

	// ErrWaitTimeout is returned when a waiting acquire exceeds MaxWait
	// without obtaining a slot.
	ErrWaitTimeout = errors.New("timed out waiting for rate limit slot")
)

// minWaitFloor avoids busy-looping when the computed wait rounds to zero.
const minWaitFloor = 10 * time.Millisecond

// Config holds sliding-window limiter settings.
type Config struct {
	// MaxRequests is the maximum number of admissions per Window.
	MaxRequests int

	// Window is the trailing time window requests are counted in.
	Window time.Duration

	// WaitForSlot makes Acquire block until a slot frees instead of
	// failing immediately.
	WaitForSlot bool

	// MaxWait bounds the total time a waiting Acquire may block.
	MaxWait time.Duration
}

// DefaultConfig returns limiter settings suitable for most paid provider tiers.
func DefaultConfig() Config {
	return Config{
		MaxRequests: 10,
		Window:      time.Minute,
		WaitForSlot: true,
		MaxWait:     2 * time.Minute,
	}
}

// Status is a point-in-time snapshot of the limiter.
type Status struct {
	// Current is the number of admissions still inside the window.
	Current int

	// Max is the configured admission cap.
	Max int

	// NextSlotIn is how long until the oldest admission leaves the
	// window. Zero when a slot is free right now.
	NextSlotIn time.Duration
}

// Limiter is a sliding-window admission controller. One instance is owned by
// exactly one provider adapter; all calls through that adapter share it.
// Safe for concurrent use.
type Limiter struct {
	mu         sync.Mutex
	cfg        Config
	timestamps []time.Time
	logger     *zap.Logger
}

// NewLimiter creates a limiter with the given settings. Zero or negative
// MaxRequests/Window fall back to defaults.
func NewLimiter(cfg Config, logger *zap.Logger) *Limiter {
	def := DefaultConfig()
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = def.MaxRequests
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = def.MaxWait
	}
	return &Limiter{
		cfg:    cfg,
		logger: logger,
	}
}

// Acquire claims one admission slot. It returns immediately when the window
// has room. When the window is full it either fails fast (ErrLimited) or,
// with WaitForSlot, sleeps until the oldest admission expires, bounded by
// MaxWait (ErrWaitTimeout) and by ctx cancellation. The internal lock is
// never held across a sleep.
func (l *Limiter) Acquire(ctx context.Context) error {
	var deadline time.Time
	if l.cfg.WaitForSlot {
		deadline = time.Now().Add(l.cfg.MaxWait)
	}

	for {
		now := time.Now()

		l.mu.Lock()
		l.prune(now)
		if len(l.timestamps) < l.cfg.MaxRequests {
			l.timestamps = append(l.timestamps, now)
			l.mu.Unlock()
			return nil
		}
		oldest := l.timestamps[0]
		l.mu.Unlock()

		if !l.cfg.WaitForSlot {
			return ErrLimited
		}

		wait := oldest.Add(l.cfg.Window).Sub(now)
		if wait < minWaitFloor {
			wait = minWaitFloor
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrWaitTimeout
		}
		if wait > remaining {
			// The next slot cannot free before the wait budget runs out.
			return ErrWaitTimeout
		}

		l.logger.Debug("rate limit window full, waiting for slot",
			zap.Duration("wait", wait),
			zap.Int("max_requests", l.cfg.MaxRequests))

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Status reports the current window occupancy without mutating limiter state.
func (l *Limiter) Status() Status {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.cfg.Window)
	status := Status{Max: l.cfg.MaxRequests}
	var oldest time.Time
	for _, ts := range l.timestamps {
		if ts.After(cutoff) {
			if status.Current == 0 {
				oldest = ts
			}
			status.Current++
		}
	}
	if status.Current >= l.cfg.MaxRequests {
		status.NextSlotIn = oldest.Add(l.cfg.Window).Sub(now)
		if status.NextSlotIn < 0 {
			status.NextSlotIn = 0
		}
	}
	return status
}

// prune drops timestamps older than the window. Caller must hold mu.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.cfg.Window)
	idx := 0
	for idx < len(l.timestamps) && !l.timestamps[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		l.timestamps = append(l.timestamps[:0], l.timestamps[idx:]...)
	}
}
