package providers

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// TaskState is the canonical lifecycle state of an asynchronous provider task.
type TaskState string

const (
	TaskWaiting    TaskState = "waiting"
	TaskQueuing    TaskState = "queuing"
	TaskGenerating TaskState = "generating"
	TaskSuccess    TaskState = "success"
	TaskFail       TaskState = "fail"
)

// Terminal reports whether the state ends the polling loop.
func (s TaskState) Terminal() bool {
	return s == TaskSuccess || s == TaskFail
}

// TaskStatus is one poll observation. Message carries the provider's failure
// text when State is TaskFail.
type TaskStatus struct {
	State   TaskState
	Message string
}

// StatusFunc fetches the current status of a submitted task. On TaskSuccess
// the caller's closure is responsible for having captured the parsed result.
type StatusFunc func(ctx context.Context) (TaskStatus, error)

// PollConfig bounds a polling loop.
type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// PollDefaults returns the standard polling cadence for async providers.
func PollDefaults() PollConfig {
	return PollConfig{
		Interval:    5 * time.Second,
		MaxAttempts: 60,
	}
}

// PollUntilDone polls fetch up to MaxAttempts times. TaskSuccess returns nil;
// TaskFail returns a TaskFailed canonical error immediately with the
// provider's failure message. Transient fetch errors, including a single
// status check hitting its own per-call deadline, are absorbed and retried;
// only ctx itself expiring aborts the loop. Exhausting the attempt budget
// without a terminal state returns TaskTimeout. Poll calls are intentionally
// not rate limited; their volume is driven by provider latency, not caller
// request volume.
func PollUntilDone(ctx context.Context, provider string, cfg PollConfig, logger *zap.Logger, fetch StatusFunc) error {
	if cfg.Interval <= 0 {
		cfg.Interval = PollDefaults().Interval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = PollDefaults().MaxAttempts
	}

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		status, err := fetch(ctx)
		// Abort is decided by the loop's own context, never by a fetch
		// error shape: a per-call timeout on one slow status check is
		// transient while the operation deadline still stands.
		if ctx.Err() != nil {
			return WrapError(KindTimeout, provider, "polling aborted by deadline", ctx.Err())
		}
		switch {
		case err != nil:
			// Transient status-check failure; keep polling inside the budget.
			logger.Warn("task status check failed, retrying",
				zap.Int("attempt", attempt),
				zap.Error(err))
		case status.State == TaskSuccess:
			return nil
		case status.State == TaskFail:
			msg := status.Message
			if msg == "" {
				msg = "provider reported task failure"
			}
			return NewError(KindTaskFailed, provider, msg)
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		timer := time.NewTimer(cfg.Interval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return WrapError(KindTimeout, provider, "polling aborted by deadline", ctx.Err())
		}
	}

	return NewError(KindTaskTimeout, provider, "task did not reach a terminal state within the polling budget")
}
