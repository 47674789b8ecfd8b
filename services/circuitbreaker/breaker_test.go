package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBreaker(cfg Config) *Breaker {
	return NewBreaker(cfg, zap.NewNop())
}

func TestBreaker_StartsClosed(t *testing.T) {
	breaker := newTestBreaker(DefaultConfig())

	assert.NoError(t, breaker.Allow())
	assert.Equal(t, StateClosed, breaker.Snapshot().State)
}

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	breaker := newTestBreaker(Config{Threshold: 5, ResetTimeout: time.Minute})

	for i := 0; i < 4; i++ {
		breaker.RecordFailure()
		assert.Equal(t, StateClosed, breaker.Snapshot().State)
	}

	breaker.RecordFailure()
	snap := breaker.Snapshot()
	assert.Equal(t, StateOpen, snap.State)
	assert.Equal(t, 5, snap.ConsecutiveFailures)
	assert.False(t, snap.LastFailure.IsZero())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	breaker := newTestBreaker(Config{Threshold: 3, ResetTimeout: time.Minute})

	breaker.RecordFailure()
	breaker.RecordFailure()
	breaker.RecordSuccess()

	// Counter restarted; two more failures must not trip it.
	breaker.RecordFailure()
	breaker.RecordFailure()
	assert.Equal(t, StateClosed, breaker.Snapshot().State)
}

func TestBreaker_OpenRejectsWithRetryAfter(t *testing.T) {
	breaker := newTestBreaker(Config{Threshold: 1, ResetTimeout: time.Minute})

	breaker.RecordFailure()

	err := breaker.Allow()
	require.Error(t, err)

	var openErr *OpenError
	require.ErrorAs(t, err, &openErr)
	assert.Greater(t, openErr.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, openErr.RetryAfter, time.Minute)
}

func TestBreaker_HalfOpenAfterCooldown(t *testing.T) {
	breaker := newTestBreaker(Config{Threshold: 1, ResetTimeout: 40 * time.Millisecond})

	breaker.RecordFailure()
	require.Error(t, breaker.Allow())

	time.Sleep(60 * time.Millisecond)

	// Cool-down elapsed: the next guard allows a probe.
	require.NoError(t, breaker.Allow())
	assert.Equal(t, StateHalfOpen, breaker.Snapshot().State)

	breaker.RecordSuccess()
	snap := breaker.Snapshot()
	assert.Equal(t, StateClosed, snap.State)
	assert.Equal(t, 0, snap.ConsecutiveFailures)
}

func TestBreaker_HalfOpenAdmitsSingleProbe(t *testing.T) {
	breaker := newTestBreaker(Config{Threshold: 1, ResetTimeout: 40 * time.Millisecond})

	breaker.RecordFailure()
	time.Sleep(60 * time.Millisecond)

	require.NoError(t, breaker.Allow())
	require.Equal(t, StateHalfOpen, breaker.Snapshot().State)

	// The probe's outcome has not been recorded yet; nobody else gets in.
	var openErr *OpenError
	require.ErrorAs(t, breaker.Allow(), &openErr)
	require.ErrorAs(t, breaker.Allow(), &openErr)
	assert.Equal(t, StateHalfOpen, breaker.Snapshot().State)

	breaker.RecordSuccess()
	assert.NoError(t, breaker.Allow())
}

func TestBreaker_FailedProbeReopensImmediately(t *testing.T) {
	breaker := newTestBreaker(Config{Threshold: 5, ResetTimeout: 40 * time.Millisecond})

	for i := 0; i < 5; i++ {
		breaker.RecordFailure()
	}
	require.Equal(t, StateOpen, breaker.Snapshot().State)

	time.Sleep(60 * time.Millisecond)
	require.NoError(t, breaker.Allow())
	require.Equal(t, StateHalfOpen, breaker.Snapshot().State)

	// A single probe failure re-opens regardless of the threshold.
	breaker.RecordFailure()
	assert.Equal(t, StateOpen, breaker.Snapshot().State)

	err := breaker.Allow()
	assert.Error(t, err)
}

func TestBreaker_DefaultsApplied(t *testing.T) {
	breaker := newTestBreaker(Config{})

	for i := 0; i < 4; i++ {
		breaker.RecordFailure()
	}
	assert.Equal(t, StateClosed, breaker.Snapshot().State)

	breaker.RecordFailure()
	assert.Equal(t, StateOpen, breaker.Snapshot().State)
}
