package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTestError = errors.New("test error")

func newTestBreaker(cfg Config) (*CircuitBreaker, *time.Time) {
	cb := New("platform", cfg)
	now := time.Unix(1_700_000_000, 0)
	cb.now = func() time.Time { return now }
	cb.stateChangeTime = now
	return cb, &now
}

func fail() error    { return errTestError }
func succeed() error { return nil }

func TestCircuitBreaker_ClosedPassesThrough(t *testing.T) {
	cb, _ := newTestBreaker(DefaultConfig())

	require.NoError(t, cb.Execute(succeed))
	assert.ErrorIs(t, cb.Execute(fail), errTestError)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(Config{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Minute, MaxRequestsHalfOpen: 1})

	_ = cb.Execute(fail)
	_ = cb.Execute(fail)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called, "guarded function must not run while open")
}

func TestCircuitBreaker_HalfOpenClosesOnSuccess(t *testing.T) {
	cb, now := newTestBreaker(Config{FailureThreshold: 1, SuccessThreshold: 2, Timeout: time.Second, MaxRequestsHalfOpen: 3})

	_ = cb.Execute(fail)
	require.Equal(t, StateOpen, cb.State())

	*now = now.Add(2 * time.Second)
	require.NoError(t, cb.Execute(succeed))
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(succeed))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, now := newTestBreaker(Config{FailureThreshold: 1, SuccessThreshold: 2, Timeout: time.Second, MaxRequestsHalfOpen: 3})

	_ = cb.Execute(fail)
	*now = now.Add(2 * time.Second)
	_ = cb.Execute(fail)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_HalfOpenLimitsTrials(t *testing.T) {
	cb, now := newTestBreaker(Config{FailureThreshold: 1, SuccessThreshold: 5, Timeout: time.Second, MaxRequestsHalfOpen: 2})

	_ = cb.Execute(fail)
	*now = now.Add(2 * time.Second)
	require.NoError(t, cb.Execute(succeed))
	require.NoError(t, cb.Execute(succeed))
	assert.ErrorIs(t, cb.Execute(succeed), ErrOpen)
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	cb, _ := newTestBreaker(Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Minute, MaxRequestsHalfOpen: 1})

	var transitions []string
	cb.OnStateChange(func(name string, from, to State) {
		transitions = append(transitions, name+":"+from.String()+"->"+to.String())
	})

	_ = cb.Execute(fail)
	cb.Reset()

	assert.Equal(t, []string{"platform:closed->open", "platform:open->closed"}, transitions)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}
