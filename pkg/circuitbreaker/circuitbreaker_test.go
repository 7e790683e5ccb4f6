package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream 503")

func testConfig() Config {
	return Config{
		FailureThreshold:    2,
		SuccessThreshold:    2,
		Timeout:             time.Minute,
		MaxRequestsHalfOpen: 2,
	}
}

func fail() error    { return errUpstream }
func succeed() error { return nil }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewWithClock(testConfig(), clockwork.NewFakeClock())
	ctx := context.Background()

	assert.ErrorIs(t, cb.Execute(ctx, fail), errUpstream)
	assert.Equal(t, StateClosed, cb.GetState())
	assert.ErrorIs(t, cb.Execute(ctx, fail), errUpstream)
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Execute(ctx, func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewWithClock(testConfig(), clockwork.NewFakeClock())
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	require.NoError(t, cb.Execute(ctx, succeed))
	_ = cb.Execute(ctx, fail)

	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, 1, cb.GetStats().FailureCount)
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cb := NewWithClock(testConfig(), clock)
	ctx := context.Background()

	var transitions []State
	cb.OnStateChange(func(_, to State) { transitions = append(transitions, to) })

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)
	clock.Advance(time.Minute)

	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateHalfOpen, cb.GetState())
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.GetState())

	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, transitions)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cb := NewWithClock(testConfig(), clock)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)
	clock.Advance(time.Minute)

	assert.ErrorIs(t, cb.Execute(ctx, fail), errUpstream)
	assert.Equal(t, StateOpen, cb.GetState())
	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrOpen)
}

func TestCircuitBreaker_IgnoredErrorsDoNotTrip(t *testing.T) {
	cfg := testConfig()
	cfg.IsFailure = func(err error) bool { return !errors.Is(err, errUpstream) }
	cb := NewWithClock(cfg, clockwork.NewFakeClock())

	for i := 0; i < 5; i++ {
		_ = cb.Execute(context.Background(), fail)
	}
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestDo_ReturnsResult(t *testing.T) {
	cb := New(DefaultConfig())

	got, err := Do(context.Background(), cb, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestDo_CancelledContext(t *testing.T) {
	cb := New(DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, cb, func() (int, error) { return 1, nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewWithClock(testConfig(), clockwork.NewFakeClock())
	_ = cb.Execute(context.Background(), fail)
	_ = cb.Execute(context.Background(), fail)

	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, "closed", cb.GetState().String())
}
