package relayer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle string

func (h fakeHandle) Name() string { return string(h) }

// fakeSupervisor records start and stop calls
type fakeSupervisor struct {
	startErr error
	stopErr  error
	started  int
	stopped  int
	running  bool
}

func (f *fakeSupervisor) Start(ctx context.Context) (Handle, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.started++
	f.running = true
	return fakeHandle("fake"), nil
}

func (f *fakeSupervisor) Stop(ctx context.Context, h Handle) error {
	f.stopped++
	f.running = false
	return f.stopErr
}

func TestWithSupervisor(t *testing.T) {
	sup := &fakeSupervisor{}

	var runningInside bool
	err := WithSupervisor(context.Background(), sup, func(ctx context.Context) error {
		runningInside = sup.running
		return nil
	})
	require.NoError(t, err)
	assert.True(t, runningInside)
	assert.Equal(t, 1, sup.started)
	assert.Equal(t, 1, sup.stopped)
	assert.False(t, sup.running)
}

func TestWithSupervisorStopsOnError(t *testing.T) {
	sup := &fakeSupervisor{}
	measureErr := errors.New("settlement timeout")

	err := WithSupervisor(context.Background(), sup, func(ctx context.Context) error {
		return measureErr
	})
	require.ErrorIs(t, err, measureErr)
	assert.Equal(t, 1, sup.stopped)
}

func TestWithSupervisorStopsOnPanic(t *testing.T) {
	sup := &fakeSupervisor{}

	assert.PanicsWithValue(t, "boom", func() {
		_ = WithSupervisor(context.Background(), sup, func(ctx context.Context) error {
			panic("boom")
		})
	})
	assert.Equal(t, 1, sup.stopped)
	assert.False(t, sup.running)
}

func TestWithSupervisorStopsOnCancelledContext(t *testing.T) {
	sup := &fakeSupervisor{}
	ctx, cancel := context.WithCancel(context.Background())

	err := WithSupervisor(ctx, sup, func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, sup.stopped)
}

func TestWithSupervisorJoinsStopError(t *testing.T) {
	stopErr := errors.New("pods still running")
	measureErr := errors.New("balance underflow")
	sup := &fakeSupervisor{stopErr: stopErr}

	err := WithSupervisor(context.Background(), sup, func(ctx context.Context) error {
		return measureErr
	})
	require.ErrorIs(t, err, measureErr)
	require.ErrorIs(t, err, stopErr)
	assert.Contains(t, err.Error(), "failed to stop relayer fake")
}

func TestWithSupervisorStartFailure(t *testing.T) {
	sup := &fakeSupervisor{startErr: errors.New("image pull failed")}

	called := false
	err := WithSupervisor(context.Background(), sup, func(ctx context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start relayer")
	assert.False(t, called)
	assert.Equal(t, 0, sup.stopped)
}
