package heartbeat

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests advance time past restart backoff windows.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestDaemon(clock *fakeClock) *Daemon {
	return New(func(o *Options) {
		o.Config = Config{
			PollInterval:     time.Second,
			FailureThreshold: 3,
			BackoffBase:      time.Minute,
			BackoffMax:       4 * time.Minute,
		}
		o.Now = clock.Now
	})
}

func TestHealthyServiceStatus(t *testing.T) {
	d := newTestDaemon(newFakeClock())
	d.RegisterService("dispatcher", func() bool { return true }, nil)

	d.Poll(context.Background())

	status := d.Status()
	require.Contains(t, status, "dispatcher")
	assert.True(t, status["dispatcher"].Healthy)
	assert.Zero(t, status["dispatcher"].ConsecutiveFailures)
	assert.Zero(t, status["dispatcher"].Restarts)
}

func TestRestartAfterThreshold(t *testing.T) {
	clock := newFakeClock()
	d := newTestDaemon(clock)

	var restarts atomic.Int32
	d.RegisterService("coordinator",
		func() bool { return false },
		func(ctx context.Context) error {
			restarts.Add(1)
			return nil
		})

	ctx := context.Background()
	d.Poll(ctx)
	d.Poll(ctx)
	assert.Zero(t, restarts.Load(), "below threshold")

	d.Poll(ctx)
	assert.Equal(t, int32(1), restarts.Load(), "threshold crossed")

	// Still failing, but inside the backoff window: no second restart.
	d.Poll(ctx)
	d.Poll(ctx)
	assert.Equal(t, int32(1), restarts.Load())

	clock.Advance(time.Minute + time.Second)
	d.Poll(ctx)
	assert.Equal(t, int32(2), restarts.Load(), "backoff elapsed")

	status := d.Status()
	assert.False(t, status["coordinator"].Healthy)
	assert.Equal(t, 2, status["coordinator"].Restarts)
	assert.Equal(t, 6, status["coordinator"].ConsecutiveFailures)
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	clock := newFakeClock()
	d := newTestDaemon(clock)

	var restarts atomic.Int32
	d.RegisterService("stream",
		func() bool { return false },
		func(ctx context.Context) error {
			restarts.Add(1)
			return nil
		})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		d.Poll(ctx)
	}
	require.Equal(t, int32(1), restarts.Load())

	// Backoff sequence: 1m, 2m, 4m, then capped at 4m.
	for _, wait := range []time.Duration{time.Minute, 2 * time.Minute, 4 * time.Minute, 4 * time.Minute} {
		clock.Advance(wait - time.Second)
		d.Poll(ctx)
		before := restarts.Load()
		clock.Advance(2 * time.Second)
		d.Poll(ctx)
		assert.Equal(t, before+1, restarts.Load())
	}
}

func TestRecoveryResetsFailureState(t *testing.T) {
	clock := newFakeClock()
	d := newTestDaemon(clock)

	var healthy atomic.Bool
	var restarts atomic.Int32
	d.RegisterService("learner",
		func() bool { return healthy.Load() },
		func(ctx context.Context) error {
			restarts.Add(1)
			healthy.Store(true)
			return nil
		})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		d.Poll(ctx)
	}
	require.Equal(t, int32(1), restarts.Load())

	d.Poll(ctx)
	status := d.Status()
	assert.True(t, status["learner"].Healthy)
	assert.Zero(t, status["learner"].ConsecutiveFailures)
	assert.Equal(t, 1, status["learner"].Restarts)

	// A fresh failure streak starts from zero and restarts without backoff
	// carry-over from the previous incident.
	healthy.Store(false)
	d.Poll(ctx)
	d.Poll(ctx)
	assert.Equal(t, int32(1), restarts.Load())
	d.Poll(ctx)
	assert.True(t, healthy.Load())
	assert.Equal(t, int32(2), restarts.Load())
}

func TestFailingPredicateNeverHaltsOthers(t *testing.T) {
	d := newTestDaemon(newFakeClock())
	d.RegisterService("broken", func() bool { panic("boom") }, nil)
	d.RegisterService("fine", func() bool { return true }, nil)

	d.Poll(context.Background())

	status := d.Status()
	assert.False(t, status["broken"].Healthy)
	assert.Equal(t, 1, status["broken"].ConsecutiveFailures)
	assert.True(t, status["fine"].Healthy)
}

func TestRestartErrorIsRecorded(t *testing.T) {
	clock := newFakeClock()
	d := newTestDaemon(clock)
	d.RegisterService("flappy",
		func() bool { return false },
		func(ctx context.Context) error { return errors.New("bind: address already in use") })

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		d.Poll(ctx)
	}

	status := d.Status()
	assert.Equal(t, 1, status["flappy"].Restarts)
	assert.Contains(t, status["flappy"].LastError, "address already in use")
}

func TestUnregisterService(t *testing.T) {
	d := newTestDaemon(newFakeClock())
	d.RegisterService("temp", func() bool { return true }, nil)
	d.UnregisterService("temp")

	d.Poll(context.Background())
	assert.Empty(t, d.Status())
}

func TestPollLoopRunsOnInterval(t *testing.T) {
	var polls atomic.Int32
	d := New(func(o *Options) {
		o.Config.PollInterval = 10 * time.Millisecond
	})
	d.RegisterService("counter", func() bool {
		polls.Add(1)
		return true
	}, nil)

	d.Start(context.Background())
	defer d.Stop()
	assert.True(t, d.Running())

	assert.Eventually(t, func() bool {
		return polls.Load() >= 3
	}, 2*time.Second, 10*time.Millisecond)

	d.Stop()
	assert.False(t, d.Running())
}
