package coordinator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/socialmesh/core"
	"github.com/hupe1980/socialmesh/platform"
)

func TestExecuteActionFanOut(t *testing.T) {
	c := New()
	x := platform.NewMockAdapter("x")
	discord := platform.NewMockAdapter("discord")
	c.RegisterAdapter(x, core.TierCritical)
	c.RegisterAdapter(discord, core.TierHigh)

	action := core.NewCoordinatedAction(core.ActionPost, "hello from the mesh", "x", "discord")
	results, err := c.ExecuteAction(context.Background(), action)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.NoError(t, results["x"].Err)
	assert.NoError(t, results["discord"].Err)
	assert.NotEmpty(t, results["x"].TargetID)
	assert.Len(t, x.Calls(), 1)
	assert.Len(t, discord.Calls(), 1)
}

func TestExecuteActionPartialFailureIsolation(t *testing.T) {
	c := New()
	x := platform.NewMockAdapter("x")
	discord := platform.NewMockAdapter("discord")
	discord.FailNext(1, errors.New("rate limited"))
	c.RegisterAdapter(x, core.TierCritical)
	c.RegisterAdapter(discord, core.TierHigh)

	action := core.NewCoordinatedAction(core.ActionPost, "partial failure run", "x", "discord")
	results, err := c.ExecuteAction(context.Background(), action)
	require.NoError(t, err)

	// The map covers every requested platform regardless of failures.
	require.Len(t, results, 2)
	assert.NoError(t, results["x"].Err)

	var svcErr *core.ExternalServiceError
	require.ErrorAs(t, results["discord"].Err, &svcErr)
	assert.Equal(t, "discord", svcErr.Platform)
}

func TestExecuteActionUnknownPlatform(t *testing.T) {
	c := New()
	c.RegisterAdapter(platform.NewMockAdapter("x"), core.TierCritical)

	action := core.NewCoordinatedAction(core.ActionPost, "ghost target", "x", "myspace")
	results, err := c.ExecuteAction(context.Background(), action)
	require.NoError(t, err)

	require.Len(t, results, 2)
	var svcErr *core.ExternalServiceError
	require.ErrorAs(t, results["myspace"].Err, &svcErr)
}

func TestExecuteActionCapabilityError(t *testing.T) {
	c := New()
	readonly := platform.NewMockAdapter("youtube", func(o *platform.MockOptions) {
		o.Capabilities = core.NewCapabilitySet(core.ActionLike)
	})
	c.RegisterAdapter(readonly, core.TierMedium)

	action := core.NewCoordinatedAction(core.ActionPost, "not supported here", "youtube")
	results, err := c.ExecuteAction(context.Background(), action)
	require.NoError(t, err)

	var capErr *core.CapabilityError
	require.ErrorAs(t, results["youtube"].Err, &capErr)
	assert.Equal(t, core.ActionPost, capErr.Op)
	// The call must fail fast without touching the adapter.
	assert.Empty(t, readonly.Calls())
}

func TestExecuteActionDuplicateInFlight(t *testing.T) {
	c := New()
	slow := platform.NewMockAdapter("x", func(o *platform.MockOptions) {
		o.Delay = 200 * time.Millisecond
	})
	c.RegisterAdapter(slow, core.TierCritical)

	action := core.NewCoordinatedAction(core.ActionPost, "only once at a time", "x")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := c.ExecuteAction(context.Background(), action)
		assert.NoError(t, err)
	}()

	// Give the first execution time to claim the in-flight slot.
	time.Sleep(50 * time.Millisecond)
	_, err := c.ExecuteAction(context.Background(), action)
	assert.ErrorIs(t, err, core.ErrDuplicateInFlight)
	wg.Wait()

	// Once the first completes, the ID is free again.
	_, err = c.ExecuteAction(context.Background(), action)
	assert.NoError(t, err)
}

func TestExecuteActionIdempotentRetry(t *testing.T) {
	c := New()
	flaky := platform.NewMockAdapter("x")
	flaky.FailNext(1, errors.New("transient"))
	c.RegisterAdapter(flaky, core.TierCritical)

	like := core.NewCoordinatedAction(core.ActionLike, "", "x")
	like.TargetID = "post-9"
	results, err := c.ExecuteAction(context.Background(), like)
	require.NoError(t, err)

	assert.NoError(t, results["x"].Err)
	assert.Equal(t, 2, results["x"].Attempts)
	assert.Len(t, flaky.Calls(), 2)
}

func TestExecuteActionNoRetryForContentWrites(t *testing.T) {
	c := New()
	flaky := platform.NewMockAdapter("x")
	flaky.FailNext(1, errors.New("transient"))
	c.RegisterAdapter(flaky, core.TierCritical)

	post := core.NewCoordinatedAction(core.ActionPost, "never retried", "x")
	results, err := c.ExecuteAction(context.Background(), post)
	require.NoError(t, err)

	require.Error(t, results["x"].Err)
	assert.Equal(t, 1, results["x"].Attempts)
	assert.Len(t, flaky.Calls(), 1)
}

func TestExecuteActionContextCancellation(t *testing.T) {
	c := New()
	slow := platform.NewMockAdapter("x", func(o *platform.MockOptions) {
		o.Delay = time.Second
	})
	c.RegisterAdapter(slow, core.TierCritical)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	action := core.NewCoordinatedAction(core.ActionPost, "cancelled mid flight", "x")
	results, err := c.ExecuteAction(ctx, action)
	require.NoError(t, err)

	require.Error(t, results["x"].Err)
	assert.ErrorIs(t, results["x"].Err, context.Canceled)
}

func TestExecuteActionTimeoutIsolation(t *testing.T) {
	c := New(func(o *Options) {
		o.Config.CallTimeout = 50 * time.Millisecond
	})
	slow := platform.NewMockAdapter("x", func(o *platform.MockOptions) {
		o.Delay = time.Second
	})
	fast := platform.NewMockAdapter("discord")
	c.RegisterAdapter(slow, core.TierCritical)
	c.RegisterAdapter(fast, core.TierHigh)

	action := core.NewCoordinatedAction(core.ActionPost, "one of us is slow today", "x", "discord")
	results, err := c.ExecuteAction(context.Background(), action)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.ErrorIs(t, results["x"].Err, context.DeadlineExceeded)
	var extErr *core.ExternalServiceError
	assert.ErrorAs(t, results["x"].Err, &extErr)
	assert.NoError(t, results["discord"].Err)
	assert.NotEmpty(t, results["discord"].TargetID)
	assert.Len(t, fast.Calls(), 1)
}

func TestPerPlatformOverridesAndLimits(t *testing.T) {
	c := New()
	x := platform.NewMockAdapter("x") // 280 char limit
	discord := platform.NewMockAdapter("discord")
	c.RegisterAdapter(x, core.TierCritical)
	c.RegisterAdapter(discord, core.TierHigh)

	long := strings.Repeat("value ", 100) // 600 chars
	action := core.NewCoordinatedAction(core.ActionPost, long, "x", "discord")
	action.PerPlatformOverrides = map[string]string{"discord": "short discord version"}

	_, err := c.ExecuteAction(context.Background(), action)
	require.NoError(t, err)

	xCalls := x.Calls()
	require.Len(t, xCalls, 1)
	assert.LessOrEqual(t, len(xCalls[0].Content), 280)
	assert.True(t, strings.HasSuffix(xCalls[0].Content, "..."))

	dCalls := discord.Calls()
	require.Len(t, dCalls, 1)
	assert.Equal(t, "short discord version", dCalls[0].Content)
}

func TestContentTruncationKeepsRuneBoundaries(t *testing.T) {
	c := New()
	x := platform.NewMockAdapter("x", func(o *platform.MockOptions) {
		o.ContentLimit = 280
	})
	c.RegisterAdapter(x, core.TierCritical)

	// Two-byte runes, so a byte-indexed cut at 277 would land mid-rune.
	long := strings.Repeat("é", 200)
	action := core.NewCoordinatedAction(core.ActionPost, long, "x")

	_, err := c.ExecuteAction(context.Background(), action)
	require.NoError(t, err)

	calls := x.Calls()
	require.Len(t, calls, 1)
	assert.LessOrEqual(t, len(calls[0].Content), 280)
	assert.True(t, utf8.ValidString(calls[0].Content))
	assert.True(t, strings.HasSuffix(calls[0].Content, "..."))
}

func TestEventFanIn(t *testing.T) {
	c := New()
	x := platform.NewMockAdapter("x")
	c.RegisterAdapter(x, core.TierCritical)

	received := make(chan core.Event, 4)
	c.OnEvent(func(ev core.Event) { received <- ev })

	c.Start(context.Background())
	defer c.Stop()

	x.InjectEvent(core.NewEvent(core.EventMention, "hey there", 5))

	select {
	case ev := <-received:
		assert.Equal(t, "x", ev.Platform)
		assert.Equal(t, core.EventMention, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("event never fanned in")
	}
}

func TestEventFanInDeduplicatesCrossPosts(t *testing.T) {
	c := New()
	x := platform.NewMockAdapter("x")
	discord := platform.NewMockAdapter("discord")
	c.RegisterAdapter(x, core.TierCritical)
	c.RegisterAdapter(discord, core.TierHigh)

	received := make(chan core.Event, 4)
	c.OnEvent(func(ev core.Event) { received <- ev })

	c.Start(context.Background())
	defer c.Stop()

	x.InjectEvent(core.NewEvent(core.EventMention, "same message everywhere", 5))
	discord.InjectEvent(core.NewEvent(core.EventMention, "same message everywhere", 5))

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("first event never arrived")
	}
	select {
	case ev := <-received:
		t.Fatalf("duplicate cross-post delivered from %s", ev.Platform)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestPressureAfterConsecutiveFailures(t *testing.T) {
	c := New()
	failing := platform.NewMockAdapter("x")
	failing.FailNext(10, errors.New("throttled"))
	c.RegisterAdapter(failing, core.TierCritical)

	assert.False(t, c.Pressure())

	for i := 0; i < 3; i++ {
		action := core.NewCoordinatedAction(core.ActionPost, "push through", "x")
		_, err := c.ExecuteAction(context.Background(), action)
		require.NoError(t, err)
	}

	assert.True(t, c.Pressure())

	// A success clears the streak.
	failing.FailNext(0, nil)
	action := core.NewCoordinatedAction(core.ActionPost, "recovered", "x")
	_, err := c.ExecuteAction(context.Background(), action)
	require.NoError(t, err)
	assert.False(t, c.Pressure())
}

func TestRunningAggregatesAdapterHealth(t *testing.T) {
	c := New()
	x := platform.NewMockAdapter("x")
	c.RegisterAdapter(x, core.TierCritical)

	assert.False(t, c.Running(), "not started yet")

	c.Start(context.Background())
	defer c.Stop()
	assert.True(t, c.Running())

	x.SetConnected(false)
	assert.False(t, c.Running(), "no connected adapters left")
}

func TestAdaptersDescriptor(t *testing.T) {
	c := New()
	c.RegisterAdapter(platform.NewMockAdapter("x"), core.TierCritical)

	descs := c.Adapters()
	require.Len(t, descs, 1)
	assert.Equal(t, "x", descs[0].Platform)
	assert.Equal(t, core.TierCritical, descs[0].Tier)
	assert.True(t, descs[0].Connected)
	assert.Len(t, descs[0].Capabilities, len(core.ActionTypes))
}
