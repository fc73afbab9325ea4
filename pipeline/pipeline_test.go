package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/socialmesh/coordinator"
	"github.com/hupe1980/socialmesh/core"
	"github.com/hupe1980/socialmesh/dispatcher"
	"github.com/hupe1980/socialmesh/gate"
	"github.com/hupe1980/socialmesh/learner"
	"github.com/hupe1980/socialmesh/platform"
	"github.com/hupe1980/socialmesh/score"
	"github.com/hupe1980/socialmesh/store"
)

type fixture struct {
	disp    *dispatcher.Dispatcher
	coord   *coordinator.Coordinator
	adapter *platform.MockAdapter
	store   *store.MemoryStore
	pipe    *Pipeline
}

// newFixture wires a full pipeline over a single mock platform. The
// generator is swappable per test since it decides what the gate sees.
func newFixture(t *testing.T, gen core.ContentGenerator, optFns ...func(o *Options)) *fixture {
	t.Helper()

	calc, err := score.New()
	require.NoError(t, err)

	st := store.NewMemoryStore()
	disp := dispatcher.New()
	coord := coordinator.New()
	adapter := platform.NewMockAdapter("x")
	coord.RegisterAdapter(adapter, core.TierCritical)

	g := gate.New(calc)
	l := learner.New(calc, st)
	pipe := New(disp, gen, g, coord, l, optFns...)

	pipe.Start(context.Background())
	disp.Start(context.Background())
	t.Cleanup(func() {
		disp.Stop()
		pipe.Stop()
	})

	return &fixture{disp: disp, coord: coord, adapter: adapter, store: st, pipe: pipe}
}

func warmReply(ctx context.Context, actionType core.ActionType, _ map[string]any) (string, error) {
	return "Thank you for the love, music like this keeps all of us going", nil
}

// fanMention is an event that scores well above the reply threshold.
func fanMention() core.Event {
	ev := core.NewEvent(core.EventMention, "your music got me through a tough week, thank you so much", 5)
	ev.Platform = "x"
	ev.SourceID = "post-123"
	ev.Actor = core.Actor{UserID: "u1", DisplayName: "superfan", FollowerCount: 5000, Verified: true}
	ev.Metadata = map[string]any{
		"relationship_tier": "engaged_fan",
		"detected_intent":   "gratitude",
		"intent_confidence": 0.9,
		"past_interactions": true,
		"actor_vetted":      true,
	}
	return ev
}

func TestPipelineEndToEnd(t *testing.T) {
	f := newFixture(t, core.GeneratorFunc(warmReply))

	require.NoError(t, f.disp.Dispatch(fanMention()))

	require.Eventually(t, func() bool {
		return len(f.adapter.Calls()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	calls := f.adapter.Calls()
	assert.Equal(t, core.ActionReply, calls[0].Op)
	assert.Equal(t, "post-123", calls[0].TargetID)
	assert.Contains(t, calls[0].Content, "Thank you for the love")

	require.Eventually(t, func() bool {
		outcomes, err := f.store.Outcomes(0)
		return err == nil && len(outcomes) == 1
	}, 2*time.Second, 10*time.Millisecond)

	outcomes, err := f.store.Outcomes(0)
	require.NoError(t, err)
	assert.True(t, outcomes[0].Executed)
	assert.Equal(t, core.DecisionPass, outcomes[0].Result.Decision)

	stats := f.pipe.Stats()
	assert.Equal(t, uint64(1), stats.Drafted)
	assert.Equal(t, uint64(1), stats.Passed)
	assert.Equal(t, uint64(1), stats.Executed)
}

func TestPipelineBlocksLowValueDrafts(t *testing.T) {
	spam := core.GeneratorFunc(func(ctx context.Context, actionType core.ActionType, _ map[string]any) (string, error) {
		return "buy now, click here, free stuff, dm me for more", nil
	})
	f := newFixture(t, spam)

	ev := core.NewEvent(core.EventDM, "hey", 5)
	ev.Platform = "x"
	ev.Actor = core.Actor{UserID: "u2"}
	ev.Metadata = map[string]any{"actor_vetted": true}
	require.NoError(t, f.disp.Dispatch(ev))

	require.Eventually(t, func() bool {
		return f.pipe.Stats().Blocked == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Empty(t, f.adapter.Calls())

	outcomes, err := f.store.Outcomes(0)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Executed)
	assert.Equal(t, core.DecisionBlock, outcomes[0].Result.Decision)
	assert.NotEmpty(t, outcomes[0].Result.Suggestions)
}

func TestPipelineEscalationRoutesToReview(t *testing.T) {
	risky := core.GeneratorFunc(func(ctx context.Context, actionType core.ActionType, _ map[string]any) (string, error) {
		return "Thank you for the love, the politics of joy unite us in music", nil
	})

	escalated := make(chan core.GateResult, 1)
	f := newFixture(t, risky, func(o *Options) {
		o.OnEscalation = func(result core.GateResult) { escalated <- result }
	})

	require.NoError(t, f.disp.Dispatch(fanMention()))

	select {
	case result := <-escalated:
		assert.Equal(t, core.DecisionEscalate, result.Decision)
	case <-time.After(2 * time.Second):
		t.Fatal("escalation never surfaced")
	}
	assert.Empty(t, f.adapter.Calls())
}

func TestPipelineExecutedCallback(t *testing.T) {
	done := make(chan map[string]coordinator.Result, 1)
	f := newFixture(t, core.GeneratorFunc(warmReply), func(o *Options) {
		o.OnExecuted = func(_ core.GateResult, results map[string]coordinator.Result) { done <- results }
	})

	require.NoError(t, f.disp.Dispatch(fanMention()))

	select {
	case results := <-done:
		require.Contains(t, results, "x")
		assert.NoError(t, results["x"].Err)
	case <-time.After(2 * time.Second):
		t.Fatal("executed callback never fired")
	}
}

func TestActionRouting(t *testing.T) {
	tests := []struct {
		name     string
		event    core.Event
		expected core.ActionType
		routed   bool
	}{
		{"mention becomes reply", core.NewEvent(core.EventMention, "hi", 5), core.ActionReply, true},
		{"dm stays dm", core.NewEvent(core.EventDM, "hi", 5), core.ActionDM, true},
		{"scheduled becomes post", core.NewEvent(core.EventScheduled, "", 5), core.ActionPost, true},
		{"webhook without route is skipped", core.NewEvent(core.EventWebhook, "payload", 5), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actionType, ok := actionForEvent(tt.event)
			assert.Equal(t, tt.routed, ok)
			if tt.routed {
				assert.Equal(t, tt.expected, actionType)
			}
		})
	}

	t.Run("webhook with explicit route", func(t *testing.T) {
		ev := core.NewEvent(core.EventWebhook, "payload", 5)
		ev.Metadata["action_type"] = "post"
		actionType, ok := actionForEvent(ev)
		require.True(t, ok)
		assert.Equal(t, core.ActionPost, actionType)
	})
}

func TestScoringContextProjection(t *testing.T) {
	ev := fanMention()
	ctx := scoringContext(ev)

	assert.Equal(t, ev.Content, ctx["their_message"])
	assert.Equal(t, "u1", ctx["user_id"])
	assert.Equal(t, 5000, ctx["follower_count"])
	assert.Equal(t, true, ctx["verified"])
	assert.Equal(t, "x", ctx["platform"])
	// The heuristics read timing context as a string.
	assert.Equal(t, ev.ReceivedAt.Format(time.RFC3339), ctx["event_time"])
	// Metadata enrichment overlays the projection.
	assert.Equal(t, "gratitude", ctx["detected_intent"])
}

func TestExecutionTarget(t *testing.T) {
	ev := fanMention()
	assert.Equal(t, "post-123", executionTarget(ev, core.ActionReply))
	assert.Equal(t, "post-123", executionTarget(ev, core.ActionLike))
	assert.Equal(t, "u1", executionTarget(ev, core.ActionDM))
	assert.Equal(t, "u1", executionTarget(ev, core.ActionFollow))
	assert.Empty(t, executionTarget(ev, core.ActionPost))
}
