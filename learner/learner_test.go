package learner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/socialmesh/core"
	"github.com/hupe1980/socialmesh/score"
	"github.com/hupe1980/socialmesh/store"
)

func newLearner(t *testing.T) (*Learner, *score.Calculator, *store.MemoryStore) {
	t.Helper()
	calc, err := score.New()
	require.NoError(t, err)
	st := store.NewMemoryStore()
	return New(calc, st), calc, st
}

func resultWithPillar(pillar core.PillarID, pillarScore float64) core.GateResult {
	scores := map[core.PillarID]float64{}
	for _, p := range core.Pillars {
		scores[p] = 50
	}
	scores[pillar] = pillarScore
	return core.GateResult{
		ActionID:   core.NewID(),
		ActionType: core.ActionReply,
		Score:      core.ValueScore{PillarScores: scores},
	}
}

func TestRecordingAppendsToWindow(t *testing.T) {
	l, _, st := newLearner(t)

	require.NoError(t, l.RecordBlocked(resultWithPillar(core.PillarDevise, 20)))
	require.NoError(t, l.RecordExecuted(resultWithPillar(core.PillarDevise, 80), core.EngagementOutcome{Likes: 3}))

	outcomes, err := st.Outcomes(10)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.False(t, outcomes[0].Executed)
	assert.True(t, outcomes[1].Executed)
	assert.Equal(t, 3, outcomes[1].Engagement.Likes)
}

func TestAnalyzeNeedsEnoughData(t *testing.T) {
	l, _, _ := newLearner(t)

	require.NoError(t, l.RecordBlocked(resultWithPillar(core.PillarDevise, 20)))

	insights, err := l.Analyze()
	require.NoError(t, err)
	assert.Empty(t, insights)
}

func TestAnalyzeFindsDifferentiatingPillar(t *testing.T) {
	l, _, _ := newLearner(t)

	// Devise scores high whenever engagement follows and low when the
	// gate blocks; every other pillar sits flat at 50.
	for n := 0; n < 6; n++ {
		require.NoError(t, l.RecordExecuted(resultWithPillar(core.PillarDevise, 85), core.EngagementOutcome{Likes: 4, Replies: 2}))
		require.NoError(t, l.RecordBlocked(resultWithPillar(core.PillarDevise, 25)))
	}

	insights, err := l.Analyze()
	require.NoError(t, err)
	require.Len(t, insights, 1)

	in := insights[0]
	assert.Equal(t, core.PillarDevise, in.Pillar)
	assert.Greater(t, in.SuggestedDelta, 0.0)
	assert.Greater(t, in.Confidence, 0.5)
	assert.LessOrEqual(t, in.Confidence, 1.0)
}

func TestAnalyzeFindsInvertedCorrelation(t *testing.T) {
	l, _, _ := newLearner(t)

	for n := 0; n < 6; n++ {
		require.NoError(t, l.RecordExecuted(resultWithPillar(core.PillarLearn, 20), core.EngagementOutcome{Replies: 1}))
		require.NoError(t, l.RecordBlocked(resultWithPillar(core.PillarLearn, 90)))
	}

	insights, err := l.Analyze()
	require.NoError(t, err)
	require.Len(t, insights, 1)
	assert.Equal(t, core.PillarLearn, insights[0].Pillar)
	assert.Less(t, insights[0].SuggestedDelta, 0.0)
}

func TestApplyInsightKeepsWeightInvariants(t *testing.T) {
	l, calc, _ := newLearner(t)

	before := calc.Weights()
	err := l.ApplyInsight(core.Insight{
		Pattern:        "devise differentiates",
		Pillar:         core.PillarDevise,
		SuggestedDelta: 0.5, // far above the step cap
		Confidence:     0.8,
	})
	require.NoError(t, err)

	after := calc.Weights()
	assert.Greater(t, after[core.PillarDevise], before[core.PillarDevise])
	require.NoError(t, core.ValidateWeights(after))
}

func TestApplyInsightRejectsBadConfidence(t *testing.T) {
	l, _, _ := newLearner(t)

	err := l.ApplyInsight(core.Insight{Pillar: core.PillarDevise, SuggestedDelta: 0.01, Confidence: 1.5})
	var cfgErr *core.ScoringConfigError
	require.ErrorAs(t, err, &cfgErr)
}
