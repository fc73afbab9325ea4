package score

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/socialmesh/core"
)

func TestNewRejectsInvalidWeights(t *testing.T) {
	bad := map[core.PillarID]float64{
		core.PillarAwareness: 0.5,
		core.PillarDefine:    0.5,
	}
	_, err := New(func(o *Options) { o.Weights = bad })
	var cfgErr *core.ScoringConfigError
	require.ErrorAs(t, err, &cfgErr)

	negative := map[core.PillarID]float64{}
	for p, w := range DefaultWeights {
		negative[p] = w
	}
	negative[core.PillarLearn] = -0.0875
	negative[core.PillarEvolve] = 0.2625
	_, err = New(func(o *Options) { o.Weights = negative })
	require.ErrorAs(t, err, &cfgErr)
}

func TestCalculateDeterministic(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	context := map[string]any{
		"user_id":       "u1",
		"their_message": "really loving the new track, pure vibes",
	}
	a := c.Calculate(core.ActionReply, "Thank you, so much love for the vibes here", context)
	b := c.Calculate(core.ActionReply, "Thank you, so much love for the vibes here", context)

	assert.Equal(t, a.Total, b.Total)
	assert.Equal(t, a.PillarScores, b.PillarScores)
}

func TestCalculateTotalMatchesWeightedSum(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	s := c.Calculate(core.ActionPost, "Sharing some thoughts on music and growth today", nil)

	want := 0.0
	for p, ps := range s.PillarScores {
		want += ps * s.Weights[p]
	}
	assert.InDelta(t, want, s.Total, 1e-9)
	assert.Len(t, s.PillarScores, len(core.Pillars))
}

func TestThresholdTable(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	assert.Equal(t, 80.0, c.Threshold(core.ActionDM))
	assert.Equal(t, 65.0, c.Threshold(core.ActionReply))
	assert.Equal(t, 60.0, c.Threshold(core.ActionPost))
	assert.Equal(t, 50.0, c.Threshold(core.ActionLike))
	assert.Equal(t, 60.0, c.Threshold(core.ActionFollow))
	assert.Equal(t, DefaultThreshold, c.Threshold(core.ActionType("other")))
}

func TestRichContextScoresHigher(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	content := "Thank you for the love, these vibes keep us going"
	bare := c.Calculate(core.ActionReply, content, nil)
	rich := c.Calculate(core.ActionReply, content, map[string]any{
		"user_id":           "u1",
		"follower_count":    2500,
		"verified":          true,
		"their_message":     "your music got me through a tough week, thank you",
		"relationship_tier": "engaged_fan",
		"created_at":        "2026-08-25T10:00:00Z",
	})

	assert.Greater(t, rich.Total, bare.Total)
}

func TestSpamContentScoresLower(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	clean := c.Calculate(core.ActionPost, "Grateful for this community and the music we share", nil)
	spam := c.Calculate(core.ActionPost, "Buy now!! Click here for free followers, dm me for more", nil)

	assert.Greater(t, clean.PillarScores[core.PillarDevise], spam.PillarScores[core.PillarDevise])
	assert.Greater(t, clean.Total, spam.Total)
}

func TestAdjustWeightClampsAndRenormalizes(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	before := c.Weights()
	require.NoError(t, c.AdjustWeight(core.PillarAwareness, 0.5))
	after := c.Weights()

	// Requested delta far above the step cap still only moves the weight
	// by at most the cap (before renormalization shrinks it further).
	assert.Less(t, after[core.PillarAwareness]-before[core.PillarAwareness], MaxWeightStep+1e-9)

	sum := 0.0
	for _, w := range after {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, core.WeightSumTolerance)
	require.NoError(t, core.ValidateWeights(after))
}

func TestAdjustWeightNeverGoesNegative(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	for n := 0; n < 50; n++ {
		require.NoError(t, c.AdjustWeight(core.PillarEvolve, -0.02))
	}
	w := c.Weights()
	assert.GreaterOrEqual(t, w[core.PillarEvolve], 0.0)

	sum := 0.0
	for _, v := range w {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, core.WeightSumTolerance)
}

func TestAdjustWeightUnknownPillar(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	err = c.AdjustWeight(core.PillarID("charisma"), 0.01)
	var cfgErr *core.ScoringConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestDefaultWeightsSumToOne(t *testing.T) {
	sum := 0.0
	for _, w := range DefaultWeights {
		sum += w
	}
	assert.True(t, math.Abs(sum-1.0) <= core.WeightSumTolerance)
}

func TestWeakestPillars(t *testing.T) {
	s := core.ValueScore{PillarScores: map[core.PillarID]float64{
		core.PillarAwareness:  90,
		core.PillarDefine:     30,
		core.PillarDevise:     30,
		core.PillarValidate:   80,
		core.PillarActUpon:    70,
		core.PillarLearn:      60,
		core.PillarUnderstand: 65,
		core.PillarEvolve:     20,
	}}
	weak := s.WeakestPillars(3)
	assert.Equal(t, []core.PillarID{core.PillarEvolve, core.PillarDefine, core.PillarDevise}, weak)
}
