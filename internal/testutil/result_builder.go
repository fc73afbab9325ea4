package testutil

import (
	"time"

	"github.com/hupe1980/socialmesh/core"
)

// GateResultBuilder provides a fluent helper for constructing gate
// results in tests, mainly as learner input.
type GateResultBuilder struct {
	decision   core.GateDecision
	actionType core.ActionType
	content    string
	pillars    map[core.PillarID]float64
	threshold  float64
}

// NewGateResultBuilder creates a builder for a passing reply with all
// pillars at 50.
func NewGateResultBuilder() *GateResultBuilder {
	pillars := make(map[core.PillarID]float64, len(core.Pillars))
	for _, p := range core.Pillars {
		pillars[p] = 50
	}
	return &GateResultBuilder{
		decision:   core.DecisionPass,
		actionType: core.ActionReply,
		content:    "test content",
		pillars:    pillars,
		threshold:  65,
	}
}

// Decision sets the gate decision (chainable).
func (b *GateResultBuilder) Decision(d core.GateDecision) *GateResultBuilder {
	b.decision = d
	return b
}

// ActionType sets the evaluated action type (chainable).
func (b *GateResultBuilder) ActionType(t core.ActionType) *GateResultBuilder {
	b.actionType = t
	return b
}

// Content sets the evaluated content (chainable).
func (b *GateResultBuilder) Content(c string) *GateResultBuilder { b.content = c; return b }

// Pillar sets one pillar's score (chainable).
func (b *GateResultBuilder) Pillar(p core.PillarID, score float64) *GateResultBuilder {
	b.pillars[p] = score
	return b
}

// Threshold sets the admission bar (chainable).
func (b *GateResultBuilder) Threshold(t float64) *GateResultBuilder { b.threshold = t; return b }

// Build constructs the core.GateResult value with a total computed from
// equal default weights.
func (b *GateResultBuilder) Build() core.GateResult {
	weights := make(map[core.PillarID]float64, len(core.Pillars))
	for _, p := range core.Pillars {
		weights[p] = 1.0 / float64(len(core.Pillars))
	}
	total := 0.0
	for p, s := range b.pillars {
		total += s * weights[p]
	}
	return core.GateResult{
		Decision:   b.decision,
		ActionID:   core.NewID(),
		ActionType: b.actionType,
		Content:    b.content,
		Score: core.ValueScore{
			PillarScores: b.pillars,
			Weights:      weights,
			Total:        total,
			Threshold:    b.threshold,
			Passes:       total >= b.threshold,
		},
		Reason:      "built for test",
		EvaluatedAt: time.Now().UTC(),
	}
}

// OutcomeRecord wraps the built result into an outcome record.
func (b *GateResultBuilder) OutcomeRecord(executed bool, engagement core.EngagementOutcome) core.OutcomeRecord {
	return core.OutcomeRecord{
		Result:     b.Build(),
		Executed:   executed,
		Engagement: engagement,
		RecordedAt: time.Now().UTC(),
	}
}
