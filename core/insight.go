package core

import "time"

// EngagementOutcome captures the downstream engagement an executed action
// received. It is reported by analytics collaborators after execution.
type EngagementOutcome struct {
	Likes   int `json:"likes"`
	Replies int `json:"replies"`
	Shares  int `json:"shares"`
}

// Score collapses the outcome into a single engagement figure. Replies
// weigh heaviest, shares next; the weighting mirrors how conversational
// engagement compounds relative to passive likes.
func (o EngagementOutcome) Score() float64 {
	return float64(o.Likes) + 3*float64(o.Replies) + 2*float64(o.Shares)
}

// OutcomeRecord is the unit of the learner's rolling window: a gate result
// paired with what happened after it. Blocked actions carry no engagement.
type OutcomeRecord struct {
	Result     GateResult        `json:"result"`
	Executed   bool              `json:"executed"`
	Engagement EngagementOutcome `json:"engagement"`
	RecordedAt time.Time         `json:"recorded_at"`
}

// Insight is a bounded weight-adjustment proposal produced by learner
// analysis. SuggestedDelta is clamped to a per-application step and
// renormalized when applied, so applying an insight can never break the
// weight-sum invariant.
type Insight struct {
	Pattern        string   `json:"pattern"`
	Pillar         PillarID `json:"pillar"`
	SuggestedDelta float64  `json:"suggested_delta"`
	Confidence     float64  `json:"confidence"`
}
