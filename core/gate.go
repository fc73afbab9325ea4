package core

import "time"

// GateDecision is the outcome of evaluating a candidate action.
type GateDecision string

const (
	// DecisionPass approves the action for execution.
	DecisionPass GateDecision = "pass"
	// DecisionBlock rejects the action; the caller decides whether to
	// regenerate or drop it.
	DecisionBlock GateDecision = "block"
	// DecisionDefer postpones the action for timing/capacity reasons not
	// inherent to the content itself.
	DecisionDefer GateDecision = "defer"
	// DecisionEscalate routes the action to human review because of
	// explicit high-risk markers, regardless of score.
	DecisionEscalate GateDecision = "escalate"
)

// GateResult is produced once per gate evaluation and is immutable.
// Suggestions carry human-readable improvement hints for blocked actions,
// ordered weakest pillar first.
type GateResult struct {
	Decision    GateDecision `json:"decision"`
	ActionID    string       `json:"action_id"`
	ActionType  ActionType   `json:"action_type"`
	Content     string       `json:"content"`
	Score       ValueScore   `json:"score"`
	Suggestions []string     `json:"suggestions,omitempty"`
	Reason      string       `json:"reason"`
	EvaluatedAt time.Time    `json:"evaluated_at"`
}
