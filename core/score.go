package core

import (
	"math"
	"sort"
)

// PillarID names one of the eight fixed scoring dimensions contributing to
// an action's value score.
type PillarID string

const (
	// PillarAwareness measures whether the situation is understood clearly.
	PillarAwareness PillarID = "awareness"
	// PillarDefine measures whether the goal of the action is clear.
	PillarDefine PillarID = "define"
	// PillarDevise measures whether the content/approach is well crafted.
	PillarDevise PillarID = "devise"
	// PillarValidate measures whether the action is backed by evidence.
	PillarValidate PillarID = "validate"
	// PillarActUpon measures execution readiness.
	PillarActUpon PillarID = "act_upon"
	// PillarLearn measures use of past interaction feedback.
	PillarLearn PillarID = "learn"
	// PillarUnderstand measures recognition of the deeper pattern/intent.
	PillarUnderstand PillarID = "understand"
	// PillarEvolve measures growth and relationship-building potential.
	PillarEvolve PillarID = "evolve"
)

// Pillars lists all eight pillars in canonical order.
var Pillars = []PillarID{
	PillarAwareness,
	PillarDefine,
	PillarDevise,
	PillarValidate,
	PillarActUpon,
	PillarLearn,
	PillarUnderstand,
	PillarEvolve,
}

// WeightSumTolerance is the permitted deviation of a weight set's sum from 1.0.
const WeightSumTolerance = 1e-6

// ValueScore is the weighted aggregate of pillar sub-scores used for
// admission control. Invariants: weights sum to 1.0 (within
// WeightSumTolerance) and Total equals the weight-scaled pillar sum.
type ValueScore struct {
	PillarScores map[PillarID]float64 `json:"pillar_scores"`
	Weights      map[PillarID]float64 `json:"weights"`
	Total        float64              `json:"total"`
	Threshold    float64              `json:"threshold"`
	Passes       bool                 `json:"passes"`
}

// WeakestPillars returns up to n pillar IDs ranked by ascending score.
// Ties break on canonical pillar order so the ranking is deterministic.
func (s ValueScore) WeakestPillars(n int) []PillarID {
	order := make(map[PillarID]int, len(Pillars))
	for i, p := range Pillars {
		order[p] = i
	}
	ranked := make([]PillarID, 0, len(s.PillarScores))
	for p := range s.PillarScores {
		ranked = append(ranked, p)
	}
	sort.Slice(ranked, func(i, j int) bool {
		si, sj := s.PillarScores[ranked[i]], s.PillarScores[ranked[j]]
		if si != sj {
			return si < sj
		}
		return order[ranked[i]] < order[ranked[j]]
	})
	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n]
}

// ValidateWeights checks that a weight set covers exactly the eight known
// pillars, carries no negative weight and sums to 1.0 within tolerance.
// Violations are fatal configuration errors.
func ValidateWeights(weights map[PillarID]float64) error {
	if len(weights) != len(Pillars) {
		return &ScoringConfigError{Reason: "weight set must cover all eight pillars"}
	}
	sum := 0.0
	for _, p := range Pillars {
		w, ok := weights[p]
		if !ok {
			return &ScoringConfigError{Reason: "missing weight for pillar " + string(p)}
		}
		if w < 0 {
			return &ScoringConfigError{Reason: "negative weight for pillar " + string(p)}
		}
		sum += w
	}
	if math.Abs(sum-1.0) > WeightSumTolerance {
		return &ScoringConfigError{Reason: "weights must sum to 1.0"}
	}
	return nil
}
