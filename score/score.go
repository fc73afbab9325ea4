// Package score implements the weighted multi-criterion value calculator
// that decides how much an outbound action is worth. Eight fixed pillars
// are scored 0-100 by deterministic heuristics, combined with injectable
// weights and compared against a per-action-type threshold.
package score

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/socialmesh/core"
	"github.com/hupe1980/socialmesh/logging"
	"github.com/hupe1980/socialmesh/monitoring"
)

// MaxWeightStep caps a single AdjustWeight application. Larger requested
// deltas are clamped, never rejected.
const MaxWeightStep = 0.02

// DefaultWeights is the baseline pillar weighting. Awareness and Validate
// carry the most weight; the reflective pillars carry the least.
var DefaultWeights = map[core.PillarID]float64{
	core.PillarAwareness:  0.1875,
	core.PillarDefine:     0.15,
	core.PillarDevise:     0.125,
	core.PillarValidate:   0.1625,
	core.PillarActUpon:    0.1,
	core.PillarLearn:      0.0875,
	core.PillarUnderstand: 0.1,
	core.PillarEvolve:     0.0875,
}

// DefaultThresholds is the baseline admission bar per action type. DMs
// carry the highest bar, likes the lowest.
var DefaultThresholds = map[core.ActionType]float64{
	core.ActionPost:   60,
	core.ActionReply:  65,
	core.ActionDM:     80,
	core.ActionLike:   50,
	core.ActionFollow: 60,
}

// DefaultThreshold applies to action types missing from the threshold table.
const DefaultThreshold = 70.0

// Options configures a Calculator.
type Options struct {
	Weights    map[core.PillarID]float64
	Thresholds map[core.ActionType]float64
	Heuristics Heuristics
	Logger     logging.Logger
	Metrics    *monitoring.Metrics
}

// Calculator scores candidate actions against the eight pillars. Weight
// reads are lock-free snapshots; AdjustWeight is the single mutation path.
type Calculator struct {
	thresholds map[core.ActionType]float64
	heur       Heuristics
	logger     logging.Logger
	metrics    *monitoring.Metrics

	weightsMu sync.Mutex
	weights   atomic.Pointer[map[core.PillarID]float64]

	calculations atomic.Uint64
	passed       atomic.Uint64
	blocked      atomic.Uint64
}

// New creates a Calculator. An invalid weight set is a fatal configuration
// error: the caller must not start the process with it.
func New(optFns ...func(o *Options)) (*Calculator, error) {
	opts := Options{
		Weights:    DefaultWeights,
		Thresholds: DefaultThresholds,
		Heuristics: DefaultHeuristics(),
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := core.ValidateWeights(opts.Weights); err != nil {
		return nil, err
	}

	weights := make(map[core.PillarID]float64, len(opts.Weights))
	for p, w := range opts.Weights {
		weights[p] = w
	}
	thresholds := make(map[core.ActionType]float64, len(opts.Thresholds))
	for a, t := range opts.Thresholds {
		thresholds[a] = t
	}

	c := &Calculator{
		thresholds: thresholds,
		heur:       opts.Heuristics,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
	}
	c.weights.Store(&weights)
	return c, nil
}

// Weights returns a copy of the current weight snapshot.
func (c *Calculator) Weights() map[core.PillarID]float64 {
	snap := *c.weights.Load()
	out := make(map[core.PillarID]float64, len(snap))
	for p, w := range snap {
		out[p] = w
	}
	return out
}

// Threshold returns the admission bar for an action type.
func (c *Calculator) Threshold(actionType core.ActionType) float64 {
	if t, ok := c.thresholds[actionType]; ok {
		return t
	}
	return DefaultThreshold
}

// Calculate scores an action. The same inputs always produce the same
// score; no pillar heuristic consults external state.
func (c *Calculator) Calculate(actionType core.ActionType, content string, context map[string]any) core.ValueScore {
	c.calculations.Add(1)
	if context == nil {
		context = map[string]any{}
	}

	weights := *c.weights.Load()
	threshold := c.Threshold(actionType)

	pillarScores := map[core.PillarID]float64{
		core.PillarAwareness:  c.heur.scoreAwareness(content, context),
		core.PillarDefine:     c.heur.scoreDefine(actionType, content, context),
		core.PillarDevise:     c.heur.scoreDevise(actionType, content, context),
		core.PillarValidate:   c.heur.scoreValidate(content, context),
		core.PillarActUpon:    c.heur.scoreActUpon(content, context),
		core.PillarLearn:      c.heur.scoreLearn(context),
		core.PillarUnderstand: c.heur.scoreUnderstand(context),
		core.PillarEvolve:     c.heur.scoreEvolve(actionType, context),
	}

	total := 0.0
	for p, s := range pillarScores {
		total += s * weights[p]
	}

	result := core.ValueScore{
		PillarScores: pillarScores,
		Weights:      weights,
		Total:        total,
		Threshold:    threshold,
		Passes:       total >= threshold,
	}

	if result.Passes {
		c.passed.Add(1)
	} else {
		c.blocked.Add(1)
	}
	c.metrics.ObserveScore(total)
	c.logger.Debug("value score calculated",
		"action_type", string(actionType), "total", total, "threshold", threshold, "passes", result.Passes)

	return result
}

// AdjustWeight shifts one pillar's weight by delta, clamped to
// MaxWeightStep per application, floored at zero, then renormalizes the
// set so it keeps summing to 1. The post-adjustment invariant always
// holds regardless of the requested delta.
func (c *Calculator) AdjustWeight(pillar core.PillarID, delta float64) error {
	valid := false
	for _, p := range core.Pillars {
		if p == pillar {
			valid = true
			break
		}
	}
	if !valid {
		return &core.ScoringConfigError{Reason: "unknown pillar " + string(pillar)}
	}

	delta = math.Max(-MaxWeightStep, math.Min(MaxWeightStep, delta))

	c.weightsMu.Lock()
	defer c.weightsMu.Unlock()

	old := *c.weights.Load()
	next := make(map[core.PillarID]float64, len(old))
	for p, w := range old {
		next[p] = w
	}
	next[pillar] = math.Max(0, next[pillar]+delta)

	sum := 0.0
	for _, w := range next {
		sum += w
	}
	if sum <= 0 {
		return &core.ScoringConfigError{Reason: "weight adjustment would zero all weights"}
	}
	for p := range next {
		next[p] /= sum
	}

	c.weights.Store(&next)
	c.logger.Debug("weight adjusted", "pillar", string(pillar), "delta", delta)
	return nil
}

// Stats is a snapshot of calculator counters.
type Stats struct {
	Calculations uint64
	Passed       uint64
	Blocked      uint64
	CollectedAt  time.Time
}

// Stats returns current calculator counters.
func (c *Calculator) Stats() Stats {
	return Stats{
		Calculations: c.calculations.Load(),
		Passed:       c.passed.Load(),
		Blocked:      c.blocked.Load(),
		CollectedAt:  time.Now().UTC(),
	}
}
