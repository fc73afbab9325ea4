// Package learner closes the feedback loop: executed and blocked actions
// are recorded with their downstream engagement, analyzed for per-pillar
// correlation, and turned into bounded weight-adjustment insights for the
// score calculator.
package learner

import (
	"fmt"
	"time"

	"github.com/hupe1980/socialmesh/core"
	"github.com/hupe1980/socialmesh/logging"
	"github.com/hupe1980/socialmesh/score"
)

// Options configures a Learner.
type Options struct {
	// WindowSize is how many recent outcome records Analyze considers.
	WindowSize int
	// MinSamples is the minimum number of records per group (successful /
	// blocked) before a pillar correlation counts as evidence.
	MinSamples int
	Logger     logging.Logger
}

// Learner records action outcomes and proposes weight adjustments. The
// rolling window lives in the record store; the learner itself is
// stateless between calls.
type Learner struct {
	calc       *score.Calculator
	store      core.RecordStore
	windowSize int
	minSamples int
	logger     logging.Logger
}

// New creates a Learner over the given calculator and record store.
func New(calc *score.Calculator, recordStore core.RecordStore, optFns ...func(o *Options)) *Learner {
	opts := Options{
		WindowSize: 1000,
		MinSamples: 5,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Learner{
		calc:       calc,
		store:      recordStore,
		windowSize: opts.WindowSize,
		minSamples: opts.MinSamples,
		logger:     opts.Logger,
	}
}

// RecordBlocked appends a blocked action to the rolling window.
func (l *Learner) RecordBlocked(result core.GateResult) error {
	return l.store.AppendOutcome(core.OutcomeRecord{
		Result:     result,
		Executed:   false,
		RecordedAt: time.Now().UTC(),
	})
}

// RecordExecuted appends an executed action and its engagement outcome to
// the rolling window.
func (l *Learner) RecordExecuted(result core.GateResult, outcome core.EngagementOutcome) error {
	return l.store.AppendOutcome(core.OutcomeRecord{
		Result:     result,
		Executed:   true,
		Engagement: outcome,
		RecordedAt: time.Now().UTC(),
	})
}

// Analyze correlates per-pillar scores with outcomes over the rolling
// window. A pillar that scores high on well-engaged executed actions and
// low on blocked ones is a differentiator; Analyze proposes increasing
// its weight.
func (l *Learner) Analyze() ([]core.Insight, error) {
	records, err := l.store.Outcomes(l.windowSize)
	if err != nil {
		return nil, fmt.Errorf("read outcome window: %w", err)
	}

	var engaged, blocked []core.OutcomeRecord
	for _, r := range records {
		switch {
		case !r.Executed:
			blocked = append(blocked, r)
		case r.Engagement.Score() > 0:
			engaged = append(engaged, r)
		}
	}

	if len(engaged) < l.minSamples || len(blocked) < l.minSamples {
		l.logger.Debug("not enough outcome data for analysis",
			"engaged", len(engaged), "blocked", len(blocked), "min", l.minSamples)
		return nil, nil
	}

	var insights []core.Insight
	for _, pillar := range core.Pillars {
		avgEngaged, okE := averagePillar(engaged, pillar)
		avgBlocked, okB := averagePillar(blocked, pillar)
		if !okE || !okB {
			continue
		}

		if avgEngaged > 60 && avgBlocked < 40 {
			insights = append(insights, core.Insight{
				Pattern: fmt.Sprintf("pillar %s separates engaged (avg %.0f) from blocked (avg %.0f) actions",
					pillar, avgEngaged, avgBlocked),
				Pillar:         pillar,
				SuggestedDelta: score.MaxWeightStep,
				Confidence:     confidence(len(engaged) + len(blocked)),
			})
		} else if avgEngaged < 40 && avgBlocked > 60 {
			// Inverted correlation: the pillar rewards actions nobody
			// engages with.
			insights = append(insights, core.Insight{
				Pattern: fmt.Sprintf("pillar %s scores blocked actions (avg %.0f) above engaged ones (avg %.0f)",
					pillar, avgBlocked, avgEngaged),
				Pillar:         pillar,
				SuggestedDelta: -score.MaxWeightStep,
				Confidence:     confidence(len(engaged)+len(blocked)) * 0.8,
			})
		}
	}

	l.logger.Info("outcome analysis complete", "records", len(records), "insights", len(insights))
	return insights, nil
}

// ApplyInsight hands the suggested adjustment to the calculator, which
// clamps the step and renormalizes. Weight invariants cannot break here.
func (l *Learner) ApplyInsight(insight core.Insight) error {
	if insight.Confidence < 0 || insight.Confidence > 1 {
		return &core.ScoringConfigError{Reason: "insight confidence must be within [0,1]"}
	}
	if err := l.calc.AdjustWeight(insight.Pillar, insight.SuggestedDelta); err != nil {
		return err
	}
	l.logger.Info("insight applied",
		"pillar", string(insight.Pillar), "delta", insight.SuggestedDelta, "pattern", insight.Pattern)
	return nil
}

func averagePillar(records []core.OutcomeRecord, pillar core.PillarID) (float64, bool) {
	sum, n := 0.0, 0
	for _, r := range records {
		if s, ok := r.Result.Score.PillarScores[pillar]; ok {
			sum += s
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// confidence grows with evidence volume and saturates at 0.9.
func confidence(samples int) float64 {
	c := 0.5 + float64(samples)/100
	if c > 0.9 {
		c = 0.9
	}
	return c
}
