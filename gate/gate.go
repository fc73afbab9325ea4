// Package gate implements the admission gate every outbound action must
// pass before execution. Decision precedence is fixed: escalation checks
// run first regardless of score, then deferral checks, then the score
// threshold decides between pass and block.
package gate

import (
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/socialmesh/core"
	"github.com/hupe1980/socialmesh/logging"
	"github.com/hupe1980/socialmesh/monitoring"
	"github.com/hupe1980/socialmesh/score"
)

// DefaultSensitiveKeywords trigger escalation to human review when found
// in content. Matching is case-insensitive substring.
var DefaultSensitiveKeywords = []string{
	"politics", "religion", "tragedy", "lawsuit", "death",
}

// DefaultFinancialKeywords flag financial or legal content for review.
var DefaultFinancialKeywords = []string{
	"invest", "crypto", "token", "refund", "contract", "legal advice",
}

// ActiveHours restricts passing actions to a daily window. Hours are 0-23
// in the clock's timezone; Start == End disables the check.
type ActiveHours struct {
	Start int
	End   int
}

func (h ActiveHours) enabled() bool { return h.Start != h.End }

func (h ActiveHours) contains(t time.Time) bool {
	hour := t.Hour()
	if h.Start < h.End {
		return hour >= h.Start && hour < h.End
	}
	// Window wraps midnight.
	return hour >= h.Start || hour < h.End
}

// Options configures a Gate.
type Options struct {
	SensitiveKeywords []string
	FinancialKeywords []string
	ActiveHours       ActiveHours
	// Pressure, when set, reports upstream rate-limit pressure. Actions
	// are deferred while it returns true.
	Pressure func() bool
	// Store, when set, receives every gate result append-only.
	Store   core.RecordStore
	Logger  logging.Logger
	Metrics *monitoring.Metrics
	// Now is the clock used for active-hours checks. Overridable in tests.
	Now func() time.Time
}

// Gate evaluates candidate actions. It is side-effect-free except for the
// append-only result recording that feeds the learner pipeline.
type Gate struct {
	calc      *score.Calculator
	sensitive []string
	financial []string
	hours     ActiveHours
	pressure  func() bool
	store     core.RecordStore
	logger    logging.Logger
	metrics   *monitoring.Metrics
	now       func() time.Time
}

// New creates a Gate over the given calculator.
func New(calc *score.Calculator, optFns ...func(o *Options)) *Gate {
	opts := Options{
		SensitiveKeywords: DefaultSensitiveKeywords,
		FinancialKeywords: DefaultFinancialKeywords,
		Logger:            logging.NoOpLogger{},
		Now:               time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Gate{
		calc:      calc,
		sensitive: opts.SensitiveKeywords,
		financial: opts.FinancialKeywords,
		hours:     opts.ActiveHours,
		pressure:  opts.Pressure,
		store:     opts.Store,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		now:       opts.Now,
	}
}

// Evaluate scores an action and decides its fate. The result is immutable;
// the caller decides what a block or deferral means for the action.
func (g *Gate) Evaluate(actionType core.ActionType, content string, context map[string]any) core.GateResult {
	if context == nil {
		context = map[string]any{}
	}

	valueScore := g.calc.Calculate(actionType, content, context)
	result := core.GateResult{
		ActionID:    core.NewID(),
		ActionType:  actionType,
		Content:     content,
		Score:       valueScore,
		EvaluatedAt: g.now().UTC(),
	}

	switch {
	case g.escalates(actionType, content, context):
		result.Decision = core.DecisionEscalate
		result.Reason = g.escalationReason(content)
	case g.defers():
		result.Decision = core.DecisionDefer
		result.Reason = g.deferReason()
	case valueScore.Passes:
		result.Decision = core.DecisionPass
		result.Reason = fmt.Sprintf("value score %.1f meets threshold %.0f", valueScore.Total, valueScore.Threshold)
	default:
		result.Decision = core.DecisionBlock
		result.Suggestions = suggestions(valueScore)
		result.Reason = fmt.Sprintf("value score %.1f below threshold %.0f", valueScore.Total, valueScore.Threshold)
	}

	g.record(result)
	g.metrics.GateDecision(string(result.Decision))
	g.logger.Info("gate decision",
		"action_id", result.ActionID,
		"action_type", string(actionType),
		"decision", string(result.Decision),
		"score", valueScore.Total,
		"threshold", valueScore.Threshold)

	return result
}

func (g *Gate) escalates(actionType core.ActionType, content string, context map[string]any) bool {
	if matchesAny(content, g.sensitive) || matchesAny(content, g.financial) {
		return true
	}
	// A DM exchanged with an actor nobody has vetted goes to a human first.
	if actionType == core.ActionDM {
		if vetted, ok := context["actor_vetted"].(bool); !ok || !vetted {
			return true
		}
	}
	return false
}

func (g *Gate) escalationReason(content string) string {
	if matchesAny(content, g.sensitive) {
		return "content touches a sensitive topic"
	}
	if matchesAny(content, g.financial) {
		return "content carries financial or legal implications"
	}
	return "direct message with an unvetted actor"
}

func (g *Gate) defers() bool {
	if g.hours.enabled() && !g.hours.contains(g.now()) {
		return true
	}
	return g.pressure != nil && g.pressure()
}

func (g *Gate) deferReason() string {
	if g.hours.enabled() && !g.hours.contains(g.now()) {
		return fmt.Sprintf("outside active hours %02d:00-%02d:00", g.hours.Start, g.hours.End)
	}
	return "platform rate-limit pressure"
}

func (g *Gate) record(result core.GateResult) {
	if g.store == nil {
		return
	}
	if err := g.store.AppendGateResult(result); err != nil {
		g.logger.Warn("gate result append failed", "action_id", result.ActionID, "error", err)
	}
}

// pillarAdvice maps each pillar to targeted improvement text for blocked
// actions.
var pillarAdvice = map[core.PillarID]string{
	core.PillarAwareness:  "add more context about the actor or situation",
	core.PillarDefine:     "clarify the goal or purpose of this action",
	core.PillarDevise:     "improve the content quality or approach",
	core.PillarValidate:   "verify the actor is genuine and the context is appropriate",
	core.PillarActUpon:    "check that all prerequisites for acting are met",
	core.PillarLearn:      "consider past interactions with similar actions",
	core.PillarUnderstand: "better understand the actor's intent or pattern",
	core.PillarEvolve:     "consider how this action builds the relationship",
}

// suggestions builds improvement hints from the two lowest-scoring
// pillars, weakest first.
func suggestions(s core.ValueScore) []string {
	out := make([]string, 0, 2)
	for _, p := range s.WeakestPillars(2) {
		out = append(out, pillarAdvice[p])
	}
	return out
}

func matchesAny(content string, keywords []string) bool {
	lower := strings.ToLower(content)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
