// Package pipeline connects the agent's decision stages into an explicit
// flow: dispatcher delivery feeds a drafting stage that invokes the
// content generator, the gate stage evaluates the draft, approved actions
// flow to coordinated execution and every terminal outcome is recorded
// for the learner. Stages are connected by bounded channels so suspension
// points and backpressure are visible instead of hidden in callbacks.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/socialmesh/coordinator"
	"github.com/hupe1980/socialmesh/core"
	"github.com/hupe1980/socialmesh/dispatcher"
	"github.com/hupe1980/socialmesh/gate"
	"github.com/hupe1980/socialmesh/learner"
	"github.com/hupe1980/socialmesh/logging"
)

// Config defines pipeline tuning parameters.
type Config struct {
	// StageBuffer is the capacity of the channel between stages.
	StageBuffer int

	// GenerateTimeout bounds a single content generator call.
	GenerateTimeout time.Duration

	// DefaultPlatforms receives actions for events that carry no platform
	// of their own (scheduled posts, custom triggers).
	DefaultPlatforms []string
}

// DefaultConfig provides safe defaults.
var DefaultConfig = Config{
	StageBuffer:     64,
	GenerateTimeout: 30 * time.Second,
}

// Options configures a Pipeline.
type Options struct {
	Config Config
	Logger logging.Logger

	// OnEscalation receives gate results routed to human review. When nil,
	// escalations are only logged.
	OnEscalation func(result core.GateResult)

	// OnExecuted receives the per-platform results of every executed
	// action, letting callers attach engagement reporting.
	OnExecuted func(result core.GateResult, results map[string]coordinator.Result)
}

// candidate pairs an event with the draft action produced for it.
type candidate struct {
	event  core.Event
	action core.Action
}

// approved pairs a passing gate result with its originating event.
type approved struct {
	event  core.Event
	result core.GateResult
}

// Pipeline owns the staged flow from delivered event to recorded outcome.
type Pipeline struct {
	cfg    Config
	logger logging.Logger

	disp  *dispatcher.Dispatcher
	gen   core.ContentGenerator
	gate  *gate.Gate
	coord *coordinator.Coordinator
	learn *learner.Learner

	onEscalation func(core.GateResult)
	onExecuted   func(core.GateResult, map[string]coordinator.Result)

	events   chan core.Event
	drafts   chan candidate
	approved chan approved

	subs    []dispatcher.Subscription
	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	drafted   atomic.Uint64
	passed    atomic.Uint64
	blocked   atomic.Uint64
	deferred  atomic.Uint64
	escalated atomic.Uint64
	executed  atomic.Uint64
	failed    atomic.Uint64
}

// New wires a Pipeline over the given services.
func New(disp *dispatcher.Dispatcher, gen core.ContentGenerator, g *gate.Gate, coord *coordinator.Coordinator, learn *learner.Learner, optFns ...func(o *Options)) *Pipeline {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Config.StageBuffer < 1 {
		opts.Config.StageBuffer = DefaultConfig.StageBuffer
	}
	if opts.Config.GenerateTimeout <= 0 {
		opts.Config.GenerateTimeout = DefaultConfig.GenerateTimeout
	}
	return &Pipeline{
		cfg:          opts.Config,
		logger:       opts.Logger,
		disp:         disp,
		gen:          gen,
		gate:         g,
		coord:        coord,
		learn:        learn,
		onEscalation: opts.OnEscalation,
		onExecuted:   opts.OnExecuted,
		events:       make(chan core.Event, opts.Config.StageBuffer),
		drafts:       make(chan candidate, opts.Config.StageBuffer),
		approved:     make(chan approved, opts.Config.StageBuffer),
	}
}

// Start registers the pipeline's dispatcher handlers and launches the
// stage goroutines. Calling Start twice is a no-op.
func (p *Pipeline) Start(ctx context.Context) {
	if !p.running.CompareAndSwap(false, true) {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for _, et := range core.EventTypes {
		p.subs = append(p.subs, p.disp.Register(et, p.intake))
	}

	p.wg.Add(3)
	go p.draftStage(runCtx)
	go p.gateStage(runCtx)
	go p.executeStage(runCtx)

	p.logger.Info("pipeline started", "stage_buffer", p.cfg.StageBuffer)
}

// Stop unregisters the dispatcher handlers and drains the stages.
func (p *Pipeline) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	for _, sub := range p.subs {
		p.disp.Unregister(sub)
	}
	p.subs = nil
	p.cancel()
	p.wg.Wait()
}

// intake is the dispatcher handler feeding the first stage. A full stage
// buffer blocks here, which surfaces as dispatcher backpressure through
// its handler concurrency bound.
func (p *Pipeline) intake(ctx context.Context, ev core.Event) error {
	select {
	case p.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) draftStage(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.events:
			actionType, ok := actionForEvent(ev)
			if !ok {
				p.logger.Debug("no action route for event", "event_id", ev.ID, "type", string(ev.Type))
				continue
			}
			scoringCtx := scoringContext(ev)

			genCtx, cancel := context.WithTimeout(ctx, p.cfg.GenerateTimeout)
			content, err := p.gen.Generate(genCtx, actionType, scoringCtx)
			cancel()
			if err != nil {
				p.failed.Add(1)
				p.logger.Error("content generation failed", "event_id", ev.ID, "error", err)
				continue
			}

			action := core.Action{Type: actionType, Content: content, Context: scoringCtx}
			if err := action.Validate(); err != nil {
				p.failed.Add(1)
				p.logger.Warn("generated action invalid", "event_id", ev.ID, "error", err)
				continue
			}
			p.drafted.Add(1)

			select {
			case p.drafts <- candidate{event: ev, action: action}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (p *Pipeline) gateStage(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-p.drafts:
			result := p.gate.Evaluate(c.action.Type, c.action.Content, c.action.Context)

			switch result.Decision {
			case core.DecisionPass:
				p.passed.Add(1)
				select {
				case p.approved <- approved{event: c.event, result: result}:
				case <-ctx.Done():
					return
				}
			case core.DecisionBlock:
				p.blocked.Add(1)
				if err := p.learn.RecordBlocked(result); err != nil {
					p.logger.Warn("blocked outcome not recorded", "action_id", result.ActionID, "error", err)
				}
			case core.DecisionDefer:
				p.deferred.Add(1)
				p.logger.Info("action deferred", "action_id", result.ActionID, "reason", result.Reason)
			case core.DecisionEscalate:
				p.escalated.Add(1)
				p.logger.Warn("action escalated for review", "action_id", result.ActionID, "reason", result.Reason)
				if p.onEscalation != nil {
					p.onEscalation(result)
				}
			}
		}
	}
}

func (p *Pipeline) executeStage(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-p.approved:
			platforms := p.targetPlatforms(a.event)
			if len(platforms) == 0 {
				p.failed.Add(1)
				p.logger.Warn("no target platform for approved action", "action_id", a.result.ActionID)
				continue
			}

			action := core.NewCoordinatedAction(a.result.ActionType, a.result.Content, platforms...)
			action.TargetID = executionTarget(a.event, a.result.ActionType)

			results, err := p.coord.ExecuteAction(ctx, action)
			if err != nil {
				p.failed.Add(1)
				p.logger.Error("coordinated execution rejected", "action_id", a.result.ActionID, "error", err)
				continue
			}
			p.executed.Add(1)

			// Engagement arrives later from analytics; the executed record
			// starts at zero and callers enrich it via OnExecuted.
			if err := p.learn.RecordExecuted(a.result, core.EngagementOutcome{}); err != nil {
				p.logger.Warn("executed outcome not recorded", "action_id", a.result.ActionID, "error", err)
			}
			if p.onExecuted != nil {
				p.onExecuted(a.result, results)
			}
		}
	}
}

// targetPlatforms resolves where an approved action should go: the event's
// own platform when known, the configured defaults otherwise.
func (p *Pipeline) targetPlatforms(ev core.Event) []string {
	if ev.Platform != "" {
		return []string{ev.Platform}
	}
	return p.cfg.DefaultPlatforms
}

// actionForEvent maps an event type to the action the agent drafts for it.
// Webhook and custom events only produce actions when the payload names an
// explicit action type.
func actionForEvent(ev core.Event) (core.ActionType, bool) {
	switch ev.Type {
	case core.EventMention:
		return core.ActionReply, true
	case core.EventDM:
		return core.ActionDM, true
	case core.EventScheduled:
		return core.ActionPost, true
	case core.EventWebhook, core.EventCustom:
		if raw, ok := ev.Metadata["action_type"].(string); ok {
			if t := core.ActionType(raw); t.Valid() {
				return t, true
			}
		}
		return "", false
	default:
		return "", false
	}
}

// scoringContext projects the event into the context map consumed by the
// scoring heuristics and the content generator. Event metadata overlays
// the projected fields, so ingress enrichment wins.
func scoringContext(ev core.Event) map[string]any {
	ctx := map[string]any{
		"their_message": ev.Content,
		// Formatted so string-keyed heuristics (timing context) can read it.
		"event_time": ev.ReceivedAt.Format(time.RFC3339),
	}
	if ev.Actor.UserID != "" {
		ctx["user_id"] = ev.Actor.UserID
	}
	if ev.Actor.DisplayName != "" {
		ctx["user_name"] = ev.Actor.DisplayName
	}
	if ev.Actor.FollowerCount > 0 {
		ctx["follower_count"] = ev.Actor.FollowerCount
	}
	if ev.Actor.Verified {
		ctx["verified"] = true
	}
	if ev.Platform != "" {
		ctx["platform"] = ev.Platform
	}
	for k, v := range ev.Metadata {
		ctx[k] = v
	}
	return ctx
}

// executionTarget picks the platform object a reply/like acts on, or the
// user a dm/follow addresses.
func executionTarget(ev core.Event, actionType core.ActionType) string {
	switch actionType {
	case core.ActionReply, core.ActionLike:
		return ev.SourceID
	case core.ActionDM, core.ActionFollow:
		return ev.Actor.UserID
	default:
		return ""
	}
}

// Stats is a point-in-time snapshot of pipeline counters.
type Stats struct {
	Drafted   uint64 `json:"drafted"`
	Passed    uint64 `json:"passed"`
	Blocked   uint64 `json:"blocked"`
	Deferred  uint64 `json:"deferred"`
	Escalated uint64 `json:"escalated"`
	Executed  uint64 `json:"executed"`
	Failed    uint64 `json:"failed"`
}

// Stats returns current pipeline counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Drafted:   p.drafted.Load(),
		Passed:    p.passed.Load(),
		Blocked:   p.blocked.Load(),
		Deferred:  p.deferred.Load(),
		Escalated: p.escalated.Load(),
		Executed:  p.executed.Load(),
		Failed:    p.failed.Load(),
	}
}
