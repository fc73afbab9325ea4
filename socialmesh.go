// Package socialmesh provides a high-level façade over the agent's
// decision core: event dispatch, value scoring, gate evaluation,
// cross-platform execution, outcome learning and service supervision.
// Most applications interact with this package by:
//  1. Creating a Mesh via New() (optionally overriding defaults)
//  2. Registering platform adapters and dispatching or ingesting events
//  3. Letting the pipeline draft, gate and execute actions autonomously
//
// The façade delegates to the underlying packages while keeping setup
// ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply model-backed
// generators, a durable record store and a structured logger.
package socialmesh

import (
	"context"
	"time"

	"github.com/hupe1980/socialmesh/config"
	"github.com/hupe1980/socialmesh/coordinator"
	"github.com/hupe1980/socialmesh/core"
	"github.com/hupe1980/socialmesh/dispatcher"
	"github.com/hupe1980/socialmesh/gate"
	"github.com/hupe1980/socialmesh/generator"
	"github.com/hupe1980/socialmesh/heartbeat"
	"github.com/hupe1980/socialmesh/ingress"
	"github.com/hupe1980/socialmesh/learner"
	"github.com/hupe1980/socialmesh/logging"
	"github.com/hupe1980/socialmesh/monitoring"
	"github.com/hupe1980/socialmesh/pipeline"
	"github.com/hupe1980/socialmesh/score"
	"github.com/hupe1980/socialmesh/store"
)

// Options configures the Mesh instance.
type Options struct {
	// Per-service tuning; each defaults to its package's DefaultConfig.
	DispatcherConfig  dispatcher.Config
	CoordinatorConfig coordinator.Config
	HeartbeatConfig   heartbeat.Config
	PipelineConfig    pipeline.Config

	// Weights and Thresholds override the scoring defaults. Invalid
	// weights fail construction.
	Weights    map[core.PillarID]float64
	Thresholds map[core.ActionType]float64

	// ActiveHours restricts when the gate lets actions through.
	ActiveHours gate.ActiveHours

	// SensitiveKeywords and FinancialKeywords override the gate's
	// escalation and block lists when non-empty.
	SensitiveKeywords []string
	FinancialKeywords []string

	// MinTrendRelevance is the ingress trend relevance floor. Zero keeps
	// the ingress default.
	MinTrendRelevance float64

	// Generator drafts content for candidate actions (defaults to the
	// deterministic template generator).
	Generator core.ContentGenerator

	// Store receives events, gate results and outcome records (defaults
	// to in-memory).
	Store core.RecordStore

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger

	// Metrics (nil disables metric emission).
	Metrics *monitoring.Metrics

	// OnEscalation receives gate results routed to human review.
	OnEscalation func(result core.GateResult)

	// OnExecuted receives per-platform results of executed actions.
	OnExecuted func(result core.GateResult, results map[string]coordinator.Result)
}

// Mesh is the high-level façade aggregating the decision services.
type Mesh struct {
	opts Options

	calc   *score.Calculator
	disp   *dispatcher.Dispatcher
	gate   *gate.Gate
	learn  *learner.Learner
	coord  *coordinator.Coordinator
	daemon *heartbeat.Daemon
	pipe   *pipeline.Pipeline
	ing    *ingress.Ingress
	rec    core.RecordStore
}

// New creates a Mesh with optional overrides. Any unset service is
// initialized with an in-memory default. Construction fails only on
// invalid scoring configuration.
func New(optFns ...func(o *Options)) (*Mesh, error) {
	opts := Options{
		DispatcherConfig:  dispatcher.DefaultConfig,
		CoordinatorConfig: coordinator.DefaultConfig,
		HeartbeatConfig:   heartbeat.DefaultConfig,
		PipelineConfig:    pipeline.DefaultConfig,
		Generator:         generator.NewTemplate(),
		Store:             store.NewMemoryStore(),
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	calc, err := score.New(func(o *score.Options) {
		if opts.Weights != nil {
			o.Weights = opts.Weights
		}
		if opts.Thresholds != nil {
			o.Thresholds = opts.Thresholds
		}
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})
	if err != nil {
		return nil, err
	}

	disp := dispatcher.New(func(o *dispatcher.Options) {
		o.Config = opts.DispatcherConfig
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
		o.Store = opts.Store
	})

	coord := coordinator.New(func(o *coordinator.Options) {
		o.Config = opts.CoordinatorConfig
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})

	g := gate.New(calc, func(o *gate.Options) {
		if len(opts.SensitiveKeywords) > 0 {
			o.SensitiveKeywords = opts.SensitiveKeywords
		}
		if len(opts.FinancialKeywords) > 0 {
			o.FinancialKeywords = opts.FinancialKeywords
		}
		o.ActiveHours = opts.ActiveHours
		o.Pressure = coord.Pressure
		o.Store = opts.Store
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})

	learn := learner.New(calc, opts.Store, func(o *learner.Options) {
		o.Logger = opts.Logger
	})

	daemon := heartbeat.New(func(o *heartbeat.Options) {
		o.Config = opts.HeartbeatConfig
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})

	pipe := pipeline.New(disp, opts.Generator, g, coord, learn, func(o *pipeline.Options) {
		o.Config = opts.PipelineConfig
		o.Logger = opts.Logger
		o.OnEscalation = opts.OnEscalation
		o.OnExecuted = opts.OnExecuted
	})

	ing := ingress.New(disp, func(o *ingress.Options) {
		o.Logger = opts.Logger
		if opts.MinTrendRelevance > 0 {
			o.MinTrendRelevance = opts.MinTrendRelevance
		}
	})

	return &Mesh{
		opts:   opts,
		calc:   calc,
		disp:   disp,
		gate:   g,
		learn:  learn,
		coord:  coord,
		daemon: daemon,
		pipe:   pipe,
		ing:    ing,
		rec:    opts.Store,
	}, nil
}

// NewFromConfig creates a Mesh from a validated process configuration.
func NewFromConfig(cfg *config.Config, optFns ...func(o *Options)) (*Mesh, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base := func(o *Options) {
		o.DispatcherConfig = dispatcher.Config{
			QueueCapacity:         cfg.QueueCapacity,
			HistorySize:           cfg.HistorySize,
			MaxConcurrentHandlers: cfg.MaxConcurrentHandlers,
			GraceWindow:           time.Duration(cfg.GraceWindowSeconds) * time.Second,
		}
		o.CoordinatorConfig = coordinator.Config{
			CallTimeout:       time.Duration(cfg.CallTimeoutSeconds) * time.Second,
			DedupeWindow:      coordinator.DefaultConfig.DedupeWindow,
			PressureThreshold: cfg.PressureThreshold,
		}
		o.HeartbeatConfig = heartbeat.Config{
			PollInterval:     time.Duration(cfg.HeartbeatIntervalSeconds) * time.Second,
			FailureThreshold: cfg.FailureThreshold,
			BackoffBase:      time.Duration(cfg.RestartBackoffSeconds) * time.Second,
			BackoffMax:       time.Duration(cfg.RestartBackoffMaxSeconds) * time.Second,
		}
		o.PipelineConfig = pipeline.Config{
			StageBuffer:      cfg.StageBuffer,
			GenerateTimeout:  pipeline.DefaultConfig.GenerateTimeout,
			DefaultPlatforms: cfg.DefaultPlatforms,
		}
		o.Weights = cfg.PillarWeights()
		o.Thresholds = cfg.ActionThresholds()
		o.ActiveHours = gate.ActiveHours{Start: cfg.ActiveHoursStart, End: cfg.ActiveHoursEnd}
		o.SensitiveKeywords = cfg.SensitiveKeywords
		o.FinancialKeywords = cfg.FinancialKeywords
		o.MinTrendRelevance = cfg.MinTrendRelevance
	}
	return New(append([]func(o *Options){base}, optFns...)...)
}

// Start launches the dispatcher, coordinator, pipeline and supervisor.
// Adapter-native events fan in through the coordinator and are dispatched
// like any other event. The dispatcher and coordinator are put under
// heartbeat supervision.
func (m *Mesh) Start(ctx context.Context) {
	m.pipe.Start(ctx)
	m.disp.Start(ctx)

	m.coord.OnEvent(func(ev core.Event) {
		if err := m.disp.Dispatch(ev); err != nil {
			m.opts.Logger.Error("adapter event dropped", "event_id", ev.ID, "platform", ev.Platform, "error", err)
		}
	})
	m.coord.Start(ctx)

	m.daemon.RegisterService("dispatcher", m.disp.Healthy, func(restartCtx context.Context) error {
		m.disp.Stop()
		m.disp.Start(restartCtx)
		return nil
	})
	m.daemon.RegisterService("coordinator", m.coord.Running, func(restartCtx context.Context) error {
		m.coord.Stop()
		m.coord.Start(restartCtx)
		return nil
	})
	m.daemon.Start(ctx)
}

// Stop halts all services in reverse start order.
func (m *Mesh) Stop() {
	m.daemon.Stop()
	m.coord.Stop()
	m.disp.Stop()
	m.pipe.Stop()
}

// Evaluate runs the gate over a candidate action.
func (m *Mesh) Evaluate(actionType core.ActionType, content string, context map[string]any) core.GateResult {
	return m.gate.Evaluate(actionType, content, context)
}

// ExecuteAction fans a coordinated action out to its target platforms.
func (m *Mesh) ExecuteAction(ctx context.Context, action core.CoordinatedAction) (map[string]coordinator.Result, error) {
	return m.coord.ExecuteAction(ctx, action)
}

// Dispatch enqueues an event for delivery.
func (m *Mesh) Dispatch(event core.Event) error { return m.disp.Dispatch(event) }

// Register subscribes a handler to an event type.
func (m *Mesh) Register(eventType core.EventType, handler dispatcher.Handler) dispatcher.Subscription {
	return m.disp.Register(eventType, handler)
}

// Unregister removes a previously registered handler.
func (m *Mesh) Unregister(sub dispatcher.Subscription) { m.disp.Unregister(sub) }

// RegisterAdapter adds a platform adapter at the given tier.
func (m *Mesh) RegisterAdapter(adapter core.PlatformAdapter, tier core.PriorityTier) {
	m.coord.RegisterAdapter(adapter, tier)
}

// RegisterService puts an additional service under heartbeat supervision.
func (m *Mesh) RegisterService(name string, health heartbeat.HealthFunc, restart heartbeat.RestartFunc) {
	m.daemon.RegisterService(name, health, restart)
}

// Status reports the supervised services' health.
func (m *Mesh) Status() map[string]heartbeat.ServiceStatus { return m.daemon.Status() }

// Ingress returns the payload normalization boundary.
func (m *Mesh) Ingress() *ingress.Ingress { return m.ing }

// Learner returns the outcome learner for analysis and insight
// application.
func (m *Mesh) Learner() *learner.Learner { return m.learn }

// Calculator returns the value score calculator.
func (m *Mesh) Calculator() *score.Calculator { return m.calc }

// Coordinator returns the cross-platform coordinator.
func (m *Mesh) Coordinator() *coordinator.Coordinator { return m.coord }

// Dispatcher returns the event dispatcher.
func (m *Mesh) Dispatcher() *dispatcher.Dispatcher { return m.disp }

// Pipeline returns the staged decision pipeline.
func (m *Mesh) Pipeline() *pipeline.Pipeline { return m.pipe }

// Store returns the record store backing audit and learning.
func (m *Mesh) Store() core.RecordStore { return m.rec }
