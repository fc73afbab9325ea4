// Package coordinator orchestrates the agent's presence across platforms:
// a tiered adapter registry, fan-in of native event streams into the
// common event shape, and concurrent fan-out execution with per-platform
// timeout and failure isolation.
package coordinator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/socialmesh/core"
	"github.com/hupe1980/socialmesh/logging"
	"github.com/hupe1980/socialmesh/monitoring"
)

// ContentLimiter is the optional adapter capability declaring a maximum
// content length. Content fanned out to such an adapter is truncated with
// an ellipsis to fit.
type ContentLimiter interface {
	ContentLimit() int
}

// Result is the per-platform outcome of a coordinated action. The result
// map of ExecuteAction carries one entry per requested platform, success
// or not.
type Result struct {
	Platform string        `json:"platform"`
	TargetID string        `json:"target_id,omitempty"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
	Attempts int           `json:"attempts"`
}

// Config defines coordinator tuning parameters.
type Config struct {
	// CallTimeout bounds every single platform call.
	CallTimeout time.Duration

	// DedupeWindow is how long a fan-in content hash suppresses identical
	// cross-posted events.
	DedupeWindow time.Duration

	// PressureThreshold is the consecutive-failure count on any platform
	// at which Pressure reports true.
	PressureThreshold int
}

// DefaultConfig provides safe defaults.
var DefaultConfig = Config{
	CallTimeout:       10 * time.Second,
	DedupeWindow:      time.Hour,
	PressureThreshold: 3,
}

// Options configures a Coordinator.
type Options struct {
	Config  Config
	Logger  logging.Logger
	Metrics *monitoring.Metrics
}

type adapterEntry struct {
	adapter core.PlatformAdapter
	tier    core.PriorityTier
}

type platformState struct {
	executed            atomic.Uint64
	succeeded           atomic.Uint64
	failed              atomic.Uint64
	consecutiveFailures atomic.Int64
}

// Coordinator manages platform adapters and coordinated execution.
// Registry reads are lock-free snapshots; registration is the single
// writer path.
type Coordinator struct {
	cfg     Config
	logger  logging.Logger
	metrics *monitoring.Metrics

	registryMu sync.Mutex
	registry   atomic.Pointer[map[string]adapterEntry]

	stateMu sync.Mutex
	state   map[string]*platformState

	handlersMu sync.RWMutex
	handlers   []func(core.Event)

	inFlightMu sync.Mutex
	inFlight   map[string]struct{}

	dedupeMu sync.Mutex
	dedupe   map[string]time.Time

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a Coordinator with optional overrides.
func New(optFns ...func(o *Options)) *Coordinator {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Config.CallTimeout <= 0 {
		opts.Config.CallTimeout = DefaultConfig.CallTimeout
	}
	if opts.Config.PressureThreshold < 1 {
		opts.Config.PressureThreshold = DefaultConfig.PressureThreshold
	}
	c := &Coordinator{
		cfg:      opts.Config,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		state:    make(map[string]*platformState),
		inFlight: make(map[string]struct{}),
		dedupe:   make(map[string]time.Time),
	}
	empty := map[string]adapterEntry{}
	c.registry.Store(&empty)
	return c
}

// RegisterAdapter adds a platform adapter at the given tier. Registering
// the same platform twice replaces the previous adapter.
func (c *Coordinator) RegisterAdapter(adapter core.PlatformAdapter, tier core.PriorityTier) {
	c.registryMu.Lock()
	defer c.registryMu.Unlock()

	old := *c.registry.Load()
	next := make(map[string]adapterEntry, len(old)+1)
	for p, e := range old {
		next[p] = e
	}
	next[adapter.Platform()] = adapterEntry{adapter: adapter, tier: tier}
	c.registry.Store(&next)

	c.stateMu.Lock()
	if _, ok := c.state[adapter.Platform()]; !ok {
		c.state[adapter.Platform()] = &platformState{}
	}
	c.stateMu.Unlock()

	c.logger.Info("platform adapter registered", "platform", adapter.Platform(), "tier", tier.String())
}

// UnregisterAdapter removes a platform adapter. Unknown platforms are a
// no-op.
func (c *Coordinator) UnregisterAdapter(platform string) {
	c.registryMu.Lock()
	defer c.registryMu.Unlock()

	old := *c.registry.Load()
	if _, ok := old[platform]; !ok {
		return
	}
	next := make(map[string]adapterEntry, len(old))
	for p, e := range old {
		if p != platform {
			next[p] = e
		}
	}
	c.registry.Store(&next)
	c.logger.Info("platform adapter unregistered", "platform", platform)
}

// Adapters describes all registered adapters for status reporting.
func (c *Coordinator) Adapters() []core.AdapterDescriptor {
	reg := *c.registry.Load()
	out := make([]core.AdapterDescriptor, 0, len(reg))
	for _, e := range reg {
		caps := make([]core.ActionType, 0, len(e.adapter.Capabilities()))
		for _, t := range core.ActionTypes {
			if e.adapter.Capabilities().Has(t) {
				caps = append(caps, t)
			}
		}
		out = append(out, core.AdapterDescriptor{
			Platform:     e.adapter.Platform(),
			Tier:         e.tier,
			Capabilities: caps,
			Connected:    e.adapter.Connected(),
		})
	}
	return out
}

// OnEvent subscribes a handler to the normalized fan-in of all adapter
// event streams.
func (c *Coordinator) OnEvent(handler func(core.Event)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers = append(c.handlers, handler)
}

// Start begins consuming every registered adapter's event stream. Adapters
// registered after Start are not consumed until the next Start.
func (c *Coordinator) Start(ctx context.Context) {
	if !c.running.CompareAndSwap(false, true) {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	reg := *c.registry.Load()
	for platform, entry := range reg {
		events, err := entry.adapter.Events(runCtx)
		if err != nil {
			c.logger.Error("adapter event stream unavailable", "platform", platform, "error", err)
			continue
		}
		c.wg.Add(1)
		go c.consume(runCtx, platform, events)
	}
	c.logger.Info("coordinator started", "platforms", len(reg))
}

// Stop cancels all event stream consumers and waits for them to exit.
func (c *Coordinator) Stop() {
	if !c.running.CompareAndSwap(true, false) {
		return
	}
	c.cancel()
	c.wg.Wait()
}

// Running reports whether the coordinator is started and at least one
// registered adapter holds a healthy connection.
func (c *Coordinator) Running() bool {
	if !c.running.Load() {
		return false
	}
	for _, e := range *c.registry.Load() {
		if e.adapter.Connected() {
			return true
		}
	}
	return false
}

// Pressure reports whether any platform has accumulated enough
// consecutive failures to suggest rate limiting or degradation. The gate
// uses this as a deferral signal.
func (c *Coordinator) Pressure() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	for _, s := range c.state {
		if s.consecutiveFailures.Load() >= int64(c.cfg.PressureThreshold) {
			return true
		}
	}
	return false
}

func (c *Coordinator) consume(ctx context.Context, platform string, events <-chan core.Event) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				c.logger.Warn("adapter event stream closed", "platform", platform)
				return
			}
			if ev.Platform == "" {
				ev.Platform = platform
			}
			if c.isDuplicate(ev.Content) {
				c.logger.Debug("duplicate cross-posted event skipped", "platform", platform, "event_id", ev.ID)
				continue
			}
			c.emit(ev)
		}
	}
}

func (c *Coordinator) emit(ev core.Event) {
	c.handlersMu.RLock()
	handlers := make([]func(core.Event), len(c.handlers))
	copy(handlers, c.handlers)
	c.handlersMu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}
}

// isDuplicate suppresses identical content seen within the dedupe window,
// catching users cross-posting the same message to every platform.
func (c *Coordinator) isDuplicate(content string) bool {
	if content == "" {
		return false
	}
	sum := sha256.Sum256([]byte(content))
	key := hex.EncodeToString(sum[:8])
	now := time.Now()

	c.dedupeMu.Lock()
	defer c.dedupeMu.Unlock()
	for h, t := range c.dedupe {
		if now.Sub(t) > c.cfg.DedupeWindow {
			delete(c.dedupe, h)
		}
	}
	if _, seen := c.dedupe[key]; seen {
		return true
	}
	c.dedupe[key] = now
	return false
}
