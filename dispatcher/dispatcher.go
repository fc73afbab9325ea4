// Package dispatcher implements the central event routing hub: a priority
// ordered queue feeding a background delivery loop that invokes registered
// handlers concurrently with per-handler failure isolation.
//
// Ordering guarantees: across priority levels, higher priority is always
// delivered first; within a single priority level events are delivered in
// arrival order. No event is delivered twice to the same handler, and no
// event is silently dropped except under explicit queue overflow, which is
// observable via the drop counter.
package dispatcher

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/socialmesh/core"
	"github.com/hupe1980/socialmesh/logging"
	"github.com/hupe1980/socialmesh/monitoring"
)

// Handler processes a delivered event. Returned errors are logged and
// counted; they never affect sibling handlers or the delivery loop.
type Handler func(ctx context.Context, event core.Event) error

// Subscription is the opaque handle returned by Register, usable for
// Unregister. It avoids hidden global registration state.
type Subscription struct {
	id        string
	eventType core.EventType
}

// EventType returns the event type this subscription is bound to.
func (s Subscription) EventType() core.EventType { return s.eventType }

// Config defines tuning parameters for the dispatcher.
type Config struct {
	// QueueCapacity bounds the priority queue. Dispatch returns a
	// CapacityError once the queue is full.
	QueueCapacity int

	// HistorySize bounds the delivered-event ring buffer.
	HistorySize int

	// MaxConcurrentHandlers bounds how many handler goroutines may run at
	// once, providing backpressure on delivery.
	MaxConcurrentHandlers int

	// GraceWindow is how long the delivery loop may go without progress on
	// a non-empty queue before Healthy reports false.
	GraceWindow time.Duration
}

// DefaultConfig provides safe defaults for local development and tests.
var DefaultConfig = Config{
	QueueCapacity:         1024,
	HistorySize:           1000,
	MaxConcurrentHandlers: 32,
	GraceWindow:           30 * time.Second,
}

// Options configures a Dispatcher instance.
type Options struct {
	Config  Config
	Logger  logging.Logger
	Metrics *monitoring.Metrics
	// Store, when set, receives every delivered event append-only.
	Store core.RecordStore
}

// Dispatcher routes events to registered handlers in priority order.
type Dispatcher struct {
	cfg     Config
	logger  logging.Logger
	metrics *monitoring.Metrics
	store   core.RecordStore

	mu    sync.Mutex
	queue eventHeap
	seq   uint64
	wake  chan struct{}

	handlersMu sync.RWMutex
	handlers   map[core.EventType]map[string]Handler

	history *historyRing
	sem     chan struct{}

	running      atomic.Bool
	lastProgress atomic.Int64
	cancel       context.CancelFunc
	done         chan struct{}

	received  atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

// New creates a Dispatcher with optional overrides.
func New(optFns ...func(o *Options)) *Dispatcher {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Config.QueueCapacity < 1 {
		opts.Config.QueueCapacity = DefaultConfig.QueueCapacity
	}
	if opts.Config.MaxConcurrentHandlers < 1 {
		opts.Config.MaxConcurrentHandlers = DefaultConfig.MaxConcurrentHandlers
	}
	if opts.Config.GraceWindow <= 0 {
		opts.Config.GraceWindow = DefaultConfig.GraceWindow
	}
	return &Dispatcher{
		cfg:      opts.Config,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		store:    opts.Store,
		wake:     make(chan struct{}, 1),
		handlers: make(map[core.EventType]map[string]Handler),
		history:  newHistoryRing(opts.Config.HistorySize),
		sem:      make(chan struct{}, opts.Config.MaxConcurrentHandlers),
	}
}

// Register subscribes a handler to an event type and returns the handle
// needed to unregister it.
func (d *Dispatcher) Register(eventType core.EventType, handler Handler) Subscription {
	sub := Subscription{id: core.NewID(), eventType: eventType}
	d.handlersMu.Lock()
	defer d.handlersMu.Unlock()
	if d.handlers[eventType] == nil {
		d.handlers[eventType] = make(map[string]Handler)
	}
	d.handlers[eventType][sub.id] = handler
	return sub
}

// Unregister removes a previously registered handler. Unknown handles are a
// no-op.
func (d *Dispatcher) Unregister(sub Subscription) {
	d.handlersMu.Lock()
	defer d.handlersMu.Unlock()
	if hs, ok := d.handlers[sub.eventType]; ok {
		delete(hs, sub.id)
	}
}

// Dispatch enqueues an event and returns immediately; it never blocks on
// handler execution. A malformed event yields a ValidationError; a full
// queue yields a CapacityError with the event dropped and counted.
func (d *Dispatcher) Dispatch(event core.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	if len(d.queue) >= d.cfg.QueueCapacity {
		d.mu.Unlock()
		d.dropped.Add(1)
		d.metrics.EventDropped()
		d.logger.Warn("event dropped, queue at capacity", "event_id", event.ID, "type", string(event.Type))
		return &core.CapacityError{Capacity: d.cfg.QueueCapacity}
	}
	d.seq++
	heap.Push(&d.queue, queuedEvent{event: event, seq: d.seq})
	d.mu.Unlock()

	d.received.Add(1)
	d.metrics.EventDispatched()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return nil
}

// Start launches the background delivery loop. It is an error to start a
// running dispatcher twice; the second call is a no-op.
func (d *Dispatcher) Start(ctx context.Context) {
	if !d.running.CompareAndSwap(false, true) {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.lastProgress.Store(time.Now().UnixNano())
	go d.deliveryLoop(loopCtx)
}

// Stop terminates the delivery loop and waits for it to exit. Handler
// goroutines already launched run to completion.
func (d *Dispatcher) Stop() {
	if !d.running.CompareAndSwap(true, false) {
		return
	}
	d.cancel()
	<-d.done
}

// Healthy reports false when the delivery loop is stopped, or when the
// queue is non-empty and the loop has made no progress within the grace
// window (stuck or blocked).
func (d *Dispatcher) Healthy() bool {
	if !d.running.Load() {
		return false
	}
	d.mu.Lock()
	pending := len(d.queue)
	d.mu.Unlock()
	if pending == 0 {
		return true
	}
	last := time.Unix(0, d.lastProgress.Load())
	return time.Since(last) <= d.cfg.GraceWindow
}

// Stats is a point-in-time snapshot of dispatcher counters.
type Stats struct {
	Running    bool
	QueueDepth int
	Received   uint64
	Delivered  uint64
	Dropped    uint64
	Failed     uint64
	Handlers   int
}

// Stats returns current dispatcher counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	depth := len(d.queue)
	d.mu.Unlock()
	d.handlersMu.RLock()
	handlers := 0
	for _, hs := range d.handlers {
		handlers += len(hs)
	}
	d.handlersMu.RUnlock()
	return Stats{
		Running:    d.running.Load(),
		QueueDepth: depth,
		Received:   d.received.Load(),
		Delivered:  d.delivered.Load(),
		Dropped:    d.dropped.Load(),
		Failed:     d.failed.Load(),
		Handlers:   handlers,
	}
}

// History returns the retained delivered events, oldest first.
func (d *Dispatcher) History() []core.Event { return d.history.snapshot() }

func (d *Dispatcher) deliveryLoop(ctx context.Context) {
	defer close(d.done)
	for {
		ev, ok := d.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-d.wake:
				continue
			}
		}
		d.lastProgress.Store(time.Now().UnixNano())
		d.deliver(ctx, ev)
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (d *Dispatcher) pop() (core.Event, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return core.Event{}, false
	}
	qe := heap.Pop(&d.queue).(queuedEvent)
	return qe.event, true
}

// deliver invokes every handler registered for the event's type in its own
// goroutine. A handler panic or error is logged and counted; it never
// prevents sibling handlers from running or blocks the loop beyond the
// concurrency bound.
func (d *Dispatcher) deliver(ctx context.Context, ev core.Event) {
	d.handlersMu.RLock()
	hs := make([]Handler, 0, len(d.handlers[ev.Type]))
	for _, h := range d.handlers[ev.Type] {
		hs = append(hs, h)
	}
	d.handlersMu.RUnlock()

	d.history.add(ev)
	if d.store != nil {
		if err := d.store.AppendEvent(ev); err != nil {
			d.logger.Warn("event audit append failed", "event_id", ev.ID, "error", err)
		}
	}
	d.delivered.Add(1)
	d.metrics.EventDelivered()

	if len(hs) == 0 {
		d.logger.Debug("no handlers for event type", "type", string(ev.Type), "event_id", ev.ID)
		return
	}

	for _, h := range hs {
		select {
		case d.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		go func(h Handler) {
			defer func() {
				if r := recover(); r != nil {
					d.failed.Add(1)
					d.metrics.HandlerError()
					d.logger.Error("handler panicked", "event_id", ev.ID, "panic", r)
				}
				<-d.sem
			}()
			if err := h(ctx, ev); err != nil {
				d.failed.Add(1)
				d.metrics.HandlerError()
				d.logger.Error("handler failed", "event_id", ev.ID, "type", string(ev.Type), "error", err)
			}
		}(h)
	}
}
