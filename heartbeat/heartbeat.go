// Package heartbeat supervises the agent's long-running services: a
// fixed-interval poll loop checks each registered health predicate,
// counts consecutive failures, and triggers the service's restart
// callback with capped exponential backoff between attempts.
package heartbeat

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/socialmesh/logging"
	"github.com/hupe1980/socialmesh/monitoring"
)

// HealthFunc reports whether a service is currently healthy.
type HealthFunc func() bool

// RestartFunc attempts to bring a failed service back up.
type RestartFunc func(ctx context.Context) error

// Config defines daemon tuning parameters.
type Config struct {
	// PollInterval is the time between health check passes.
	PollInterval time.Duration

	// FailureThreshold is the consecutive-failure count that triggers a
	// restart.
	FailureThreshold int

	// BackoffBase is the wait after the first restart before another
	// attempt is allowed.
	BackoffBase time.Duration

	// BackoffMax caps the exponential backoff growth.
	BackoffMax time.Duration
}

// DefaultConfig provides safe defaults.
var DefaultConfig = Config{
	PollInterval:     30 * time.Second,
	FailureThreshold: 3,
	BackoffBase:      time.Minute,
	BackoffMax:       10 * time.Minute,
}

// Options configures a Daemon.
type Options struct {
	Config  Config
	Logger  logging.Logger
	Metrics *monitoring.Metrics

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// ServiceStatus is a point-in-time view of one supervised service.
type ServiceStatus struct {
	Healthy             bool   `json:"healthy"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	Restarts            int    `json:"restarts"`
	LastError           string `json:"last_error,omitempty"`
}

type service struct {
	name    string
	health  HealthFunc
	restart RestartFunc

	healthy             bool
	consecutiveFailures int
	restarts            int
	lastError           string
	backoff             time.Duration
	nextRestartAt       time.Time
}

// Daemon polls registered health predicates and restarts failed services.
// One failing predicate never halts polling of the others.
type Daemon struct {
	cfg     Config
	logger  logging.Logger
	metrics *monitoring.Metrics
	now     func() time.Time

	mu       sync.Mutex
	services map[string]*service

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a Daemon with optional overrides.
func New(optFns ...func(o *Options)) *Daemon {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
		Now:    time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Config.PollInterval <= 0 {
		opts.Config.PollInterval = DefaultConfig.PollInterval
	}
	if opts.Config.FailureThreshold < 1 {
		opts.Config.FailureThreshold = DefaultConfig.FailureThreshold
	}
	if opts.Config.BackoffBase <= 0 {
		opts.Config.BackoffBase = DefaultConfig.BackoffBase
	}
	if opts.Config.BackoffMax < opts.Config.BackoffBase {
		opts.Config.BackoffMax = opts.Config.BackoffBase
	}
	return &Daemon{
		cfg:      opts.Config,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		now:      opts.Now,
		services: make(map[string]*service),
	}
}

// RegisterService puts a service under supervision. A nil restart means
// the daemon only tracks health without intervening. Registering the same
// name twice replaces the previous registration.
func (d *Daemon) RegisterService(name string, health HealthFunc, restart RestartFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.services[name] = &service{
		name:    name,
		health:  health,
		restart: restart,
		healthy: true,
	}
	d.logger.Info("service registered", "service", name, "restartable", restart != nil)
}

// UnregisterService removes a service from supervision. Unknown names are
// a no-op.
func (d *Daemon) UnregisterService(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.services, name)
}

// Start launches the poll loop. Calling Start on a running daemon is a
// no-op.
func (d *Daemon) Start(ctx context.Context) {
	if !d.running.CompareAndSwap(false, true) {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})

	go func() {
		defer close(d.done)
		ticker := time.NewTicker(d.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				d.Poll(runCtx)
			}
		}
	}()
	d.logger.Info("heartbeat daemon started", "interval", d.cfg.PollInterval.String())
}

// Stop halts the poll loop and waits for it to exit.
func (d *Daemon) Stop() {
	if !d.running.CompareAndSwap(true, false) {
		return
	}
	d.cancel()
	<-d.done
	d.logger.Info("heartbeat daemon stopped")
}

// Running reports whether the poll loop is active.
func (d *Daemon) Running() bool { return d.running.Load() }

// Poll runs one health check pass over every registered service. The poll
// loop calls this on its interval; tests may call it directly.
func (d *Daemon) Poll(ctx context.Context) {
	d.mu.Lock()
	services := make([]*service, 0, len(d.services))
	for _, s := range d.services {
		services = append(services, s)
	}
	d.mu.Unlock()

	for _, s := range services {
		d.check(ctx, s)
	}
}

func (d *Daemon) check(ctx context.Context, s *service) {
	healthy := probe(s.health)

	d.mu.Lock()
	defer d.mu.Unlock()

	if healthy {
		s.healthy = true
		s.consecutiveFailures = 0
		s.lastError = ""
		s.backoff = 0
		s.nextRestartAt = time.Time{}
		return
	}

	s.healthy = false
	s.consecutiveFailures++
	d.logger.Warn("service unhealthy",
		"service", s.name, "consecutive_failures", s.consecutiveFailures)

	if s.consecutiveFailures < d.cfg.FailureThreshold {
		return
	}
	if s.restart == nil {
		return
	}
	now := d.now()
	if !s.nextRestartAt.IsZero() && now.Before(s.nextRestartAt) {
		return
	}

	s.restarts++
	if s.backoff == 0 {
		s.backoff = d.cfg.BackoffBase
	} else {
		s.backoff *= 2
		if s.backoff > d.cfg.BackoffMax {
			s.backoff = d.cfg.BackoffMax
		}
	}
	s.nextRestartAt = now.Add(s.backoff)

	d.logger.Info("restarting service",
		"service", s.name, "restart", s.restarts, "next_attempt_in", s.backoff.String())
	d.metrics.ServiceRestart(s.name)

	if err := restartSafely(ctx, s.restart); err != nil {
		s.lastError = err.Error()
		d.logger.Error("service restart failed", "service", s.name, "error", err)
	}
}

// Status returns the current state of every supervised service.
func (d *Daemon) Status() map[string]ServiceStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]ServiceStatus, len(d.services))
	for name, s := range d.services {
		out[name] = ServiceStatus{
			Healthy:             s.healthy,
			ConsecutiveFailures: s.consecutiveFailures,
			Restarts:            s.restarts,
			LastError:           s.lastError,
		}
	}
	return out
}

// probe treats a panicking predicate as unhealthy.
func probe(health HealthFunc) (healthy bool) {
	defer func() {
		if recover() != nil {
			healthy = false
		}
	}()
	if health == nil {
		return true
	}
	return health()
}

func restartSafely(ctx context.Context, restart RestartFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("restart panicked: %v", r)
		}
	}()
	return restart(ctx)
}
