// Package platform ships reference material for the core.PlatformAdapter
// contract: a fully scriptable MockAdapter for tests and examples, plus
// per-platform content length conventions. Real wire clients live outside
// this module and only need to satisfy the contract.
package platform

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/hupe1980/socialmesh/core"
)

// DefaultLimits maps well-known platform names to their content length
// limits. Platforms absent from the map are unbounded.
var DefaultLimits = map[string]int{
	"x":       280,
	"youtube": 500,
	"discord": 2000,
}

// Call records one adapter invocation for assertions.
type Call struct {
	Op       core.ActionType
	TargetID string
	Content  string
}

// MockAdapter is a scriptable in-memory PlatformAdapter. Every call is
// recorded; failures can be injected per upcoming call. Safe for
// concurrent use.
type MockAdapter struct {
	mu        sync.Mutex
	platform  string
	caps      core.CapabilitySet
	connected bool
	limit     int
	delay     time.Duration
	failNext  int
	failErr   error
	calls     []Call
	events    chan core.Event
	nextID    int
}

// MockOptions configures a MockAdapter.
type MockOptions struct {
	Capabilities core.CapabilitySet
	Connected    bool
	ContentLimit int
	EventBuffer  int
	// Delay makes every call take at least this long, respecting context
	// cancellation. Useful for timeout and in-flight tests.
	Delay time.Duration
}

// NewMockAdapter creates a connected mock supporting every action type.
// The content limit defaults to the platform's entry in DefaultLimits.
func NewMockAdapter(platform string, optFns ...func(o *MockOptions)) *MockAdapter {
	opts := MockOptions{
		Capabilities: core.NewCapabilitySet(core.ActionTypes...),
		Connected:    true,
		ContentLimit: DefaultLimits[platform],
		EventBuffer:  16,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &MockAdapter{
		platform:  platform,
		caps:      opts.Capabilities,
		connected: opts.Connected,
		limit:     opts.ContentLimit,
		delay:     opts.Delay,
		events:    make(chan core.Event, opts.EventBuffer),
	}
}

// Platform implements core.PlatformAdapter.
func (m *MockAdapter) Platform() string { return m.platform }

// Capabilities implements core.PlatformAdapter.
func (m *MockAdapter) Capabilities() core.CapabilitySet { return m.caps }

// Connected implements core.PlatformAdapter.
func (m *MockAdapter) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// SetConnected toggles the simulated connection state.
func (m *MockAdapter) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

// ContentLimit declares the maximum content length, 0 meaning unbounded.
func (m *MockAdapter) ContentLimit() int { return m.limit }

// FailNext makes the next n calls fail with err (or a generic error when
// err is nil).
func (m *MockAdapter) FailNext(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
	if err == nil {
		err = errors.New("injected failure")
	}
	m.failErr = err
}

// Calls returns a copy of all recorded invocations in order.
func (m *MockAdapter) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// Events implements core.PlatformAdapter. The stream carries events
// injected via InjectEvent and closes when ctx is cancelled.
func (m *MockAdapter) Events(ctx context.Context) (<-chan core.Event, error) {
	out := make(chan core.Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-m.events:
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// InjectEvent feeds an event into the adapter's stream as if it arrived
// from the platform.
func (m *MockAdapter) InjectEvent(ev core.Event) {
	if ev.Platform == "" {
		ev.Platform = m.platform
	}
	m.events <- ev
}

// Post implements core.PlatformAdapter.
func (m *MockAdapter) Post(ctx context.Context, content string) (string, error) {
	return m.record(ctx, core.ActionPost, "", content)
}

// Reply implements core.PlatformAdapter.
func (m *MockAdapter) Reply(ctx context.Context, targetID, content string) (string, error) {
	return m.record(ctx, core.ActionReply, targetID, content)
}

// DM implements core.PlatformAdapter.
func (m *MockAdapter) DM(ctx context.Context, userID, content string) (string, error) {
	return m.record(ctx, core.ActionDM, userID, content)
}

// Like implements core.PlatformAdapter.
func (m *MockAdapter) Like(ctx context.Context, targetID string) error {
	_, err := m.record(ctx, core.ActionLike, targetID, "")
	return err
}

// Follow implements core.PlatformAdapter.
func (m *MockAdapter) Follow(ctx context.Context, userID string) error {
	_, err := m.record(ctx, core.ActionFollow, userID, "")
	return err
}

func (m *MockAdapter) record(ctx context.Context, op core.ActionType, targetID, content string) (string, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Call{Op: op, TargetID: targetID, Content: content})

	if m.failNext > 0 {
		m.failNext--
		return "", m.failErr
	}
	m.nextID++
	return m.platform + "-" + strconv.Itoa(m.nextID), nil
}
