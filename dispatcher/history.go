package dispatcher

import (
	"sync"

	"github.com/hupe1980/socialmesh/core"
)

// historyRing is a fixed-capacity ring buffer of delivered events kept for
// audit and learning. When full, the oldest entry is evicted first.
type historyRing struct {
	mu   sync.Mutex
	buf  []core.Event
	next int
	full bool
}

func newHistoryRing(capacity int) *historyRing {
	if capacity < 1 {
		capacity = 1
	}
	return &historyRing{buf: make([]core.Event, capacity)}
}

func (r *historyRing) add(ev core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = ev
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

// snapshot returns the retained events oldest first.
func (r *historyRing) snapshot() []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		out := make([]core.Event, r.next)
		copy(out, r.buf[:r.next])
		return out
	}
	out := make([]core.Event, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	out = append(out, r.buf[:r.next]...)
	return out
}
