package dispatcher

import "github.com/hupe1980/socialmesh/core"

// queuedEvent pairs an event with a monotonic sequence number so the heap
// can break priority ties in arrival order.
type queuedEvent struct {
	event core.Event
	seq   uint64
}

// eventHeap is a max-heap ordered by (priority desc, seq asc). It implements
// container/heap.Interface; insert and pop are O(log N).
type eventHeap []queuedEvent

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].event.Priority != h[j].event.Priority {
		return h[i].event.Priority > h[j].event.Priority
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(queuedEvent)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
