// Package hub holds the current window context for a running adapter
// and fans changes out to subscribers. There is exactly one context at
// a time: whatever the compositor most recently reported focused.
package hub

import (
	"sync"

	"github.com/winctx/winctx/pkg/window"
)

// Hub is safe for concurrent use. Subscribers receive conflated
// updates: a slow consumer skips intermediate contexts but always ends
// up with the latest one.
type Hub struct {
	mu          sync.Mutex
	current     window.Context
	hasCurrent  bool
	stale       bool
	staleReason string
	subs        map[int]chan window.Context
	nextSubID   int
}

func New() *Hub {
	return &Hub{subs: make(map[int]chan window.Context)}
}

// Publish stores ctx as the current context and notifies subscribers.
// A context equal to the stored one refreshes the observation time but
// does not notify, so subscribers only wake on actual focus changes.
// Publishing always clears staleness.
func (h *Hub) Publish(ctx window.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	same := h.hasCurrent && h.current.Same(ctx)
	wasStale := h.stale
	h.current = ctx
	h.hasCurrent = true
	h.stale = false
	h.staleReason = ""

	if same && !wasStale {
		return
	}
	h.notifyLocked(ctx)
}

// Clear drops the current context. Used when the compositor reports
// that nothing is focused; this is fresh information, not staleness.
// Subscribers are notified with a zero context.
func (h *Hub) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.hasCurrent {
		return
	}
	h.current = window.Context{}
	h.hasCurrent = false
	h.stale = false
	h.staleReason = ""
	h.notifyLocked(window.Context{})
}

// MarkStale flags the stored context as possibly out of date, keeping
// its value. Used when the event source goes quiet or disconnects.
func (h *Hub) MarkStale(reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stale = true
	h.staleReason = reason
}

// Current returns the stored context. ok is false when no focus event
// has arrived yet or the context was cleared.
func (h *Hub) Current() (ctx window.Context, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current, h.hasCurrent
}

// Fresh reports whether the stored context still reflects reality as
// far as the adapter knows. An empty hub is fresh: knowing that
// nothing is focused is current information.
func (h *Hub) Fresh() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.stale
}

// StaleReason returns why the context was marked stale, or "".
func (h *Hub) StaleReason() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.staleReason
}

// Subscribe registers for context updates. The returned cancel func
// releases the subscription and closes the channel; it is safe to call
// more than once.
func (h *Hub) Subscribe() (<-chan window.Context, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSubID
	h.nextSubID++
	ch := make(chan window.Context, 1)
	h.subs[id] = ch

	// New subscribers immediately see the current context, if any.
	if h.hasCurrent {
		ch <- h.current
	}

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Subscribers returns the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// notifyLocked delivers ctx to every subscriber without blocking. A
// full channel has its pending item replaced, so consumers that lag
// behind see the newest context, not the oldest.
func (h *Hub) notifyLocked(ctx window.Context) {
	for _, ch := range h.subs {
		select {
		case ch <- ctx:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ctx:
			default:
			}
		}
	}
}
