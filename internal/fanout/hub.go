// Package fanout implements the in-process live event broadcast: newly
// stored events are pushed to every streaming subscriber on a
// non-blocking, best-effort basis. Adapted from the teacher's
// event.LocalBus, trimmed to this domain: no schema versioning, no
// correlation/causation ids, non-blocking enqueue always.
package fanout

import (
	"encoding/json"
	"sync"

	"github.com/aetherlink/commandcenter/internal/eventstore"
)

// SubscriberQueueSize bounds each subscriber's pending-message channel.
// A slow consumer drops messages rather than applying backpressure to
// the publisher.
const SubscriberQueueSize = 1000

// DropHook is invoked whenever a subscriber's queue is full and a
// message is dropped for it.
type DropHook func(subscriberID string)

// Hub broadcasts events to subscribed streaming endpoints. The
// subscriber list is mutated only under mu; Hub carries no other shared
// mutable state.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]chan []byte
	onDrop      DropHook
}

// New builds an empty Hub. onDrop may be nil.
func New(onDrop DropHook) *Hub {
	return &Hub{
		subscribers: make(map[string]chan []byte),
		onDrop:      onDrop,
	}
}

// Subscribe registers a new subscriber under the caller-chosen id (the
// same id is passed to Unsubscribe) and returns its receive channel. The
// hub preserves no history: the
// subscriber only receives events published after this call returns.
func (h *Hub) Subscribe(id string) <-chan []byte {
	ch := make(chan []byte, SubscriberQueueSize)
	h.mu.Lock()
	h.subscribers[id] = ch
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscriber's channel. Safe to call
// more than once for the same id.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	ch, ok := h.subscribers[id]
	if ok {
		delete(h.subscribers, id)
	}
	h.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Publish serializes evt once and attempts a non-blocking enqueue to
// every current subscriber. A full queue drops the message for that
// subscriber only; it never blocks the caller or affects other
// subscribers.
func (h *Hub) Publish(evt eventstore.Event) {
	body, err := json.Marshal(evt)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subscribers {
		select {
		case ch <- body:
		default:
			if h.onDrop != nil {
				h.onDrop(id)
			}
		}
	}
}

// SubscriberCount reports the current number of connected subscribers.
// No API endpoint exposes it.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
