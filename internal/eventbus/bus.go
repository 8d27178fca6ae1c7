// Package eventbus implements the agent core's multi-producer,
// multi-consumer event broadcast (component C1). It generalizes the
// teacher's internal/canvas Hub fan-out pattern from per-session realtime
// chat frames to the agent's AgentEvent stream, adding explicit lag
// accounting instead of silently dropping overflow.
package eventbus

import (
	"sync"
	"sync/atomic"

	"github.com/Ryvos/ryvos-sub000/pkg/models"
)

// DefaultBufferSize is the per-subscriber channel capacity used when none
// is supplied to Subscribe.
const DefaultBufferSize = 256

// Bus broadcasts AgentEvents to every active Subscription. Publish never
// blocks: a subscriber that cannot keep up has events dropped and its lag
// counter incremented rather than stalling the publisher.
type Bus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Subscription is a single consumer's view of the bus.
type Subscription struct {
	bus     *Bus
	events  chan models.AgentEvent
	dropped atomic.Uint64
}

// Events returns the channel to receive events from. It is closed when
// Unsubscribe is called.
func (s *Subscription) Events() <-chan models.AgentEvent {
	return s.events
}

// Lagged returns the number of events dropped for this subscriber since
// the last call, resetting the counter to zero.
func (s *Subscription) Lagged() uint64 {
	return s.dropped.Swap(0)
}

// Unsubscribe removes the subscription from the bus and closes its channel.
// Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	_, ok := s.bus.subs[s]
	delete(s.bus.subs, s)
	s.bus.mu.Unlock()
	if ok {
		close(s.events)
	}
}

// Subscribe registers a new subscription with the default buffer size.
func (b *Bus) Subscribe() *Subscription {
	return b.SubscribeBuffered(DefaultBufferSize)
}

// SubscribeBuffered registers a new subscription with a custom buffer size.
func (b *Bus) SubscribeBuffered(bufSize int) *Subscription {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	sub := &Subscription{bus: b, events: make(chan models.AgentEvent, bufSize)}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Publish delivers ev to every current subscriber without blocking. A
// subscriber whose buffer is full has the event dropped and its Lagged
// counter incremented instead of stalling the publisher or the bus.
func (b *Bus) Publish(ev models.AgentEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		select {
		case sub.events <- ev:
		default:
			sub.dropped.Add(1)
		}
	}
}

// SubscriberCount reports the number of active subscriptions, for tests
// and diagnostics.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
