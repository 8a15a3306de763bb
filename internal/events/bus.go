// Package events implements the agent runtime's broadcast event bus: a
// best-effort, multi-producer multi-consumer fan-out of models.AgentEvent to
// any number of live subscribers.
package events

import (
	"sync"
	"sync/atomic"

	"github.com/haasonsaas/nexus/pkg/models"
)

// DefaultCapacity is the default per-subscriber buffer size.
const DefaultCapacity = 256

// Bus is a broadcast hub. Publish never blocks the caller: a subscriber
// that falls more than Capacity events behind has its oldest buffered
// event evicted and observes a Lagged indication on its next Recv.
//
// Ordering is total across all subscribers and matches publication order
// on a single Bus instance.
type Bus struct {
	capacity int

	mu   sync.Mutex
	subs map[uint64]*Subscription
	next uint64
}

// New creates an event bus with the given per-subscriber buffer capacity.
// A non-positive capacity falls back to DefaultCapacity.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{
		capacity: capacity,
		subs:     make(map[uint64]*Subscription),
	}
}

// Publish broadcasts an event to every current subscriber. If there are no
// subscribers the event is simply dropped. Never blocks.
func (b *Bus) Publish(e models.AgentEvent) {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.deliver(e)
	}
}

// Subscribe returns a handle that observes only events published after this
// call. The caller must call Close on the subscription when done to free
// its buffer and stop counting against bus-wide subscriber bookkeeping.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++

	s := &Subscription{
		id:     id,
		bus:    b,
		ch:     make(chan models.AgentEvent, b.capacity),
		closed: make(chan struct{}),
	}
	b.subs[id] = s
	return s
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// SubscriberCount returns the number of currently live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Subscription is a single subscriber's view of the bus.
type Subscription struct {
	id  uint64
	bus *Bus

	mu      sync.Mutex
	ch      chan models.AgentEvent
	lagged  uint64 // events dropped due to a full buffer, pending acknowledgement
	closed  chan struct{}
	didShut uint32
}

// deliver pushes an event into the subscriber's buffer. If the buffer is
// full, the oldest buffered event is evicted to make room (never blocks)
// and the lag counter increments.
func (s *Subscription) deliver(e models.AgentEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if atomic.LoadUint32(&s.didShut) == 1 {
		return
	}

	for {
		select {
		case s.ch <- e:
			return
		default:
		}

		// Buffer full: evict oldest to make room, counting the loss.
		select {
		case <-s.ch:
			atomic.AddUint64(&s.lagged, 1)
		default:
			// Raced with a concurrent drain; retry the send.
		}
	}
}

// Recv returns the channel to range over. Before yielding the first event
// after a lag, callers should check Lagged() to learn how many events were
// skipped; Lagged() resets to zero once observed.
func (s *Subscription) Recv() <-chan models.AgentEvent {
	return s.ch
}

// Lagged returns and resets the number of events dropped from this
// subscriber's buffer due to backpressure since the last call.
func (s *Subscription) Lagged() uint64 {
	return atomic.SwapUint64(&s.lagged, 0)
}

// Close detaches the subscription from the bus and releases its buffer.
// Safe to call more than once.
func (s *Subscription) Close() {
	if !atomic.CompareAndSwapUint32(&s.didShut, 0, 1) {
		return
	}
	s.bus.unsubscribe(s.id)
	close(s.closed)
}
