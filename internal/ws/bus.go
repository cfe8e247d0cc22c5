package ws

import (
	"log"
	"sync"

	"github.com/querystream-gateway/backend/internal/model"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls this far behind starts losing events rather than blocking publishers.
const subscriberBuffer = 16

// Bus broadcasts engine events to every subscribed dispatch loop. Publishers
// never block: a full subscriber channel drops the event for that subscriber.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan model.Event
	nextID int
	closed bool
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[int]chan model.Event),
	}
}

// Subscribe registers a new subscriber and returns its event channel together
// with a cancel function. Cancel is idempotent and closes the channel.
func (b *Bus) Subscribe() (<-chan model.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan model.Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber. Filtering by relevance is
// each subscriber's responsibility.
func (b *Bus) Publish(ev model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			log.Printf("ws: subscriber %d lagging, dropping event trace_id=%s", id, ev.TraceID)
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close shuts the bus down and closes every subscriber channel. Subsequent
// Publish calls are no-ops and subsequent Subscribe calls return a closed
// channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
