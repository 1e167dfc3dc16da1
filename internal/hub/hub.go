package hub

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBuffer is the channel capacity used when New is given a non-positive buffer.
const DefaultBuffer = 100

// Event announces that a panel has new data.
type Event struct {
	// Panel is the name of the panel that changed.
	Panel string `json:"panel"`

	// At is when the change was published.
	At time.Time `json:"at"`
}

// Subscription is one subscriber's delivery endpoint.
type Subscription struct {
	id uint64
	ch chan Event

	// mu orders sends against close.
	mu     sync.Mutex
	closed bool
}

// ID returns the subscription's identifier, unique within its hub.
func (s *Subscription) ID() uint64 {
	return s.id
}

// C returns the channel events are delivered on. The channel is closed when
// the subscription is removed.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Close closes the delivery channel from the consumer side. The hub notices
// on its next publish and drops the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// send attempts a non-blocking delivery and reports whether it succeeded.
func (s *Subscription) send(e Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- e:
		return true
	default:
		return false
	}
}

// Hub fans panel-updated events out to every live subscription.
//
// Hub is safe for concurrent use. The subscriber set has its own lock and
// Publish never holds it while sending.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	seq    atomic.Uint64
	buffer int
	closed bool
	now    func() time.Time
	logger *slog.Logger
}

// New creates a hub whose subscriptions buffer up to buffer events.
func New(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[uint64]*Subscription),
		buffer: buffer,
		now:    time.Now,
		logger: logger,
	}
}

// Subscribe registers and returns a new subscription.
//
// After Close, Subscribe returns a subscription whose channel is already closed.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{
		id: h.seq.Add(1),
		ch: make(chan Event, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		sub.Close()
		return sub
	}
	h.subs[sub.id] = sub
	h.logger.Debug("subscriber added", "subscriber", sub.id, "subscribers", len(h.subs))
	return sub
}

// Unsubscribe removes sub and closes its channel.
// Removing an absent or nil subscription is a no-op.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.remove(sub, "unsubscribed")
}

// Publish tells every live subscriber that panel changed and returns the
// number of subscribers that received the event.
//
// Subscribers whose channel is closed or full are removed from the live set.
func (h *Hub) Publish(panel string) int {
	e := Event{Panel: panel, At: h.now()}

	h.mu.RLock()
	snapshot := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		snapshot = append(snapshot, sub)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, sub := range snapshot {
		if sub.send(e) {
			delivered++
			continue
		}
		h.remove(sub, "delivery failed")
	}
	return delivered
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close removes every subscription and closes their channels.
// Subsequent publishes deliver nothing. Safe to call more than once.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[uint64]*Subscription)
	h.closed = true
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

func (h *Hub) remove(sub *Subscription, reason string) {
	h.mu.Lock()
	_, present := h.subs[sub.id]
	delete(h.subs, sub.id)
	remaining := len(h.subs)
	h.mu.Unlock()

	sub.Close()
	if present {
		h.logger.Debug("subscriber removed", "subscriber", sub.id, "reason", reason, "subscribers", remaining)
	}
}
