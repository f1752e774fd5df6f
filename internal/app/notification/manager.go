// Package notification bridges playback events to the UI goroutine: producers
// publish into a FIFO queue and a single consumer drains it on a fixed tick.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/stembox/internal/app/playback"
)

// Notification is a playback event stamped with its delivery order.
type Notification struct {
	SequenceNo uint64
	Event      playback.Event
}

// Handler is called on the draining goroutine for every notification.
type Handler func(Notification)

// subscription represents a subscriber's subscription.
type subscription struct {
	id      string
	handler Handler
}

// Manager owns the event queue and the subscriptions fed from it.
type Manager struct {
	queue *Queue
	tick  time.Duration

	mu            sync.RWMutex
	subscriptions []*subscription
	sequenceNo    uint64
	drainMu       sync.Mutex // Single consumer
}

// NewManager creates a manager draining every tick.
func NewManager(tick time.Duration) *Manager {
	if tick <= 0 {
		tick = 50 * time.Millisecond
	}
	return &Manager{
		queue: NewQueue(),
		tick:  tick,
	}
}

// Publish implements playback.Publisher. It never blocks.
func (m *Manager) Publish(e playback.Event) {
	m.queue.Publish(e)
}

// Subscribe adds a handler and returns the subscription ID.
func (m *Manager) Subscribe(handler Handler) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions = append(m.subscriptions, &subscription{id: id, handler: handler})
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscriptions {
		if sub.id == subscriptionID {
			m.subscriptions = append(m.subscriptions[:i], m.subscriptions[i+1:]...)
			return
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Poll drains the queue and returns the pending notifications in publish
// order without dispatching them.
func (m *Manager) Poll() []Notification {
	m.drainMu.Lock()
	defer m.drainMu.Unlock()
	return m.drainLocked()
}

// Flush drains the queue and dispatches every notification to every
// subscriber in publish order. It returns the number drained.
func (m *Manager) Flush() int {
	m.drainMu.Lock()
	defer m.drainMu.Unlock()

	pending := m.drainLocked()
	if len(pending) == 0 {
		return 0
	}

	m.mu.RLock()
	subs := make([]*subscription, len(m.subscriptions))
	copy(subs, m.subscriptions)
	m.mu.RUnlock()

	for _, n := range pending {
		for _, sub := range subs {
			sub.handler(n)
		}
	}
	return len(pending)
}

// Run flushes on every tick until ctx is cancelled, then flushes once more.
func (m *Manager) Run(ctx context.Context) {
	zlog.Debug().Msgf("notification: draining every %v", m.tick)

	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Flush()
			return
		case <-ticker.C:
			m.Flush()
		}
	}
}

// Close removes all subscriptions and discards pending events.
func (m *Manager) Close() {
	m.mu.Lock()
	m.subscriptions = nil
	m.mu.Unlock()
	m.queue.Drain()
}

func (m *Manager) drainLocked() []Notification {
	events := m.queue.Drain()
	if len(events) == 0 {
		return nil
	}

	out := make([]Notification, len(events))
	for i, e := range events {
		m.sequenceNo++
		out[i] = Notification{SequenceNo: m.sequenceNo, Event: e}
	}
	return out
}
