package notification

import (
	"sync"

	"github.com/osa030/stembox/internal/app/playback"
)

// Queue is a multiple-producer single-consumer FIFO of playback events.
type Queue struct {
	mu     sync.Mutex
	events []playback.Event
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Publish appends e. It never blocks on the consumer.
func (q *Queue) Publish(e playback.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, e)
}

// Drain removes and returns all queued events in publish order.
func (q *Queue) Drain() []playback.Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	events := q.events
	q.events = nil
	return events
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
