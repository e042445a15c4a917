package framefeed

import (
	"sync"

	"github.com/google/uuid"
)

// subscriberBuffer is how many lines a slow subscriber may lag before lines
// are skipped for it.
const subscriberBuffer = 16

// Mux fans raw feed lines out to any number of subscribers. Publishing never
// blocks; a subscriber that falls behind misses lines.
type Mux struct {
	mu          sync.Mutex
	subscribers map[string]chan string
	closing     bool
}

// NewMux returns an empty Mux.
func NewMux() *Mux {
	return &Mux{subscribers: make(map[string]chan string)}
}

// Subscribe registers a new channel. After Close it returns an already
// closed channel so readers never block.
func (m *Mux) Subscribe() (string, <-chan string) {
	id := uuid.NewString()
	ch := make(chan string, subscriberBuffer)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closing {
		close(ch)
		return id, ch
	}
	m.subscribers[id] = ch
	return id, ch
}

// Unsubscribe closes and forgets the channel for id.
func (m *Mux) Unsubscribe(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.subscribers[id]; ok {
		close(ch)
		delete(m.subscribers, id)
	}
}

// Subscribers is the current subscriber count.
func (m *Mux) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers)
}

// Publish offers line to every subscriber.
func (m *Mux) Publish(line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subscribers {
		select {
		case ch <- line:
		default:
		}
	}
}

// Close closes every subscriber channel. It is safe to call more than once.
func (m *Mux) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closing = true
	for id, ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, id)
	}
}
