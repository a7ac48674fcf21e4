package lock

import (
	"context"
	"sync"
)

// Broadcaster fans status messages out to every subscriber, including the
// publisher's own subscriptions.
type Broadcaster interface {
	Publish(ctx context.Context, status Status) error
	Subscribe(ctx context.Context) (<-chan Status, error)
}

// subscriberBuffer bounds how far a slow subscriber may lag before messages
// to it are dropped.
const subscriberBuffer = 16

// Hub is a process local Broadcaster.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Status]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Status]struct{})}
}

// Publish never blocks; subscribers whose buffer is full miss the message.
func (h *Hub) Publish(_ context.Context, status Status) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- status:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel closed when ctx is done.
func (h *Hub) Subscribe(ctx context.Context) (<-chan Status, error) {
	ch := make(chan Status, subscriberBuffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, ch)
		close(ch)
		h.mu.Unlock()
	}()

	return ch, nil
}
