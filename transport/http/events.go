package http

import (
	"sync"
)

// broadcaster fans evaluation notifications out to every /events
// subscriber via an in-process channel per client. There is no
// persistence or cross-process delivery: a client that was not connected
// when an evaluation happened never sees it; this is a keep-alive
// notification stream, not a durable log.
type broadcaster struct {
	mu      sync.Mutex
	clients map[chan string]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{clients: make(map[chan string]struct{})}
}

func (b *broadcaster) subscribe() chan string {
	ch := make(chan string, 8)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *broadcaster) unsubscribe(ch chan string) {
	b.mu.Lock()
	delete(b.clients, ch)
	b.mu.Unlock()
	close(ch)
}

// publish delivers msg to every current subscriber without blocking; a
// subscriber whose buffer is full drops the message rather than stalling
// the publisher.
func (b *broadcaster) publish(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}
