// Package notifier broadcasts graph rebuilds to long-lived listeners such as
// SSE streams.
package notifier

import "sync"

// Notifier fans out rebuild generations to all subscribed listeners.
// Each listener holds at most one pending generation; a newer one replaces
// an unread older one, so slow listeners only ever see the latest graph.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan uint64]struct{}
	last      uint64
}

// New creates a new Notifier instance.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[chan uint64]struct{}),
	}
}

// Subscribe returns a channel that receives rebuild generations.
// The caller must call Unsubscribe when done to prevent goroutine leaks.
func (n *Notifier) Subscribe() chan uint64 {
	ch := make(chan uint64, 1)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan uint64) {
	n.mu.Lock()
	if _, ok := n.listeners[ch]; ok {
		delete(n.listeners, ch)
		close(ch)
	}
	n.mu.Unlock()
}

// Broadcast sends generation to all listeners without blocking.
func (n *Notifier) Broadcast(generation uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.last = generation
	for ch := range n.listeners {
		select {
		case ch <- generation:
			continue
		default:
		}
		// drop the stale generation, then retry once
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- generation:
		default:
		}
	}
}

// Last returns the most recently broadcast generation.
func (n *Notifier) Last() uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.last
}

// Listeners returns the number of subscribed listeners.
func (n *Notifier) Listeners() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}
