package store

import (
	"sync"
)

// subscriberBuffer is the channel buffer size for each subscriber.
const subscriberBuffer = 100

// History is a fixed-capacity, insertion-ordered buffer of entries.
//
// History provides thread-safe storage with a publish-subscribe mechanism
// for real-time updates. Appends beyond capacity evict the oldest entry
// first (strict FIFO, one entry at a time). Capacity is the only eviction
// trigger; there is no deletion by key.
//
// Subscribers receive appended entries via buffered channels (buffer size
// 100). Updates are sent non-blocking; if a subscriber's buffer is full, the
// entry is dropped for that subscriber to prevent blocking the writer.
type History[T any] struct {
	mu       sync.RWMutex
	entries  []T
	capacity int

	subscribers map[chan T]struct{}
	subMu       sync.RWMutex
}

// NewHistory creates an empty [History] holding at most capacity entries.
//
// A capacity below 1 is raised to 1.
func NewHistory[T any](capacity int) *History[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &History[T]{
		entries:     make([]T, 0, capacity),
		capacity:    capacity,
		subscribers: make(map[chan T]struct{}),
	}
}

// Append adds an entry to the tail and notifies all subscribers.
//
// If the buffer is at capacity, the head entry is removed first so the
// length never exceeds capacity, even transiently, for any reader.
func (h *History[T]) Append(entry T) {
	h.mu.Lock()
	if len(h.entries) >= h.capacity {
		h.evict(len(h.entries) - h.capacity + 1)
	}
	h.entries = append(h.entries, entry)
	h.mu.Unlock()

	h.notifySubscribers(entry)
}

// evict drops the n oldest entries. Caller must hold h.mu.
func (h *History[T]) evict(n int) {
	if n <= 0 {
		return
	}
	if n >= len(h.entries) {
		clear(h.entries)
		h.entries = h.entries[:0]
		return
	}
	// shift in place so the backing array does not grow without bound
	remaining := copy(h.entries, h.entries[n:])
	clear(h.entries[remaining:])
	h.entries = h.entries[:remaining]
}

// Snapshot returns a copy of all entries, oldest first.
//
// The returned slice is a copy; modifications do not affect the history.
func (h *History[T]) Snapshot() []T {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]T, len(h.entries))
	copy(out, h.entries)
	return out
}

// Summary returns the number of entries and the newest one, read together
// so that a concurrent Append or Clear cannot pair a count with a stale
// entry. ok is false when the history is empty.
func (h *History[T]) Summary() (n int, latest T, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n = len(h.entries)
	if n == 0 {
		return 0, latest, false
	}
	return n, h.entries[n-1], true
}

// Len returns the current number of entries.
func (h *History[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Capacity returns the maximum number of entries retained.
func (h *History[T]) Capacity() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.capacity
}

// Clear removes all entries. Subscribers are not notified.
func (h *History[T]) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clear(h.entries)
	h.entries = h.entries[:0]
}

// Resize changes the capacity. Shrinking evicts the oldest entries
// immediately. A capacity below 1 is raised to 1.
func (h *History[T]) Resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.capacity = capacity
	h.evict(len(h.entries) - capacity)
}

// Subscribe creates a new subscription and returns a channel for receiving
// appended entries.
//
// The returned channel has a buffer of 100 entries. If the buffer fills
// (slow consumer), new entries are dropped for this subscriber.
//
// Caller must call [History.Unsubscribe] when done to prevent resource leaks.
func (h *History[T]) Subscribe() <-chan T {
	ch := make(chan T, subscriberBuffer)

	h.subMu.Lock()
	h.subscribers[ch] = struct{}{}
	h.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// Safe to call multiple times or with an unknown channel.
func (h *History[T]) Unsubscribe(ch <-chan T) {
	h.subMu.Lock()
	defer h.subMu.Unlock()

	for subCh := range h.subscribers {
		if subCh == ch {
			delete(h.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the entry to all active subscribers without blocking.
func (h *History[T]) notifySubscribers(entry T) {
	h.subMu.RLock()
	defer h.subMu.RUnlock()

	for ch := range h.subscribers {
		select {
		case ch <- entry:
		default:
			// subscriber is slow, drop the entry
		}
	}
}
