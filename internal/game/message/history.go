package message

import "sync"

// DefaultHistoryCapacity is the standard bound on retained messages.
const DefaultHistoryCapacity = 1000

// History is a bounded, append-only log of recently broadcast messages.
// When full, the oldest message is evicted. All methods are safe for
// concurrent use; snapshots are taken under a single critical section so a
// reader never observes a partially evicted sequence.
type History struct {
	mu       sync.Mutex
	capacity int
	entries  []Message
}

// NewHistory creates a History bounded to the given capacity.
//
// Precondition: capacity must be >= 1.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = DefaultHistoryCapacity
	}
	return &History{
		capacity: capacity,
		entries:  make([]Message, 0, capacity),
	}
}

// Append adds a message to the end, evicting from the front once the
// capacity is exceeded.
//
// Postcondition: Len() is at most the configured capacity.
func (h *History) Append(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) == h.capacity {
		copy(h.entries, h.entries[1:])
		h.entries[len(h.entries)-1] = msg
		return
	}
	h.entries = append(h.entries, msg)
}

// RecentTail returns a snapshot of the last n messages, oldest first.
//
// Postcondition: Returns at most n messages in arrival order; the returned
// slice is owned by the caller.
func (h *History) RecentTail(n int) []Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n <= 0 {
		return nil
	}
	if n > len(h.entries) {
		n = len(h.entries)
	}
	tail := make([]Message, n)
	copy(tail, h.entries[len(h.entries)-n:])
	return tail
}

// Len returns the current number of retained messages.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
