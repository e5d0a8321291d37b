// Package presence tracks live player connections and their delivery
// endpoints.
package presence

import (
	"fmt"
	"sync"

	"github.com/rockfordlhotka/Mordecai/internal/game/message"
)

// DeliverFunc is a connection's delivery endpoint. The registry invokes it
// from a single goroutine per connection, so implementations see messages in
// enqueue order and need no internal synchronization.
type DeliverFunc func(message.Message)

// Outbox is a connection's ordered delivery queue. Pushes are serialized and
// non-blocking; a dedicated consumer goroutine invokes the delivery endpoint
// one message at a time, so a slow endpoint delays only its own connection.
type Outbox struct {
	connID string
	queue  chan message.Message
	done   chan struct{}
	mu     sync.Mutex
	closed bool
}

// NewOutbox creates an Outbox and starts its consumer goroutine.
//
// Precondition: connID must be non-empty; deliver must be non-nil.
// Postcondition: Returns an open Outbox whose consumer invokes deliver serially.
func NewOutbox(connID string, bufferSize int, deliver DeliverFunc) *Outbox {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	o := &Outbox{
		connID: connID,
		queue:  make(chan message.Message, bufferSize),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(o.done)
		for msg := range o.queue {
			deliver(msg)
		}
	}()
	return o
}

// ConnID returns the owning connection identity.
func (o *Outbox) ConnID() string {
	return o.connID
}

// Push enqueues a message for delivery.
//
// Postcondition: The message is enqueued in push order, or an error is
// returned if the outbox is closed or its buffer is full. Push never blocks.
func (o *Outbox) Push(msg message.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("connection %s is closed", o.connID)
	}
	select {
	case o.queue <- msg:
		return nil
	default:
		return fmt.Errorf("connection %s delivery buffer full", o.connID)
	}
}

// Close stops accepting messages. Already-enqueued messages are still
// delivered before the consumer exits. Close is idempotent.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.queue)
	}
}

// Done returns a channel closed once all enqueued messages have been delivered
// after Close.
func (o *Outbox) Done() <-chan struct{} {
	return o.done
}

// IsClosed reports whether the outbox has been closed.
func (o *Outbox) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
