// Package broadcast fans game messages out to live connections.
package broadcast

import (
	"go.uber.org/zap"

	"github.com/rockfordlhotka/Mordecai/internal/game/message"
	"github.com/rockfordlhotka/Mordecai/internal/game/presence"
)

// Broadcaster delivers messages to registered connections. Each recipient's
// delivery is independent: a slow or failed endpoint is logged and never
// blocks the fan-out or the other recipients. Every Deliver* call appends the
// message to the history exactly once.
type Broadcaster struct {
	logger   *zap.Logger
	registry *presence.Registry
	history  *message.History
}

// NewBroadcaster creates a Broadcaster over the given registry and history.
//
// Precondition: logger, registry, and history must be non-nil.
func NewBroadcaster(logger *zap.Logger, registry *presence.Registry, history *message.History) *Broadcaster {
	return &Broadcaster{
		logger:   logger,
		registry: registry,
		history:  history,
	}
}

// Deliver sends the message to every currently registered connection except
// excludeConnID (empty means exclude nobody). Delivering to an empty registry
// is a safe no-op.
//
// Postcondition: The message is appended to history once and dispatched to
// every non-excluded connection; per-recipient failures are logged, not returned.
func (b *Broadcaster) Deliver(msg message.Message, excludeConnID string) {
	b.history.Append(msg)
	for _, conn := range b.registry.Snapshot() {
		if conn.ID == excludeConnID {
			continue
		}
		if err := b.registry.Push(conn.ID, msg); err != nil {
			b.logger.Warn("broadcast delivery failed",
				zap.String("conn_id", conn.ID),
				zap.String("player", conn.PlayerName),
				zap.String("kind", string(msg.Kind)),
				zap.Error(err),
			)
		}
	}
}

// DeliverToOne sends the message directly to a single connection, bypassing
// the fan-out path. Used for private echoes that must never reach other
// players.
//
// Postcondition: The message is appended to history once; returns a non-nil
// error if the connection is unknown or its buffer rejects the message.
func (b *Broadcaster) DeliverToOne(connID string, msg message.Message) error {
	b.history.Append(msg)
	if err := b.registry.Push(connID, msg); err != nil {
		b.logger.Warn("direct delivery failed",
			zap.String("conn_id", connID),
			zap.String("kind", string(msg.Kind)),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// DeliverToSet sends one logical message to the listed connections.
//
// Postcondition: The message is appended to history once; per-recipient
// failures are logged, not returned.
func (b *Broadcaster) DeliverToSet(connIDs []string, msg message.Message) {
	b.history.Append(msg)
	for _, connID := range connIDs {
		if err := b.registry.Push(connID, msg); err != nil {
			b.logger.Warn("targeted delivery failed",
				zap.String("conn_id", connID),
				zap.String("kind", string(msg.Kind)),
				zap.Error(err),
			)
		}
	}
}

// Replay pushes already-recorded messages to one connection without
// re-appending them to history. Used to give a new connection recent context.
//
// Postcondition: Messages are pushed in slice order; the first failure stops
// the replay and is returned.
func (b *Broadcaster) Replay(connID string, msgs []message.Message) error {
	for _, msg := range msgs {
		if err := b.registry.Push(connID, msg); err != nil {
			return err
		}
	}
	return nil
}

// DeliverAmbient sends a system-wide, non-excluding message.
// Equivalent to Deliver with no exclusion.
func (b *Broadcaster) DeliverAmbient(msg message.Message) {
	b.Deliver(msg, "")
}
