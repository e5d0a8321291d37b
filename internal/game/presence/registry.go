package presence

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rockfordlhotka/Mordecai/internal/game/message"
)

// ErrConnectionNotFound is returned when a push targets an unknown connection.
var ErrConnectionNotFound = errors.New("connection not found")

// SupersedePolicy controls what happens to the prior connection when a player
// name registers again while already connected.
type SupersedePolicy int

const (
	// PolicySilent drops the stale connection's delivery path without notice
	// (last login wins).
	PolicySilent SupersedePolicy = iota
	// PolicyNotify pushes an explicit disconnect notice to the stale
	// connection before dropping it.
	PolicyNotify
)

const supersededNotice = "Your connection has been replaced by a newer login."

// Connection describes one live registry entry.
type Connection struct {
	// ID is the opaque connection identity, unique per live session.
	ID string
	// PlayerName is the display name bound to this connection.
	PlayerName string
}

// Registry is the authoritative mapping from connection identity to player
// name and delivery endpoint. A player has at most one live connection;
// registering an already-connected name supersedes the prior entry.
// All methods are safe for unbounded concurrent callers and never block on I/O.
type Registry struct {
	logger     *zap.Logger
	policy     SupersedePolicy
	bufferSize int

	mu     sync.RWMutex
	conns  map[string]*entry  // connID → entry
	byName map[string]string  // playerName → connID
}

type entry struct {
	playerName string
	outbox     *Outbox
}

// NewRegistry creates an empty Registry.
//
// Precondition: logger must be non-nil.
func NewRegistry(logger *zap.Logger, policy SupersedePolicy, outboxBuffer int) *Registry {
	return &Registry{
		logger:     logger,
		policy:     policy,
		bufferSize: outboxBuffer,
		conns:      make(map[string]*entry),
		byName:     make(map[string]string),
	}
}

// Register allocates a fresh connection identity for the player and stores the
// binding. If the name already has a live connection, the prior connection is
// superseded according to the registry's policy.
//
// Precondition: playerName must be non-empty; deliver must be non-nil.
// Postcondition: Returns the new connection identity. Never fails for
// well-formed input.
func (r *Registry) Register(playerName string, deliver DeliverFunc) string {
	connID := uuid.NewString()
	outbox := NewOutbox(connID, r.bufferSize, deliver)

	r.mu.Lock()
	var stale *Outbox
	if oldID, ok := r.byName[playerName]; ok {
		if old, ok := r.conns[oldID]; ok {
			stale = old.outbox
			delete(r.conns, oldID)
		}
	}
	r.conns[connID] = &entry{playerName: playerName, outbox: outbox}
	r.byName[playerName] = connID
	r.mu.Unlock()

	if stale != nil {
		if r.policy == PolicyNotify {
			if err := stale.Push(message.New(message.KindSystem, message.AuthorSystem, supersededNotice)); err != nil {
				r.logger.Warn("superseded notice not delivered",
					zap.String("player", playerName),
					zap.Error(err),
				)
			}
		}
		stale.Close()
		r.logger.Info("connection superseded",
			zap.String("player", playerName),
			zap.String("conn_id", connID),
		)
	}

	return connID
}

// Unregister removes the binding if present. Unregistering an unknown
// identity is a no-op, not an error.
//
// Postcondition: The connection's outbox is closed and the binding removed.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	e, ok := r.conns[connID]
	if ok {
		delete(r.conns, connID)
		// Only drop the name index if it still points at this connection;
		// a superseding login may have rebound it already.
		if r.byName[e.playerName] == connID {
			delete(r.byName, e.playerName)
		}
	}
	r.mu.Unlock()

	if ok {
		e.outbox.Close()
	}
}

// Lookup returns the player name bound to the connection.
//
// Postcondition: Returns (name, true) if registered, or ("", false).
func (r *Registry) Lookup(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[connID]
	if !ok {
		return "", false
	}
	return e.playerName, true
}

// ConnectionByName returns the live connection identity for the player name.
//
// Postcondition: Returns (connID, true) if the player is connected, or ("", false).
func (r *Registry) ConnectionByName(playerName string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.byName[playerName]
	return connID, ok
}

// ListOnlinePlayerNames returns a snapshot of connected player names.
// Order is unspecified.
//
// Postcondition: Returns a slice the caller owns; may be empty.
func (r *Registry) ListOnlinePlayerNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	return names
}

// Snapshot returns the current connections for fan-out.
//
// Postcondition: Returns a slice the caller owns; may be empty.
func (r *Registry) Snapshot() []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]Connection, 0, len(r.conns))
	for id, e := range r.conns {
		conns = append(conns, Connection{ID: id, PlayerName: e.playerName})
	}
	return conns
}

// Push enqueues a message to one connection's outbox.
//
// Postcondition: Returns an error if the connection is unknown, closed, or
// its buffer is full. Never blocks.
func (r *Registry) Push(connID string, msg message.Message) error {
	r.mu.RLock()
	e, ok := r.conns[connID]
	r.mu.RUnlock()

	if !ok {
		return ErrConnectionNotFound
	}
	return e.outbox.Push(msg)
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll unregisters every connection. Used at shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.conns))
	for _, e := range r.conns {
		entries = append(entries, e)
	}
	r.conns = make(map[string]*entry)
	r.byName = make(map[string]string)
	r.mu.Unlock()

	for _, e := range entries {
		e.outbox.Close()
	}
}
