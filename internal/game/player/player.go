// Package player defines the runtime view of a player record.
package player

import "time"

// Player is the runtime view of a player. The authoritative copy lives in
// storage; the core re-reads it per operation rather than caching it.
type Player struct {
	// ID is the database identity.
	ID int64
	// Name is the unique, case-sensitive display name.
	Name string
	// RoomID is the current room, empty only before first placement.
	RoomID string
	// Online reports whether the player has a live connection.
	Online bool
	// CreatedAt and UpdatedAt are storage timestamps.
	CreatedAt time.Time
	UpdatedAt time.Time
}
