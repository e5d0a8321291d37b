package world

import (
	"context"
	"fmt"
	"sync"
)

// Manager provides thread-safe indexed access to the loaded room graph.
// Room identities and links are immutable after load; only lookups happen
// at runtime.
type Manager struct {
	mu        sync.RWMutex
	rooms     map[string]*Room
	startRoom string
}

// NewManager creates a Manager from the given rooms.
//
// Precondition: rooms must be non-empty with unique IDs.
// Postcondition: Returns a Manager with all rooms indexed by ID, or an error
// on duplicate IDs.
func NewManager(rooms []*Room, startRoom string) (*Manager, error) {
	if len(rooms) == 0 {
		return nil, fmt.Errorf("world must contain at least one room")
	}

	m := &Manager{rooms: make(map[string]*Room, len(rooms))}
	for _, room := range rooms {
		if _, exists := m.rooms[room.ID]; exists {
			return nil, fmt.Errorf("duplicate room ID: %q", room.ID)
		}
		m.rooms[room.ID] = room
	}

	if startRoom == "" {
		startRoom = rooms[0].ID
	}
	if _, ok := m.rooms[startRoom]; !ok {
		return nil, fmt.Errorf("start room %q not found in world", startRoom)
	}
	m.startRoom = startRoom

	return m, nil
}

// ValidateLinks checks that every neighbor link resolves to a known room.
// Call this after NewManager to catch dangling references. Asymmetric links
// (a one-way passage) are legal and not flagged.
//
// Postcondition: Returns nil if all links resolve, or an error naming the
// first dangling target.
func (m *Manager) ValidateLinks() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, room := range m.rooms {
		for _, dir := range Directions {
			target := room.NeighborID(dir)
			if target == "" {
				continue
			}
			if _, ok := m.rooms[target]; !ok {
				return fmt.Errorf("room %q: %s link targets unknown room %q", room.ID, dir, target)
			}
		}
	}
	return nil
}

// FindRoom returns the room with the given ID. The context parameter keeps
// the signature compatible with storage-backed room finders.
//
// Postcondition: Returns (room, nil) if found, or (nil, nil) if absent.
func (m *Manager) FindRoom(_ context.Context, id string) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[id], nil
}

// StartRoomID returns the room where new players are placed.
func (m *Manager) StartRoomID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.startRoom
}

// RoomCount returns the total number of rooms.
func (m *Manager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}
