// Package world provides the static room graph: rooms keyed by ID with up to
// four cardinal neighbor links.
package world

import "fmt"

// Direction is one of the four cardinal directions.
type Direction string

// The directional vocabulary is exactly four cardinal directions.
const (
	North Direction = "north"
	South Direction = "south"
	East  Direction = "east"
	West  Direction = "west"
)

// Directions lists all valid directions in fixed N/S/E/W order.
var Directions = []Direction{North, South, East, West}

// ParseDirection resolves a direction token, accepting single-letter
// abbreviations.
//
// Postcondition: Returns (direction, true) for a recognised token, or ("", false).
func ParseDirection(token string) (Direction, bool) {
	switch token {
	case "north", "n":
		return North, true
	case "south", "s":
		return South, true
	case "east", "e":
		return East, true
	case "west", "w":
		return West, true
	}
	return "", false
}

// IsValid reports whether d is one of the four cardinal directions.
func (d Direction) IsValid() bool {
	switch d {
	case North, South, East, West:
		return true
	}
	return false
}

// Opposite returns the opposite cardinal direction.
//
// Precondition: d must be a valid direction for a meaningful result.
func (d Direction) Opposite() Direction {
	switch d {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	case West:
		return East
	default:
		return ""
	}
}

// Room is a location in the game world. Neighbor links are immutable after
// load; an empty neighbor ID means no exit in that direction. Links are not
// auto-mirrored, so asymmetric topologies are legal.
type Room struct {
	// ID uniquely identifies this room.
	ID string
	// Name is the short display name of the room.
	Name string
	// Description is the room text shown to players.
	Description string
	// NorthID, SouthID, EastID, WestID are the neighbor room IDs, empty if no exit.
	NorthID string
	SouthID string
	EastID  string
	WestID  string
}

// NeighborID returns the neighbor room ID in the given direction, or "" if
// there is no exit that way.
func (r *Room) NeighborID(dir Direction) string {
	switch dir {
	case North:
		return r.NorthID
	case South:
		return r.SouthID
	case East:
		return r.EastID
	case West:
		return r.WestID
	}
	return ""
}

// Exits returns the directions with configured neighbors, in fixed N/S/E/W order.
//
// Postcondition: Returns a slice of valid directions; may be empty.
func (r *Room) Exits() []Direction {
	var exits []Direction
	for _, dir := range Directions {
		if r.NeighborID(dir) != "" {
			exits = append(exits, dir)
		}
	}
	return exits
}

// Validate checks room invariants.
//
// Postcondition: Returns nil if valid, or an error describing the first violation.
func (r *Room) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("room ID must not be empty")
	}
	if r.Name == "" {
		return fmt.Errorf("room %q: name must not be empty", r.ID)
	}
	if r.Description == "" {
		return fmt.Errorf("room %q: description must not be empty", r.ID)
	}
	return nil
}
