// Package movement validates directional moves, mutates authoritative player
// location, and produces the occupancy snapshots used for notifications.
package movement

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/rockfordlhotka/Mordecai/internal/game/player"
	"github.com/rockfordlhotka/Mordecai/internal/game/world"
)

// PlayerStore is the authoritative player residency storage. Every call is a
// fresh query; implementations must not cache results across calls.
type PlayerStore interface {
	// FindPlayerByName returns the player record, or (nil, nil) when absent.
	FindPlayerByName(ctx context.Context, name string) (*player.Player, error)
	// SetPlayerRoom commits the player's new room immediately.
	SetPlayerRoom(ctx context.Context, playerID int64, roomID string) error
	// ListOnlinePlayersInRoom returns the names of online players resident in
	// the room, reflecting the latest committed writes at call time.
	ListOnlinePlayersInRoom(ctx context.Context, roomID string) ([]string, error)
}

// RoomFinder resolves rooms by identity.
type RoomFinder interface {
	// FindRoom returns the room, or (nil, nil) when absent.
	FindRoom(ctx context.Context, id string) (*world.Room, error)
}

// Result is the outcome of one movement attempt. Occupancy lists are
// read-committed snapshots, not a serializable view: concurrent operations in
// the same window may be reflected or not.
type Result struct {
	// Success reports whether the move happened.
	Success bool
	// Message is the human-readable outcome.
	Message string
	// Direction is the direction moved, set only on success.
	Direction world.Direction
	// OriginRoom and DestinationRoom are set only on success.
	OriginRoom      *world.Room
	DestinationRoom *world.Room
	// OriginOccupants and DestinationOccupants are the post-write occupancy
	// snapshots, excluding the mover, sorted by name.
	OriginOccupants      []string
	DestinationOccupants []string
	// DepartureAudience and ArrivalAudience are the pre-write occupancy
	// captures used to address leave/arrive notifications: the other players
	// still in the origin room, and the players already at the destination.
	DepartureAudience []string
	ArrivalAudience   []string
}

// Engine performs movement and room queries against authoritative storage.
// It holds no lock over residency state: each read is a fresh query and each
// write an immediate commit, so snapshots are read-committed only.
type Engine struct {
	logger *zap.Logger
	store  PlayerStore
	rooms  RoomFinder
}

// NewEngine creates a movement Engine.
//
// Precondition: logger, store, and rooms must be non-nil.
func NewEngine(logger *zap.Logger, store PlayerStore, rooms RoomFinder) *Engine {
	return &Engine{
		logger: logger,
		store:  store,
		rooms:  rooms,
	}
}

// AttemptMove validates a directional move for the player and, if legal,
// commits the new location.
//
// Postcondition: On a validation failure (unknown player, no exit) the
// returned Result has Success=false and the player's room is unchanged; a
// non-nil error is returned only for collaborator failures, which likewise
// leave the room unchanged.
func (e *Engine) AttemptMove(ctx context.Context, playerName string, dir world.Direction) (Result, error) {
	if !dir.IsValid() {
		return Result{Message: fmt.Sprintf("%q is not a direction you can move.", string(dir))}, nil
	}

	p, err := e.store.FindPlayerByName(ctx, playerName)
	if err != nil {
		return Result{}, fmt.Errorf("resolving player %q: %w", playerName, err)
	}
	if p == nil {
		return Result{Message: "player not found"}, nil
	}

	origin, err := e.rooms.FindRoom(ctx, p.RoomID)
	if err != nil {
		return Result{}, fmt.Errorf("resolving room %q: %w", p.RoomID, err)
	}
	if origin == nil {
		return Result{}, fmt.Errorf("player %q is in unknown room %q", playerName, p.RoomID)
	}

	destID := origin.NeighborID(dir)
	if destID == "" {
		return Result{Message: noExitMessage(origin, dir)}, nil
	}

	dest, err := e.rooms.FindRoom(ctx, destID)
	if err != nil {
		return Result{}, fmt.Errorf("resolving room %q: %w", destID, err)
	}
	if dest == nil {
		// The link points nowhere; reject the move rather than commit a
		// dangling room reference.
		e.logger.Warn("movement rejected: link targets unknown room",
			zap.String("player", playerName),
			zap.String("origin", origin.ID),
			zap.String("direction", string(dir)),
			zap.String("target", destID),
		)
		return Result{Message: fmt.Sprintf("The way %s is impassable.", dir)}, nil
	}

	// Occupancy as it stands immediately before the write. The mover has not
	// yet arrived, so the destination list is inclusive.
	departureAudience, err := e.occupantsExcept(ctx, origin.ID, playerName)
	if err != nil {
		return Result{}, err
	}
	arrivalAudience, err := e.occupantsExcept(ctx, dest.ID, playerName)
	if err != nil {
		return Result{}, err
	}

	if err := e.store.SetPlayerRoom(ctx, p.ID, dest.ID); err != nil {
		return Result{}, fmt.Errorf("moving player %q to %q: %w", playerName, dest.ID, err)
	}

	// Re-read both rooms after the write. Concurrent operations may land in
	// this window; the snapshots are best-effort, not serializable.
	originAfter, err := e.occupantsExcept(ctx, origin.ID, playerName)
	if err != nil {
		return Result{}, err
	}
	destAfter, err := e.occupantsExcept(ctx, dest.ID, playerName)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Success:              true,
		Message:              fmt.Sprintf("You move %s to %s.", dir, dest.Name),
		Direction:            dir,
		OriginRoom:           origin,
		DestinationRoom:      dest,
		OriginOccupants:      originAfter,
		DestinationOccupants: destAfter,
		DepartureAudience:    departureAudience,
		ArrivalAudience:      arrivalAudience,
	}, nil
}

// DescribeCurrentRoom returns the room text for the player's current location,
// with a fixed-format exits line and, when others are present, an occupant
// line excluding the asking player. State is re-read fresh on every call.
//
// Postcondition: Returns the description or a non-nil error.
func (e *Engine) DescribeCurrentRoom(ctx context.Context, playerName string) (string, error) {
	p, err := e.store.FindPlayerByName(ctx, playerName)
	if err != nil {
		return "", fmt.Errorf("resolving player %q: %w", playerName, err)
	}
	if p == nil {
		return "", fmt.Errorf("player %q not found", playerName)
	}

	room, err := e.rooms.FindRoom(ctx, p.RoomID)
	if err != nil {
		return "", fmt.Errorf("resolving room %q: %w", p.RoomID, err)
	}
	if room == nil {
		return "", fmt.Errorf("player %q is in unknown room %q", playerName, p.RoomID)
	}

	others, err := e.occupantsExcept(ctx, room.ID, playerName)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(room.Name)
	sb.WriteString("\n")
	sb.WriteString(room.Description)
	sb.WriteString("\n")
	sb.WriteString(exitsLine(room))
	if len(others) > 0 {
		sb.WriteString("\nOther players here: ")
		sb.WriteString(strings.Join(others, ", "))
		sb.WriteString(".")
	}
	return sb.String(), nil
}

// LookDirection reports what the player sees one room away in the given
// direction. This is a query only; it never mutates state.
//
// Postcondition: Returns the neighbor's name, description, and occupancy, or
// the fixed cannot-see message when there is no exit that way.
func (e *Engine) LookDirection(ctx context.Context, playerName string, dir world.Direction) (string, error) {
	p, err := e.store.FindPlayerByName(ctx, playerName)
	if err != nil {
		return "", fmt.Errorf("resolving player %q: %w", playerName, err)
	}
	if p == nil {
		return "", fmt.Errorf("player %q not found", playerName)
	}

	room, err := e.rooms.FindRoom(ctx, p.RoomID)
	if err != nil {
		return "", fmt.Errorf("resolving room %q: %w", p.RoomID, err)
	}
	if room == nil {
		return "", fmt.Errorf("player %q is in unknown room %q", playerName, p.RoomID)
	}

	if !dir.IsValid() {
		return "You cannot see anything that way.", nil
	}
	destID := room.NeighborID(dir)
	if destID == "" {
		return "You cannot see anything that way.", nil
	}

	dest, err := e.rooms.FindRoom(ctx, destID)
	if err != nil {
		return "", fmt.Errorf("resolving room %q: %w", destID, err)
	}
	if dest == nil {
		return "You cannot see anything that way.", nil
	}

	// The looking player is never physically in the target room, so the
	// occupancy list is not filtered.
	occupants, err := e.listSorted(ctx, dest.ID)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "To the %s you see %s.", dir, dest.Name)
	if dest.Description != "" {
		sb.WriteString("\n")
		sb.WriteString(dest.Description)
	}
	if len(occupants) > 0 {
		sb.WriteString("\nPlayers there: ")
		sb.WriteString(strings.Join(occupants, ", "))
		sb.WriteString(".")
	}
	return sb.String(), nil
}

func (e *Engine) listSorted(ctx context.Context, roomID string) ([]string, error) {
	names, err := e.store.ListOnlinePlayersInRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("listing occupants of room %q: %w", roomID, err)
	}
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)
	return sorted, nil
}

func (e *Engine) occupantsExcept(ctx context.Context, roomID, excludeName string) ([]string, error) {
	names, err := e.listSorted(ctx, roomID)
	if err != nil {
		return nil, err
	}
	out := names[:0]
	for _, name := range names {
		if name != excludeName {
			out = append(out, name)
		}
	}
	return out, nil
}

// noExitMessage enumerates the room's currently valid directions in fixed
// N/S/E/W order, or states there are none.
func noExitMessage(room *world.Room, dir world.Direction) string {
	exits := room.Exits()
	if len(exits) == 0 {
		return fmt.Sprintf("You can't go %s. There are no obvious exits.", dir)
	}
	names := make([]string, len(exits))
	for i, e := range exits {
		names[i] = string(e)
	}
	return fmt.Sprintf("You can't go %s. Obvious exits: %s.", dir, strings.Join(names, ", "))
}

// exitsLine formats the fixed exits line for room descriptions.
func exitsLine(room *world.Room) string {
	exits := room.Exits()
	if len(exits) == 0 {
		return "There are no obvious exits."
	}
	names := make([]string, len(exits))
	for i, e := range exits {
		names[i] = string(e)
	}
	return fmt.Sprintf("Obvious exits: %s.", strings.Join(names, ", "))
}
