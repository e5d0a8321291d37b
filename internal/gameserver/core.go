// Package gameserver composes the presence, broadcast, and movement
// subsystems into the operations exposed to the command-dispatch layer.
package gameserver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/rockfordlhotka/Mordecai/internal/game/broadcast"
	"github.com/rockfordlhotka/Mordecai/internal/game/message"
	"github.com/rockfordlhotka/Mordecai/internal/game/movement"
	"github.com/rockfordlhotka/Mordecai/internal/game/player"
	"github.com/rockfordlhotka/Mordecai/internal/game/presence"
	"github.com/rockfordlhotka/Mordecai/internal/game/world"
)

// PlayerStore is the authoritative player storage consumed by the core.
type PlayerStore interface {
	// FindPlayerByName returns the player record, or (nil, nil) when absent.
	FindPlayerByName(ctx context.Context, name string) (*player.Player, error)
	// CreatePlayer inserts a new player with its identity assigned before return.
	CreatePlayer(ctx context.Context, name, initialRoomID string) (*player.Player, error)
	// CreatePlayerWithPassword inserts a new player with hashed credentials.
	CreatePlayerWithPassword(ctx context.Context, name, password, initialRoomID string) (*player.Player, error)
	// Authenticate verifies credentials and returns the matching player.
	Authenticate(ctx context.Context, name, password string) (*player.Player, error)
	// SetPlayerOnline updates the player's online flag.
	SetPlayerOnline(ctx context.Context, playerID int64, online bool) error
}

// MessageStore persists durable copies of broadcast messages. May be nil, in
// which case no durable copies are written.
type MessageStore interface {
	AppendChatMessage(ctx context.Context, msg message.Message, playerID *int64, roomID *string) error
}

// Core wires the game subsystems together behind the exposed operations:
// Connect, Disconnect, SendChat, Move, Look, LookDirection, GetOnlinePlayers.
type Core struct {
	logger      *zap.Logger
	registry    *presence.Registry
	history     *message.History
	broadcaster *broadcast.Broadcaster
	engine      *movement.Engine
	store       PlayerStore
	messages    MessageStore
	startRoomID string
	replayCount int
}

// NewCore creates a Core.
//
// Precondition: logger, registry, history, broadcaster, engine, and store
// must be non-nil; messages may be nil; startRoomID must be a known room;
// replayCount must be >= 0.
func NewCore(
	logger *zap.Logger,
	registry *presence.Registry,
	history *message.History,
	broadcaster *broadcast.Broadcaster,
	engine *movement.Engine,
	store PlayerStore,
	messages MessageStore,
	startRoomID string,
	replayCount int,
) *Core {
	return &Core{
		logger:      logger,
		registry:    registry,
		history:     history,
		broadcaster: broadcaster,
		engine:      engine,
		store:       store,
		messages:    messages,
		startRoomID: startRoomID,
		replayCount: replayCount,
	}
}

// Connect binds a player to a new connection, finding or creating the player
// record, marking it online, replaying recent public history, and announcing
// the arrival to everyone else.
//
// Precondition: playerName must be non-empty; deliver must be non-nil.
// Postcondition: Returns the new connection identity or a non-nil error.
func (c *Core) Connect(ctx context.Context, playerName string, deliver presence.DeliverFunc) (string, error) {
	p, err := c.store.FindPlayerByName(ctx, playerName)
	if err != nil {
		return "", fmt.Errorf("resolving player %q: %w", playerName, err)
	}
	if p == nil {
		p, err = c.store.CreatePlayer(ctx, playerName, c.startRoomID)
		if err != nil {
			return "", fmt.Errorf("creating player %q: %w", playerName, err)
		}
		c.logger.Info("player created",
			zap.String("player", playerName),
			zap.String("room", c.startRoomID),
		)
	}

	return c.finishConnect(ctx, p, deliver)
}

// ConnectAuthenticated is Connect with credential verification. An unknown
// name registers a new player with the given password; a known name must
// present the matching password.
//
// Postcondition: Returns the new connection identity, or a non-nil error on
// bad credentials or collaborator failure.
func (c *Core) ConnectAuthenticated(ctx context.Context, playerName, password string, deliver presence.DeliverFunc) (string, error) {
	p, err := c.store.Authenticate(ctx, playerName, password)
	if err != nil {
		existing, ferr := c.store.FindPlayerByName(ctx, playerName)
		if ferr != nil {
			return "", fmt.Errorf("resolving player %q: %w", playerName, ferr)
		}
		if existing != nil {
			return "", fmt.Errorf("authenticating player %q: %w", playerName, err)
		}
		p, err = c.store.CreatePlayerWithPassword(ctx, playerName, password, c.startRoomID)
		if err != nil {
			return "", fmt.Errorf("creating player %q: %w", playerName, err)
		}
		c.logger.Info("player registered",
			zap.String("player", playerName),
			zap.String("room", c.startRoomID),
		)
	}

	return c.finishConnect(ctx, p, deliver)
}

func (c *Core) finishConnect(ctx context.Context, p *player.Player, deliver presence.DeliverFunc) (string, error) {
	if err := c.store.SetPlayerOnline(ctx, p.ID, true); err != nil {
		return "", fmt.Errorf("marking player %q online: %w", p.Name, err)
	}

	connID := c.registry.Register(p.Name, deliver)

	welcome := message.New(message.KindGameResponse, message.AuthorGame,
		fmt.Sprintf("Welcome to Mordecai, %s.", p.Name))
	if err := c.broadcaster.DeliverToOne(connID, welcome); err != nil {
		c.logger.Warn("welcome not delivered", zap.String("player", p.Name), zap.Error(err))
	}

	// Replay recent public context. Private kinds stay private.
	tail := c.history.RecentTail(c.replayCount)
	replay := make([]message.Message, 0, len(tail))
	for _, msg := range tail {
		if !msg.Private() {
			replay = append(replay, msg)
		}
	}
	if err := c.broadcaster.Replay(connID, replay); err != nil {
		c.logger.Warn("history replay incomplete",
			zap.String("player", p.Name),
			zap.Error(err),
		)
	}

	if text, err := c.engine.DescribeCurrentRoom(ctx, p.Name); err == nil {
		if derr := c.broadcaster.DeliverToOne(connID, message.New(message.KindDescription, message.AuthorGame, text)); derr != nil {
			c.logger.Warn("room description not delivered", zap.String("player", p.Name), zap.Error(derr))
		}
	} else {
		c.logger.Warn("describing room at connect", zap.String("player", p.Name), zap.Error(err))
	}

	c.broadcaster.Deliver(
		message.New(message.KindSystem, message.AuthorSystem,
			fmt.Sprintf("%s has entered the world.", p.Name)).WithOrigin(connID),
		connID,
	)

	c.logger.Info("player connected",
		zap.String("player", p.Name),
		zap.String("conn_id", connID),
	)
	return connID, nil
}

// Disconnect removes the connection and, if it was live, marks the player
// offline and announces the departure. Unknown identities are a no-op.
func (c *Core) Disconnect(ctx context.Context, connID string) {
	playerName, ok := c.registry.Lookup(connID)
	if !ok {
		return
	}
	c.registry.Unregister(connID)

	if p, err := c.store.FindPlayerByName(ctx, playerName); err != nil {
		c.logger.Error("resolving player at disconnect",
			zap.String("player", playerName),
			zap.Error(err),
		)
	} else if p != nil {
		if err := c.store.SetPlayerOnline(ctx, p.ID, false); err != nil {
			c.logger.Error("marking player offline",
				zap.String("player", playerName),
				zap.Error(err),
			)
		}
	}

	c.broadcaster.Deliver(
		message.New(message.KindSystem, message.AuthorSystem,
			fmt.Sprintf("%s has left the world.", playerName)),
		"",
	)
	c.logger.Info("player disconnected",
		zap.String("player", playerName),
		zap.String("conn_id", connID),
	)
}

// SendChat broadcasts a chat line from the connection to everyone else and
// echoes it back to the sender. The echo and the broadcast are two separate
// durable messages; the sender sees the echo only.
//
// Postcondition: Returns a non-nil error if the connection is unknown or the
// text is empty after trimming.
func (c *Core) SendChat(ctx context.Context, connID, text string) error {
	playerName, ok := c.registry.Lookup(connID)
	if !ok {
		return fmt.Errorf("connection %q not registered", connID)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("empty chat message")
	}

	echo := message.New(message.KindUserEcho, playerName,
		fmt.Sprintf("You say, %q", text)).WithOrigin(connID)
	if err := c.broadcaster.DeliverToOne(connID, echo); err != nil {
		c.logger.Warn("chat echo not delivered", zap.String("player", playerName), zap.Error(err))
	}

	chat := message.New(message.KindChat, playerName,
		fmt.Sprintf("%s says, %q", playerName, text)).WithOrigin(connID)
	c.broadcaster.Deliver(chat, connID)

	c.persistChat(ctx, chat, playerName)
	return nil
}

// persistChat stores a durable copy of a broadcast message. Failures are
// logged; they never unwind the already-delivered broadcast.
func (c *Core) persistChat(ctx context.Context, msg message.Message, playerName string) {
	if c.messages == nil {
		return
	}

	var playerID *int64
	var roomID *string
	if p, err := c.store.FindPlayerByName(ctx, playerName); err == nil && p != nil {
		playerID = &p.ID
		if p.RoomID != "" {
			roomID = &p.RoomID
		}
	}

	if err := c.messages.AppendChatMessage(ctx, msg, playerID, roomID); err != nil {
		c.logger.Error("persisting chat message",
			zap.String("player", playerName),
			zap.Error(err),
		)
	}
}

// Move runs a movement attempt for the connection's player and dispatches the
// resulting notifications: a private outcome to the mover, a departure line
// to the origin room, and an arrival line to the destination room.
//
// Postcondition: Returns the movement result; a non-nil error indicates a
// collaborator failure, never a validation failure.
func (c *Core) Move(ctx context.Context, connID string, dir world.Direction) (movement.Result, error) {
	playerName, ok := c.registry.Lookup(connID)
	if !ok {
		return movement.Result{}, fmt.Errorf("connection %q not registered", connID)
	}

	res, err := c.engine.AttemptMove(ctx, playerName, dir)
	if err != nil {
		c.logger.Error("movement failed",
			zap.String("player", playerName),
			zap.String("direction", string(dir)),
			zap.Error(err),
		)
		return movement.Result{}, err
	}

	if !res.Success {
		if derr := c.broadcaster.DeliverToOne(connID, message.New(message.KindError, message.AuthorGame, res.Message).WithOrigin(connID)); derr != nil {
			c.logger.Warn("move rejection not delivered", zap.String("player", playerName), zap.Error(derr))
		}
		return res, nil
	}

	if derr := c.broadcaster.DeliverToOne(connID, message.New(message.KindGameResponse, message.AuthorGame, res.Message).WithOrigin(connID)); derr != nil {
		c.logger.Warn("move outcome not delivered", zap.String("player", playerName), zap.Error(derr))
	}

	departure := message.New(message.KindAction, playerName,
		fmt.Sprintf("%s leaves %s.", playerName, res.Direction)).WithOrigin(connID)
	c.broadcaster.DeliverToSet(c.connIDsFor(res.DepartureAudience), departure)

	arrival := message.New(message.KindAction, playerName,
		fmt.Sprintf("%s arrives from the %s.", playerName, res.Direction.Opposite())).WithOrigin(connID)
	c.broadcaster.DeliverToSet(c.connIDsFor(res.ArrivalAudience), arrival)

	return res, nil
}

// connIDsFor resolves player names to their live connection identities,
// dropping names that are no longer connected.
func (c *Core) connIDsFor(names []string) []string {
	ids := make([]string, 0, len(names))
	for _, name := range names {
		if connID, ok := c.registry.ConnectionByName(name); ok {
			ids = append(ids, connID)
		}
	}
	return ids
}

// Look returns the player's current room description with exits and occupants.
func (c *Core) Look(ctx context.Context, playerName string) (string, error) {
	return c.engine.DescribeCurrentRoom(ctx, playerName)
}

// LookDirection reports what the player sees one room away.
func (c *Core) LookDirection(ctx context.Context, playerName string, dir world.Direction) (string, error) {
	return c.engine.LookDirection(ctx, playerName, dir)
}

// GetOnlinePlayers returns the connected player names, sorted.
func (c *Core) GetOnlinePlayers() []string {
	names := c.registry.ListOnlinePlayerNames()
	sort.Strings(names)
	return names
}
