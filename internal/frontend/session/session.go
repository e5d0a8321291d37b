// Package session drives one player's Telnet session: login, the command
// loop, and rendering of game messages back to the client.
package session

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rockfordlhotka/Mordecai/internal/frontend/telnet"
	"github.com/rockfordlhotka/Mordecai/internal/game/message"
	"github.com/rockfordlhotka/Mordecai/internal/game/movement"
	"github.com/rockfordlhotka/Mordecai/internal/game/presence"
	"github.com/rockfordlhotka/Mordecai/internal/game/world"
)

const (
	banner      = "Welcome, traveler. This is Mordecai."
	maxNameLen  = 32
	maxAttempts = 3
)

// GameCore is the slice of the game facade a session needs.
type GameCore interface {
	Connect(ctx context.Context, playerName string, deliver presence.DeliverFunc) (string, error)
	ConnectAuthenticated(ctx context.Context, playerName, password string, deliver presence.DeliverFunc) (string, error)
	Disconnect(ctx context.Context, connID string)
	SendChat(ctx context.Context, connID, text string) error
	Move(ctx context.Context, connID string, dir world.Direction) (movement.Result, error)
	Look(ctx context.Context, playerName string) (string, error)
	LookDirection(ctx context.Context, playerName string, dir world.Direction) (string, error)
	GetOnlinePlayers() []string
}

// Handler connects Telnet sessions to the game core.
type Handler struct {
	logger *zap.Logger
	core   GameCore
}

// NewHandler creates a session Handler.
//
// Precondition: logger and core must be non-nil.
func NewHandler(logger *zap.Logger, core GameCore) *Handler {
	return &Handler{logger: logger, core: core}
}

// HandleSession runs the login flow and then the command loop until the
// client disconnects, quits, or the context is cancelled.
func (h *Handler) HandleSession(ctx context.Context, conn *telnet.Conn) error {
	if err := conn.WriteLine(banner); err != nil {
		return err
	}

	name, password, err := h.login(conn)
	if err != nil {
		return err
	}

	deliver := func(msg message.Message) {
		for _, line := range RenderLines(msg) {
			if err := conn.WriteLine(line); err != nil {
				return
			}
		}
	}

	var connID string
	if password == "" {
		connID, err = h.core.Connect(ctx, name, deliver)
	} else {
		connID, err = h.core.ConnectAuthenticated(ctx, name, password, deliver)
	}
	if err != nil {
		h.logger.Warn("login rejected", zap.String("player", name), zap.Error(err))
		_ = conn.WriteLine("That name and password do not match.")
		return fmt.Errorf("connecting %q: %w", name, err)
	}
	defer h.core.Disconnect(context.WithoutCancel(ctx), connID)

	return h.commandLoop(ctx, conn, connID, name)
}

// login prompts for a name and password. An empty password means a guest
// login with no stored credentials.
func (h *Handler) login(conn *telnet.Conn) (name, password string, err error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := conn.WritePrompt("By what name are you known? "); err != nil {
			return "", "", err
		}
		line, err := conn.ReadLine()
		if err != nil {
			return "", "", err
		}
		name = strings.TrimSpace(line)
		if name == "" || len(name) > maxNameLen {
			if err := conn.WriteLine(fmt.Sprintf("Names are 1 to %d characters.", maxNameLen)); err != nil {
				return "", "", err
			}
			continue
		}

		if err := conn.WritePrompt("Password (blank to play as a guest): "); err != nil {
			return "", "", err
		}
		password, err = conn.ReadPassword()
		if err != nil {
			return "", "", err
		}
		return name, strings.TrimSpace(password), nil
	}
	_ = conn.WriteLine("Too many attempts.")
	return "", "", fmt.Errorf("login abandoned after %d attempts", maxAttempts)
}

func (h *Handler) commandLoop(ctx context.Context, conn *telnet.Conn, connID, name string) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line, err := conn.ReadLine()
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		verb, rest := splitCommand(line)
		switch verb {
		case "quit", "exit":
			_ = conn.WriteLine("Farewell.")
			return nil

		case "say", "'":
			if err := h.core.SendChat(ctx, connID, rest); err != nil {
				_ = conn.WriteLine("Say what?")
			}

		case "north", "south", "east", "west", "n", "s", "e", "w":
			dir, _ := world.ParseDirection(verb)
			if _, err := h.core.Move(ctx, connID, dir); err != nil {
				h.logger.Error("move failed", zap.String("player", name), zap.Error(err))
				_ = conn.WriteLine("Something went wrong.")
			}

		case "look", "l":
			h.handleLook(ctx, conn, name, rest)

		case "who":
			online := h.core.GetOnlinePlayers()
			_ = conn.WriteLine(fmt.Sprintf("Online (%d): %s", len(online), strings.Join(online, ", ")))

		case "help":
			for _, line := range helpText {
				if err := conn.WriteLine(line); err != nil {
					return err
				}
			}

		default:
			_ = conn.WriteLine(fmt.Sprintf("Unknown command %q. Try \"help\".", verb))
		}
	}
}

func (h *Handler) handleLook(ctx context.Context, conn *telnet.Conn, name, rest string) {
	var (
		text string
		err  error
	)
	if rest == "" {
		text, err = h.core.Look(ctx, name)
	} else {
		dir, ok := world.ParseDirection(strings.ToLower(rest))
		if !ok {
			_ = conn.WriteLine("You cannot see anything that way.")
			return
		}
		text, err = h.core.LookDirection(ctx, name, dir)
	}
	if err != nil {
		h.logger.Error("look failed", zap.String("player", name), zap.Error(err))
		_ = conn.WriteLine("Something went wrong.")
		return
	}
	for _, line := range strings.Split(text, "\n") {
		if werr := conn.WriteLine(line); werr != nil {
			return
		}
	}
}

// splitCommand separates the verb from its argument text. A leading
// apostrophe is the classic say shorthand.
func splitCommand(line string) (verb, rest string) {
	if strings.HasPrefix(line, "'") {
		return "'", strings.TrimSpace(line[1:])
	}
	verb, rest, _ = strings.Cut(line, " ")
	return strings.ToLower(verb), strings.TrimSpace(rest)
}

var helpText = []string{
	"Commands:",
	"  say <text> (or '<text>)  speak to everyone",
	"  north/south/east/west    move (n/s/e/w work too)",
	"  look [direction]         describe your room or peer one room away",
	"  who                      list connected players",
	"  quit                     leave the world",
}
