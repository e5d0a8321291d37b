package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/rockfordlhotka/Mordecai/internal/game/player"
)

// ErrPlayerNotFound is returned when an operation targets a missing player row.
var ErrPlayerNotFound = errors.New("player not found")

// ErrPlayerNameTaken is returned when creating a player with a name already in use.
var ErrPlayerNameTaken = errors.New("player name already taken")

// ErrInvalidCredentials is returned when authentication fails.
var ErrInvalidCredentials = errors.New("invalid credentials")

// PlayerRepository provides player persistence operations. It holds no cache:
// every read queries the database so callers always observe the latest
// committed writes.
type PlayerRepository struct {
	db *pgxpool.Pool
}

// NewPlayerRepository creates a PlayerRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewPlayerRepository(db *pgxpool.Pool) *PlayerRepository {
	return &PlayerRepository{db: db}
}

// FindPlayerByName returns the player record for the given display name.
//
// Postcondition: Returns (player, nil) if found, or (nil, nil) if absent.
func (r *PlayerRepository) FindPlayerByName(ctx context.Context, name string) (*player.Player, error) {
	var p player.Player
	err := r.db.QueryRow(ctx, `
		SELECT id, name, COALESCE(room_id, ''), online, created_at, updated_at
		FROM players WHERE name = $1`,
		name,
	).Scan(&p.ID, &p.Name, &p.RoomID, &p.Online, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying player: %w", err)
	}
	return &p, nil
}

// CreatePlayer inserts a new player placed in the given initial room. The
// database assigns the identity before any dependent record can reference it.
//
// Precondition: name must be non-empty; initialRoomID must be a known room.
// Postcondition: Returns the created player with ID set, or ErrPlayerNameTaken
// on duplicate name.
func (r *PlayerRepository) CreatePlayer(ctx context.Context, name, initialRoomID string) (*player.Player, error) {
	var p player.Player
	err := r.db.QueryRow(ctx, `
		INSERT INTO players (name, room_id)
		VALUES ($1, $2)
		RETURNING id, name, COALESCE(room_id, ''), online, created_at, updated_at`,
		name, initialRoomID,
	).Scan(&p.ID, &p.Name, &p.RoomID, &p.Online, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrPlayerNameTaken
		}
		return nil, fmt.Errorf("inserting player: %w", err)
	}
	return &p, nil
}

// CreatePlayerWithPassword inserts a new player with a bcrypt-hashed password.
//
// Precondition: name and password must be non-empty.
// Postcondition: Returns the created player, or ErrPlayerNameTaken on duplicate.
func (r *PlayerRepository) CreatePlayerWithPassword(ctx context.Context, name, password, initialRoomID string) (*player.Player, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	var p player.Player
	err = r.db.QueryRow(ctx, `
		INSERT INTO players (name, password_hash, room_id)
		VALUES ($1, $2, $3)
		RETURNING id, name, COALESCE(room_id, ''), online, created_at, updated_at`,
		name, string(hash), initialRoomID,
	).Scan(&p.ID, &p.Name, &p.RoomID, &p.Online, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrPlayerNameTaken
		}
		return nil, fmt.Errorf("inserting player: %w", err)
	}
	return &p, nil
}

// Authenticate verifies credentials and returns the matching player.
//
// Precondition: name and password must be non-empty.
// Postcondition: Returns the player if credentials are valid,
// ErrPlayerNotFound if the name doesn't exist, or ErrInvalidCredentials if
// the password is wrong or the player has no password set.
func (r *PlayerRepository) Authenticate(ctx context.Context, name, password string) (*player.Player, error) {
	var p player.Player
	var hash *string
	err := r.db.QueryRow(ctx, `
		SELECT id, name, COALESCE(room_id, ''), online, password_hash, created_at, updated_at
		FROM players WHERE name = $1`,
		name,
	).Scan(&p.ID, &p.Name, &p.RoomID, &p.Online, &hash, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("querying player: %w", err)
	}

	if hash == nil || bcrypt.CompareHashAndPassword([]byte(*hash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return &p, nil
}

// SetPlayerRoom commits the player's new room immediately.
//
// Precondition: playerID must be > 0.
// Postcondition: Returns nil on success, ErrPlayerNotFound if no row updated.
func (r *PlayerRepository) SetPlayerRoom(ctx context.Context, playerID int64, roomID string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE players SET room_id = $2, updated_at = NOW()
		WHERE id = $1`,
		playerID, roomID,
	)
	if err != nil {
		return fmt.Errorf("updating player room: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPlayerNotFound
	}
	return nil
}

// SetPlayerOnline updates the player's online flag.
//
// Precondition: playerID must be > 0.
// Postcondition: Returns nil on success, ErrPlayerNotFound if no row updated.
func (r *PlayerRepository) SetPlayerOnline(ctx context.Context, playerID int64, online bool) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE players SET online = $2, updated_at = NOW()
		WHERE id = $1`,
		playerID, online,
	)
	if err != nil {
		return fmt.Errorf("updating player online flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPlayerNotFound
	}
	return nil
}

// ListOnlinePlayersInRoom returns the names of online players resident in the
// room, ordered by name. The result reflects the latest committed writes at
// call time; nothing is cached across calls.
//
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *PlayerRepository) ListOnlinePlayersInRoom(ctx context.Context, roomID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT name FROM players
		WHERE online = TRUE AND room_id = $1
		ORDER BY name ASC`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing online players: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning player name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
