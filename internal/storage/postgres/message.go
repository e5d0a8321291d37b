package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rockfordlhotka/Mordecai/internal/game/message"
)

// MessageRepository persists durable copies of broadcast messages.
type MessageRepository struct {
	db *pgxpool.Pool
}

// NewMessageRepository creates a MessageRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// AppendChatMessage stores a durable copy of a broadcast message. A failure
// here is reported to the caller but must not unwind an already-delivered
// broadcast.
//
// Precondition: msg.Content must be non-empty.
// Postcondition: Returns nil on success or a non-nil error.
func (r *MessageRepository) AppendChatMessage(ctx context.Context, msg message.Message, playerID *int64, roomID *string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO messages (kind, author, content, player_id, room_id, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(msg.Kind), msg.Author, msg.Content, playerID, roomID, msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

// RecentMessages returns the most recent n durable messages, oldest first.
//
// Precondition: n must be > 0.
// Postcondition: Returns at most n messages or a non-nil error.
func (r *MessageRepository) RecentMessages(ctx context.Context, n int) ([]message.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT kind, author, content, sent_at
		FROM (
			SELECT kind, author, content, sent_at, id
			FROM messages ORDER BY id DESC LIMIT $1
		) tail ORDER BY id ASC`,
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]message.Message, 0, n)
	for rows.Next() {
		var msg message.Message
		var kind string
		if err := rows.Scan(&kind, &msg.Author, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		msg.Kind = message.Kind(kind)
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}
