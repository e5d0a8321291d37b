// Package message defines the game message model and the bounded in-memory
// history of recently broadcast messages.
package message

import "time"

// Kind classifies a game message for rendering and replay scoping.
type Kind string

// Message kinds.
const (
	KindChat         Kind = "chat"
	KindSystem       Kind = "system"
	KindUserEcho     Kind = "user_echo"
	KindGameResponse Kind = "game_response"
	KindDescription  Kind = "description"
	KindAction       Kind = "action"
	KindError        Kind = "error"
	KindAtmosphere   Kind = "atmosphere"
)

// Synthetic author labels for messages not authored by a player.
const (
	AuthorSystem = "System"
	AuthorNature = "Nature"
	AuthorGame   = "Game"
)

// MaxContentLength bounds message content; longer content is truncated.
const MaxContentLength = 2000

// Message is one game message as delivered to connections.
type Message struct {
	// Kind classifies the message.
	Kind Kind
	// Content is the message text, at most MaxContentLength runes.
	Content string
	// Timestamp records when the message was created.
	Timestamp time.Time
	// Author is the player display name or a synthetic label such as "Nature".
	Author string
	// OriginConnectionID is the connection that produced the message, if any.
	// Used for exclusion and player-scoping, never for display.
	OriginConnectionID string
}

// New creates a message with the current timestamp, truncating over-long content.
//
// Postcondition: Returns a Message whose Content is at most MaxContentLength runes.
func New(kind Kind, author, content string) Message {
	if runes := []rune(content); len(runes) > MaxContentLength {
		content = string(runes[:MaxContentLength])
	}
	return Message{
		Kind:      kind,
		Content:   content,
		Timestamp: time.Now(),
		Author:    author,
	}
}

// WithOrigin returns a copy of the message tagged with the originating connection.
func (m Message) WithOrigin(connID string) Message {
	m.OriginConnectionID = connID
	return m
}

// Private reports whether the message is scoped to its originating connection
// and must not be replayed to other players.
func (m Message) Private() bool {
	switch m.Kind {
	case KindUserEcho, KindGameResponse, KindDescription, KindError:
		return true
	}
	return false
}
