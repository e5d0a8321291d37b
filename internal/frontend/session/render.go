package session

import (
	"strings"

	"github.com/rockfordlhotka/Mordecai/internal/game/message"
)

// ANSI styling for message kinds.
const (
	ansiReset  = "\033[0m"
	ansiDim    = "\033[2m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
)

var kindStyles = map[message.Kind]string{
	message.KindChat:       ansiCyan,
	message.KindSystem:     ansiYellow,
	message.KindAtmosphere: ansiGreen,
	message.KindAction:     ansiYellow,
	message.KindError:      ansiRed,
	message.KindUserEcho:   ansiDim,
}

// RenderLines converts a game message into the styled lines sent to a client.
// Multi-line content becomes one styled line per row so the Telnet layer can
// apply its own line endings.
func RenderLines(msg message.Message) []string {
	style := kindStyles[msg.Kind]
	rows := strings.Split(msg.Content, "\n")
	lines := make([]string, len(rows))
	for i, row := range rows {
		if style == "" {
			lines[i] = row
			continue
		}
		lines[i] = style + row + ansiReset
	}
	return lines
}
