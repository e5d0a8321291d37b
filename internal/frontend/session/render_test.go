package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rockfordlhotka/Mordecai/internal/game/message"
)

func TestRenderLines_StylesByKind(t *testing.T) {
	msg := message.New(message.KindChat, "Bob", `Bob says, "hi"`)
	lines := RenderLines(msg)
	assert.Equal(t, []string{ansiCyan + `Bob says, "hi"` + ansiReset}, lines)
}

func TestRenderLines_UnstyledKindPassesThrough(t *testing.T) {
	msg := message.New(message.KindDescription, message.AuthorGame, "Town Square")
	assert.Equal(t, []string{"Town Square"}, RenderLines(msg))
}

func TestRenderLines_SplitsMultilineContent(t *testing.T) {
	msg := message.New(message.KindDescription, message.AuthorGame, "Town Square\nA broad square.\nObvious exits: north.")
	lines := RenderLines(msg)
	assert.Equal(t, []string{"Town Square", "A broad square.", "Obvious exits: north."}, lines)
}

func TestRenderLines_ErrorIsRed(t *testing.T) {
	msg := message.New(message.KindError, message.AuthorGame, "You can't go west. There are no obvious exits.")
	lines := RenderLines(msg)
	assert.Equal(t, []string{ansiRed + "You can't go west. There are no obvious exits." + ansiReset}, lines)
}
