package session

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rockfordlhotka/Mordecai/internal/frontend/telnet"
	"github.com/rockfordlhotka/Mordecai/internal/game/message"
	"github.com/rockfordlhotka/Mordecai/internal/game/movement"
	"github.com/rockfordlhotka/Mordecai/internal/game/presence"
	"github.com/rockfordlhotka/Mordecai/internal/game/world"
)

type fakeCore struct {
	mu            sync.Mutex
	connectName   string
	authName      string
	authPassword  string
	authErr       error
	deliver       presence.DeliverFunc
	chats         []string
	moves         []world.Direction
	looks         int
	lookDirs      []world.Direction
	disconnected  bool
	onlinePlayers []string
}

func (f *fakeCore) Connect(_ context.Context, playerName string, deliver presence.DeliverFunc) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectName = playerName
	f.deliver = deliver
	return "conn-1", nil
}

func (f *fakeCore) ConnectAuthenticated(_ context.Context, playerName, password string, deliver presence.DeliverFunc) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authName = playerName
	f.authPassword = password
	f.deliver = deliver
	if f.authErr != nil {
		return "", f.authErr
	}
	return "conn-1", nil
}

func (f *fakeCore) Disconnect(_ context.Context, connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
}

func (f *fakeCore) SendChat(_ context.Context, connID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if text == "" {
		return fmt.Errorf("empty chat message")
	}
	f.chats = append(f.chats, text)
	return nil
}

func (f *fakeCore) Move(_ context.Context, connID string, dir world.Direction) (movement.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves = append(f.moves, dir)
	return movement.Result{Success: true}, nil
}

func (f *fakeCore) Look(_ context.Context, playerName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.looks++
	return "Town Square\nA broad cobbled square.", nil
}

func (f *fakeCore) LookDirection(_ context.Context, playerName string, dir world.Direction) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookDirs = append(f.lookDirs, dir)
	return "To the north you see Moonlit Garden.", nil
}

func (f *fakeCore) GetOnlinePlayers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.onlinePlayers
}

// runSession feeds the input script through a loopback TCP connection and
// returns everything the handler wrote.
func runSession(t *testing.T, core GameCore, input string) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := listener.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	client, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	var server net.Conn
	select {
	case server = <-accepted:
	case <-time.After(time.Second):
		t.Fatal("no connection accepted")
	}
	defer server.Close()

	handler := NewHandler(zap.NewNop(), core)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer server.Close()
		_ = handler.HandleSession(context.Background(), telnet.NewConn(server, 2*time.Second, 2*time.Second))
	}()

	_, err = client.Write([]byte(input))
	require.NoError(t, err)

	_ = client.SetReadDeadline(time.Now().Add(3 * time.Second))
	out, _ := io.ReadAll(client)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("session did not finish")
	}
	return string(out)
}

func TestHandleSession_GuestPlaysAndQuits(t *testing.T) {
	core := &fakeCore{onlinePlayers: []string{"Alice", "Bob"}}

	out := runSession(t, core,
		"Alice\r\n"+ // name
			"\r\n"+ // blank password, guest login
			"say hello there\r\n"+
			"n\r\n"+
			"look\r\n"+
			"look north\r\n"+
			"who\r\n"+
			"quit\r\n")

	assert.Equal(t, "Alice", core.connectName)
	assert.Empty(t, core.authName, "guest login must not hit the authenticated path")
	assert.Equal(t, []string{"hello there"}, core.chats)
	assert.Equal(t, []world.Direction{world.North}, core.moves)
	assert.Equal(t, 1, core.looks)
	assert.Equal(t, []world.Direction{world.North}, core.lookDirs)
	assert.True(t, core.disconnected)

	assert.Contains(t, out, "Town Square")
	assert.Contains(t, out, "Online (2): Alice, Bob")
	assert.Contains(t, out, "Farewell.")
}

func TestHandleSession_PasswordLogin(t *testing.T) {
	core := &fakeCore{}

	runSession(t, core,
		"Alice\r\n"+
			"hunter2\r\n"+
			"quit\r\n")

	assert.Equal(t, "Alice", core.authName)
	assert.Equal(t, "hunter2", core.authPassword)
	assert.Empty(t, core.connectName)
	assert.True(t, core.disconnected)
}

func TestHandleSession_BadCredentialsEndsSession(t *testing.T) {
	core := &fakeCore{authErr: fmt.Errorf("invalid credentials")}

	out := runSession(t, core,
		"Alice\r\n"+
			"wrong\r\n")

	assert.Contains(t, out, "That name and password do not match.")
	assert.False(t, core.disconnected, "never connected, nothing to disconnect")
}

func TestHandleSession_SayShorthand(t *testing.T) {
	core := &fakeCore{}

	runSession(t, core,
		"Alice\r\n"+
			"\r\n"+
			"'well met\r\n"+
			"quit\r\n")

	assert.Equal(t, []string{"well met"}, core.chats)
}

func TestHandleSession_UnknownCommand(t *testing.T) {
	core := &fakeCore{}

	out := runSession(t, core,
		"Alice\r\n"+
			"\r\n"+
			"dance\r\n"+
			"quit\r\n")

	assert.Contains(t, out, `Unknown command "dance".`)
}

func TestHandleSession_RejectsOverlongName(t *testing.T) {
	core := &fakeCore{}

	long := make([]byte, 40)
	for i := range long {
		long[i] = 'a'
	}
	out := runSession(t, core,
		string(long)+"\r\n"+
			"Alice\r\n"+
			"\r\n"+
			"quit\r\n")

	assert.Contains(t, out, "Names are 1 to 32 characters.")
	assert.Equal(t, "Alice", core.connectName)
}

func TestHandleSession_DeliveredMessagesAreRendered(t *testing.T) {
	core := &fakeCore{}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, aerr := listener.Accept()
		if aerr == nil {
			accepted <- c
		}
	}()

	client, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	server := <-accepted
	defer server.Close()

	handler := NewHandler(zap.NewNop(), core)
	go func() {
		defer server.Close()
		_ = handler.HandleSession(context.Background(), telnet.NewConn(server, 2*time.Second, 2*time.Second))
	}()

	_, err = client.Write([]byte("Alice\r\n\r\n"))
	require.NoError(t, err)

	// Wait for the login to complete and the deliver func to be captured.
	deadline := time.After(2 * time.Second)
	for {
		core.mu.Lock()
		deliver := core.deliver
		core.mu.Unlock()
		if deliver != nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("deliver func never captured")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}

	core.deliver(message.New(message.KindChat, "Bob", `Bob says, "hi"`))

	_, err = client.Write([]byte("quit\r\n"))
	require.NoError(t, err)

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	out, _ := io.ReadAll(client)
	assert.Contains(t, string(out), `Bob says, "hi"`)
}
