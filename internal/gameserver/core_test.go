package gameserver

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rockfordlhotka/Mordecai/internal/game/broadcast"
	"github.com/rockfordlhotka/Mordecai/internal/game/message"
	"github.com/rockfordlhotka/Mordecai/internal/game/movement"
	"github.com/rockfordlhotka/Mordecai/internal/game/player"
	"github.com/rockfordlhotka/Mordecai/internal/game/presence"
	"github.com/rockfordlhotka/Mordecai/internal/game/world"
)

type recorder struct {
	ch chan message.Message
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan message.Message, 64)}
}

func (r *recorder) deliver(msg message.Message) {
	r.ch <- msg
}

func (r *recorder) next(t *testing.T) message.Message {
	t.Helper()
	select {
	case msg := <-r.ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
		return message.Message{}
	}
}

func (r *recorder) assertNone(t *testing.T) {
	t.Helper()
	select {
	case msg := <-r.ch:
		t.Fatalf("unexpected delivery: %q", msg.Content)
	case <-time.After(50 * time.Millisecond):
	}
}

// drain discards everything already enqueued, waiting out the async outbox.
func (r *recorder) drain() {
	for {
		select {
		case <-r.ch:
		case <-time.After(50 * time.Millisecond):
			return
		}
	}
}

type fakeStore struct {
	mu        sync.Mutex
	players   map[string]*player.Player
	passwords map[string]string
	nextID    int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		players:   make(map[string]*player.Player),
		passwords: make(map[string]string),
	}
}

func (s *fakeStore) FindPlayerByName(_ context.Context, name string) (*player.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[name]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) CreatePlayer(_ context.Context, name, initialRoomID string) (*player.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[name]; ok {
		return nil, fmt.Errorf("player %q already exists", name)
	}
	s.nextID++
	p := &player.Player{ID: s.nextID, Name: name, RoomID: initialRoomID}
	s.players[name] = p
	cp := *p
	return &cp, nil
}

func (s *fakeStore) CreatePlayerWithPassword(ctx context.Context, name, password, initialRoomID string) (*player.Player, error) {
	p, err := s.CreatePlayer(ctx, name, initialRoomID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.passwords[name] = password
	s.mu.Unlock()
	return p, nil
}

func (s *fakeStore) Authenticate(_ context.Context, name, password string) (*player.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[name]
	if !ok || s.passwords[name] != password {
		return nil, fmt.Errorf("invalid credentials for %q", name)
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) SetPlayerOnline(_ context.Context, playerID int64, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players {
		if p.ID == playerID {
			p.Online = online
			return nil
		}
	}
	return fmt.Errorf("player %d not found", playerID)
}

func (s *fakeStore) SetPlayerRoom(_ context.Context, playerID int64, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players {
		if p.ID == playerID {
			p.RoomID = roomID
			return nil
		}
	}
	return fmt.Errorf("player %d not found", playerID)
}

func (s *fakeStore) ListOnlinePlayersInRoom(_ context.Context, roomID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for _, p := range s.players {
		if p.Online && p.RoomID == roomID {
			names = append(names, p.Name)
		}
	}
	return names, nil
}

type fakeMessageStore struct {
	mu    sync.Mutex
	saved []message.Message
}

func (s *fakeMessageStore) AppendChatMessage(_ context.Context, msg message.Message, _ *int64, _ *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, msg)
	return nil
}

func (s *fakeMessageStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func testRooms(t *testing.T) *world.Manager {
	t.Helper()
	rooms := []*world.Room{
		{
			ID:          "square",
			Name:        "Town Square",
			Description: "A broad cobbled square ringed by lanterns.",
			NorthID:     "garden",
		},
		{
			ID:          "garden",
			Name:        "Moonlit Garden",
			Description: "Night-blooming flowers line a gravel path.",
			SouthID:     "square",
		},
	}
	mgr, err := world.NewManager(rooms, "square")
	require.NoError(t, err)
	return mgr
}

func newTestCore(t *testing.T, store *fakeStore, messages MessageStore) *Core {
	t.Helper()
	logger := zap.NewNop()
	registry := presence.NewRegistry(logger, presence.PolicySilent, 16)
	history := message.NewHistory(100)
	broadcaster := broadcast.NewBroadcaster(logger, registry, history)
	engine := movement.NewEngine(logger, store, testRooms(t))
	return NewCore(logger, registry, history, broadcaster, engine, store, messages, "square", 50)
}

func TestConnect_CreatesPlayerAndWelcomes(t *testing.T) {
	store := newFakeStore()
	core := newTestCore(t, store, nil)

	alice := newRecorder()
	connID, err := core.Connect(context.Background(), "Alice", alice.deliver)
	require.NoError(t, err)
	require.NotEmpty(t, connID)

	welcome := alice.next(t)
	assert.Equal(t, message.KindGameResponse, welcome.Kind)
	assert.Equal(t, "Welcome to Mordecai, Alice.", welcome.Content)

	desc := alice.next(t)
	assert.Equal(t, message.KindDescription, desc.Kind)
	assert.Contains(t, desc.Content, "Town Square")
	assert.Contains(t, desc.Content, "Obvious exits: north.")

	// The mover's own arrival announcement is excluded.
	alice.assertNone(t)

	p, err := store.FindPlayerByName(context.Background(), "Alice")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.True(t, p.Online)
	assert.Equal(t, "square", p.RoomID)
}

func TestConnect_AnnouncesToOthers(t *testing.T) {
	store := newFakeStore()
	core := newTestCore(t, store, nil)

	alice := newRecorder()
	_, err := core.Connect(context.Background(), "Alice", alice.deliver)
	require.NoError(t, err)
	alice.drain()

	bob := newRecorder()
	_, err = core.Connect(context.Background(), "Bob", bob.deliver)
	require.NoError(t, err)

	entered := alice.next(t)
	assert.Equal(t, message.KindSystem, entered.Kind)
	assert.Equal(t, "Bob has entered the world.", entered.Content)
}

func TestConnect_ReplaysOnlyPublicHistory(t *testing.T) {
	store := newFakeStore()
	core := newTestCore(t, store, nil)

	alice := newRecorder()
	aliceID, err := core.Connect(context.Background(), "Alice", alice.deliver)
	require.NoError(t, err)
	require.NoError(t, core.SendChat(context.Background(), aliceID, "hello out there"))
	alice.drain()

	// Alice's history now holds her private echo and the public chat line.
	bob := newRecorder()
	_, err = core.Connect(context.Background(), "Bob", bob.deliver)
	require.NoError(t, err)

	welcome := bob.next(t)
	assert.Equal(t, message.KindGameResponse, welcome.Kind)

	// Public history is Alice's arrival announcement and her chat line; her
	// private echo, welcome, and room description are not replayed.
	entered := bob.next(t)
	assert.Equal(t, message.KindSystem, entered.Kind)
	assert.Equal(t, "Alice has entered the world.", entered.Content)

	replayed := bob.next(t)
	assert.Equal(t, message.KindChat, replayed.Kind)
	assert.Equal(t, `Alice says, "hello out there"`, replayed.Content)

	desc := bob.next(t)
	assert.Equal(t, message.KindDescription, desc.Kind)
	bob.assertNone(t)
}

func TestConnectAuthenticated_RegistersAndVerifies(t *testing.T) {
	store := newFakeStore()
	core := newTestCore(t, store, nil)

	alice := newRecorder()
	connID, err := core.ConnectAuthenticated(context.Background(), "Alice", "hunter2", alice.deliver)
	require.NoError(t, err)
	core.Disconnect(context.Background(), connID)

	_, err = core.ConnectAuthenticated(context.Background(), "Alice", "wrong", newRecorder().deliver)
	assert.Error(t, err)

	_, err = core.ConnectAuthenticated(context.Background(), "Alice", "hunter2", newRecorder().deliver)
	assert.NoError(t, err)
}

func TestSendChat_EchoThenBroadcast(t *testing.T) {
	store := newFakeStore()
	messages := &fakeMessageStore{}
	core := newTestCore(t, store, messages)

	alice, bob := newRecorder(), newRecorder()
	aliceID, err := core.Connect(context.Background(), "Alice", alice.deliver)
	require.NoError(t, err)
	_, err = core.Connect(context.Background(), "Bob", bob.deliver)
	require.NoError(t, err)
	alice.drain()
	bob.drain()

	require.NoError(t, core.SendChat(context.Background(), aliceID, "well met"))

	echo := alice.next(t)
	assert.Equal(t, message.KindUserEcho, echo.Kind)
	assert.Equal(t, `You say, "well met"`, echo.Content)
	alice.assertNone(t)

	chat := bob.next(t)
	assert.Equal(t, message.KindChat, chat.Kind)
	assert.Equal(t, "Alice", chat.Author)
	assert.Equal(t, `Alice says, "well met"`, chat.Content)

	assert.Equal(t, 1, messages.count(), "only the broadcast line is persisted")
}

func TestSendChat_Rejections(t *testing.T) {
	store := newFakeStore()
	core := newTestCore(t, store, nil)

	alice := newRecorder()
	aliceID, err := core.Connect(context.Background(), "Alice", alice.deliver)
	require.NoError(t, err)

	assert.Error(t, core.SendChat(context.Background(), "ghost", "hello"))
	assert.Error(t, core.SendChat(context.Background(), aliceID, "   "))
}

func TestMove_NotifiesCorrectAudiences(t *testing.T) {
	store := newFakeStore()
	core := newTestCore(t, store, nil)

	mover, witness := newRecorder(), newRecorder()
	moverID, err := core.Connect(context.Background(), "Alice", mover.deliver)
	require.NoError(t, err)
	_, err = core.Connect(context.Background(), "Bob", witness.deliver)
	require.NoError(t, err)

	// Place a greeter at the destination before the move.
	greeter := newRecorder()
	greeterID, err := core.Connect(context.Background(), "Carol", greeter.deliver)
	require.NoError(t, err)
	_, err = core.Move(context.Background(), greeterID, world.North)
	require.NoError(t, err)
	mover.drain()
	witness.drain()
	greeter.drain()

	res, err := core.Move(context.Background(), moverID, world.North)
	require.NoError(t, err)
	require.True(t, res.Success)

	outcome := mover.next(t)
	assert.Equal(t, message.KindGameResponse, outcome.Kind)
	assert.Equal(t, "You move north to Moonlit Garden.", outcome.Content)
	mover.assertNone(t)

	departed := witness.next(t)
	assert.Equal(t, message.KindAction, departed.Kind)
	assert.Equal(t, "Alice leaves north.", departed.Content)
	witness.assertNone(t)

	arrived := greeter.next(t)
	assert.Equal(t, message.KindAction, arrived.Kind)
	assert.Equal(t, "Alice arrives from the south.", arrived.Content)
	greeter.assertNone(t)
}

func TestMove_NoExitIsPrivateError(t *testing.T) {
	store := newFakeStore()
	core := newTestCore(t, store, nil)

	alice, bob := newRecorder(), newRecorder()
	aliceID, err := core.Connect(context.Background(), "Alice", alice.deliver)
	require.NoError(t, err)
	_, err = core.Connect(context.Background(), "Bob", bob.deliver)
	require.NoError(t, err)
	alice.drain()
	bob.drain()

	res, err := core.Move(context.Background(), aliceID, world.West)
	require.NoError(t, err)
	assert.False(t, res.Success)

	rejection := alice.next(t)
	assert.Equal(t, message.KindError, rejection.Kind)
	assert.Equal(t, "You can't go west. Obvious exits: north.", rejection.Content)
	bob.assertNone(t)
}

func TestMove_UnknownConnection(t *testing.T) {
	core := newTestCore(t, newFakeStore(), nil)
	_, err := core.Move(context.Background(), "ghost", world.North)
	assert.Error(t, err)
}

func TestDisconnect_AnnouncesAndMarksOffline(t *testing.T) {
	store := newFakeStore()
	core := newTestCore(t, store, nil)

	alice, bob := newRecorder(), newRecorder()
	aliceID, err := core.Connect(context.Background(), "Alice", alice.deliver)
	require.NoError(t, err)
	_, err = core.Connect(context.Background(), "Bob", bob.deliver)
	require.NoError(t, err)
	bob.drain()

	core.Disconnect(context.Background(), aliceID)

	left := bob.next(t)
	assert.Equal(t, message.KindSystem, left.Kind)
	assert.Equal(t, "Alice has left the world.", left.Content)

	p, err := store.FindPlayerByName(context.Background(), "Alice")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.False(t, p.Online)

	// Disconnecting again is a no-op, announced nowhere.
	core.Disconnect(context.Background(), aliceID)
	bob.assertNone(t)
}

func TestGetOnlinePlayers_Sorted(t *testing.T) {
	core := newTestCore(t, newFakeStore(), nil)

	_, err := core.Connect(context.Background(), "Zed", newRecorder().deliver)
	require.NoError(t, err)
	_, err = core.Connect(context.Background(), "Alice", newRecorder().deliver)
	require.NoError(t, err)
	_, err = core.Connect(context.Background(), "Mori", newRecorder().deliver)
	require.NoError(t, err)

	assert.Equal(t, []string{"Alice", "Mori", "Zed"}, core.GetOnlinePlayers())
}

func TestLook_IncludesOtherOccupants(t *testing.T) {
	store := newFakeStore()
	core := newTestCore(t, store, nil)

	_, err := core.Connect(context.Background(), "Alice", newRecorder().deliver)
	require.NoError(t, err)
	_, err = core.Connect(context.Background(), "Bob", newRecorder().deliver)
	require.NoError(t, err)

	text, err := core.Look(context.Background(), "Alice")
	require.NoError(t, err)
	assert.Contains(t, text, "Town Square")
	assert.Contains(t, text, "Other players here: Bob.")

	peek, err := core.LookDirection(context.Background(), "Alice", world.North)
	require.NoError(t, err)
	assert.Contains(t, peek, "To the north you see Moonlit Garden.")
}
