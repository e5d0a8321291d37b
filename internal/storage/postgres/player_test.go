package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rockfordlhotka/Mordecai/internal/storage/postgres"
	"github.com/rockfordlhotka/Mordecai/internal/testutil"
)

func TestPlayerRepository_CreateAndFind(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)
	repo := postgres.NewPlayerRepository(pc.RawPool)
	ctx := context.Background()

	created, err := repo.CreatePlayer(ctx, "Alice", "town_square")
	require.NoError(t, err)
	assert.Positive(t, created.ID, "identity must be assigned at creation")
	assert.Equal(t, "Alice", created.Name)
	assert.Equal(t, "town_square", created.RoomID)
	assert.False(t, created.Online)

	found, err := repo.FindPlayerByName(ctx, "Alice")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)

	absent, err := repo.FindPlayerByName(ctx, "Nobody")
	require.NoError(t, err)
	assert.Nil(t, absent)
}

func TestPlayerRepository_NameIsCaseSensitiveUniqueKey(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)
	repo := postgres.NewPlayerRepository(pc.RawPool)
	ctx := context.Background()

	_, err := repo.CreatePlayer(ctx, "Alice", "town_square")
	require.NoError(t, err)

	_, err = repo.CreatePlayer(ctx, "Alice", "town_square")
	assert.ErrorIs(t, err, postgres.ErrPlayerNameTaken)

	// Different case is a different player.
	other, err := repo.CreatePlayer(ctx, "alice", "town_square")
	require.NoError(t, err)
	assert.NotZero(t, other.ID)
}

func TestPlayerRepository_SetRoomAndOnline(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)
	repo := postgres.NewPlayerRepository(pc.RawPool)
	ctx := context.Background()

	p, err := repo.CreatePlayer(ctx, "Alice", "town_square")
	require.NoError(t, err)

	require.NoError(t, repo.SetPlayerRoom(ctx, p.ID, "north_gate"))
	require.NoError(t, repo.SetPlayerOnline(ctx, p.ID, true))

	found, err := repo.FindPlayerByName(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "north_gate", found.RoomID)
	assert.True(t, found.Online)

	assert.ErrorIs(t, repo.SetPlayerRoom(ctx, 99999, "x"), postgres.ErrPlayerNotFound)
	assert.ErrorIs(t, repo.SetPlayerOnline(ctx, 99999, true), postgres.ErrPlayerNotFound)
}

func TestPlayerRepository_ListOnlinePlayersInRoom(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)
	repo := postgres.NewPlayerRepository(pc.RawPool)
	ctx := context.Background()

	carol, err := repo.CreatePlayer(ctx, "Carol", "town_square")
	require.NoError(t, err)
	alice, err := repo.CreatePlayer(ctx, "Alice", "town_square")
	require.NoError(t, err)
	bob, err := repo.CreatePlayer(ctx, "Bob", "north_gate")
	require.NoError(t, err)
	_, err = repo.CreatePlayer(ctx, "Dave", "town_square")
	require.NoError(t, err)

	for _, id := range []int64{carol.ID, alice.ID, bob.ID} {
		require.NoError(t, repo.SetPlayerOnline(ctx, id, true))
	}

	names, err := repo.ListOnlinePlayersInRoom(ctx, "town_square")
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Carol"}, names, "ordered by name, offline players excluded")

	// Writes are visible to the next read immediately.
	require.NoError(t, repo.SetPlayerRoom(ctx, bob.ID, "town_square"))
	names, err = repo.ListOnlinePlayersInRoom(ctx, "town_square")
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, names)

	empty, err := repo.ListOnlinePlayersInRoom(ctx, "nowhere")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPlayerRepository_Authenticate(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)
	repo := postgres.NewPlayerRepository(pc.RawPool)
	ctx := context.Background()

	created, err := repo.CreatePlayerWithPassword(ctx, "Alice", "s3cret", "town_square")
	require.NoError(t, err)

	p, err := repo.Authenticate(ctx, "Alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, created.ID, p.ID)

	_, err = repo.Authenticate(ctx, "Alice", "wrong")
	assert.ErrorIs(t, err, postgres.ErrInvalidCredentials)

	_, err = repo.Authenticate(ctx, "Nobody", "s3cret")
	assert.ErrorIs(t, err, postgres.ErrPlayerNotFound)

	// A passwordless player can never authenticate.
	_, err = repo.CreatePlayer(ctx, "Guest", "town_square")
	require.NoError(t, err)
	_, err = repo.Authenticate(ctx, "Guest", "")
	assert.ErrorIs(t, err, postgres.ErrInvalidCredentials)
}
