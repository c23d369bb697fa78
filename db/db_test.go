package db

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeSimServer/config"
	"tradeSimServer/game"
	"tradeSimServer/state"
)

func price(v float64) *float64 { return &v }

func testSnapshot(sessionID string) state.SessionSnapshot {
	return state.SessionSnapshot{
		ID:       sessionID,
		RoomID:   "room-test",
		Settings: state.Settings{PointValue: 50, DoublesAllowed: 2, LiquidationThreshold: 2500},
		Players: []state.PlayerSnapshot{
			{PlayerID: "p-test-1", DisplayName: "alice", Profit: 12.5, NumTrades: 3, NumWinningRealizations: 2},
			{PlayerID: "p-test-2", DisplayName: "bob", Profit: -5000, NumTrades: 1, Liquidated: true},
			{PlayerID: "p-test-3", DisplayName: "carol", Position: game.PositionLong, EnterPrice: price(100)},
		},
	}
}

func TestResultsFromSnapshot(t *testing.T) {
	ended := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	records := ResultsFromSnapshot(testSnapshot("s-1"), ended)

	require.Len(t, records, 3)
	assert.Equal(t, "s-1", records[0].SessionID)
	assert.Equal(t, "room-test", records[0].RoomID)
	assert.Equal(t, 625.0, records[0].Profit)
	assert.Equal(t, 2, records[0].NumWins)
	assert.Equal(t, -250000.0, records[1].Profit)
	assert.True(t, records[1].Liquidated)
	assert.Equal(t, ended, records[2].EndedAt)
}

func TestInteractionKey(t *testing.T) {
	key := InteractionKey("room-1", "abc")

	assert.True(t, strings.HasPrefix(key, "tradesim:interaction:"))
	assert.Equal(t, key, InteractionKey("room-1", "abc"))
	assert.NotEqual(t, key, InteractionKey("room-2", "abc"))
}

func TestClaimInteractionWithoutRedis(t *testing.T) {
	RedisClient = nil

	claimed, err := ClaimInteraction(context.Background(), "room", "id", time.Minute)

	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestNilPoolIsNoop(t *testing.T) {
	PostgresPool = nil
	ctx := context.Background()

	assert.NoError(t, ArchiveSession(ctx, testSnapshot("s"), time.Now()))
	assert.NoError(t, AddPlayerPnL(ctx, "p", "name", 1))

	board, err := GetPlayerPnLLeaderboard(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, board)

	assert.Error(t, HealthCheckPostgres(ctx))
}

func TestRedisClaim(t *testing.T) {
	_ = godotenv.Load("../.env")
	addr := os.Getenv("REDIS_URL")
	if addr == "" {
		t.Skip("REDIS_URL not set")
	}

	require.NoError(t, InitRedis(config.RedisConf{Addr: addr, Password: os.Getenv("REDIS_PASSWORD")}))
	defer CloseRedis()

	ctx := context.Background()
	id := "test-" + time.Now().Format(time.RFC3339Nano)
	defer RedisClient.Del(ctx, InteractionKey("room-test", id))

	first, err := ClaimInteraction(ctx, "room-test", id, time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := ClaimInteraction(ctx, "room-test", id, time.Minute)
	require.NoError(t, err)
	assert.False(t, second)

	assert.NoError(t, HealthCheck(ctx))
}

func TestArchiveSession(t *testing.T) {
	_ = godotenv.Load("../.env")
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	require.NoError(t, InitPostgres(dsn))
	defer ClosePostgres()

	ctx := context.Background()
	cleanup := func() {
		_, _ = PostgresPool.Exec(ctx, "DELETE FROM session_results WHERE room_id = 'room-test'")
		_, _ = PostgresPool.Exec(ctx, "DELETE FROM player_pnl WHERE player_id LIKE 'p-test-%'")
	}
	cleanup()
	defer cleanup()

	require.NoError(t, ArchiveSession(ctx, testSnapshot("s-archive-1"), time.Now()))
	require.NoError(t, ArchiveSession(ctx, testSnapshot("s-archive-2"), time.Now()))

	alice, err := GetPlayerPnLRank(ctx, "p-test-1")
	require.NoError(t, err)
	require.NotNil(t, alice)
	assert.Equal(t, 1250.0, alice.Amount)
	assert.Equal(t, 2, alice.Sessions)

	results, err := GetRecentSessionResults(ctx, "p-test-2", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Liquidated)

	require.NoError(t, AddPlayerPnL(ctx, "p-test-3", "carol", 10))
	carol, err := GetPlayerPnLRank(ctx, "p-test-3")
	require.NoError(t, err)
	assert.Equal(t, 10.0, carol.Amount)
	assert.Equal(t, 3, carol.Sessions)

	missing, err := GetPlayerPnLRank(ctx, "p-test-missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
