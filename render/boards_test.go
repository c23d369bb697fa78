package render

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeSimServer/game"
	"tradeSimServer/state"
)

func price(v float64) *float64 { return &v }

func TestLeaderboardOrdering(t *testing.T) {
	snap := state.SessionSnapshot{
		Settings: state.Settings{PointValue: 2},
		Players: []state.PlayerSnapshot{
			{DisplayName: "five", Profit: 5, NumTrades: 2, NumWinningRealizations: 1},
			{DisplayName: "minus", Profit: -3, NumTrades: 1},
			{DisplayName: "ten", Profit: 10, NumTrades: 4, NumWinningRealizations: 3},
		},
	}

	pages := Leaderboard(snap)

	require.Len(t, pages, 1)
	want := "```\n🏆 Leaderboard:\n\n" +
		"1. ten - Profit: 20.00, Number of Trades: 4, Win Rate: 75.00% \n" +
		"2. five - Profit: 10.00, Number of Trades: 2, Win Rate: 50.00% \n" +
		"3. minus - Profit: -6.00, Number of Trades: 1, Win Rate: 0.00% \n" +
		"```"
	assert.Equal(t, want, pages[0])
}

func TestLeaderboardTiesKeepJoinOrder(t *testing.T) {
	snap := state.SessionSnapshot{
		Settings: state.Settings{PointValue: 1},
		Players: []state.PlayerSnapshot{
			{DisplayName: "first", Profit: 1},
			{DisplayName: "second", Profit: 1},
		},
	}

	page := Leaderboard(snap)[0]
	assert.Less(t, strings.Index(page, "1. first"), strings.Index(page, "2. second"))
	assert.Contains(t, page, "Win Rate: 0.00%", "zero trades never divide by zero")
}

func TestLeaderboardLiquidatedMarker(t *testing.T) {
	snap := state.SessionSnapshot{
		Settings: state.Settings{PointValue: 1},
		Players: []state.PlayerSnapshot{
			{DisplayName: "bust", Profit: -5000, NumTrades: 3, Liquidated: true},
			{DisplayName: "ok", Profit: 0, NumTrades: 1},
		},
	}

	page := Leaderboard(snap)[0]
	assert.Contains(t, page, "2. bust Liquidated \n")
	assert.NotContains(t, page, "-5000")
}

func TestLeaderboardPagination(t *testing.T) {
	players := make([]state.PlayerSnapshot, 45)
	for i := range players {
		players[i] = state.PlayerSnapshot{DisplayName: fmt.Sprintf("p%02d", i), Profit: float64(100 - i)}
	}

	pages := Leaderboard(state.SessionSnapshot{Settings: state.Settings{PointValue: 1}, Players: players})

	require.Len(t, pages, 3)
	assert.Contains(t, pages[1], "21. p20")
	assert.Contains(t, pages[2], "45. p44")
	assert.Equal(t, 5, strings.Count(pages[2], "Profit:"))
	for _, page := range pages {
		assert.True(t, strings.HasPrefix(page, "```\n🏆 Leaderboard:"))
		assert.True(t, strings.HasSuffix(page, "```"))
	}

	assert.Empty(t, Leaderboard(state.SessionSnapshot{}))
}

func TestPositionBoard(t *testing.T) {
	snap := state.SessionSnapshot{
		StockPrice: 100,
		Players: []state.PlayerSnapshot{
			{DisplayName: "up", Position: game.PositionLong, EnterPrice: price(95)},
			{DisplayName: "flat"},
			{DisplayName: "down", Position: game.PositionShort, EnterPrice: price(99.5)},
			{DisplayName: "even", Position: game.PositionShort, EnterPrice: price(100)},
		},
	}

	pages := PositionBoard(snap)

	require.Len(t, pages, 1)
	want := "```\nCurrent open positions:\n" +
		"up: long position at 95 🟢\n" +
		"down: short position at 99.5 🔴\n" +
		"even: short position at 100 ⚪️\n" +
		"```"
	assert.Equal(t, want, pages[0])
}

func TestPositionBoardEmpty(t *testing.T) {
	pages := PositionBoard(state.SessionSnapshot{Players: []state.PlayerSnapshot{{DisplayName: "flat"}}})

	require.Len(t, pages, 1)
	assert.Contains(t, pages[0], "No players have an open position.")
}

func TestMarker(t *testing.T) {
	assert.Equal(t, "🟢", Marker(game.PositionShort, 110, 100))
	assert.Equal(t, "🔴", Marker(game.PositionLong, 110, 100))
	assert.Equal(t, "⚪️", Marker(game.PositionLong, 100, 100))
}
