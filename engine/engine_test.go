package engine

import (
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeSimServer/config"
	"tradeSimServer/game"
	"tradeSimServer/state"
)

const (
	room  = "room-1"
	owner = "owner"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(state.NewRegistry(), config.GameConf{
		PointValue:           1,
		DoublesAllowed:       2,
		LiquidationThreshold: 100,
	}, WithIDGenerator(func() string { return "session" }))
	e.StartSession(room, owner, e.Defaults())
	t.Cleanup(e.Reset)
	return e
}

func setPrice(t *testing.T, e *Engine, price float64) *PriceUpdate {
	t.Helper()
	update, err := e.AdvancePrice(room, owner, price)
	require.NoError(t, err)
	return update
}

func act(t *testing.T, e *Engine, player string, kind game.ActionKind) string {
	t.Helper()
	reply, err := e.ApplyAction(room, player, player, kind)
	require.NoError(t, err)
	return reply
}

func playerSnap(t *testing.T, e *Engine, id string) state.PlayerSnapshot {
	t.Helper()
	snap, err := e.Snapshot(room)
	require.NoError(t, err)
	for _, p := range snap.Players {
		if p.PlayerID == id {
			return p
		}
	}
	t.Fatalf("player %s not found", id)
	return state.PlayerSnapshot{}
}

func TestRoundTripProfit(t *testing.T) {
	tests := []struct {
		name  string
		kind  game.ActionKind
		enter float64
		exit  float64
		want  float64
	}{
		{"long", game.ActionOpenLong, 100, 112.5, 12.5},
		{"short", game.ActionOpenShort, 100, 112.5, -12.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)
			setPrice(t, e, tt.enter)
			act(t, e, "u1", tt.kind)
			setPrice(t, e, tt.exit)
			act(t, e, "u1", game.ActionClose)

			assert.InDelta(t, tt.want, playerSnap(t, e, "u1").Profit, 1e-9)
		})
	}
}

func TestDoublingAppliesOnce(t *testing.T) {
	e := newTestEngine(t)
	setPrice(t, e, 100)
	act(t, e, "u1", game.ActionOpenLong)
	setPrice(t, e, 110)

	reply := act(t, e, "u1", game.ActionDouble)
	assert.Equal(t, "You have doubled your long position at an average price of 105.", reply)

	setPrice(t, e, 120)
	reply = act(t, e, "u1", game.ActionClose)
	assert.Equal(t, "You closed your position for a profit of 30.00.", reply)

	p := playerSnap(t, e, "u1")
	assert.Equal(t, 30.0, p.Profit)
	assert.False(t, p.IsDoubled)
}

func TestTrimExcludesRedoubling(t *testing.T) {
	e := newTestEngine(t)
	setPrice(t, e, 100)
	act(t, e, "u1", game.ActionOpenLong)
	setPrice(t, e, 110)
	act(t, e, "u1", game.ActionDouble)
	setPrice(t, e, 115)

	reply := act(t, e, "u1", game.ActionTrim)
	assert.Equal(t, "You trimmed your double position for a profit of 10.00.", reply)

	p := playerSnap(t, e, "u1")
	require.NotNil(t, p.EnterPrice)
	assert.Equal(t, 105.0, *p.EnterPrice)
	assert.Equal(t, game.PositionLong, p.Position)

	setPrice(t, e, 120)
	act(t, e, "u1", game.ActionClose)
	assert.Equal(t, 25.0, playerSnap(t, e, "u1").Profit)
}

func TestLiquidationIsTerminal(t *testing.T) {
	e := newTestEngine(t)
	setPrice(t, e, 150)
	act(t, e, "u1", game.ActionOpenLong)
	act(t, e, "u2", game.ActionOpenShort)

	update := setPrice(t, e, 0)
	assert.Equal(t, []string{"u1"}, update.Liquidated)

	p := playerSnap(t, e, "u1")
	assert.True(t, p.Liquidated)
	assert.Equal(t, -200.0, p.Profit)
	assert.Equal(t, game.PositionNone, p.Position)

	for _, kind := range []game.ActionKind{game.ActionOpenLong, game.ActionOpenShort, game.ActionClose, game.ActionTrim} {
		_, err := e.ApplyAction(room, "u1", "u1", kind)
		assert.ErrorIs(t, err, ErrPlayerLiquidated, kind.String())
	}
	assert.Equal(t, -200.0, playerSnap(t, e, "u1").Profit)

	update = setPrice(t, e, 0)
	assert.Empty(t, update.Liquidated, "a liquidated player is never swept twice")
}

func TestLiquidationUsesScaledProjection(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.SetConfig(room, owner, FieldPointValue, 10)
	require.NoError(t, err)
	setPrice(t, e, 100)
	act(t, e, "u1", game.ActionOpenLong)

	update := setPrice(t, e, 91)
	assert.Empty(t, update.Liquidated, "-90 scaled is inside the threshold")

	update = setPrice(t, e, 89)
	assert.Equal(t, []string{"u1"}, update.Liquidated)
	assert.Equal(t, -200.0, playerSnap(t, e, "u1").Profit)
}

func TestLeaderboardOrdersByProfit(t *testing.T) {
	e := newTestEngine(t)
	setPrice(t, e, 100)
	act(t, e, "five", game.ActionOpenLong)
	act(t, e, "minus-three", game.ActionOpenLong)
	act(t, e, "ten", game.ActionOpenLong)

	setPrice(t, e, 105)
	act(t, e, "five", game.ActionClose)
	setPrice(t, e, 97)
	act(t, e, "minus-three", game.ActionClose)
	setPrice(t, e, 110)
	act(t, e, "ten", game.ActionClose)

	pages, err := e.Leaderboard(room)
	require.NoError(t, err)
	require.Len(t, pages, 1)

	ten := strings.Index(pages[0], "1. ten - Profit: 10.00")
	five := strings.Index(pages[0], "2. five - Profit: 5.00")
	minus := strings.Index(pages[0], "3. minus-three - Profit: -3.00")
	assert.True(t, ten >= 0 && five > ten && minus > five, pages[0])
}

func TestCloseTwiceRejectsSecond(t *testing.T) {
	e := newTestEngine(t)
	setPrice(t, e, 100)
	act(t, e, "u1", game.ActionOpenShort)
	setPrice(t, e, 90)

	act(t, e, "u1", game.ActionClose)
	_, err := e.ApplyAction(room, "u1", "u1", game.ActionClose)

	assert.ErrorIs(t, err, ErrInvalidPositionState)
	assert.Equal(t, "You do not currently have a position. Cannot close.", UserMessage(err))
	p := playerSnap(t, e, "u1")
	assert.Equal(t, 10.0, p.Profit)
	assert.Equal(t, 1, p.NumWinningRealizations)
}

func TestStartSessionDiscardsPlayers(t *testing.T) {
	e := newTestEngine(t)
	setPrice(t, e, 100)
	act(t, e, "u1", game.ActionOpenLong)
	setPrice(t, e, 150)
	act(t, e, "u1", game.ActionClose)

	e.StartSession(room, "someone-else", e.Defaults())

	snap, err := e.Snapshot(room)
	require.NoError(t, err)
	assert.Empty(t, snap.Players)
	assert.Equal(t, "someone-else", snap.OwnerID)
	assert.Equal(t, config.DefaultStockPrice, snap.StockPrice)
}

func TestPositionStateRejections(t *testing.T) {
	e := newTestEngine(t)
	setPrice(t, e, 100)

	tests := []struct {
		kind game.ActionKind
		want string
	}{
		{game.ActionClose, "You do not currently have a position. Cannot close."},
		{game.ActionReverse, "You do not currently have a position. Cannot reverse."},
		{game.ActionDouble, "You do not currently have a position. Cannot double."},
		{game.ActionTrim, "You do not currently have a position. Cannot trim."},
	}
	for _, tt := range tests {
		_, err := e.ApplyAction(room, "nobody", "nobody", tt.kind)
		assert.ErrorIs(t, err, ErrInvalidPositionState)
		assert.Equal(t, tt.want, UserMessage(err))
	}

	act(t, e, "u1", game.ActionOpenLong)
	_, err := e.ApplyAction(room, "u1", "u1", game.ActionOpenShort)
	assert.Equal(t, "You already have a position open. Please close it before opening a new one.", UserMessage(err))

	_, err = e.ApplyAction(room, "u1", "u1", game.ActionTrim)
	assert.Equal(t, "You are not currently in a double position. Cannot trim.", UserMessage(err))

	act(t, e, "u1", game.ActionDouble)
	_, err = e.ApplyAction(room, "u1", "u1", game.ActionDouble)
	assert.Equal(t, "You are in a double position already.", UserMessage(err))

	_, err = e.ApplyAction(room, "u1", "u1", game.ActionKind(99))
	assert.ErrorIs(t, err, ErrInvalidPositionState)
}

func TestDoublesExhausted(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.SetConfig(room, owner, FieldDoublesAllowed, 1)
	require.NoError(t, err)
	setPrice(t, e, 100)
	act(t, e, "u1", game.ActionOpenLong)
	act(t, e, "u1", game.ActionDouble)
	act(t, e, "u1", game.ActionTrim)

	_, err = e.ApplyAction(room, "u1", "u1", game.ActionDouble)
	assert.Equal(t, "You already used your double.", UserMessage(err))
}

func TestReverseReply(t *testing.T) {
	e := newTestEngine(t)
	setPrice(t, e, 100)
	act(t, e, "u1", game.ActionOpenLong)
	setPrice(t, e, 104)

	reply := act(t, e, "u1", game.ActionReverse)

	assert.Equal(t, "You reversed your long position for a short position. The profit from your previous long position is 4.00.", reply)
	p := playerSnap(t, e, "u1")
	assert.Equal(t, game.PositionShort, p.Position)
	assert.Equal(t, 2, p.NumTrades)
}

func TestDisplayNameRefreshKeepsOnePlayer(t *testing.T) {
	e := newTestEngine(t)
	setPrice(t, e, 100)
	_, err := e.ApplyAction(room, "u1", "alice#0001", game.ActionOpenLong)
	require.NoError(t, err)
	_, err = e.ApplyAction(room, "u1", "alice_renamed", game.ActionClose)
	require.NoError(t, err)

	snap, err := e.Snapshot(room)
	require.NoError(t, err)
	require.Len(t, snap.Players, 1)
	assert.Equal(t, "alice_renamed", snap.Players[0].DisplayName)
}

func TestOwnerOnlyOperations(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.AdvancePrice(room, "intruder", 100)
	assert.ErrorIs(t, err, ErrNotOwner)
	assert.Equal(t, "Only the user who started the simulation can set the price.", UserMessage(err))

	_, err = e.SetConfig(room, "intruder", FieldPointValue, 5)
	assert.Equal(t, "Only the user who started the simulation can set the point value.", UserMessage(err))
	_, err = e.SetConfig(room, "intruder", FieldDoublesAllowed, 5)
	assert.Equal(t, "Only the user who started the simulation can set the number of doubles.", UserMessage(err))
	_, err = e.SetConfig(room, "intruder", FieldLiquidationThreshold, 5)
	assert.Equal(t, "Only the user who started the simulation can set the threshold value.", UserMessage(err))

	_, err = e.CloseAll(room, "intruder")
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestNumericValidation(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.AdvancePrice(room, owner, -5)
	assert.ErrorIs(t, err, ErrInvalidNumericInput)
	assert.Equal(t, "Invalid stock price. Please enter a valid number.", UserMessage(err))
	_, err = e.AdvancePrice(room, owner, math.NaN())
	assert.ErrorIs(t, err, ErrInvalidNumericInput)

	_, err = e.SetConfig(room, owner, FieldPointValue, -1)
	assert.ErrorIs(t, err, ErrInvalidNumericInput)
	_, err = e.SetConfig(room, owner, FieldDoublesAllowed, 1.5)
	assert.ErrorIs(t, err, ErrInvalidNumericInput)
	_, err = e.SetConfig(room, owner, FieldDoublesAllowed, 1e20)
	assert.ErrorIs(t, err, ErrInvalidNumericInput)
	assert.Equal(t, "Invalid value. Please enter a valid whole number.", UserMessage(err))
	_, err = e.SetConfig(room, owner, FieldDoublesAllowed, float64(config.MaxDoublesAllowed)+1)
	assert.ErrorIs(t, err, ErrInvalidNumericInput)
	_, err = e.SetConfig(room, owner, FieldLiquidationThreshold, math.Inf(1))
	assert.ErrorIs(t, err, ErrInvalidNumericInput)

	setPrice(t, e, 10)
	act(t, e, "u1", game.ActionOpenLong)
	assert.Equal(t, 2, playerSnap(t, e, "u1").DoublesRemaining)

	_, err = ParseNumber("abc")
	assert.ErrorIs(t, err, ErrInvalidNumericInput)
	v, err := ParseNumber(" 12.5 ")
	require.NoError(t, err)
	assert.Equal(t, 12.5, v)
}

func TestSetConfigAcks(t *testing.T) {
	e := newTestEngine(t)

	ack, err := e.SetConfig(room, owner, FieldPointValue, 50)
	require.NoError(t, err)
	assert.Equal(t, "1 point is set to be 50.", ack)

	ack, err = e.SetConfig(room, owner, FieldDoublesAllowed, 3)
	require.NoError(t, err)
	assert.Equal(t, "The number of doubles is 3.", ack)

	ack, err = e.SetConfig(room, owner, FieldLiquidationThreshold, 0)
	require.NoError(t, err)
	assert.Equal(t, "The liquidation threshold is set to be 0.", ack)

	snap, err := e.Snapshot(room)
	require.NoError(t, err)
	assert.Equal(t, state.Settings{PointValue: 50, DoublesAllowed: 3, LiquidationThreshold: 0}, snap.Settings)
}

func TestNoActiveSession(t *testing.T) {
	e := New(state.NewRegistry(), config.GameConf{PointValue: 1, DoublesAllowed: 2, LiquidationThreshold: 100})

	_, err := e.ApplyAction("empty", "u1", "u1", game.ActionOpenLong)
	assert.ErrorIs(t, err, ErrNoActiveSession)
	assert.Equal(t, noActiveSessionMessage, UserMessage(err))

	_, err = e.Leaderboard("empty")
	assert.True(t, errors.Is(err, ErrNoActiveSession))
	_, err = e.AdvancePrice("empty", owner, 1)
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestEndSentinelRealizesAtLastPrice(t *testing.T) {
	e := newTestEngine(t)
	setPrice(t, e, 100)
	act(t, e, "u1", game.ActionOpenLong)
	act(t, e, "u2", game.ActionOpenShort)
	setPrice(t, e, 110)
	act(t, e, "u1", game.ActionDouble)

	update := setPrice(t, e, config.EndSessionPrice)

	require.True(t, update.Ended)
	require.NotNil(t, update.Final)
	assert.Equal(t, []string{"u1", "u2"}, update.Closed)
	assert.Empty(t, update.Liquidated)
	assert.Equal(t, 10.0, playerSnap(t, e, "u1").Profit)
	assert.Equal(t, -10.0, playerSnap(t, e, "u2").Profit)
	assert.Equal(t, 110.0, update.Final.StockPrice)

	_, err := e.ApplyAction(room, "u1", "u1", game.ActionOpenLong)
	assert.ErrorIs(t, err, ErrNoActiveSession)

	pages, err := e.Leaderboard(room)
	require.NoError(t, err)
	assert.NotEmpty(t, pages)
}

func TestCloseAll(t *testing.T) {
	e := newTestEngine(t)
	setPrice(t, e, 100)
	act(t, e, "u1", game.ActionOpenLong)
	act(t, e, "u2", game.ActionOpenShort)
	setPrice(t, e, 102)

	reply, err := e.CloseAll(room, owner)
	require.NoError(t, err)
	assert.Equal(t, "All Current Positions are Closed.", reply)

	pages, err := e.PositionBoard(room)
	require.NoError(t, err)
	assert.Contains(t, pages[0], "No players have an open position.")

	act(t, e, "u1", game.ActionOpenShort)
}

func TestPositionBoardAfterPrice(t *testing.T) {
	e := newTestEngine(t)
	setPrice(t, e, 100)
	act(t, e, "u1", game.ActionOpenLong)
	act(t, e, "u2", game.ActionOpenShort)

	update := setPrice(t, e, 101)

	require.Len(t, update.PositionBoard, 1)
	assert.Contains(t, update.PositionBoard[0], "u1: long position at 100 🟢\n")
	assert.Contains(t, update.PositionBoard[0], "u2: short position at 100 🔴\n")
}

func TestUserMessageFallback(t *testing.T) {
	assert.Equal(t, "Something went wrong. Please try again.", UserMessage(errors.New("boom")))
}

func TestConcurrentClosesBankOnce(t *testing.T) {
	e := newTestEngine(t)
	setPrice(t, e, 100)
	act(t, e, "u1", game.ActionOpenLong)
	setPrice(t, e, 112)

	const clicks = 16
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make(chan error, clicks)
	)
	for i := 0; i < clicks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := e.ApplyAction(room, "u1", "u1", game.ActionClose)
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	ok, rejected := 0, 0
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrInvalidPositionState)
		rejected++
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, clicks-1, rejected)

	p := playerSnap(t, e, "u1")
	assert.Equal(t, 12.0, p.Profit)
	assert.Equal(t, 1, p.NumTrades)
	assert.Equal(t, game.PositionNone, p.Position)
}

func TestConcurrentActionsAcrossPlayers(t *testing.T) {
	e := newTestEngine(t)
	setPrice(t, e, 100)

	players := make([]string, 20)
	for i := range players {
		players[i] = "p" + strings.Repeat("x", i)
	}
	each := func(kind game.ActionKind) {
		var wg sync.WaitGroup
		for _, id := range players {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, err := e.ApplyAction(room, id, id, kind)
				assert.NoError(t, err)
			}(id)
		}
		wg.Wait()
	}

	each(game.ActionOpenShort)
	setPrice(t, e, 95)
	each(game.ActionClose)

	snap, err := e.Snapshot(room)
	require.NoError(t, err)
	require.Len(t, snap.Players, len(players))
	for _, p := range snap.Players {
		assert.Equal(t, game.PositionNone, p.Position)
		assert.Equal(t, 5.0, p.Profit)
	}
}

func TestStartSessionStampsClock(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e := New(state.NewRegistry(), config.GameConf{PointValue: 1}, WithClock(func() time.Time { return at }))
	t.Cleanup(e.Reset)

	snap := e.StartSession(room, owner, e.Defaults())
	assert.Equal(t, at, snap.StartedAt)
}
