package engine

import (
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"

	"tradeSimServer/game"
	"tradeSimServer/state"
)

// ApplyAction runs one player action against the room's session and returns
// the reply for that player. The display name is refreshed on every call;
// players are keyed by playerID only.
func (e *Engine) ApplyAction(roomID, playerID, displayName string, kind game.ActionKind) (string, error) {
	if !kind.Valid() {
		return "", newError(ErrInvalidPositionState, "Unknown action.")
	}

	session, err := e.session(roomID)
	if err != nil {
		return "", err
	}

	session.Lock()
	defer session.Unlock()

	if session.Ended {
		return "", errSessionEnded()
	}

	player, ok := session.Player(playerID)
	if ok {
		player.Rename(displayName)
		if player.Liquidated {
			return "", newError(ErrPlayerLiquidated,
				"You are liquidated. Cannot participate in the trade sim. Please try again next time")
		}
	}

	var reply string
	switch kind {
	case game.ActionOpenLong, game.ActionOpenShort:
		reply, err = open(session, player, playerID, displayName, kind.Direction())
	case game.ActionClose:
		reply, err = closePosition(session, player)
	case game.ActionReverse:
		reply, err = reverse(session, player)
	case game.ActionDouble:
		reply, err = double(session, player)
	case game.ActionTrim:
		reply, err = trim(session, player)
	}
	if err != nil {
		return "", err
	}

	logx.Infof("🎯 %s %s in room %s at %.2f", displayName, kind, roomID, session.StockPrice)
	return reply, nil
}

func noPosition(verb string) *Error {
	return newError(ErrInvalidPositionState, "You do not currently have a position. Cannot %s.", verb)
}

func money(session *state.GameSession, ticks float64) string {
	return game.FormatMoney(game.Scale(ticks, session.PointValue))
}

func open(session *state.GameSession, player *state.PlayerState, playerID, displayName string, direction game.Position) (string, error) {
	switch {
	case player == nil:
		session.Join(playerID, displayName, direction)
	case player.Position.IsOpen():
		return "", newError(ErrInvalidPositionState,
			"You already have a position open. Please close it before opening a new one.")
	default:
		player.Open(direction, session.StockPrice)
	}
	return fmt.Sprintf("You opened a %s position at %s", direction, game.FormatPrice(session.StockPrice)), nil
}

func closePosition(session *state.GameSession, player *state.PlayerState) (string, error) {
	if player == nil || !player.Position.IsOpen() {
		return "", noPosition("close")
	}
	profit := player.Close(session.StockPrice)
	return fmt.Sprintf("You closed your position for a profit of %s.", money(session, profit)), nil
}

func reverse(session *state.GameSession, player *state.PlayerState) (string, error) {
	if player == nil || !player.Position.IsOpen() {
		return "", noPosition("reverse")
	}
	prev := player.Position
	profit := player.Reverse(session.StockPrice)
	return fmt.Sprintf("You reversed your %s position for a %s position. The profit from your previous %s position is %s.",
		prev, player.Position, prev, money(session, profit)), nil
}

func double(session *state.GameSession, player *state.PlayerState) (string, error) {
	switch {
	case player == nil || !player.Position.IsOpen():
		return "", noPosition("double")
	case player.DoublesRemaining <= 0:
		return "", newError(ErrInvalidPositionState, "You already used your double.")
	case player.IsDoubled:
		return "", newError(ErrInvalidPositionState, "You are in a double position already.")
	}
	player.Double(session.StockPrice)
	return fmt.Sprintf("You have doubled your %s position at an average price of %s.",
		player.Position, game.FormatPrice(player.EnterPrice)), nil
}

func trim(session *state.GameSession, player *state.PlayerState) (string, error) {
	switch {
	case player == nil || !player.Position.IsOpen():
		return "", noPosition("trim")
	case !player.IsDoubled:
		return "", newError(ErrInvalidPositionState, "You are not currently in a double position. Cannot trim.")
	}
	profit := player.Trim(session.StockPrice)
	return fmt.Sprintf("You trimmed your double position for a profit of %s.", money(session, profit)), nil
}
