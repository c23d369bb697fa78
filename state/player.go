package state

import (
	"tradeSimServer/config"
	"tradeSimServer/game"
)

// All methods in this file expect the session lock to be held by the caller.
// They apply a transition whose preconditions the caller already checked.

// Player looks up a player by immutable id.
func (s *GameSession) Player(playerID string) (*PlayerState, bool) {
	p, ok := s.players[playerID]
	return p, ok
}

// Players returns live player records in join order.
func (s *GameSession) Players() []*PlayerState {
	out := make([]*PlayerState, len(s.order))
	copy(out, s.order)
	return out
}

func (s *GameSession) PlayerCount() int {
	return len(s.order)
}

// Join registers a player whose first action opens a position at the current price.
func (s *GameSession) Join(playerID, displayName string, direction game.Position) *PlayerState {
	p := &PlayerState{
		PlayerID:         playerID,
		DisplayName:      displayName,
		JoinOrder:        len(s.order),
		Position:         direction,
		EnterPrice:       s.StockPrice,
		DoublesRemaining: s.DoublesAllowed,
		NumTrades:        1,
	}
	s.players[playerID] = p
	s.order = append(s.order, p)
	return p
}

// Rename refreshes the denormalised display name.
func (p *PlayerState) Rename(displayName string) {
	if displayName != "" {
		p.DisplayName = displayName
	}
}

// Open starts a new leg from flat.
func (p *PlayerState) Open(direction game.Position, price float64) {
	p.Position = direction
	p.EnterPrice = price
	p.NumTrades++
}

// UnrealizedProfit is the tick profit a close at price would book, doubling included.
func (p *PlayerState) UnrealizedProfit(price float64) float64 {
	return game.RealizedProfit(p.Position, p.EnterPrice, price, p.IsDoubled)
}

// Close realizes the whole leg at price and returns the booked ticks.
func (p *PlayerState) Close(price float64) float64 {
	profit := p.UnrealizedProfit(price)

	p.Profit += profit
	if profit > 0 {
		p.NumWinningRealizations++
	}
	p.IsDoubled = false
	p.Position = game.PositionNone
	p.EnterPrice = 0
	return profit
}

// Reverse realizes the leg and reopens the opposite direction at price.
func (p *PlayerState) Reverse(price float64) float64 {
	next := p.Position.Opposite()
	profit := p.Close(price)
	p.Open(next, price)
	return profit
}

// Double averages into the open leg and arms the multiplier.
func (p *PlayerState) Double(price float64) {
	p.EnterPrice = game.AveragePrice(p.EnterPrice, price)
	p.DoublesRemaining--
	p.IsDoubled = true
}

// Trim books the undoubled profit, keeps the leg open and disarms the multiplier.
func (p *PlayerState) Trim(price float64) float64 {
	profit := game.RealizedProfit(p.Position, p.EnterPrice, price, false)

	p.Profit += profit
	p.IsDoubled = false
	return profit
}

// ProjectedValue is banked plus unrealized profit scaled by pointValue.
func (p *PlayerState) ProjectedValue(price, pointValue float64) float64 {
	return game.Scale(p.UnrealizedProfit(price)+p.Profit, pointValue)
}

// Liquidate wipes the player out for the rest of the session.
func (p *PlayerState) Liquidate(threshold float64) {
	p.Liquidated = true
	p.Profit = -threshold * config.LiquidationPenaltyFactor
	p.Position = game.PositionNone
	p.EnterPrice = 0
	p.IsDoubled = false
}
