package engine

import (
	"github.com/zeromicro/go-zero/core/logx"

	"tradeSimServer/state"
)

// sweep force-closes every open player whose projected scaled profit has
// fallen below the negative threshold. The session lock must be held.
// Returns the display names liquidated, in join order.
func sweep(session *state.GameSession) []string {
	var liquidated []string

	for _, p := range session.Players() {
		if p.Liquidated || !p.Position.IsOpen() {
			continue
		}
		projected := p.ProjectedValue(session.StockPrice, session.PointValue)
		if projected >= -session.LiquidationThreshold {
			continue
		}

		p.Liquidate(session.LiquidationThreshold)
		liquidated = append(liquidated, p.DisplayName)
		logx.Infof("💥 %s liquidated in room %s at %.2f (projected %.2f)",
			p.DisplayName, session.RoomID, session.StockPrice, projected)
	}

	return liquidated
}

// realizeAll closes every open position at the current price. The session
// lock must be held. Returns the display names closed, in join order.
func realizeAll(session *state.GameSession) []string {
	var closed []string
	for _, p := range session.Players() {
		if p.Liquidated || !p.Position.IsOpen() {
			continue
		}
		p.Close(session.StockPrice)
		closed = append(closed, p.DisplayName)
	}
	return closed
}
