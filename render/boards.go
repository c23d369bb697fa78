package render

import (
	"fmt"
	"sort"
	"strings"

	"tradeSimServer/config"
	"tradeSimServer/game"
	"tradeSimServer/state"
)

const (
	codeFence          = "```"
	leaderboardHeader  = codeFence + "\n🏆 Leaderboard:\n\n"
	positionsHeader    = codeFence + "\nCurrent open positions:\n"
	noOpenPositionsRow = "No players have an open position.\n"

	markerProfit    = "🟢"
	markerLoss      = "🔴"
	markerBreakeven = "⚪️"
)

// Leaderboard ranks players by realized profit, highest first, in pages of
// config.PlayersPerPage. Equal profits keep join order. No players, no pages.
func Leaderboard(session state.SessionSnapshot) []string {
	ranked := make([]state.PlayerSnapshot, len(session.Players))
	copy(ranked, session.Players)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Profit > ranked[j].Profit
	})

	return paginate(len(ranked), leaderboardHeader, func(i int, b *strings.Builder) {
		p := ranked[i]
		if p.Liquidated {
			fmt.Fprintf(b, "%d. %s %s \n", i+1, p.DisplayName, config.LiquidatedLabel)
			return
		}
		fmt.Fprintf(b, "%d. %s - Profit: %s, Number of Trades: %d, Win Rate: %s%% \n",
			i+1,
			p.DisplayName,
			game.FormatMoney(game.Scale(p.Profit, session.Settings.PointValue)),
			p.NumTrades,
			game.FormatMoney(game.WinRate(p.NumWinningRealizations, p.NumTrades)),
		)
	})
}

// PositionBoard lists open positions in join order with a marker for how the
// leg stands against the session price.
func PositionBoard(session state.SessionSnapshot) []string {
	open := make([]state.PlayerSnapshot, 0, len(session.Players))
	for _, p := range session.Players {
		if p.Position.IsOpen() && p.EnterPrice != nil {
			open = append(open, p)
		}
	}

	if len(open) == 0 {
		return []string{positionsHeader + noOpenPositionsRow + codeFence}
	}

	return paginate(len(open), positionsHeader, func(i int, b *strings.Builder) {
		p := open[i]
		fmt.Fprintf(b, "%s: %s position at %s %s\n",
			p.DisplayName,
			p.Position,
			game.FormatPrice(*p.EnterPrice),
			Marker(p.Position, *p.EnterPrice, session.StockPrice),
		)
	})
}

// Marker is green when the leg is in profit at current, red when under water.
func Marker(position game.Position, enterPrice, current float64) string {
	switch {
	case (position == game.PositionLong && enterPrice < current) ||
		(position == game.PositionShort && enterPrice > current):
		return markerProfit
	case (position == game.PositionLong && enterPrice > current) ||
		(position == game.PositionShort && enterPrice < current):
		return markerLoss
	default:
		return markerBreakeven
	}
}

func paginate(n int, header string, row func(i int, b *strings.Builder)) []string {
	pages := make([]string, 0, (n+config.PlayersPerPage-1)/config.PlayersPerPage)
	for start := 0; start < n; start += config.PlayersPerPage {
		var b strings.Builder
		b.WriteString(header)
		for i := start; i < start+config.PlayersPerPage && i < n; i++ {
			row(i, &b)
		}
		b.WriteString(codeFence)
		pages = append(pages, b.String())
	}
	return pages
}
