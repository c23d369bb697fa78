package game

import (
	"math"
	"strconv"

	"tradeSimServer/config"
)

// RealizedProfit returns the tick profit of closing a position at exitPrice.
// A doubled leg counts twice. No rounding is applied.
func RealizedProfit(position Position, enterPrice, exitPrice float64, isDoubled bool) float64 {
	var profit float64
	switch position {
	case PositionLong:
		profit = exitPrice - enterPrice
	case PositionShort:
		profit = enterPrice - exitPrice
	default:
		return 0
	}

	if isDoubled {
		profit *= config.DoubleMultiplier
	}
	return profit
}

// AveragePrice is the rebased entry after doubling into a position.
func AveragePrice(enterPrice, currentPrice float64) float64 {
	return (enterPrice + currentPrice) / 2
}

// Scale converts ticks into the session's monetary value.
func Scale(ticks, pointValue float64) float64 {
	return ticks * pointValue
}

// WinRate is the percentage of trades that realized a positive profit.
func WinRate(wins, trades int) float64 {
	if trades == 0 {
		return 0
	}
	return float64(wins) / float64(trades) * 100
}

// RoundToDecimal rounds a float to specified decimal places
func RoundToDecimal(val float64, precision int) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}

// FormatMoney renders a scaled amount with two decimals.
func FormatMoney(val float64) string {
	s := strconv.FormatFloat(val, 'f', config.MoneyPrecision, 64)
	if s == "-0.00" {
		return "0.00"
	}
	return s
}

// FormatPrice renders a price with the shortest exact representation (100, 105.5).
func FormatPrice(val float64) string {
	return strconv.FormatFloat(val, 'f', -1, 64)
}

// ValidPrice reports whether a price can be applied to a session.
func ValidPrice(price float64) bool {
	return !math.IsNaN(price) && !math.IsInf(price, 0) && price >= 0
}
