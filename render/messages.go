package render

import (
	"fmt"
	"strings"
	"time"

	"tradeSimServer/game"
)

const rulesText = "Submit your decision using the buttons below. If you want to hold your position, do not click on any buttons. \n\n" +
	"Use the Green Buy button for longs and the Red Sell button for shorts. \n\n" +
	"If you want to double your position, open a long or short position first, and then click the Double button. " +
	"Once doubled, Trim banks the profit of the original size and keeps the position open." +
	"\n\nYou can override your decision before the round ends."

// Rules is the static help text.
func Rules() string {
	return rulesText
}

// PricePrompt is the round message while the response window is open.
func PricePrompt(price float64, remaining time.Duration) string {
	return fmt.Sprintf("The current price is %s. What do you want to do? You have %d seconds to respond.",
		game.FormatPrice(price), int(remaining.Round(time.Second)/time.Second))
}

// Deadline replaces the prompt once the window has closed.
func Deadline(price float64) string {
	return fmt.Sprintf("The current price was %s. Time's up!", game.FormatPrice(price))
}

// Liquidations announces players force-closed by a price update.
func Liquidations(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return fmt.Sprintf("💥 Liquidated: %s", strings.Join(names, ", "))
}
