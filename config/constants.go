package config

import (
	"math"
	"time"
)

/* =========================
   GAME MECHANICS - TRADE SIM
========================= */

const (
	// Session defaults applied by a "start" action
	DefaultStockPrice           = 0.0
	DefaultPointValue           = 1.0
	DefaultDoublesAllowed       = 2
	DefaultLiquidationThreshold = 2500.0

	// Upper bound accepted by /set_double
	MaxDoublesAllowed = math.MaxInt32

	// Price sentinel that ends the session instead of moving the market
	EndSessionPrice = -100.0

	// Liquidated players are floored to -LiquidationPenaltyFactor * threshold
	LiquidationPenaltyFactor = 2.0

	// Doubling multiplies one realization of a leg
	DoubleMultiplier = 2.0

	// Rendering
	PlayersPerPage  = 20
	MoneyPrecision  = 2
	LiquidatedLabel = "Liquidated"
)

/* =========================
   RESPONSE WINDOW
========================= */

const (
	// Countdown shown after each price update before the buttons are removed
	CountdownDuration = 15 * time.Second
	CountdownStep     = 2 * time.Second
)

/* =========================
   REDIS CONFIGURATION
========================= */

const (
	// Interaction ids already processed (webhook retries)
	// Key: tradesim:interaction:{interactionId}
	RedisInteractionKey  = "tradesim:interaction:%s"
	InteractionDedupeTTL = 15 * time.Minute
)

/* =========================
   POSTGRESQL CONFIGURATION
========================= */

const (
	MaxConns        = 25
	MinConns        = 5
	ConnMaxLifetime = 5 * time.Minute

	// Limits for the all-time leaderboard endpoint
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

/* =========================
   API CONFIGURATION
========================= */

const (
	ServerPort = 8080
	ServerHost = "0.0.0.0"

	AllowOrigin = "*"

	// Upper bound for interaction payloads
	MaxInteractionBody = 64 * 1024
)

/* =========================
   WEBSOCKET CONFIGURATION
========================= */

const (
	WSReadDeadline  = 60 * time.Second
	WSWriteDeadline = 10 * time.Second
	WSPingInterval  = 30 * time.Second

	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024

	// Per-client outbound queue
	WSSendBuffer = 256

	MaxMessageSize = 512 * 1024 // 512KB
)
