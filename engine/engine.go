package engine

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"tradeSimServer/config"
	"tradeSimServer/crypto"
	"tradeSimServer/game"
	"tradeSimServer/render"
	"tradeSimServer/state"
)

// ConfigField names an owner-settable session knob.
type ConfigField string

const (
	FieldPointValue           ConfigField = "pointValue"
	FieldDoublesAllowed       ConfigField = "doublesAllowed"
	FieldLiquidationThreshold ConfigField = "liquidationThreshold"
)

// PriceUpdate is the outcome of an owner price update. When Ended is set the
// session was closed out by the end sentinel and Final holds its last state.
type PriceUpdate struct {
	Price         float64
	Liquidated    []string
	Closed        []string
	PositionBoard []string
	Ended         bool
	Final         *state.SessionSnapshot

	// countdown round taken under the session lock
	round uint64
}

// Engine is the only entry point into session state. Every operation holds
// the room's session lock for its full read-modify-write.
type Engine struct {
	registry   *state.Registry
	defaults   state.Settings
	startPrice float64
	scheduler  *Scheduler
	newID      func() string
	now        func() time.Time
}

type Option func(*Engine)

// WithScheduler attaches the countdown scheduler started by price updates.
func WithScheduler(s *Scheduler) Option {
	return func(e *Engine) { e.scheduler = s }
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// WithClock overrides the clock stamping session start times.
func WithClock(fn func() time.Time) Option {
	return func(e *Engine) { e.now = fn }
}

func New(registry *state.Registry, defaults config.GameConf, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		defaults: state.Settings{
			PointValue:           defaults.PointValue,
			DoublesAllowed:       defaults.DoublesAllowed,
			LiquidationThreshold: defaults.LiquidationThreshold,
		},
		startPrice: config.DefaultStockPrice,
		newID:      crypto.NewSessionID,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Defaults returns the settings a new session starts with.
func (e *Engine) Defaults() state.Settings {
	return e.defaults
}

// ==============================================================================
// SESSION LIFECYCLE
// ==============================================================================

// StartSession installs a fresh session for the room, discarding any previous
// one along with all of its players.
func (e *Engine) StartSession(roomID, ownerID string, settings state.Settings) state.SessionSnapshot {
	session := state.NewGameSession(e.newID(), roomID, ownerID, settings, e.startPrice)
	session.StartedAt = e.now()

	prev := e.registry.Replace(session)

	// A price update racing on the replaced session must not restart its
	// countdown, so the old session is ended under its own lock.
	var seq uint64
	if prev != nil {
		prev.Lock()
		prev.Ended = true
		seq = e.nextRound()
		prev.Unlock()
	} else {
		seq = e.nextRound()
	}
	if e.scheduler != nil {
		e.scheduler.CancelRound(roomID, seq)
	}

	if prev != nil {
		logx.Infof("🔄 Session %s in room %s replaced by %s", prev.ID, roomID, session.ID)
	} else {
		logx.Infof("🎮 Session %s started in room %s by %s", session.ID, roomID, ownerID)
	}

	session.Lock()
	defer session.Unlock()
	return session.Snapshot()
}

// ActiveSessions counts rooms holding a session, ended ones included.
func (e *Engine) ActiveSessions() int {
	return e.registry.Len()
}

// Reset drops every session and stops all countdowns.
func (e *Engine) Reset() {
	if e.scheduler != nil {
		e.scheduler.Stop()
	}
	e.registry.Clear()
}

func (e *Engine) nextRound() uint64 {
	if e.scheduler == nil {
		return 0
	}
	return e.scheduler.NextRound()
}

func (e *Engine) session(roomID string) (*state.GameSession, error) {
	session, ok := e.registry.Get(roomID)
	if !ok {
		return nil, newError(ErrNoActiveSession, noActiveSessionMessage)
	}
	return session, nil
}

// ==============================================================================
// OWNER OPERATIONS
// ==============================================================================

// SetConfig updates one session knob and returns the acknowledgement text.
func (e *Engine) SetConfig(roomID, callerID string, field ConfigField, value float64) (string, error) {
	session, err := e.session(roomID)
	if err != nil {
		return "", err
	}

	session.Lock()
	defer session.Unlock()

	if session.Ended {
		return "", errSessionEnded()
	}

	switch field {
	case FieldPointValue:
		if !session.IsOwner(callerID) {
			return "", notOwner("set the point value")
		}
		if !validNumber(value) {
			return "", newError(ErrInvalidNumericInput, "Invalid point value. Please enter a valid number.")
		}
		session.PointValue = value
		logx.Infof("⚙️ Room %s point value set to %v", roomID, value)
		return "1 point is set to be " + game.FormatPrice(value) + ".", nil

	case FieldDoublesAllowed:
		if !session.IsOwner(callerID) {
			return "", notOwner("set the number of doubles")
		}
		if !validNumber(value) || value != math.Trunc(value) || value > config.MaxDoublesAllowed {
			return "", newError(ErrInvalidNumericInput, "Invalid value. Please enter a valid whole number.")
		}
		session.DoublesAllowed = int(value)
		logx.Infof("⚙️ Room %s doubles allowed set to %d", roomID, session.DoublesAllowed)
		return "The number of doubles is " + strconv.Itoa(session.DoublesAllowed) + ".", nil

	case FieldLiquidationThreshold:
		if !session.IsOwner(callerID) {
			return "", notOwner("set the threshold value")
		}
		if !validNumber(value) {
			return "", newError(ErrInvalidNumericInput, "Invalid threshold value. Please enter a valid number.")
		}
		session.LiquidationThreshold = value
		logx.Infof("⚙️ Room %s liquidation threshold set to %v", roomID, value)
		return "The liquidation threshold is set to be " + game.FormatPrice(value) + ".", nil
	}

	return "", newError(ErrInvalidNumericInput, "Unknown setting %q.", field)
}

// AdvancePrice moves the session to a new price, sweeps liquidations and
// starts the response countdown. The end sentinel instead realizes every open
// position at the last price and ends the session.
func (e *Engine) AdvancePrice(roomID, callerID string, price float64) (*PriceUpdate, error) {
	session, err := e.session(roomID)
	if err != nil {
		return nil, err
	}

	update, err := e.advance(session, callerID, price)
	if err != nil {
		return nil, err
	}

	// Scheduler calls stay outside the session lock: they wait for an
	// in-flight tick to finish delivering. The round number keeps a slower
	// caller from installing an older price's countdown.
	if e.scheduler != nil {
		if update.Ended {
			e.scheduler.CancelRound(roomID, update.round)
		} else {
			e.scheduler.StartRound(roomID, update.round, price)
		}
	}
	return update, nil
}

func (e *Engine) advance(session *state.GameSession, callerID string, price float64) (*PriceUpdate, error) {
	session.Lock()
	defer session.Unlock()

	if !session.IsOwner(callerID) {
		return nil, notOwner("set the price")
	}
	if session.Ended {
		return nil, errSessionEnded()
	}

	if price == config.EndSessionPrice {
		closed := realizeAll(session)
		session.Ended = true
		final := session.Snapshot()
		logx.Infof("🏁 Session %s in room %s ended, %d positions realized", session.ID, session.RoomID, len(closed))
		return &PriceUpdate{Price: price, Closed: closed, Ended: true, Final: &final, round: e.nextRound()}, nil
	}

	if !game.ValidPrice(price) {
		return nil, newError(ErrInvalidNumericInput, "Invalid stock price. Please enter a valid number.")
	}

	session.StockPrice = price
	liquidated := sweep(session)
	board := render.PositionBoard(session.Snapshot())

	logx.Infof("📈 Room %s price %.2f, %d liquidated", session.RoomID, price, len(liquidated))
	return &PriceUpdate{Price: price, Liquidated: liquidated, PositionBoard: board, round: e.nextRound()}, nil
}

// CloseAll realizes every open position at the current price without ending
// the session.
func (e *Engine) CloseAll(roomID, callerID string) (string, error) {
	session, err := e.session(roomID)
	if err != nil {
		return "", err
	}

	session.Lock()
	defer session.Unlock()

	if !session.IsOwner(callerID) {
		return "", notOwner("close all positions")
	}
	if session.Ended {
		return "", errSessionEnded()
	}

	closed := realizeAll(session)
	logx.Infof("🧹 Room %s closed %d positions at %.2f", roomID, len(closed), session.StockPrice)
	return "All Current Positions are Closed.", nil
}

// ==============================================================================
// READ-ONLY VIEWS
// ==============================================================================

func (e *Engine) Leaderboard(roomID string) ([]string, error) {
	snap, err := e.Snapshot(roomID)
	if err != nil {
		return nil, err
	}
	return render.Leaderboard(snap), nil
}

func (e *Engine) PositionBoard(roomID string) ([]string, error) {
	snap, err := e.Snapshot(roomID)
	if err != nil {
		return nil, err
	}
	return render.PositionBoard(snap), nil
}

// Snapshot copies the room's session state.
func (e *Engine) Snapshot(roomID string) (state.SessionSnapshot, error) {
	session, err := e.session(roomID)
	if err != nil {
		return state.SessionSnapshot{}, err
	}

	session.Lock()
	defer session.Unlock()
	return session.Snapshot(), nil
}

// ParseNumber reads a numeric command option.
func ParseNumber(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, newError(ErrInvalidNumericInput, "Invalid value. Please enter a valid number.")
	}
	return v, nil
}

func validNumber(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
