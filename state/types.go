package state

import (
	"sync"
	"time"

	"tradeSimServer/game"
)

// ==============================================================================
// SESSION REGISTRY
// ==============================================================================
//
// One active GameSession per room. The registry lock only guards the map;
// each session serialises its own reads and writes with its own mutex, so
// rooms never contend with each other.
//
// ==============================================================================

type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*GameSession
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*GameSession),
	}
}

// Replace installs a session for its room and returns the one it displaced.
func (r *Registry) Replace(session *GameSession) *GameSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.sessions[session.RoomID]
	r.sessions[session.RoomID] = session
	return prev
}

func (r *Registry) Get(roomID string) (*GameSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[roomID]
	return session, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Clear drops every session.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = make(map[string]*GameSession)
}

// ==============================================================================
// GAME SESSION
// ==============================================================================

// Settings are the owner-configurable knobs of a session.
type Settings struct {
	PointValue           float64 `json:"pointValue"`
	DoublesAllowed       int     `json:"doublesAllowed"`
	LiquidationThreshold float64 `json:"liquidationThreshold"`
}

type GameSession struct {
	mu sync.Mutex

	ID      string
	RoomID  string
	OwnerID string

	StockPrice float64
	Settings

	StartedAt time.Time
	Ended     bool

	players map[string]*PlayerState
	order   []*PlayerState
}

func NewGameSession(id, roomID, ownerID string, settings Settings, startPrice float64) *GameSession {
	return &GameSession{
		ID:         id,
		RoomID:     roomID,
		OwnerID:    ownerID,
		StockPrice: startPrice,
		Settings:   settings,
		StartedAt:  time.Now(),
		players:    make(map[string]*PlayerState),
		order:      make([]*PlayerState, 0),
	}
}

// Lock serialises an operation on the session. Every read-modify-write
// of session or player state must happen while it is held.
func (s *GameSession) Lock()   { s.mu.Lock() }
func (s *GameSession) Unlock() { s.mu.Unlock() }

func (s *GameSession) IsOwner(playerID string) bool {
	return s.OwnerID == playerID
}

// ==============================================================================
// PLAYER STATE
// ==============================================================================

type PlayerState struct {
	PlayerID    string
	DisplayName string
	JoinOrder   int

	Position   game.Position
	EnterPrice float64 // meaningful only while Position is open
	Profit     float64 // realized ticks, unscaled

	DoublesRemaining int
	IsDoubled        bool

	NumTrades              int
	NumWinningRealizations int
	Liquidated             bool
}

// ==============================================================================
// SNAPSHOTS (read-only copies for renderers and the archive)
// ==============================================================================

type PlayerSnapshot struct {
	PlayerID               string        `json:"playerId"`
	DisplayName            string        `json:"displayName"`
	Position               game.Position `json:"position,omitempty"`
	EnterPrice             *float64      `json:"enterPrice,omitempty"`
	Profit                 float64       `json:"profit"`
	DoublesRemaining       int           `json:"doublesRemaining"`
	IsDoubled              bool          `json:"isDoubled"`
	NumTrades              int           `json:"numTrades"`
	NumWinningRealizations int           `json:"numWinningRealizations"`
	Liquidated             bool          `json:"liquidated"`
}

type SessionSnapshot struct {
	ID         string    `json:"id"`
	RoomID     string    `json:"roomId"`
	OwnerID    string    `json:"ownerId"`
	StockPrice float64   `json:"stockPrice"`
	Settings   Settings  `json:"settings"`
	StartedAt  time.Time `json:"startedAt"`
	Ended      bool      `json:"ended"`

	// Players in join order
	Players []PlayerSnapshot `json:"players"`
}

func (p *PlayerState) Snapshot() PlayerSnapshot {
	snap := PlayerSnapshot{
		PlayerID:               p.PlayerID,
		DisplayName:            p.DisplayName,
		Position:               p.Position,
		Profit:                 p.Profit,
		DoublesRemaining:       p.DoublesRemaining,
		IsDoubled:              p.IsDoubled,
		NumTrades:              p.NumTrades,
		NumWinningRealizations: p.NumWinningRealizations,
		Liquidated:             p.Liquidated,
	}
	if p.Position.IsOpen() {
		v := p.EnterPrice
		snap.EnterPrice = &v
	}
	return snap
}

// Snapshot copies the session. Caller holds the session lock.
func (s *GameSession) Snapshot() SessionSnapshot {
	out := SessionSnapshot{
		ID:         s.ID,
		RoomID:     s.RoomID,
		OwnerID:    s.OwnerID,
		StockPrice: s.StockPrice,
		Settings:   s.Settings,
		StartedAt:  s.StartedAt,
		Ended:      s.Ended,
		Players:    make([]PlayerSnapshot, 0, len(s.order)),
	}
	for _, p := range s.order {
		out.Players = append(out.Players, p.Snapshot())
	}
	return out
}
