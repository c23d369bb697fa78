package api

import (
	"context"
	"net/http"
	"time"

	"tradeSimServer/config"
	"tradeSimServer/db"
	"tradeSimServer/engine"
	"tradeSimServer/notify"
	"tradeSimServer/render"
	"tradeSimServer/state"
)

// Handler serves the chat interaction webhook and the read-only endpoints.
type Handler struct {
	engine    *engine.Engine
	sink      notify.Sink
	countdown time.Duration
	dedupeTTL time.Duration

	// swapped out in tests
	claim          func(ctx context.Context, roomID, interactionID string, ttl time.Duration) (bool, error)
	archive        func(ctx context.Context, snap state.SessionSnapshot, endedAt time.Time) error
	redisHealth    func(ctx context.Context) error
	postgresHealth func(ctx context.Context) error
	now            func() time.Time
}

func NewHandler(e *engine.Engine, sink notify.Sink, cfg *config.Config) *Handler {
	return &Handler{
		engine:    e,
		sink:      sink,
		countdown: cfg.Game.Countdown(),
		dedupeTTL: cfg.Redis.DedupeTTL(),
		claim:     db.ClaimInteraction,
		archive:   db.ArchiveSession,
		now:       time.Now,

		redisHealth:    db.HealthCheck,
		postgresHealth: db.HealthCheckPostgres,
	}
}

// Routes registers every endpoint on mux
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/interactions", corsMiddleware(h.HandleInteraction))
	mux.HandleFunc("/api/leaderboard", corsMiddleware(h.HandleGetLeaderboard))
	mux.HandleFunc("/api/positions", corsMiddleware(h.HandleGetPositions))
	mux.HandleFunc("/api/rules", corsMiddleware(HandleGetRules))
	mux.HandleFunc("/api/history", corsMiddleware(HandleGetHistory))
	mux.HandleFunc("/api/health", corsMiddleware(h.HandleHealthCheck))
}

// RoomMessages is what a new spectator of a room sees first.
func (h *Handler) RoomMessages(roomID string) []notify.Message {
	positions, err := h.engine.PositionBoard(roomID)
	if err != nil {
		return nil
	}
	leaderboard, _ := h.engine.Leaderboard(roomID)
	return []notify.Message{
		notify.Text(notify.KindPositions, positions...),
		notify.Text(notify.KindLeaderboard, leaderboard...),
	}
}

// CountdownNotifier renders scheduler ticks and delivers them to the room.
func CountdownNotifier(sink notify.Sink, timeout time.Duration) func(engine.CountdownTick) {
	return func(tick engine.CountdownTick) {
		msg := notify.Text(notify.KindCountdown, render.PricePrompt(tick.Price, tick.Remaining))
		if tick.Expired {
			msg = notify.Text(notify.KindDeadline, render.Deadline(tick.Price))
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := sink.Deliver(ctx, tick.RoomID, msg); err != nil {
			logDeliveryError(tick.RoomID, msg.Kind, err)
		}
	}
}
