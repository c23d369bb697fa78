package api

import (
	"errors"
	"net/http"

	"github.com/zeromicro/go-zero/core/logx"

	"tradeSimServer/engine"
	"tradeSimServer/render"
	"tradeSimServer/state"
)

/* =========================
   RESPONSE TYPES
========================= */

// BoardResponse carries rendered pages for a live room
type BoardResponse struct {
	Success bool                   `json:"success"`
	RoomID  string                 `json:"roomId"`
	Pages   []string               `json:"pages"`
	Session *state.SessionSnapshot `json:"session,omitempty"`
}

type RulesResponse struct {
	Success bool   `json:"success"`
	Rules   string `json:"rules"`
}

/* =========================
   HTTP ENDPOINTS
========================= */

// HandleGetLeaderboard handles GET /api/leaderboard?roomId=
// Query params: raw=1 (optional) - include the session snapshot
func (h *Handler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	h.serveBoard(w, r, h.engine.Leaderboard)
}

// HandleGetPositions handles GET /api/positions?roomId=
func (h *Handler) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	h.serveBoard(w, r, h.engine.PositionBoard)
}

func (h *Handler) serveBoard(w http.ResponseWriter, r *http.Request, board func(roomID string) ([]string, error)) {
	if r.Method != http.MethodGet {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	roomID := r.URL.Query().Get("roomId")
	if roomID == "" {
		sendError(w, http.StatusBadRequest, "roomId is required")
		return
	}

	pages, err := board(roomID)
	if errors.Is(err, engine.ErrNoActiveSession) {
		sendError(w, http.StatusNotFound, engine.UserMessage(err))
		return
	}
	if err != nil {
		logx.WithContext(r.Context()).Errorf("❌ Failed to render board for room %s: %v", roomID, err)
		sendError(w, http.StatusInternalServerError, "Failed to render board")
		return
	}

	response := BoardResponse{Success: true, RoomID: roomID, Pages: pages}
	if response.Pages == nil {
		response.Pages = []string{}
	}
	if r.URL.Query().Get("raw") == "1" {
		if snap, err := h.engine.Snapshot(roomID); err == nil {
			response.Session = &snap
		}
	}

	sendJSON(w, response)
}

// HandleGetRules handles GET /api/rules
func HandleGetRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	sendJSON(w, RulesResponse{Success: true, Rules: render.Rules()})
}
