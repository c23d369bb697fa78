// api/history.go
package api

import (
	"net/http"
	"strconv"

	"github.com/zeromicro/go-zero/core/logx"

	"tradeSimServer/config"
	"tradeSimServer/db"
)

/* =========================
   RESPONSE TYPES
========================= */

// LeaderboardEntryResponse represents a single all-time leaderboard entry
type LeaderboardEntryResponse struct {
	Rank        int     `json:"rank"`
	PlayerID    string  `json:"playerId"`
	DisplayName string  `json:"displayName"`
	Pnl         float64 `json:"pnl"`
	Sessions    int     `json:"sessions"`
}

// HistoryResponse is the all-time leaderboard plus recent session results
type HistoryResponse struct {
	Success      bool                       `json:"success"`
	Leaderboard  []LeaderboardEntryResponse `json:"leaderboard"`
	UserPosition *LeaderboardEntryResponse  `json:"userPosition,omitempty"`
	Results      []*db.SessionResultRecord  `json:"results"`
}

func entryFromRecord(record *db.PlayerPnLRecord) LeaderboardEntryResponse {
	return LeaderboardEntryResponse{
		Rank:        record.Rank,
		PlayerID:    record.PlayerID,
		DisplayName: record.DisplayName,
		Pnl:         record.Amount,
		Sessions:    record.Sessions,
	}
}

/* =========================
   HTTP ENDPOINTS
========================= */

// HandleGetHistory handles GET /api/history
// Query params: limit (optional), playerId (optional) - filter results and get the player's rank
func HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := config.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			sendError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, config.MaxHistoryLimit)
	}
	playerID := r.URL.Query().Get("playerId")

	ctx := r.Context()

	records, err := db.GetPlayerPnLLeaderboard(ctx, limit)
	if err != nil {
		logx.WithContext(ctx).Errorf("❌ Failed to get leaderboard: %v", err)
		sendError(w, http.StatusInternalServerError, "Failed to retrieve leaderboard")
		return
	}

	results, err := db.GetRecentSessionResults(ctx, playerID, limit)
	if err != nil {
		logx.WithContext(ctx).Errorf("❌ Failed to get session results: %v", err)
		sendError(w, http.StatusInternalServerError, "Failed to retrieve session results")
		return
	}

	response := HistoryResponse{
		Success:     true,
		Leaderboard: make([]LeaderboardEntryResponse, 0, len(records)),
		Results:     results,
	}

	userInTop := false
	for _, record := range records {
		response.Leaderboard = append(response.Leaderboard, entryFromRecord(record))
		if record.PlayerID == playerID {
			userInTop = true
		}
	}

	// If not in the top N, fetch their position
	if playerID != "" && !userInTop {
		userRecord, err := db.GetPlayerPnLRank(ctx, playerID)
		if err != nil {
			logx.WithContext(ctx).Errorf("⚠️ Failed to get player rank: %v", err)
		} else if userRecord != nil {
			entry := entryFromRecord(userRecord)
			response.UserPosition = &entry
		}
	}

	sendJSON(w, response)
	logx.WithContext(ctx).Infof("📋 Retrieved history with %d leaderboard entries", len(records))
}
