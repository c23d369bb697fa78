package api

import (
	"context"
	"net/http"
)

/* =========================
   HEALTH CHECK ENDPOINT
========================= */

// DependencyStatus describes one optional backing store. The server keeps
// serving games without either; only dedupe or the archive degrade.
type DependencyStatus struct {
	Role  string `json:"role"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type HealthResponse struct {
	Success        bool             `json:"success"`
	Status         string           `json:"status"`
	ActiveSessions int              `json:"activeSessions"`
	Redis          DependencyStatus `json:"redis"`
	Postgres       DependencyStatus `json:"postgres"`
}

func checkDependency(ctx context.Context, role string, check func(context.Context) error) DependencyStatus {
	status := DependencyStatus{Role: role, OK: true}
	if err := check(ctx); err != nil {
		status.OK = false
		status.Error = err.Error()
	}
	return status
}

// HandleHealthCheck reports the live session count and whether interaction
// dedupe and the session archive are backed.
// GET /api/health
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx := r.Context()
	resp := HealthResponse{
		Success:        true,
		Status:         "ok",
		ActiveSessions: h.engine.ActiveSessions(),
		Redis:          checkDependency(ctx, "interaction dedupe", h.redisHealth),
		Postgres:       checkDependency(ctx, "session archive", h.postgresHealth),
	}
	if !resp.Redis.OK || !resp.Postgres.OK {
		resp.Status = "degraded"
	}

	sendJSON(w, resp)
}
