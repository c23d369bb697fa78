package api

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"tradeSimServer/config"
	"tradeSimServer/engine"
	"tradeSimServer/game"
	"tradeSimServer/notify"
	"tradeSimServer/render"
)

/* =========================
   REQUEST / RESPONSE TYPES
========================= */

const (
	InteractionCommand   = "command"
	InteractionComponent = "component"

	startSimID = "start_sim"
)

type InteractionUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
}

// DisplayName is username#discriminator, or the bare username for accounts
// without a legacy discriminator.
func (u InteractionUser) DisplayName() string {
	name := u.Username
	if name == "" {
		name = u.ID
	}
	if u.Discriminator == "" || u.Discriminator == "0" {
		return name
	}
	return name + "#" + u.Discriminator
}

type InteractionOption struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// InteractionRequest is a slash command or button press relayed from chat
type InteractionRequest struct {
	ID       string              `json:"id"`
	Type     string              `json:"type"`
	RoomID   string              `json:"roomId"`
	User     InteractionUser     `json:"user"`
	Name     string              `json:"name,omitempty"`
	CustomID string              `json:"customId,omitempty"`
	Options  []InteractionOption `json:"options,omitempty"`
}

type Component struct {
	CustomID string `json:"customId"`
	Label    string `json:"label"`
	Style    string `json:"style"`
}

type InteractionResponse struct {
	Content    string      `json:"content"`
	Ephemeral  bool        `json:"ephemeral"`
	Components []Component `json:"components,omitempty"`
	Pages      []string    `json:"pages,omitempty"`
	Duplicate  bool        `json:"duplicate,omitempty"`
}

var actionComponents = []Component{
	{CustomID: "buy_share", Label: "Buy", Style: "success"},
	{CustomID: "sell_share", Label: "Sell", Style: "danger"},
	{CustomID: "close", Label: "Close", Style: "secondary"},
	{CustomID: "reverse", Label: "Reverse", Style: "primary"},
	{CustomID: "double", Label: "x2", Style: "primary"},
	{CustomID: "trim", Label: "Trim", Style: "secondary"},
}

func reply(content string) *InteractionResponse {
	return &InteractionResponse{Content: content}
}

func private(content string) *InteractionResponse {
	return &InteractionResponse{Content: content, Ephemeral: true}
}

func pages(pages []string, empty string) *InteractionResponse {
	if len(pages) == 0 {
		return reply(empty)
	}
	return &InteractionResponse{Content: pages[0], Pages: pages}
}

/* =========================
   HTTP ENDPOINT
========================= */

// HandleInteraction handles POST /api/interactions
func (h *Handler) HandleInteraction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, config.MaxInteractionBody)
	var req InteractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.RoomID == "" {
		sendError(w, http.StatusBadRequest, "roomId is required")
		return
	}
	if req.User.ID == "" {
		sendError(w, http.StatusBadRequest, "user.id is required")
		return
	}

	ctx := r.Context()
	claimed, err := h.claim(ctx, req.RoomID, req.ID, h.dedupeTTL)
	if err != nil {
		logx.WithContext(ctx).Errorf("⚠️ Interaction dedupe unavailable: %v", err)
	}
	if !claimed {
		sendJSON(w, &InteractionResponse{Duplicate: true, Ephemeral: true})
		return
	}

	var resp *InteractionResponse
	switch req.Type {
	case InteractionCommand:
		resp = h.handleCommand(ctx, &req)
	case InteractionComponent:
		resp = h.handleComponent(&req)
	default:
		sendError(w, http.StatusBadRequest, "Unknown interaction type")
		return
	}

	sendJSON(w, resp)
}

/* =========================
   COMMANDS
========================= */

func (h *Handler) handleCommand(ctx context.Context, req *InteractionRequest) *InteractionResponse {
	room, caller := req.RoomID, req.User.ID

	switch req.Name {
	case "sim":
		resp := private("Click to start the simulation.")
		resp.Components = []Component{{CustomID: startSimID, Label: "Start Sim", Style: "primary"}}
		return resp

	case "setprice":
		return h.setPrice(ctx, room, caller, req.number("price"))

	case "set_value":
		return h.setConfig(req, "set_value", engine.FieldPointValue)

	case "set_double":
		return h.setConfig(req, "set_double", engine.FieldDoublesAllowed)

	case "liquidation_threshold":
		return h.setConfig(req, "liquidation_threshold", engine.FieldLiquidationThreshold)

	case "leaderboard":
		board, err := h.engine.Leaderboard(room)
		if err != nil {
			return private(engine.UserMessage(err))
		}
		return pages(board, "No one has joined the simulation yet.")

	case "current_positions":
		board, err := h.engine.PositionBoard(room)
		if err != nil {
			return private(engine.UserMessage(err))
		}
		return pages(board, "No players have an open position.")

	case "rules":
		return reply(render.Rules())

	case "close_all":
		ack, err := h.engine.CloseAll(room, caller)
		if err != nil {
			return private(engine.UserMessage(err))
		}
		if board, err := h.engine.PositionBoard(room); err == nil {
			notify.Go(h.sink, room, notify.Text(notify.KindPositions, board...))
		}
		return reply(ack)
	}

	return private("Unknown command.")
}

func (h *Handler) setConfig(req *InteractionRequest, option string, field engine.ConfigField) *InteractionResponse {
	ack, err := h.engine.SetConfig(req.RoomID, req.User.ID, field, req.number(option))
	if err != nil {
		return private(engine.UserMessage(err))
	}
	return reply(ack)
}

func (h *Handler) setPrice(ctx context.Context, room, caller string, price float64) *InteractionResponse {
	update, err := h.engine.AdvancePrice(room, caller, price)
	if err != nil {
		return private(engine.UserMessage(err))
	}

	if update.Ended {
		final := *update.Final
		endedAt := h.now()
		go func() {
			archiveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := h.archive(archiveCtx, final, endedAt); err != nil {
				logx.Errorf("⚠️ Failed to archive session %s: %v", final.ID, err)
			}
		}()

		board := render.Leaderboard(final)
		notify.Go(h.sink, room,
			notify.Text(notify.KindSession, "Simulation is over."),
			notify.Text(notify.KindLeaderboard, board...),
		)
		logx.WithContext(ctx).Infof("🏁 Room %s simulation over", room)

		return &InteractionResponse{Content: "Simulation is over.", Pages: board}
	}

	prompt := render.PricePrompt(update.Price, h.countdown)
	msgs := []notify.Message{
		notify.Text(notify.KindPositions, update.PositionBoard...),
		notify.Text(notify.KindPrompt, prompt),
	}
	if len(update.Liquidated) > 0 {
		msgs = append([]notify.Message{
			notify.Text(notify.KindLiquidation, render.Liquidations(update.Liquidated)),
		}, msgs...)
	}
	notify.Go(h.sink, room, msgs...)

	return &InteractionResponse{
		Content:    prompt,
		Components: actionComponents,
		Pages:      update.PositionBoard,
	}
}

/* =========================
   COMPONENTS
========================= */

func (h *Handler) handleComponent(req *InteractionRequest) *InteractionResponse {
	if req.CustomID == startSimID {
		h.engine.StartSession(req.RoomID, req.User.ID, h.engine.Defaults())
		return private("Simulation started. Please use the /setprice command to set the current price and use the /set_value command to set the value for each point.")
	}

	kind, err := game.ParseActionKind(req.CustomID)
	if err != nil {
		return private("Unknown action.")
	}

	msg, err := h.engine.ApplyAction(req.RoomID, req.User.ID, req.User.DisplayName(), kind)
	if err != nil {
		return private(engine.UserMessage(err))
	}
	return private(msg)
}

/* =========================
   OPTION PARSING
========================= */

// number reads a numeric option sent either as a JSON number or a string.
// Missing or malformed values come back as NaN so the engine rejects them
// with the message for that setting, after its owner check.
func (req *InteractionRequest) number(name string) float64 {
	for _, opt := range req.Options {
		if opt.Name != name {
			continue
		}
		var n float64
		if err := json.Unmarshal(opt.Value, &n); err == nil {
			return n
		}
		var s string
		if err := json.Unmarshal(opt.Value, &s); err == nil {
			if v, err := engine.ParseNumber(s); err == nil {
				return v
			}
		}
	}
	return math.NaN()
}
