package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zeromicro/go-zero/core/logx"

	"tradeSimServer/config"
	"tradeSimServer/notify"
)

const roomChannelPrefix = "room:"

// RoomChannel is the subscription channel for a room's spectator feed.
func RoomChannel(roomID string) string {
	return roomChannelPrefix + roomID
}

// ClientConnection represents a connected spectator with their subscriptions
type ClientConnection struct {
	ID            string
	Conn          *websocket.Conn
	Subscriptions map[string]bool // room:<roomId>
	mu            sync.RWMutex
	writeMutex    sync.Mutex // Protects websocket writes
	Send          chan []byte
	hub           *Hub
}

// Message types from client
type ClientMessage struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data,omitempty"`
}

// Envelope is what spectators receive for every room message.
type Envelope struct {
	Type   string   `json:"type"`
	RoomID string   `json:"roomId,omitempty"`
	Pages  []string `json:"pages,omitempty"`
	Error  string   `json:"error,omitempty"`
}

type broadcast struct {
	channel string
	data    []byte
}

// Hub fans room messages out to subscribed websocket clients. It implements
// notify.Sink so the game can treat spectators like any other chat target.
type Hub struct {
	clients      map[*ClientConnection]bool
	clientsMutex sync.RWMutex

	register   chan *ClientConnection
	unregister chan *ClientConnection
	broadcasts chan broadcast
	done       chan struct{}

	upgrader websocket.Upgrader

	// initial returns what a new subscriber to a room should see first
	initial func(roomID string) []notify.Message

	clientIDCounter int64
}

func NewHub(initial func(roomID string) []notify.Message) *Hub {
	return &Hub{
		clients:    make(map[*ClientConnection]bool),
		register:   make(chan *ClientConnection),
		unregister: make(chan *ClientConnection),
		broadcasts: make(chan broadcast, 100),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.WSReadBufferSize,
			WriteBufferSize: config.WSWriteBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		initial: initial,
	}
}

// Run is the central message dispatcher. It returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	logx.Info("🚀 Spectator hub started")

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.clientsMutex.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.Conn.Close()
			}
			h.clientsMutex.Unlock()
			logx.Info("🛑 Spectator hub stopped")
			return

		case client := <-h.register:
			h.clientsMutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.clientsMutex.Unlock()
			logx.Infof("✅ Client registered: %s (Total: %d)", client.ID, total)

		case client := <-h.unregister:
			h.clientsMutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			total := len(h.clients)
			h.clientsMutex.Unlock()
			logx.Infof("👋 Client unregistered: %s (Total: %d)", client.ID, total)

		case msg := <-h.broadcasts:
			h.broadcastToSubscribers(msg.channel, msg.data)
		}
	}
}

// Deliver queues a room message for every subscriber of that room.
func (h *Hub) Deliver(ctx context.Context, roomID string, msg notify.Message) error {
	data, err := json.Marshal(Envelope{Type: string(msg.Kind), RoomID: roomID, Pages: msg.Pages})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	select {
	case h.broadcasts <- broadcast{channel: RoomChannel(roomID), data: data}:
		return nil
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return len(h.clients)
}

// broadcastToSubscribers sends data to all clients subscribed to a channel
func (h *Hub) broadcastToSubscribers(channel string, data []byte) {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()

	for client := range h.clients {
		client.mu.RLock()
		subscribed := client.Subscriptions[channel]
		client.mu.RUnlock()

		if subscribed {
			select {
			case client.Send <- data:
			default:
				logx.Infof("⚠️ Client %s send buffer full, skipping message", client.ID)
			}
		}
	}
}

// HandleWS is the spectator WebSocket endpoint
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	logx.Infof("📥 WebSocket connection from: %s", r.RemoteAddr)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logx.Errorf("❌ WebSocket upgrade failed: %v", err)
		return
	}

	client := &ClientConnection{
		ID:            h.generateClientID(),
		Conn:          conn,
		Subscriptions: make(map[string]bool),
		Send:          make(chan []byte, config.WSSendBuffer),
		hub:           h,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// writePump sends queued messages and keeps the connection alive with pings
func (c *ClientConnection) writePump() {
	ticker := time.NewTicker(config.WSPingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			if !ok {
				c.writeControl(websocket.CloseMessage, []byte{})
				return
			}
			c.writeMutex.Lock()
			c.Conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
			err := c.Conn.WriteMessage(websocket.TextMessage, message)
			c.writeMutex.Unlock()

			if err != nil {
				logx.Errorf("❌ Write error for client %s: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			if err := c.writeControl(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *ClientConnection) writeControl(messageType int, data []byte) error {
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	return c.Conn.WriteControl(messageType, data, time.Now().Add(config.WSWriteDeadline))
}

// readPump reads subscription requests until the connection drops
func (c *ClientConnection) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
	})

	for {
		_, messageBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logx.Errorf("❌ Read error for client %s: %v", c.ID, err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			logx.Errorf("❌ Failed to parse message from client %s: %v", c.ID, err)
			c.enqueue(Envelope{Type: "error", Error: "invalid message"})
			continue
		}

		c.handleMessage(msg)
	}
}

// handleMessage processes incoming client messages
func (c *ClientConnection) handleMessage(msg ClientMessage) {
	switch msg.Type {
	case "subscribe":
		channel, ok := roomChannel(msg.Data)
		if !ok {
			c.enqueue(Envelope{Type: "error", Error: "channel must be room:<roomId>"})
			return
		}
		c.mu.Lock()
		c.Subscriptions[channel] = true
		c.mu.Unlock()
		logx.Infof("📡 Client %s subscribed to: %s", c.ID, channel)

		roomID := strings.TrimPrefix(channel, roomChannelPrefix)
		c.enqueue(Envelope{Type: "subscribed", RoomID: roomID})
		c.sendInitialData(roomID)

	case "unsubscribe":
		channel, ok := roomChannel(msg.Data)
		if !ok {
			return
		}
		c.mu.Lock()
		delete(c.Subscriptions, channel)
		c.mu.Unlock()
		logx.Infof("📴 Client %s unsubscribed from: %s", c.ID, channel)

	case "ping":
		c.enqueue(Envelope{Type: "pong"})

	default:
		logx.Infof("⚠️ Unknown message type from client %s: %s", c.ID, msg.Type)
		c.enqueue(Envelope{Type: "error", Error: "unknown message type"})
	}
}

func roomChannel(data map[string]interface{}) (string, bool) {
	channel, _ := data["channel"].(string)
	if !strings.HasPrefix(channel, roomChannelPrefix) || len(channel) == len(roomChannelPrefix) {
		return "", false
	}
	return channel, true
}

// sendInitialData sends the room's current boards right after a subscribe
func (c *ClientConnection) sendInitialData(roomID string) {
	if c.hub.initial == nil {
		return
	}
	for _, msg := range c.hub.initial(roomID) {
		c.enqueue(Envelope{Type: string(msg.Kind), RoomID: roomID, Pages: msg.Pages})
	}
}

func (c *ClientConnection) enqueue(env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		logx.Errorf("❌ Failed to marshal %s for client %s: %v", env.Type, c.ID, err)
		return
	}

	// Send is closed by the hub on unregister, which only happens after
	// readPump (the sole caller) has returned.
	select {
	case c.Send <- data:
	default:
		logx.Infof("⚠️ Client %s send buffer full, dropping %s", c.ID, env.Type)
	}
}

// generateClientID creates a unique client ID
func (h *Hub) generateClientID() string {
	id := atomic.AddInt64(&h.clientIDCounter, 1)
	return fmt.Sprintf("%d-%d", time.Now().Unix(), id)
}
