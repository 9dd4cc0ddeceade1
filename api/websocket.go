package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"fleetdash/models"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10 // 54 seconds
	actionTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Client is one attached browser.
type Client struct {
	id   string
	hub  *WebSocketHub
	conn *websocket.Conn
	send chan []byte
}

// WebSocketHub fans view events out to every attached browser.
type WebSocketHub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	logger     *slog.Logger
}

func NewWebSocketHub(logger *slog.Logger) *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves register/unregister requests until ctx is done, then
// drops every client.
func (h *WebSocketHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("browser attached", "client_id", client.id, "total", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("browser detached", "client_id", client.id, "total", total)

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// attach registers client. It reports false once Run has returned.
func (h *WebSocketHub) attach(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// detach unregisters client. After Run has returned every client is
// already dropped.
func (h *WebSocketHub) detach(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastToAll sends a message to all connected clients
func (h *WebSocketHub) BroadcastToAll(message interface{}) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal view event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- messageBytes:
		default:
			h.logger.Warn("⚠️ client channel full, skipping event", "client_id", client.id)
		}
	}
}

// Notify pushes a notification to every browser.
func (h *WebSocketHub) Notify(n models.Notification) {
	h.BroadcastToAll(models.ViewEvent{Type: models.ViewNotify, Data: n})
}

func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// sendTo queues message for one client if it is still attached.
func (h *WebSocketHub) sendTo(client *Client, message []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[client] {
		return false
	}
	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// HandleWebSocket attaches a browser: it receives a snapshot, then every
// incremental view event. The snapshot is taken on the dashboard loop
// after the client is registered, so no event between the two is lost.
// Operator actions the browser sends are forwarded to the dashboard.
func HandleWebSocket(srv *Server, c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		srv.Hub.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		id:   uuid.NewString(),
		hub:  srv.Hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	if !client.hub.attach(client) {
		srv.Hub.logger.Warn("refusing browser, hub stopped", "client_id", client.id)
		conn.Close()
		return
	}
	go client.writePump()

	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()
	err = srv.Dashboard.Do(ctx, func() {
		data, err := json.Marshal(models.ViewEvent{Type: models.ViewSnapshot, Data: srv.snapshot()})
		if err != nil {
			srv.Hub.logger.Error("failed to marshal snapshot", "error", err)
			return
		}
		srv.Hub.sendTo(client, data)
	})
	if err != nil {
		srv.Hub.logger.Error("failed to snapshot dashboard for browser", "client_id", client.id, "error", err)
	}

	go client.readPump(srv)
}

// readPump handles operator actions from the browser
func (c *Client) readPump(srv *Server) {
	defer func() {
		c.hub.detach(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(64 << 10)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("browser websocket error", "client_id", c.id, "error", err)
			}
			return
		}

		var action models.OperatorAction
		if err := json.Unmarshal(message, &action); err != nil {
			c.hub.logger.Warn("dropping malformed browser action", "client_id", c.id, "error", err)
			continue
		}
		c.apply(srv, action)
	}
}

func (c *Client) apply(srv *Server, action models.OperatorAction) {
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	var err error
	switch action.Type {
	case models.ActionTrack:
		_, _, err = srv.Dashboard.Track(ctx, action.DeviceID)
	case models.ActionDragStart:
		_, err = srv.Dashboard.Drag(ctx)
	case models.ActionZoomEnd:
		zoom, zoomErr := models.CheckZoom(action.Zoom)
		if zoomErr != nil {
			c.hub.logger.Warn("dropping browser zoom", "client_id", c.id, "error", zoomErr)
			return
		}
		err = srv.Dashboard.Zoom(ctx, zoom)
	default:
		c.hub.logger.Debug("ignoring browser action", "client_id", c.id, "type", action.Type)
		return
	}
	if err != nil {
		c.hub.logger.Error("browser action failed", "client_id", c.id, "type", action.Type, "error", err)
	}
}

// writePump sends view events and keeps the browser connection alive
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
