package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yourusername/twitch-vod-go/internal/domain"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// ProgressWebSocketHandler streams download progress and completion
// messages to connected clients. It implements app.Broadcaster.
type ProgressWebSocketHandler struct {
	logger  *zap.Logger
	clients map[*websocket.Conn]chan []byte
	mu      sync.RWMutex
}

// NewProgressWebSocketHandler creates a new WebSocket handler
func NewProgressWebSocketHandler(log *zap.Logger) *ProgressWebSocketHandler {
	return &ProgressWebSocketHandler{
		logger:  log,
		clients: make(map[*websocket.Conn]chan []byte),
	}
}

// HandleWebSocket handles GET /ws/progress
func (h *ProgressWebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	out := make(chan []byte, 64)

	h.mu.Lock()
	h.clients[conn] = out
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	h.logger.Info("WebSocket client connected",
		zap.String("remote_addr", c.Request.RemoteAddr))

	// Read messages from client (for ping/pong)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case data := <-out:
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("Failed to send progress message", zap.Error(err))
				return
			}

		case <-ticker.C:
			// Send ping to keep connection alive
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}

// Broadcast fans a message out to every connected client. Slow clients
// drop messages rather than blocking the download path.
func (h *ProgressWebSocketHandler) Broadcast(msg domain.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal progress message", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, out := range h.clients {
		select {
		case out <- data:
		default:
		}
	}
}
