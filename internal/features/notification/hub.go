package notification

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

// Hub fans notifications out to the connected browser sessions of each user.
// A user may hold several connections (tabs); delivery failures drop the dead
// connection and never block the sender.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]map[*websocket.Conn]bool
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		conns:  make(map[string]map[*websocket.Conn]bool),
		logger: logger,
	}
}

func (h *Hub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*websocket.Conn]bool)
	}
	h.conns[userID][conn] = true
}

func (h *Hub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.conns[userID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.conns, userID)
		}
	}
}

// Push sends the notification to every live connection of the user. Missing
// connections are not an error; the notification is already persisted.
func (h *Hub) Push(userID string, n *Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		h.logger.Error("failed to marshal notification", zap.Error(err))
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.conns[userID]))
	for conn := range h.conns[userID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Debug("dropping dead websocket connection",
				zap.String("user_id", userID), zap.Error(err))
			h.Unregister(userID, conn)
			conn.Close()
		}
	}
}
