package devserver

import (
	"context"
	"sync"
	"time"

	"github.com/teamchat/internal/logger"
	"github.com/teamchat/internal/realtime"
)

// Hub раздаёт realtime-события подключённым клиентам. Подключение — это
// персональный канал пользователя; joinChat/leaveChat дополнительно помечают
// открытую переписку клиента (для typing-сигналов).
type Hub struct {
	repo Repository

	mu      sync.RWMutex
	clients map[string]map[*wsClient]struct{} // userID -> соединения
}

func NewHub(repo Repository) *Hub {
	return &Hub{
		repo:    repo,
		clients: make(map[string]map[*wsClient]struct{}),
	}
}

func (h *Hub) addClient(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c.userID]; !ok {
		h.clients[c.userID] = make(map[*wsClient]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	h.mu.Unlock()
	logger.Infof("ws connected user=%s", c.userID)
}

func (h *Hub) removeClient(c *wsClient) {
	h.mu.Lock()
	clients, ok := h.clients[c.userID]
	if ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.clients, c.userID)
		}
	}
	h.mu.Unlock()
	c.close()
}

// HandleEvent обрабатывает входящее событие клиента.
func (h *Hub) HandleEvent(ctx context.Context, c *wsClient, ev realtime.Event) {
	switch ev.Type {
	case realtime.EventJoinChat:
		h.handleJoin(ctx, c, ev.ChatID)
	case realtime.EventLeaveChat:
		c.setJoined("")
	case realtime.EventTyping:
		h.handleTyping(ctx, c, ev)
	default:
		c.send(realtime.Event{Type: realtime.EventError, Error: "unknown event type"})
	}
}

func (h *Hub) handleJoin(ctx context.Context, c *wsClient, chatID string) {
	if chatID == "" {
		c.send(realtime.Event{Type: realtime.EventError, Error: "chatId required"})
		return
	}
	chat, err := h.repo.GetChat(ctx, chatID)
	if err != nil || !chat.HasMember(c.userID) {
		c.send(realtime.Event{Type: realtime.EventError, Error: "not a member"})
		return
	}
	c.setJoined(chatID)
}

func (h *Hub) handleTyping(ctx context.Context, c *wsClient, ev realtime.Event) {
	if ev.ChatID == "" {
		return
	}
	chat, err := h.repo.GetChat(ctx, ev.ChatID)
	if err != nil || !chat.HasMember(c.userID) {
		return
	}
	out := realtime.Event{
		Type:     realtime.EventTyping,
		ChatID:   ev.ChatID,
		UserID:   c.userID,
		IsTyping: ev.IsTyping,
	}
	for _, m := range chat.Members {
		if m.ID != c.userID {
			h.SendToUser(m.ID, out)
		}
	}
}

// BroadcastToChat доставляет событие всем участникам переписки.
func (h *Hub) BroadcastToChat(ctx context.Context, chatID string, ev realtime.Event) {
	defer logger.DeferLogDuration("hub.BroadcastToChat", time.Now())()
	chat, err := h.repo.GetChat(ctx, chatID)
	if err != nil {
		logger.Errorf("hub broadcast chat=%s: %v", chatID, err)
		return
	}
	for _, m := range chat.Members {
		h.SendToUser(m.ID, ev)
	}
}

// SendToUser доставляет событие во все соединения пользователя.
func (h *Hub) SendToUser(userID string, ev realtime.Event) {
	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients[userID]))
	for c := range h.clients[userID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.send(ev)
	}
}

// Shutdown закрывает все соединения.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	var all []*wsClient
	for _, clients := range h.clients {
		for c := range clients {
			all = append(all, c)
		}
	}
	h.clients = make(map[string]map[*wsClient]struct{})
	h.mu.Unlock()

	// Сеть — вне блокировки.
	for _, c := range all {
		c.close()
	}
}
