package devserver

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teamchat/internal/logger"
	"github.com/teamchat/internal/realtime"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10

	// Запасные значения, если в конфиге нули.
	wsMaxMessageSize = 65536
	wsSendBufSize    = 256
)

// wsClient — одно websocket-соединение пользователя на стороне dev-сервера.
type wsClient struct {
	hub     *Hub
	conn    *websocket.Conn
	userID  string
	outbox  chan realtime.Event
	readMax int64

	mu     sync.Mutex
	joined string // переписка, открытая этим соединением

	done chan struct{}
	once sync.Once
}

func newWSClient(hub *Hub, conn *websocket.Conn, userID string, sendBuf, maxMessageSize int) *wsClient {
	if sendBuf <= 0 {
		sendBuf = wsSendBufSize
	}
	if maxMessageSize <= 0 {
		maxMessageSize = wsMaxMessageSize
	}
	return &wsClient{
		hub:     hub,
		conn:    conn,
		userID:  userID,
		outbox:  make(chan realtime.Event, sendBuf),
		readMax: int64(maxMessageSize),
		done:    make(chan struct{}),
	}
}

func (c *wsClient) setJoined(chatID string) {
	c.mu.Lock()
	c.joined = chatID
	c.mu.Unlock()
}

func (c *wsClient) send(ev realtime.Event) {
	select {
	case c.outbox <- ev:
	case <-c.done:
	default:
		// Backpressure: медленный клиент отключается, не тормозя остальных.
		logger.Errorf("ws send buffer full, closing slow client user=%s", c.userID)
		c.close()
	}
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// run гоняет pump'ы соединения и возвращается после его смерти.
func (c *wsClient) run(ctx context.Context) {
	c.hub.addClient(c)
	defer c.hub.removeClient(c)

	go c.writePump()
	c.readPump(ctx)
}

func (c *wsClient) readPump(ctx context.Context) {
	defer c.close()

	c.conn.SetReadLimit(c.readMax)
	if err := c.conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		logger.Errorf("ws set read deadline user=%s: %v", c.userID, err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Errorf("ws read user=%s: %v", c.userID, err)
			}
			return
		}
		var ev realtime.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			logger.Errorf("ws unmarshal user=%s: %v", c.userID, err)
			continue
		}
		evCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		c.hub.HandleEvent(evCtx, c, ev)
		cancel()
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.WriteMessage(websocket.CloseMessage, nil)
			return
		case ev := <-c.outbox:
			if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
