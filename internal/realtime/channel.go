// Package realtime — клиентская сторона realtime-канала: websocket-соединение
// с ограниченным переподключением и маршрутизация входящих событий в движок.
package realtime

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teamchat/internal/logger"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = (pongWait * 9) / 10
	sendBufSize = 64
)

// Channel держит websocket-соединение с сервером. Авторизация — токеном в
// query при подключении; подписка на открытую переписку восстанавливается
// после каждого переподключения.
type Channel struct {
	wsURL       string
	token       string
	maxAttempts int
	baseDelay   time.Duration
	router      *Router
	// onReconnectFailed вызывается один раз, когда попытки исчерпаны;
	// дальше автоматических попыток нет.
	onReconnectFailed func()

	mu       sync.Mutex
	openChat string

	send chan Event
	done chan struct{}
	once sync.Once
}

// NewChannel создаёт канал. maxAttempts <= 0 трактуется как 5.
func NewChannel(wsURL, token string, maxAttempts int, baseDelay time.Duration, router *Router, onReconnectFailed func()) *Channel {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return &Channel{
		wsURL:             wsURL,
		token:             token,
		maxAttempts:       maxAttempts,
		baseDelay:         baseDelay,
		router:            router,
		onReconnectFailed: onReconnectFailed,
		send:              make(chan Event, sendBufSize),
		done:              make(chan struct{}),
	}
}

// JoinChat подписывает канал на события переписки.
func (c *Channel) JoinChat(chatID string) {
	c.mu.Lock()
	c.openChat = chatID
	c.mu.Unlock()
	c.enqueue(Event{Type: EventJoinChat, ChatID: chatID})
}

// LeaveChat снимает подписку с переписки.
func (c *Channel) LeaveChat(chatID string) {
	c.mu.Lock()
	if c.openChat == chatID {
		c.openChat = ""
	}
	c.mu.Unlock()
	c.enqueue(Event{Type: EventLeaveChat, ChatID: chatID})
}

// SendTyping отправляет сигнал печати в открытую переписку.
func (c *Channel) SendTyping(chatID string, isTyping bool) {
	c.enqueue(Event{Type: EventTyping, ChatID: chatID, IsTyping: isTyping})
}

func (c *Channel) enqueue(ev Event) {
	select {
	case c.send <- ev:
	case <-c.done:
	default:
		// Буфер полон (долгий разрыв) — событие теряем, подписка
		// восстановится при переподключении.
		logger.Debugf("realtime: send buffer full, dropping %s", ev.Type)
	}
}

// Close останавливает канал. Безопасен для повторного вызова.
func (c *Channel) Close() {
	c.once.Do(func() { close(c.done) })
}

// Run держит соединение до Close или отмены контекста. Переподключение —
// не больше maxAttempts подряд с растущей задержкой; после исчерпания
// вызывается onReconnectFailed и Run возвращается.
func (c *Channel) Run(ctx context.Context) {
	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		conn, err := c.dial(ctx)
		if err != nil {
			attempts++
			logger.Errorf("realtime: connect attempt %d/%d: %v", attempts, c.maxAttempts, err)
			if attempts >= c.maxAttempts {
				if c.onReconnectFailed != nil {
					c.onReconnectFailed()
				}
				return
			}
			delay := c.baseDelay << (attempts - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			case <-c.done:
				return
			}
			continue
		}

		attempts = 0
		logger.Info("realtime: connected")

		// Восстановление подписки после (пере)подключения.
		c.mu.Lock()
		open := c.openChat
		c.mu.Unlock()
		if open != "" {
			c.enqueue(Event{Type: EventJoinChat, ChatID: open})
		}

		c.runConn(ctx, conn)

		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
			logger.Error("realtime: connection lost, reconnecting")
		}
	}
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	u := c.wsURL + "?token=" + url.QueryEscape(c.token)
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, u, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

// runConn гоняет read/write pump'ы одного соединения и возвращается после
// его смерти.
func (c *Channel) runConn(ctx context.Context, conn *websocket.Conn) {
	connDone := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writePump(ctx, conn, connDone)
	}()

	c.readPump(conn)
	close(connDone)
	conn.Close()
	wg.Wait()
}

func (c *Channel) readPump(conn *websocket.Conn) {
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Errorf("realtime: set read deadline: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Errorf("realtime: read: %v", err)
			}
			return
		}
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			logger.Errorf("realtime: malformed frame dropped: %v", err)
			continue
		}
		c.router.Dispatch(ev)
	}
}

func (c *Channel) writePump(ctx context.Context, conn *websocket.Conn, connDone chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage, nil)
			return
		case <-c.done:
			conn.WriteMessage(websocket.CloseMessage, nil)
			return
		case <-connDone:
			return
		case ev := <-c.send:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				logger.Errorf("realtime: write %s: %v", ev.Type, err)
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
