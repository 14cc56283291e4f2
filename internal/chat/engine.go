// Package chat — клиентский движок синхронизации состояния чатов:
// список переписок, лента сообщений, счётчики непрочитанного и индикаторы
// печати, согласованные между REST-ответами, realtime-событиями и
// оптимистичными локальными изменениями.
package chat

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teamchat/internal/api"
	"github.com/teamchat/internal/logger"
	"github.com/teamchat/internal/model"
	"github.com/teamchat/internal/session"
)

// API — REST-операции, которые нужны движку. Реализуется api.Client;
// интерфейс оставлен узким ради тестов.
type API interface {
	Users(ctx context.Context) ([]model.Profile, error)
	Groups(ctx context.Context) ([]model.Conversation, error)
	Timestamps(ctx context.Context) (map[string]time.Time, error)
	OpenIndividual(ctx context.Context, recipientID string) (model.Conversation, error)
	Messages(ctx context.Context, chatID string, page, limit int) ([]model.Message, model.Pagination, error)
	Send(ctx context.Context, chatID string, req api.SendRequest) (model.Message, error)
	Edit(ctx context.Context, messageID, content string) (model.Message, error)
	Delete(ctx context.Context, messageID string) error
	Upload(ctx context.Context, fileName string, r io.Reader, size int64) (api.UploadResult, error)
	CreateGroup(ctx context.Context, name string, memberIDs []string) (model.Conversation, error)
	UpdateGroupMembers(ctx context.Context, groupID string, memberIDs []string) (model.Conversation, error)
}

// Transport — исходящая сторона realtime-канала.
type Transport interface {
	JoinChat(chatID string)
	LeaveChat(chatID string)
	SendTyping(chatID string, isTyping bool)
}

// Options — настройки движка.
type Options struct {
	PageSize           int
	TypingEmitInterval time.Duration
	TypingIdleTimeout  time.Duration
}

const notifyBufferSize = 128

// Engine владеет клиентским состоянием чатов. Все мутации проходят через
// методы движка под одним мьютексом; наружу уходят уведомления, срезы
// состояния читаются через Snapshot.
type Engine struct {
	mu   sync.Mutex
	sess session.Session
	api  API

	pageSize int

	transport Transport
	dir       *Directory
	unread    *UnreadCounter
	typing    *TypingState
	emitter   *TypingEmitter

	store *Store
	// openEpoch растёт при каждой смене открытой переписки; ответы сети,
	// начатые до смены, сверяются с ним и молча отбрасываются.
	openEpoch uint64

	sending   bool
	loading   bool
	uploading bool

	notifs chan Notification
}

// NewEngine создаёт движок для авторизованного пользователя.
func NewEngine(sess session.Session, apiClient API, opts Options) *Engine {
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	if opts.TypingEmitInterval <= 0 {
		opts.TypingEmitInterval = 500 * time.Millisecond
	}
	if opts.TypingIdleTimeout <= 0 {
		opts.TypingIdleTimeout = 2 * time.Second
	}
	e := &Engine{
		sess:     sess,
		api:      apiClient,
		dir:      NewDirectory(sess.UserID),
		unread:   NewUnreadCounter(),
		typing:   NewTypingState(),
		notifs:   make(chan Notification, notifyBufferSize),
		pageSize: opts.PageSize,
	}
	e.emitter = NewTypingEmitter(opts.TypingEmitInterval, opts.TypingIdleTimeout, e.emitTyping)
	return e
}

// SetTransport подключает realtime-канал (после установления соединения).
func (e *Engine) SetTransport(t Transport) {
	e.mu.Lock()
	e.transport = t
	open := ""
	if e.store != nil {
		open = e.store.ChatID()
	}
	e.mu.Unlock()
	if t != nil && open != "" {
		t.JoinChat(open)
	}
}

// Notifications — канал исходящих уведомлений для UI.
func (e *Engine) Notifications() <-chan Notification {
	return e.notifs
}

// Self возвращает сессию локального пользователя.
func (e *Engine) Self() session.Session { return e.sess }

func (e *Engine) notify(n Notification) {
	select {
	case e.notifs <- n:
	default:
		// UI отстаёт; терять уведомление безопасно — Snapshot всё равно
		// вернёт актуальное состояние при следующем чтении.
		logger.Debugf("engine: notification buffer full, dropping %v", n.Type)
	}
}

func (e *Engine) notifyError(op string, err error) {
	logger.Errorf("engine: %s: %v", op, err)
	if api.IsAuthExpired(err) {
		e.notify(Notification{Type: NoteAuthExpired, Err: err})
		return
	}
	e.notify(Notification{Type: NoteTransientError, Text: op, Err: err})
}

// RefreshDirectory загружает справочник собеседников, группы и метки
// активности. Любая ошибка оставляет предыдущее состояние нетронутым:
// применение происходит только после успеха всех трёх запросов.
func (e *Engine) RefreshDirectory(ctx context.Context) error {
	users, err := e.api.Users(ctx)
	if err != nil {
		e.notifyError("load directory", err)
		return err
	}
	groups, err := e.api.Groups(ctx)
	if err != nil {
		e.notifyError("load groups", err)
		return err
	}
	stamps, err := e.api.Timestamps(ctx)
	if err != nil {
		e.notifyError("load timestamps", err)
		return err
	}

	e.mu.Lock()
	e.dir.SetUsers(users)
	e.dir.SetGroups(groups)
	e.dir.SetTimestamps(stamps)
	e.mu.Unlock()

	e.notify(Notification{Type: NoteDirectory})
	return nil
}

// OpenIndividualConversation разрешает личную переписку с собеседником
// (get-or-create, идемпотентно) и открывает её.
func (e *Engine) OpenIndividualConversation(ctx context.Context, counterpartID string) error {
	e.mu.Lock()
	chatID, known := e.dir.ChatID(counterpartID)
	e.mu.Unlock()

	if !known {
		conv, err := e.api.OpenIndividual(ctx, counterpartID)
		if err != nil {
			e.notifyError("open conversation", err)
			return err
		}
		e.mu.Lock()
		e.dir.SetChatID(counterpartID, conv.ID)
		e.dir.Touch(conv.ID, conv.CreatedAt)
		e.mu.Unlock()
		chatID = conv.ID
	}
	return e.OpenConversation(ctx, chatID)
}

// OpenConversation делает переписку открытой: синхронно сбрасывает её
// счётчик непрочитанного и состояние печати, переподписывает realtime-канал
// и загружает первую страницу истории. Поздние ответы для уже закрытой
// переписки отбрасываются по openEpoch.
func (e *Engine) OpenConversation(ctx context.Context, chatID string) error {
	e.mu.Lock()
	prev := ""
	if e.store != nil {
		prev = e.store.ChatID()
	}
	e.openEpoch++
	epoch := e.openEpoch
	// Сброс до старта загрузки: сообщения, пришедшие во время выборки,
	// не попадут в счётчик.
	e.unread.Reset(chatID)
	e.typing.Clear()
	e.store = NewStore(chatID)
	e.loading = true
	t := e.transport
	e.mu.Unlock()

	e.emitter.Cancel()
	e.notify(Notification{Type: NoteConversationOpened, ChatID: chatID})
	e.notify(Notification{Type: NoteDirectory})

	if t != nil {
		if prev != "" && prev != chatID {
			t.LeaveChat(prev)
		}
		t.JoinChat(chatID)
	}

	msgs, p, err := e.api.Messages(ctx, chatID, 1, e.pageSize)

	e.mu.Lock()
	if e.openEpoch != epoch {
		// Пользователь уже переключился; ответ устарел.
		e.mu.Unlock()
		return nil
	}
	e.loading = false
	if err != nil {
		e.mu.Unlock()
		e.notifyError("load messages", err)
		return err
	}
	e.store.SetBaseline(msgs, p)
	if last, ok := e.store.LastActivity(); ok {
		e.dir.Touch(chatID, last)
	}
	e.mu.Unlock()

	e.notify(Notification{Type: NoteMessages, ChatID: chatID})
	e.notify(Notification{Type: NoteScrollToNewest, ChatID: chatID})
	return nil
}

// LoadOlder подгружает следующую страницу истории (более старые сообщения).
// No-op, когда вся история уже загружена.
func (e *Engine) LoadOlder(ctx context.Context) error {
	e.mu.Lock()
	if e.store == nil || !e.store.CanLoadOlder() || e.loading {
		e.mu.Unlock()
		return nil
	}
	chatID := e.store.ChatID()
	page := e.store.CurrentPage() + 1
	epoch := e.openEpoch
	e.loading = true
	e.mu.Unlock()

	msgs, p, err := e.api.Messages(ctx, chatID, page, e.pageSize)

	e.mu.Lock()
	if e.openEpoch != epoch {
		e.mu.Unlock()
		return nil
	}
	e.loading = false
	if err != nil {
		e.mu.Unlock()
		e.notifyError("load history", err)
		return err
	}
	e.store.PrependOlder(msgs, page, p)
	e.mu.Unlock()

	e.notify(Notification{Type: NoteMessages, ChatID: chatID})
	return nil
}

// SendText отправляет текстовое сообщение с оптимистичной записью.
// Пока отправка в полёте, вторая не начинается (кнопка выключена).
func (e *Engine) SendText(ctx context.Context, content string) error {
	return e.sendMessage(ctx, api.SendRequest{Content: content})
}

// SendAttachment загружает файл и отправляет сообщение с вложением.
// Размер проверяется клиентом до начала загрузки.
func (e *Engine) SendAttachment(ctx context.Context, fileName string, r io.Reader, size int64, caption string) error {
	e.mu.Lock()
	if e.store == nil {
		e.mu.Unlock()
		return &api.Error{Kind: api.KindValidation, Message: "no open conversation"}
	}
	if e.uploading {
		e.mu.Unlock()
		return nil
	}
	e.uploading = true
	e.mu.Unlock()

	res, err := e.api.Upload(ctx, fileName, r, size)

	e.mu.Lock()
	e.uploading = false
	e.mu.Unlock()

	if err != nil {
		e.notifyError("upload", err)
		return err
	}
	return e.sendMessage(ctx, api.SendRequest{
		Content:     caption,
		FileURL:     res.FileURL,
		ContentType: res.ContentType,
		FileName:    res.FileName,
	})
}

func (e *Engine) sendMessage(ctx context.Context, req api.SendRequest) error {
	e.mu.Lock()
	if e.store == nil {
		e.mu.Unlock()
		return &api.Error{Kind: api.KindValidation, Message: "no open conversation"}
	}
	if e.sending {
		e.mu.Unlock()
		return nil
	}
	e.sending = true
	chatID := e.store.ChatID()
	epoch := e.openEpoch
	pending := model.Message{
		ID:          "pending:" + uuid.NewString(),
		ChatID:      chatID,
		SenderID:    e.sess.UserID,
		Content:     req.Content,
		FileURL:     req.FileURL,
		ContentType: req.ContentType,
		FileName:    req.FileName,
		CreatedAt:   time.Now().UTC(),
	}
	e.store.AppendPending(pending)
	t := e.transport
	e.mu.Unlock()

	e.notify(Notification{Type: NoteMessages, ChatID: chatID})
	e.notify(Notification{Type: NoteScrollToNewest, ChatID: chatID})

	// Отправка завершает цикл печати.
	e.emitter.Cancel()
	if t != nil {
		t.SendTyping(chatID, false)
	}

	m, err := e.api.Send(ctx, chatID, req)

	e.mu.Lock()
	e.sending = false
	if e.openEpoch == epoch {
		if err != nil {
			e.store.DropPending(pending.ID)
		} else {
			e.store.Reconcile(pending.ID, m)
			e.dir.Touch(chatID, m.CreatedAt)
		}
	}
	e.mu.Unlock()

	if err != nil {
		e.notify(Notification{Type: NoteMessages, ChatID: chatID})
		e.notifyError("send", err)
		return err
	}
	e.notify(Notification{Type: NoteMessages, ChatID: chatID})
	e.notify(Notification{Type: NoteDirectory})
	return nil
}

// EditMessage изменяет своё сообщение; лента обновляется по ответу сервера,
// realtime-echo затем дедуплицируется тем же ApplyEdit.
func (e *Engine) EditMessage(ctx context.Context, messageID, content string) error {
	m, err := e.api.Edit(ctx, messageID, content)
	if err != nil {
		e.notifyError("edit", err)
		return err
	}
	e.mu.Lock()
	changed := e.store != nil && e.store.ApplyEdit(m)
	e.mu.Unlock()
	if changed {
		e.notify(Notification{Type: NoteMessages, ChatID: m.ChatID})
	}
	return nil
}

// DeleteMessage помечает сообщение удалённым (tombstone остаётся в ленте).
func (e *Engine) DeleteMessage(ctx context.Context, messageID string) error {
	if err := e.api.Delete(ctx, messageID); err != nil {
		e.notifyError("delete", err)
		return err
	}
	e.mu.Lock()
	changed := e.store != nil && e.store.ApplySoftDelete(messageID)
	chatID := ""
	if e.store != nil {
		chatID = e.store.ChatID()
	}
	e.mu.Unlock()
	if changed {
		e.notify(Notification{Type: NoteMessages, ChatID: chatID})
	}
	return nil
}

// CreateGroup создаёт группу и делает её открытой перепиской.
func (e *Engine) CreateGroup(ctx context.Context, name string, memberIDs []string) error {
	g, err := e.api.CreateGroup(ctx, name, memberIDs)
	if err != nil {
		e.notifyError("create group", err)
		return err
	}
	e.mu.Lock()
	e.dir.UpsertGroup(g)
	e.mu.Unlock()
	e.notify(Notification{Type: NoteDirectory})
	return e.OpenConversation(ctx, g.ID)
}

// UpdateGroupMembers заменяет состав группы.
func (e *Engine) UpdateGroupMembers(ctx context.Context, groupID string, memberIDs []string) error {
	g, err := e.api.UpdateGroupMembers(ctx, groupID, memberIDs)
	if err != nil {
		e.notifyError("update group", err)
		return err
	}
	e.mu.Lock()
	e.dir.UpsertGroup(g)
	e.mu.Unlock()
	e.notify(Notification{Type: NoteDirectory})
	return nil
}

// Keystroke регистрирует ввод в поле сообщения открытой переписки.
func (e *Engine) Keystroke() {
	e.mu.Lock()
	chatID := ""
	if e.store != nil {
		chatID = e.store.ChatID()
	}
	e.mu.Unlock()
	if chatID == "" {
		return
	}
	e.emitter.Keystroke(chatID)
}

func (e *Engine) emitTyping(chatID string, isTyping bool) {
	e.mu.Lock()
	t := e.transport
	e.mu.Unlock()
	if t != nil {
		t.SendTyping(chatID, isTyping)
	}
}

// Close останавливает таймеры движка.
func (e *Engine) Close() {
	e.emitter.Cancel()
}
