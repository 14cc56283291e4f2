package chat

import (
	"context"

	"github.com/teamchat/internal/model"
)

// Методы этого файла — точки входа Realtime Event Router'а. Router уже
// проверил обязательные поля; здесь применяются правила согласования.

// HandleIncomingMessage применяет входящее сообщение. В открытую переписку —
// в конец ленты (дубликат по id — no-op); в закрытую — только активность
// и, для чужих сообщений, счётчик непрочитанного.
func (e *Engine) HandleIncomingMessage(m model.Message) {
	e.mu.Lock()
	e.dir.NoteInboundChat(m.SenderID, m.ChatID)
	e.dir.Touch(m.ChatID, m.CreatedAt)
	open := e.store != nil && e.store.ChatID() == m.ChatID
	appended := false
	if open {
		appended = e.store.ApplyInbound(m)
		// Пришедшее сообщение снимает индикатор печати отправителя.
		e.typing.Set(m.ChatID, m.SenderID, false)
	} else if m.SenderID != e.sess.UserID {
		e.unread.Increment(m.ChatID)
	}
	e.mu.Unlock()

	e.notify(Notification{Type: NoteDirectory})
	if appended {
		e.notify(Notification{Type: NoteMessages, ChatID: m.ChatID})
		e.notify(Notification{Type: NoteScrollToNewest, ChatID: m.ChatID})
	}
}

// HandleMessageUpdated заменяет отредактированное сообщение на месте.
func (e *Engine) HandleMessageUpdated(m model.Message) {
	e.mu.Lock()
	changed := e.store != nil && e.store.ChatID() == m.ChatID && e.store.ApplyEdit(m)
	e.mu.Unlock()
	if changed {
		e.notify(Notification{Type: NoteMessages, ChatID: m.ChatID})
	}
}

// HandleMessageDeleted помечает сообщение tombstone, позиция сохраняется.
func (e *Engine) HandleMessageDeleted(m model.Message) {
	e.mu.Lock()
	changed := e.store != nil && e.store.ChatID() == m.ChatID && e.store.ApplySoftDelete(m.ID)
	e.mu.Unlock()
	if changed {
		e.notify(Notification{Type: NoteMessages, ChatID: m.ChatID})
	}
}

// HandleTyping применяет удалённый индикатор печати; собственное эхо глушится.
func (e *Engine) HandleTyping(chatID, userID string, isTyping bool) {
	if userID == e.sess.UserID {
		return
	}
	e.mu.Lock()
	e.typing.Set(chatID, userID, isTyping)
	e.mu.Unlock()
	e.notify(Notification{Type: NoteTyping, ChatID: chatID})
}

// HandleGroupCreated вставляет новую группу и делает её открытой перепиской.
func (e *Engine) HandleGroupCreated(g model.Conversation) {
	e.mu.Lock()
	alreadyOpen := e.store != nil && e.store.ChatID() == g.ID
	e.dir.UpsertGroup(g)
	e.mu.Unlock()
	e.notify(Notification{Type: NoteDirectory})
	if alreadyOpen {
		// Создатель уже открыл группу по ответу POST.
		return
	}
	go func() {
		if err := e.OpenConversation(context.Background(), g.ID); err != nil {
			// Ошибка уже ушла уведомлением.
			return
		}
	}()
}

// HandleGroupUpdated заменяет группу по id.
func (e *Engine) HandleGroupUpdated(g model.Conversation) {
	e.mu.Lock()
	e.dir.UpsertGroup(g)
	e.mu.Unlock()
	e.notify(Notification{Type: NoteDirectory})
}

// HandleReconnectFailed — попытки восстановления канала исчерпаны.
func (e *Engine) HandleReconnectFailed() {
	e.notify(Notification{Type: NoteConnectionLost})
}

// Snapshot — консистентный срез состояния для отрисовки.
type Snapshot struct {
	OpenChatID   string
	Individuals  []Entry
	Groups       []Entry
	Messages     []model.Message
	CanLoadOlder bool
	Typist       TypingSlot
	TypistActive bool
	UnreadTotal  int
	Sending      bool
	Loading      bool
	Uploading    bool
}

// Snapshot возвращает копию текущего состояния под блокировкой движка.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		Individuals: e.dir.Individuals(e.unread),
		Groups:      e.dir.Groups(e.unread),
		UnreadTotal: e.unread.Total(),
		Sending:     e.sending,
		Loading:     e.loading,
		Uploading:   e.uploading,
	}
	if e.store != nil {
		s.OpenChatID = e.store.ChatID()
		s.Messages = e.store.Messages()
		s.CanLoadOlder = e.store.CanLoadOlder()
		s.Typist, s.TypistActive = e.typing.Typist(s.OpenChatID)
	}
	return s
}
