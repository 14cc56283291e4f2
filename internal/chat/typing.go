package chat

import (
	"sync"
	"time"
)

// TypingSlot — кто печатает в переписке. Один слот на переписку:
// последний сигнал побеждает, списка одновременных печатающих нет.
type TypingSlot struct {
	UserID   string
	IsTyping bool
}

// TypingState — входящие индикаторы печати по перепискам.
// Не потокобезопасен, им владеет Engine.
type TypingState struct {
	slots map[string]TypingSlot
}

func NewTypingState() *TypingState {
	return &TypingState{slots: make(map[string]TypingSlot)}
}

// Set применяет удалённый сигнал (last-write-wins).
func (t *TypingState) Set(chatID, userID string, isTyping bool) {
	if isTyping {
		t.slots[chatID] = TypingSlot{UserID: userID, IsTyping: true}
		return
	}
	// Сигнал "перестал печатать" снимает слот только если он от того же
	// пользователя, что его занял.
	if cur, ok := t.slots[chatID]; ok && cur.UserID == userID {
		delete(t.slots, chatID)
	}
}

// Typist возвращает активный слот переписки.
func (t *TypingState) Typist(chatID string) (TypingSlot, bool) {
	s, ok := t.slots[chatID]
	return s, ok
}

// Clear сбрасывает все слоты — при смене открытой переписки индикаторы
// не протекают между перепискaми.
func (t *TypingState) Clear() {
	t.slots = make(map[string]TypingSlot)
}

// TypingEmitter коалесцирует исходящие сигналы печати: не чаще одного
// isTyping=true за окно emit-интервала, isTyping=false — после паузы idle,
// таймер которой перезапускается каждым нажатием.
type TypingEmitter struct {
	mu       sync.Mutex
	emit     func(chatID string, isTyping bool)
	interval time.Duration
	idle     time.Duration
	now      func() time.Time

	chatID   string
	lastSent time.Time
	timer    *time.Timer
}

// NewTypingEmitter создаёт эмиттер. emit вызывается вне блокировки эмиттера.
func NewTypingEmitter(interval, idle time.Duration, emit func(chatID string, isTyping bool)) *TypingEmitter {
	return &TypingEmitter{
		emit:     emit,
		interval: interval,
		idle:     idle,
		now:      time.Now,
	}
}

// Keystroke регистрирует нажатие в поле ввода открытой переписки.
func (e *TypingEmitter) Keystroke(chatID string) {
	e.mu.Lock()
	if chatID != e.chatID {
		e.resetLocked()
		e.chatID = chatID
	}
	sendNow := e.lastSent.IsZero() || e.now().Sub(e.lastSent) >= e.interval
	if sendNow {
		e.lastSent = e.now()
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.idle, func() { e.idleExpired(chatID) })
	e.mu.Unlock()

	if sendNow {
		e.emit(chatID, true)
	}
}

func (e *TypingEmitter) idleExpired(chatID string) {
	e.mu.Lock()
	if e.chatID != chatID {
		e.mu.Unlock()
		return
	}
	e.lastSent = time.Time{}
	e.mu.Unlock()
	e.emit(chatID, false)
}

// Cancel останавливает таймер без отправки сигнала (смена переписки, logout).
func (e *TypingEmitter) Cancel() {
	e.mu.Lock()
	e.resetLocked()
	e.chatID = ""
	e.mu.Unlock()
}

func (e *TypingEmitter) resetLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.lastSent = time.Time{}
}
