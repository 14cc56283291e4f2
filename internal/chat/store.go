package chat

import (
	"sort"
	"time"

	"github.com/teamchat/internal/logger"
	"github.com/teamchat/internal/model"
)

// Store хранит ленту открытой переписки: упорядоченную по createdAt,
// без дубликатов по id. Клиентский кеш: авторитетные данные всегда у сервера.
//
// Дедупликация по id — то, что делает ленту устойчивой к гонкам разных
// асинхронных источников: echo собственной отправки может прийти по realtime
// раньше или позже ответа POST, страница истории может пересечься с уже
// полученными push-событиями. Store не потокобезопасен, им владеет Engine.
type Store struct {
	chatID string
	msgs   []model.Message
	index  map[string]int // id -> позиция в msgs

	currentPage int
	totalPages  int
}

// NewStore создаёт пустую ленту для переписки chatID.
func NewStore(chatID string) *Store {
	return &Store{
		chatID: chatID,
		index:  make(map[string]int),
	}
}

// ChatID возвращает переписку, которой принадлежит лента.
func (s *Store) ChatID() string { return s.chatID }

// Messages возвращает копию ленты в порядке отображения.
func (s *Store) Messages() []model.Message {
	out := make([]model.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// Len возвращает число записей в ленте (включая tombstone).
func (s *Store) Len() int { return len(s.msgs) }

// Get возвращает сообщение по id.
func (s *Store) Get(id string) (model.Message, bool) {
	i, ok := s.index[id]
	if !ok {
		return model.Message{}, false
	}
	return s.msgs[i], true
}

// CanLoadOlder reports whether more history pages remain.
func (s *Store) CanLoadOlder() bool {
	return s.currentPage < s.totalPages
}

// CurrentPage возвращает номер последней загруженной страницы истории.
func (s *Store) CurrentPage() int { return s.currentPage }

// dedupe отбрасывает из batch сообщения, уже известные ленте или не из этой переписки.
func (s *Store) dedupe(batch []model.Message) []model.Message {
	fresh := batch[:0:0]
	for _, m := range batch {
		if m.ChatID != s.chatID {
			logger.Errorf("store: message %s for chat %s dropped (store is for %s)", m.ID, m.ChatID, s.chatID)
			continue
		}
		if _, exists := s.index[m.ID]; exists {
			continue
		}
		fresh = append(fresh, m)
	}
	return fresh
}

// SetBaseline применяет страницу 1: устанавливает базовое окно ленты.
// Сообщения, успевшие прийти по realtime до ответа, остаются — дубликаты
// из выборки отбрасываются, порядок восстанавливается стабильной сортировкой
// по createdAt (ничья — порядок поступления).
func (s *Store) SetBaseline(batch []model.Message, p model.Pagination) {
	fresh := s.dedupe(batch)
	merged := make([]model.Message, 0, len(fresh)+len(s.msgs))
	merged = append(merged, fresh...)
	merged = append(merged, s.msgs...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.Before(merged[j].CreatedAt)
	})
	s.msgs = merged
	s.reindex()
	s.currentPage = 1
	s.totalPages = p.TotalPages
}

// PrependOlder применяет страницу page (>1): более старая история встаёт
// перед уже загруженной, хронологический порядок сохраняется.
func (s *Store) PrependOlder(batch []model.Message, page int, p model.Pagination) {
	fresh := s.dedupe(batch)
	merged := make([]model.Message, 0, len(fresh)+len(s.msgs))
	merged = append(merged, fresh...)
	merged = append(merged, s.msgs...)
	s.msgs = merged
	s.reindex()
	if page > s.currentPage {
		s.currentPage = page
	}
	s.totalPages = p.TotalPages
}

// ApplyInbound добавляет сообщение из realtime-события в конец ленты.
// Возвращает true, если лента изменилась (false — дубликат, no-op).
func (s *Store) ApplyInbound(m model.Message) bool {
	if m.ChatID != s.chatID {
		return false
	}
	if _, exists := s.index[m.ID]; exists {
		return false
	}
	s.index[m.ID] = len(s.msgs)
	s.msgs = append(s.msgs, m)
	return true
}

// ApplyEdit заменяет сообщение на месте: позиция и createdAt не меняются.
func (s *Store) ApplyEdit(m model.Message) bool {
	i, ok := s.index[m.ID]
	if !ok {
		return false
	}
	m.CreatedAt = s.msgs[i].CreatedAt
	s.msgs[i] = m
	return true
}

// ApplySoftDelete помечает сообщение tombstone. Запись остаётся на своей
// позиции, содержимое считается скрытым.
func (s *Store) ApplySoftDelete(id string) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.msgs[i].Deleted = true
	s.msgs[i].Content = ""
	s.msgs[i].FileURL = ""
	s.msgs[i].FileName = ""
	return true
}

// AppendPending добавляет оптимистичную запись с sentinel-id до подтверждения сервером.
func (s *Store) AppendPending(m model.Message) {
	s.index[m.ID] = len(s.msgs)
	s.msgs = append(s.msgs, m)
}

// Reconcile заменяет оптимистичную запись pendingID авторитетным сообщением.
// Если серверный id уже в ленте (echo по realtime обогнал ответ POST),
// pending-запись просто удаляется.
func (s *Store) Reconcile(pendingID string, authoritative model.Message) {
	i, ok := s.index[pendingID]
	if !ok {
		// Pending уже убран (например, после смены переписки) — echo сам
		// встанет через ApplyInbound.
		return
	}
	if _, exists := s.index[authoritative.ID]; exists {
		s.removeAt(i)
		return
	}
	delete(s.index, pendingID)
	s.msgs[i] = authoritative
	s.index[authoritative.ID] = i
}

// DropPending удаляет оптимистичную запись после неудачной отправки.
func (s *Store) DropPending(pendingID string) {
	if i, ok := s.index[pendingID]; ok {
		s.removeAt(i)
	}
}

func (s *Store) removeAt(i int) {
	delete(s.index, s.msgs[i].ID)
	s.msgs = append(s.msgs[:i], s.msgs[i+1:]...)
	s.reindex()
}

func (s *Store) reindex() {
	s.index = make(map[string]int, len(s.msgs))
	for i, m := range s.msgs {
		s.index[m.ID] = i
	}
}

// LastActivity возвращает createdAt последнего сообщения ленты.
func (s *Store) LastActivity() (time.Time, bool) {
	if len(s.msgs) == 0 {
		return time.Time{}, false
	}
	return s.msgs[len(s.msgs)-1].CreatedAt, true
}
