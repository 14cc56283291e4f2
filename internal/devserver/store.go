package devserver

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/teamchat/internal/model"
)

// ErrNotFound возвращается репозиторием, когда записи нет.
var ErrNotFound = errors.New("not found")

// Repository — хранилище dev-сервера. Реализации: memoryRepo (по умолчанию)
// и pgRepo (DATABASE_URL задан).
type Repository interface {
	UpsertUser(ctx context.Context, p model.Profile) error
	GetUserByEmail(ctx context.Context, email string) (model.Profile, error)
	GetUser(ctx context.Context, id string) (model.Profile, error)
	ListUsers(ctx context.Context) ([]model.Profile, error)

	CreateChat(ctx context.Context, c model.Conversation) error
	GetChat(ctx context.Context, id string) (model.Conversation, error)
	FindIndividual(ctx context.Context, userA, userB string) (model.Conversation, error)
	ListGroups(ctx context.Context, userID string) ([]model.Conversation, error)
	SetGroupMembers(ctx context.Context, chatID string, members []model.Profile) error

	CreateMessage(ctx context.Context, m model.Message) error
	GetMessage(ctx context.Context, id string) (model.Message, error)
	UpdateMessageContent(ctx context.Context, id, content string, editedAt time.Time) (model.Message, error)
	SoftDeleteMessage(ctx context.Context, id string) (model.Message, error)
	// PageMessages возвращает окно истории по возрастанию createdAt и общее
	// число страниц. Страница 1 — самое свежее окно.
	PageMessages(ctx context.Context, chatID string, page, limit int) ([]model.Message, int, error)

	Timestamps(ctx context.Context, userID string) (map[string]time.Time, error)

	Close()
}

// memoryRepo — всё в памяти, под одним мьютексом. Достаточно для локальной
// разработки и httptest.
type memoryRepo struct {
	mu       sync.RWMutex
	users    map[string]model.Profile
	byEmail  map[string]string
	chats    map[string]model.Conversation
	messages map[string][]model.Message // chatID -> в порядке создания
	msgChat  map[string]string          // messageID -> chatID
	activity map[string]time.Time
}

// NewMemoryRepository создаёт пустое хранилище в памяти.
func NewMemoryRepository() Repository {
	return &memoryRepo{
		users:    make(map[string]model.Profile),
		byEmail:  make(map[string]string),
		chats:    make(map[string]model.Conversation),
		messages: make(map[string][]model.Message),
		msgChat:  make(map[string]string),
		activity: make(map[string]time.Time),
	}
}

func (r *memoryRepo) Close() {}

func (r *memoryRepo) UpsertUser(ctx context.Context, p model.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[p.ID] = p
	r.byEmail[p.Email] = p.ID
	return nil
}

func (r *memoryRepo) GetUserByEmail(ctx context.Context, email string) (model.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return model.Profile{}, ErrNotFound
	}
	return r.users[id], nil
}

func (r *memoryRepo) GetUser(ctx context.Context, id string) (model.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.users[id]
	if !ok {
		return model.Profile{}, ErrNotFound
	}
	return p, nil
}

func (r *memoryRepo) ListUsers(ctx context.Context) ([]model.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Profile, 0, len(r.users))
	for _, p := range r.users {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memoryRepo) CreateChat(ctx context.Context, c model.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats[c.ID] = c
	if t := r.activity[c.ID]; c.CreatedAt.After(t) {
		r.activity[c.ID] = c.CreatedAt
	}
	return nil
}

func (r *memoryRepo) GetChat(ctx context.Context, id string) (model.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.chats[id]
	if !ok {
		return model.Conversation{}, ErrNotFound
	}
	return c, nil
}

func (r *memoryRepo) FindIndividual(ctx context.Context, userA, userB string) (model.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.chats {
		if c.Kind != model.KindIndividual {
			continue
		}
		if c.HasMember(userA) && c.HasMember(userB) {
			return c, nil
		}
	}
	return model.Conversation{}, ErrNotFound
}

func (r *memoryRepo) ListGroups(ctx context.Context, userID string) ([]model.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Conversation
	for _, c := range r.chats {
		if c.Kind == model.KindGroup && c.HasMember(userID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryRepo) SetGroupMembers(ctx context.Context, chatID string, members []model.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[chatID]
	if !ok {
		return ErrNotFound
	}
	c.Members = members
	r.chats[chatID] = c
	return nil
}

func (r *memoryRepo) CreateMessage(ctx context.Context, m model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.chats[m.ChatID]; !ok {
		return ErrNotFound
	}
	r.messages[m.ChatID] = append(r.messages[m.ChatID], m)
	r.msgChat[m.ID] = m.ChatID
	if t := r.activity[m.ChatID]; m.CreatedAt.After(t) {
		r.activity[m.ChatID] = m.CreatedAt
	}
	return nil
}

func (r *memoryRepo) findMessage(id string) (string, int, bool) {
	chatID, ok := r.msgChat[id]
	if !ok {
		return "", 0, false
	}
	for i, m := range r.messages[chatID] {
		if m.ID == id {
			return chatID, i, true
		}
	}
	return "", 0, false
}

func (r *memoryRepo) GetMessage(ctx context.Context, id string) (model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chatID, i, ok := r.findMessage(id)
	if !ok {
		return model.Message{}, ErrNotFound
	}
	return r.messages[chatID][i], nil
}

func (r *memoryRepo) UpdateMessageContent(ctx context.Context, id, content string, editedAt time.Time) (model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chatID, i, ok := r.findMessage(id)
	if !ok {
		return model.Message{}, ErrNotFound
	}
	m := r.messages[chatID][i]
	m.Content = content
	m.EditedAt = &editedAt
	r.messages[chatID][i] = m
	return m, nil
}

func (r *memoryRepo) SoftDeleteMessage(ctx context.Context, id string) (model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chatID, i, ok := r.findMessage(id)
	if !ok {
		return model.Message{}, ErrNotFound
	}
	m := r.messages[chatID][i]
	m.Deleted = true
	m.Content = ""
	m.FileURL = ""
	m.FileName = ""
	r.messages[chatID][i] = m
	return m, nil
}

func (r *memoryRepo) PageMessages(ctx context.Context, chatID string, page, limit int) ([]model.Message, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.chats[chatID]; !ok {
		return nil, 0, ErrNotFound
	}
	msgs := r.messages[chatID]
	totalPages := (len(msgs) + limit - 1) / limit
	end := len(msgs) - (page-1)*limit
	if end <= 0 {
		return nil, totalPages, nil
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	out := make([]model.Message, end-start)
	copy(out, msgs[start:end])
	return out, totalPages, nil
}

func (r *memoryRepo) Timestamps(ctx context.Context, userID string) (map[string]time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]time.Time)
	for id, c := range r.chats {
		if !c.HasMember(userID) {
			continue
		}
		if t, ok := r.activity[id]; ok {
			out[id] = t
		}
	}
	return out, nil
}
