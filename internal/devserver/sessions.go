package devserver

import (
	"context"
	"sync"
	"time"
)

const sessionTTL = 30 * 24 * time.Hour

// SessionStore — выданные токены. Реализации: memorySessions (по умолчанию)
// и redis-клиент (REDIS_URL задан) — dev-сервер переживает рестарт без
// повторного логина всех клиентов.
type SessionStore interface {
	Set(ctx context.Context, token, userID string) error
	// Get возвращает userID токена; пустая строка — токен неизвестен или истёк.
	Get(ctx context.Context, token string) (string, error)
	Delete(ctx context.Context, token string) error
	Close() error
}

type sessionItem struct {
	userID string
	exp    time.Time
}

type memorySessions struct {
	mu     sync.RWMutex
	tokens map[string]sessionItem
}

// NewMemorySessions создаёт хранилище сессий в памяти.
func NewMemorySessions() SessionStore {
	return &memorySessions{tokens: make(map[string]sessionItem)}
}

func (s *memorySessions) Close() error { return nil }

func (s *memorySessions) Set(ctx context.Context, token, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = sessionItem{userID: userID, exp: time.Now().Add(sessionTTL)}
	return nil
}

func (s *memorySessions) Get(ctx context.Context, token string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.tokens[token]
	if !ok || time.Now().After(item.exp) {
		return "", nil
	}
	return item.userID, nil
}

func (s *memorySessions) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	return nil
}
