// Package session — явный контекст авторизованного пользователя.
// Передаётся компонентам при создании; никаких ambient-глобалов.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Session identifies the local user for the engine, the REST client and the
// realtime channel. Token is sent as Authorization: Bearer.
type Session struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Token  string `json:"token"`
}

// Valid reports whether the session can authenticate requests.
func (s Session) Valid() bool {
	return s.UserID != "" && s.Token != ""
}

func defaultPath() (string, error) {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ".teamchat", "session.json"), nil
}

// Load читает сохранённую сессию терминального клиента. Отсутствие файла — не ошибка.
func Load() (Session, error) {
	path, err := defaultPath()
	if err != nil {
		return Session{}, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Session{}, nil
	}
	if err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("session parse %s: %w", path, err)
	}
	return s, nil
}

// Save сохраняет сессию для автологина при следующем запуске.
func Save(s Session) error {
	path, err := defaultPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Clear удаляет сохранённую сессию (logout).
func Clear() error {
	path, err := defaultPath()
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
