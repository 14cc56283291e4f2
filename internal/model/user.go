package model

import (
	"strings"
	"unicode"
)

// Profile — публичный профиль пользователя из справочника /chats/users.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Valid reports whether the profile has all fields the directory requires.
// Incomplete profiles are logged and skipped, never fatal.
func (p Profile) Valid() bool {
	return p.ID != "" && p.Name != "" && p.Email != ""
}

// Initials returns up to two uppercase initials for avatar placeholders.
func (p Profile) Initials() string {
	var b strings.Builder
	n := 0
	for _, word := range strings.Fields(p.Name) {
		for _, r := range word {
			b.WriteRune(unicode.ToUpper(r))
			n++
			break
		}
		if n >= 2 {
			break
		}
	}
	return b.String()
}
