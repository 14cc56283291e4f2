package model

import "time"

type ContentKind string

const (
	ContentText     ContentKind = "text"
	ContentImage    ContentKind = "image"
	ContentVideo    ContentKind = "video"
	ContentAudio    ContentKind = "audio"
	ContentDocument ContentKind = "document"
)

// Message — сообщение в переписке. ID назначается сервером при сохранении;
// оптимистичные локальные записи используют sentinel-id до подтверждения.
type Message struct {
	ID          string      `json:"_id"`
	ChatID      string      `json:"chatId"`
	SenderID    string      `json:"senderId"`
	Content     string      `json:"content,omitempty"`
	FileURL     string      `json:"fileUrl,omitempty"`
	ContentType ContentKind `json:"contentType,omitempty"`
	FileName    string      `json:"fileName,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	EditedAt    *time.Time  `json:"editedAt,omitempty"`
	// Deleted — tombstone: содержимое скрывается, но запись остаётся
	// на своей позиции (удаление не меняет порядок ленты).
	Deleted bool `json:"deleted,omitempty"`
}

// HasAttachment reports whether the message carries a file.
func (m Message) HasAttachment() bool {
	return m.FileURL != ""
}

// Pagination — блок пагинации из ответа GET /chats/{id}/messages.
// Страница 1 — самое свежее окно, большие номера — более старая история.
type Pagination struct {
	TotalPages  int `json:"totalPages"`
	CurrentPage int `json:"currentPage,omitempty"`
}
