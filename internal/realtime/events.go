package realtime

import "github.com/teamchat/internal/model"

type EventType string

const (
	// Исходящие (клиент -> сервер)
	EventJoinChat  EventType = "joinChat"
	EventLeaveChat EventType = "leaveChat"

	// В обе стороны
	EventTyping EventType = "typing"

	// Входящие (сервер -> клиент)
	EventMessage        EventType = "message"
	EventMessageUpdated EventType = "messageUpdated"
	EventMessageDeleted EventType = "messageDeleted"
	EventGroupCreated   EventType = "groupCreated"
	EventGroupUpdated   EventType = "groupUpdated"
	EventError          EventType = "error"
)

// Event — единый тегированный конверт realtime-канала в обе стороны.
type Event struct {
	Type     EventType           `json:"type"`
	ChatID   string              `json:"chatId,omitempty"`
	UserID   string              `json:"userId,omitempty"`
	IsTyping bool                `json:"isTyping,omitempty"`
	Message  *model.Message      `json:"message,omitempty"`
	Group    *model.Conversation `json:"group,omitempty"`
	Error    string              `json:"error,omitempty"`
}
