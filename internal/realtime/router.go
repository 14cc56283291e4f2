package realtime

import (
	"github.com/teamchat/internal/logger"
	"github.com/teamchat/internal/model"
)

// Handler — получатель валидированных realtime-событий (движок состояния).
type Handler interface {
	HandleIncomingMessage(m model.Message)
	HandleMessageUpdated(m model.Message)
	HandleMessageDeleted(m model.Message)
	HandleTyping(chatID, userID string, isTyping bool)
	HandleGroupCreated(g model.Conversation)
	HandleGroupUpdated(g model.Conversation)
}

// Router проверяет обязательные поля входящих событий и раскладывает их
// по операциям Handler'а. Кривое событие логируется и отбрасывается:
// транспортный мусор не должен ронять клиент и не должен попадать в состояние.
type Router struct {
	h Handler
}

func NewRouter(h Handler) *Router {
	return &Router{h: h}
}

// Dispatch обрабатывает одно входящее событие.
func (r *Router) Dispatch(ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorf("router: panic on %s event: %v", ev.Type, rec)
		}
	}()

	switch ev.Type {
	case EventMessage:
		if !validMessage(ev) {
			return
		}
		r.h.HandleIncomingMessage(*ev.Message)
	case EventMessageUpdated:
		if !validMessage(ev) {
			return
		}
		r.h.HandleMessageUpdated(*ev.Message)
	case EventMessageDeleted:
		if !validMessage(ev) {
			return
		}
		r.h.HandleMessageDeleted(*ev.Message)
	case EventTyping:
		if ev.ChatID == "" || ev.UserID == "" {
			logger.Errorf("router: malformed typing event dropped (chatId=%q userId=%q)", ev.ChatID, ev.UserID)
			return
		}
		r.h.HandleTyping(ev.ChatID, ev.UserID, ev.IsTyping)
	case EventGroupCreated:
		if !validGroup(ev) {
			return
		}
		r.h.HandleGroupCreated(*ev.Group)
	case EventGroupUpdated:
		if !validGroup(ev) {
			return
		}
		r.h.HandleGroupUpdated(*ev.Group)
	case EventError:
		logger.Errorf("router: server error event: %s", ev.Error)
	default:
		logger.Debugf("router: unknown event %q dropped", ev.Type)
	}
}

func validMessage(ev Event) bool {
	if ev.Message == nil || ev.Message.ID == "" || ev.Message.ChatID == "" {
		logger.Errorf("router: malformed %s event dropped", ev.Type)
		return false
	}
	return true
}

func validGroup(ev Event) bool {
	if ev.Group == nil || ev.Group.ID == "" {
		logger.Errorf("router: malformed %s event dropped", ev.Type)
		return false
	}
	return true
}
