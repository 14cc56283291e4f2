package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/teamchat/internal/model"
)

type recordingHandler struct {
	messages []model.Message
	updated  []model.Message
	deleted  []model.Message
	typing   []string
	groups   []model.Conversation
}

func (h *recordingHandler) HandleIncomingMessage(m model.Message) { h.messages = append(h.messages, m) }
func (h *recordingHandler) HandleMessageUpdated(m model.Message)  { h.updated = append(h.updated, m) }
func (h *recordingHandler) HandleMessageDeleted(m model.Message)  { h.deleted = append(h.deleted, m) }
func (h *recordingHandler) HandleTyping(chatID, userID string, isTyping bool) {
	h.typing = append(h.typing, chatID+"/"+userID)
}
func (h *recordingHandler) HandleGroupCreated(g model.Conversation) { h.groups = append(h.groups, g) }
func (h *recordingHandler) HandleGroupUpdated(g model.Conversation) { h.groups = append(h.groups, g) }

func TestRouterDispatchByTag(t *testing.T) {
	h := &recordingHandler{}
	r := NewRouter(h)

	m := &model.Message{ID: "m1", ChatID: "c1", CreatedAt: time.Now()}
	g := &model.Conversation{ID: "g1", Kind: model.KindGroup}

	r.Dispatch(Event{Type: EventMessage, Message: m})
	r.Dispatch(Event{Type: EventMessageUpdated, Message: m})
	r.Dispatch(Event{Type: EventMessageDeleted, Message: m})
	r.Dispatch(Event{Type: EventTyping, ChatID: "c1", UserID: "u2", IsTyping: true})
	r.Dispatch(Event{Type: EventGroupCreated, Group: g})
	r.Dispatch(Event{Type: EventGroupUpdated, Group: g})

	if len(h.messages) != 1 || len(h.updated) != 1 || len(h.deleted) != 1 {
		t.Fatalf("message dispatch counts: in=%d upd=%d del=%d, want 1 each",
			len(h.messages), len(h.updated), len(h.deleted))
	}
	if len(h.typing) != 1 || h.typing[0] != "c1/u2" {
		t.Fatalf("typing dispatch: %v", h.typing)
	}
	if len(h.groups) != 2 {
		t.Fatalf("group dispatch count: %d, want 2", len(h.groups))
	}
}

func TestRouterDropsMalformedEvents(t *testing.T) {
	h := &recordingHandler{}
	r := NewRouter(h)

	malformed := []Event{
		{Type: EventMessage},                                          // no payload
		{Type: EventMessage, Message: &model.Message{ChatID: "c1"}},   // no id
		{Type: EventMessage, Message: &model.Message{ID: "m1"}},       // no chat
		{Type: EventMessageUpdated},                                   //
		{Type: EventMessageDeleted, Message: &model.Message{}},        //
		{Type: EventTyping, ChatID: "c1"},                             // no user
		{Type: EventTyping, UserID: "u2"},                             // no chat
		{Type: EventGroupCreated},                                     //
		{Type: EventGroupUpdated, Group: &model.Conversation{}},       // no id
		{Type: "totallyUnknown"},                                      //
		{Type: EventError, Error: "server side"},                      // logged only
	}
	for _, ev := range malformed {
		r.Dispatch(ev)
	}

	if len(h.messages)+len(h.updated)+len(h.deleted)+len(h.typing)+len(h.groups) != 0 {
		t.Fatalf("malformed events reached the handler: %+v", h)
	}
}

func TestRouterSurvivesHandlerPanic(t *testing.T) {
	r := NewRouter(panickingHandler{})
	// Must not propagate; one poisoned event cannot take down the read loop.
	r.Dispatch(Event{Type: EventMessage, Message: &model.Message{ID: "m1", ChatID: "c1"}})
}

type panickingHandler struct{}

func (panickingHandler) HandleIncomingMessage(model.Message)  { panic("boom") }
func (panickingHandler) HandleMessageUpdated(model.Message)   {}
func (panickingHandler) HandleMessageDeleted(model.Message)   {}
func (panickingHandler) HandleTyping(string, string, bool)    {}
func (panickingHandler) HandleGroupCreated(model.Conversation) {}
func (panickingHandler) HandleGroupUpdated(model.Conversation) {}

func TestEventEnvelopeJSON(t *testing.T) {
	raw := `{"type":"message","chatId":"c1","message":{"_id":"m1","chatId":"c1","senderId":"u2","content":"hi","contentType":"text","createdAt":"2026-05-01T12:00:00Z"}}`
	var ev Event
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Type != EventMessage || ev.Message == nil || ev.Message.ID != "m1" {
		t.Fatalf("decoded envelope: %+v", ev)
	}
	if ev.Message.SenderID != "u2" || ev.Message.Content != "hi" {
		t.Fatalf("decoded message: %+v", ev.Message)
	}
}
