package model

import "time"

type ConversationKind string

const (
	KindIndividual ConversationKind = "individual"
	KindGroup      ConversationKind = "group"
)

// GroupNamePlaceholder подставляется вместо пустого имени группы.
const GroupNamePlaceholder = "Unnamed group"

// Conversation — переписка 1:1 или групповая. ID назначается сервером и
// стабилен на всё время жизни переписки; клиент никогда не придумывает свой.
type Conversation struct {
	ID        string           `json:"_id"`
	Kind      ConversationKind `json:"kind"`
	Name      string           `json:"name,omitempty"`
	Members   []Profile        `json:"members,omitempty"`
	CreatedBy string           `json:"createdBy,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// DisplayName returns the group name (placeholder when empty) or, for an
// individual chat, the counterpart's name as seen by selfID.
func (c Conversation) DisplayName(selfID string) string {
	if c.Kind == KindGroup {
		if c.Name == "" {
			return GroupNamePlaceholder
		}
		return c.Name
	}
	for _, m := range c.Members {
		if m.ID != selfID {
			return m.Name
		}
	}
	return c.Name
}

// HasMember reports whether userID belongs to the conversation.
func (c Conversation) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}
