package chat

import (
	"sort"
	"time"

	"github.com/teamchat/internal/logger"
	"github.com/teamchat/internal/model"
)

// Entry — строка в списке переписок (sidebar).
type Entry struct {
	// ChatID пуст для личной переписки, пока она не разрешена через
	// get-or-create (ленивое разрешение при первом открытии).
	ChatID       string
	Kind         model.ConversationKind
	Counterpart  model.Profile      // только для Kind == KindIndividual
	Group        model.Conversation // только для Kind == KindGroup
	DisplayName  string
	LastActivity time.Time
	Unread       int
}

// Directory строит список переписок: личные — из справочника профилей,
// групповые — как есть. Сортировка обоих списков — по убыванию последней
// активности; неизвестная активность считается началом эпохи.
type Directory struct {
	selfID string

	individuals map[string]model.Profile // по id собеседника
	userOrder   []string                 // порядок поступления (стабильность сортировки)
	chatIDs     map[string]string        // id собеседника -> разрешённый chatId
	groups      map[string]model.Conversation
	groupOrder  []string
	activity    map[string]time.Time // chatId -> lastActivityAt
}

func NewDirectory(selfID string) *Directory {
	return &Directory{
		selfID:      selfID,
		individuals: make(map[string]model.Profile),
		chatIDs:     make(map[string]string),
		groups:      make(map[string]model.Conversation),
		activity:    make(map[string]time.Time),
	}
}

// SetUsers заменяет справочник собеседников. Свой профиль и структурно
// неполные записи отбрасываются (с логом), остальное остаётся как есть.
func (d *Directory) SetUsers(users []model.Profile) {
	d.individuals = make(map[string]model.Profile, len(users))
	d.userOrder = d.userOrder[:0]
	for _, u := range users {
		if u.ID == d.selfID {
			continue
		}
		if !u.Valid() {
			logger.Errorf("directory: skipping invalid profile id=%q name=%q", u.ID, u.Name)
			continue
		}
		if _, seen := d.individuals[u.ID]; seen {
			continue
		}
		d.individuals[u.ID] = u
		d.userOrder = append(d.userOrder, u.ID)
	}
}

// SetGroups заменяет список групп; группы без участников отбрасываются.
func (d *Directory) SetGroups(groups []model.Conversation) {
	d.groups = make(map[string]model.Conversation, len(groups))
	d.groupOrder = d.groupOrder[:0]
	for _, g := range groups {
		if len(g.Members) == 0 {
			continue
		}
		if _, seen := d.groups[g.ID]; seen {
			continue
		}
		d.groups[g.ID] = g
		d.groupOrder = append(d.groupOrder, g.ID)
		d.Touch(g.ID, g.CreatedAt)
	}
}

// UpsertGroup вставляет группу или заменяет существующую по id.
func (d *Directory) UpsertGroup(g model.Conversation) {
	if len(g.Members) == 0 {
		return
	}
	if _, exists := d.groups[g.ID]; !exists {
		d.groupOrder = append(d.groupOrder, g.ID)
		d.Touch(g.ID, g.CreatedAt)
	}
	d.groups[g.ID] = g
}

// Group возвращает группу по id.
func (d *Directory) Group(id string) (model.Conversation, bool) {
	g, ok := d.groups[id]
	return g, ok
}

// SetChatID запоминает chatId личной переписки с собеседником.
func (d *Directory) SetChatID(counterpartID, chatID string) {
	d.chatIDs[counterpartID] = chatID
}

// NoteInboundChat привязывает личную переписку к отправителю входящего
// сообщения: собеседник мог создать чат на сервере раньше, чем мы его
// открыли, и без привязки его запись не получит ни бейджа, ни активности.
func (d *Directory) NoteInboundChat(senderID, chatID string) {
	if senderID == "" || chatID == "" {
		return
	}
	if _, isGroup := d.groups[chatID]; isGroup {
		return
	}
	if _, known := d.individuals[senderID]; !known {
		return
	}
	if _, resolved := d.chatIDs[senderID]; resolved {
		return
	}
	d.chatIDs[senderID] = chatID
}

// ChatID возвращает разрешённый chatId личной переписки, если он известен.
func (d *Directory) ChatID(counterpartID string) (string, bool) {
	id, ok := d.chatIDs[counterpartID]
	return id, ok
}

// Touch поднимает lastActivityAt переписки. Монотонно: более старое время
// не затирает более новое.
func (d *Directory) Touch(chatID string, ts time.Time) {
	if chatID == "" {
		return
	}
	if cur, ok := d.activity[chatID]; ok && !ts.After(cur) {
		return
	}
	d.activity[chatID] = ts
}

// SetTimestamps применяет выгрузку /chats/timestamps (тоже монотонно).
func (d *Directory) SetTimestamps(ts map[string]time.Time) {
	for chatID, t := range ts {
		d.Touch(chatID, t)
	}
}

func (d *Directory) activityOf(chatID string) time.Time {
	if t, ok := d.activity[chatID]; ok {
		return t
	}
	return time.Unix(0, 0)
}

// Individuals возвращает личные переписки, отсортированные по убыванию активности.
func (d *Directory) Individuals(unread *UnreadCounter) []Entry {
	out := make([]Entry, 0, len(d.userOrder))
	for _, uid := range d.userOrder {
		p := d.individuals[uid]
		chatID := d.chatIDs[uid]
		e := Entry{
			ChatID:       chatID,
			Kind:         model.KindIndividual,
			Counterpart:  p,
			DisplayName:  p.Name,
			LastActivity: d.activityOf(chatID),
		}
		if unread != nil && chatID != "" {
			e.Unread = unread.Count(chatID)
		}
		out = append(out, e)
	}
	sortEntries(out)
	return out
}

// Groups возвращает групповые переписки, отсортированные по убыванию активности.
func (d *Directory) Groups(unread *UnreadCounter) []Entry {
	out := make([]Entry, 0, len(d.groupOrder))
	for _, gid := range d.groupOrder {
		g, ok := d.groups[gid]
		if !ok {
			continue
		}
		e := Entry{
			ChatID:       g.ID,
			Kind:         model.KindGroup,
			Group:        g,
			DisplayName:  g.DisplayName(d.selfID),
			LastActivity: d.activityOf(g.ID),
		}
		if unread != nil {
			e.Unread = unread.Count(g.ID)
		}
		out = append(out, e)
	}
	sortEntries(out)
	return out
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].LastActivity.After(entries[j].LastActivity)
	})
}
