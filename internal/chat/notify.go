package chat

// NoteType — вид исходящего уведомления движка.
type NoteType int

const (
	// NoteDirectory — изменились списки переписок, активность или непрочитанное.
	NoteDirectory NoteType = iota
	// NoteMessages — изменилась лента открытой переписки.
	NoteMessages
	// NoteScrollToNewest — в открытую переписку добавилось новое сообщение.
	NoteScrollToNewest
	// NoteTyping — изменился индикатор печати.
	NoteTyping
	// NoteConversationOpened — открыта другая переписка.
	NoteConversationOpened
	// NoteTransientError — локальная ошибка операции; состояние не менялось,
	// пользователь повторяет операцию вручную.
	NoteTransientError
	// NoteAuthExpired — сессия истекла, требуется logout.
	NoteAuthExpired
	// NoteConnectionLost — попытки переподключения исчерпаны, автоматических
	// попыток больше не будет.
	NoteConnectionLost
)

// Notification — событие движка для UI. Движок владеет состоянием и
// сообщает наружу только фактом изменения; UI забирает срез через Snapshot.
type Notification struct {
	Type   NoteType
	ChatID string
	Text   string
	Err    error
}
