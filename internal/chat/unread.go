package chat

// UnreadCounter — счётчики непрочитанного по перепискам.
// Инвариант: счётчик открытой переписки всегда 0; сбрасывается синхронно
// при выборе переписки, до старта загрузки истории.
type UnreadCounter struct {
	counts map[string]int
}

func NewUnreadCounter() *UnreadCounter {
	return &UnreadCounter{counts: make(map[string]int)}
}

// Increment увеличивает счётчик переписки на единицу.
// Вызывается только для входящих сообщений не в открытую переписку
// и не от локального пользователя.
func (u *UnreadCounter) Increment(chatID string) int {
	u.counts[chatID]++
	return u.counts[chatID]
}

// Reset обнуляет счётчик переписки.
func (u *UnreadCounter) Reset(chatID string) {
	delete(u.counts, chatID)
}

// Count возвращает счётчик переписки (0, если не было входящих).
func (u *UnreadCounter) Count(chatID string) int {
	return u.counts[chatID]
}

// Total возвращает сумму по всем перепискам (бейдж приложения).
func (u *UnreadCounter) Total() int {
	total := 0
	for _, n := range u.counts {
		total += n
	}
	return total
}
