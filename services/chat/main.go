package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/teamchat/internal/api"
	"github.com/teamchat/internal/chat"
	"github.com/teamchat/internal/config"
	"github.com/teamchat/internal/logger"
	"github.com/teamchat/internal/model"
	"github.com/teamchat/internal/realtime"
	"github.com/teamchat/internal/session"
)

// --- Styles ---

var (
	primaryColor = lipgloss.Color("#7C3AED")
	selfColor    = lipgloss.Color("#10B981")
	mutedColor   = lipgloss.Color("#9CA3AF")
	errorColor   = lipgloss.Color("#EF4444")
	activeBorder = lipgloss.Color("#F59E0B")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(1, 2)

	sidebarStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1).
			MarginRight(1)

	selectedItemStyle = lipgloss.NewStyle().
				Foreground(selfColor).
				Bold(true).
				PaddingLeft(1).
				Border(lipgloss.NormalBorder(), false, false, false, true).
				BorderForeground(selfColor)

	unselectedItemStyle = lipgloss.NewStyle().
				PaddingLeft(2)

	sectionStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Bold(true)

	chatWindowStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(mutedColor).
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), true, false, false, false).
			BorderForeground(mutedColor).
			Padding(0, 1)

	ownNameStyle   = lipgloss.NewStyle().Foreground(selfColor)
	otherNameStyle = lipgloss.NewStyle().Foreground(primaryColor)
	deletedStyle   = lipgloss.NewStyle().Foreground(mutedColor).Italic(true)
)

// --- View State ---

type pane int

const (
	paneSidebar pane = iota
	paneChat
)

// noteMsg оборачивает уведомление движка в сообщение bubbletea.
type noteMsg chat.Notification

// notesClosed — канал уведомлений закрыт (движок остановлен).
type notesClosed struct{}

// loginDone — результат попытки входа.
type loginDone struct {
	sess session.Session
	err  error
}

// opDone — фоновая операция движка завершилась (состояние придёт отдельным
// уведомлением, здесь важен только факт завершения для снятия спиннера).
type opDone struct{}

// --- Main Model ---

type uiModel struct {
	cfg  *config.Config
	sess session.Session

	eng    *chat.Engine
	rtc    *realtime.Channel
	cancel context.CancelFunc
	notifs <-chan chat.Notification

	// Auth
	authenticated bool
	nameInput     textinput.Model
	emailInput    textinput.Model
	authFocused   int
	authError     string
	isLoading     bool

	// Layout
	width        int
	height       int
	focusedPane  pane
	sidebarWidth int

	// Sidebar
	selected int

	// Chat
	snap         chat.Snapshot
	messageInput textinput.Model
	chatViewport viewport.Model

	// New Group Overlay
	showNewGroup   bool
	groupNameInput textinput.Model
	groupMembers   map[string]bool // id собеседника -> выбран
	groupCursor    int

	// System
	status         string
	connectionLost bool
}

func initialModel(cfg *config.Config) uiModel {
	nameInput := textinput.New()
	nameInput.Placeholder = "Name"
	nameInput.CharLimit = 64
	nameInput.Width = 30
	nameInput.Focus()

	emailInput := textinput.New()
	emailInput.Placeholder = "Email"
	emailInput.CharLimit = 128
	emailInput.Width = 30

	messageInput := textinput.New()
	messageInput.Placeholder = "Message... (/upload <path>, /edit <n> <text>, /del <n>)"
	messageInput.CharLimit = 2000
	messageInput.Width = 50

	groupNameInput := textinput.New()
	groupNameInput.Placeholder = "Group name"
	groupNameInput.CharLimit = 64
	groupNameInput.Width = 30

	return uiModel{
		cfg:            cfg,
		nameInput:      nameInput,
		emailInput:     emailInput,
		messageInput:   messageInput,
		groupNameInput: groupNameInput,
		groupMembers:   make(map[string]bool),
		chatViewport:   viewport.New(80, 20),
		sidebarWidth:   30,
	}
}

// --- Commands ---

func waitNote(ch <-chan chat.Notification) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return notesClosed{}
		}
		return noteMsg(n)
	}
}

func login(cfg *config.Config, name, email string) tea.Cmd {
	return func() tea.Msg {
		client := api.NewClient(cfg.ServerURL, session.Session{}, cfg.MaxUploadSize)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		sess, err := client.Login(ctx, name, email)
		return loginDone{sess: sess, err: err}
	}
}

// engineOp выполняет блокирующую операцию движка в фоне; ошибки доходят
// до интерфейса через канал уведомлений, а не через возврат.
func engineOp(op func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = op(ctx)
		return opDone{}
	}
}

// startEngine собирает движок и realtime-канал после входа.
func (m *uiModel) startEngine() tea.Cmd {
	client := api.NewClient(m.cfg.ServerURL, m.sess, m.cfg.MaxUploadSize)
	m.eng = chat.NewEngine(m.sess, client, chat.Options{
		PageSize:           m.cfg.PageSize,
		TypingEmitInterval: m.cfg.TypingEmitInterval,
		TypingIdleTimeout:  m.cfg.TypingIdleTimeout,
	})
	m.notifs = m.eng.Notifications()

	router := realtime.NewRouter(m.eng)
	m.rtc = realtime.NewChannel(
		m.cfg.WSURL(), m.sess.Token,
		m.cfg.ReconnectAttempts, m.cfg.ReconnectDelay,
		router, m.eng.HandleReconnectFailed)
	m.eng.SetTransport(m.rtc)

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.rtc.Run(ctx)

	eng := m.eng
	return tea.Batch(
		waitNote(m.notifs),
		engineOp(func(ctx context.Context) error { return eng.RefreshDirectory(ctx) }),
	)
}

func (m *uiModel) stopEngine() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.rtc != nil {
		m.rtc.Close()
	}
	if m.eng != nil {
		m.eng.Close()
	}
}

// --- Init ---

func (m uiModel) Init() tea.Cmd {
	if m.sess.Valid() {
		return tea.Batch(textinput.Blink, login(m.cfg, m.sess.Name, m.sess.Email))
	}
	return textinput.Blink
}

// --- Update ---

func (m uiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.stopEngine()
			return m, tea.Quit
		}

		if !m.authenticated {
			return m.updateAuth(msg)
		}
		if m.showNewGroup {
			return m.updateNewGroup(msg)
		}
		return m.updateMain(msg)

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refreshViewport(false)

	case loginDone:
		m.isLoading = false
		if msg.err != nil {
			m.authError = msg.err.Error()
			session.Clear()
			return m, nil
		}
		m.sess = msg.sess
		m.authenticated = true
		m.authError = ""
		if err := session.Save(m.sess); err != nil {
			logger.Errorf("save session: %v", err)
		}
		return m, m.startEngine()

	case noteMsg:
		cmds = append(cmds, waitNote(m.notifs))
		m.applyNote(chat.Notification(msg), &cmds)

	case notesClosed:
		return m, tea.Quit

	case opDone:
		// Снимок уже обновлён уведомлением; ничего не делаем.
	}

	return m, tea.Batch(cmds...)
}

func (m *uiModel) applyNote(n chat.Notification, cmds *[]tea.Cmd) {
	m.snap = m.eng.Snapshot()

	switch n.Type {
	case chat.NoteScrollToNewest:
		m.refreshViewport(true)
	case chat.NoteMessages, chat.NoteTyping:
		m.refreshViewport(false)
	case chat.NoteConversationOpened:
		m.refreshViewport(true)
		m.focusedPane = paneChat
		m.messageInput.Focus()
	case chat.NoteTransientError:
		if n.Err != nil {
			m.status = n.Err.Error()
		} else {
			m.status = n.Text
		}
	case chat.NoteAuthExpired:
		// Сессия умерла на сервере: локальную копию стираем и возвращаем
		// пользователя на форму входа.
		session.Clear()
		m.stopEngine()
		m.authenticated = false
		m.sess = session.Session{}
		m.status = ""
		m.authError = "session expired, sign in again"
		m.nameInput.Focus()
	case chat.NoteConnectionLost:
		m.connectionLost = true
	}
}

func (m uiModel) updateAuth(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "shift+tab":
		m.nameInput.Blur()
		m.emailInput.Blur()
		m.authFocused = (m.authFocused + 1) % 2
		if m.authFocused == 0 {
			m.nameInput.Focus()
		} else {
			m.emailInput.Focus()
		}
		return m, nil
	case "enter":
		name := strings.TrimSpace(m.nameInput.Value())
		email := strings.TrimSpace(m.emailInput.Value())
		if name != "" && email != "" && !m.isLoading {
			m.isLoading = true
			m.authError = ""
			return m, login(m.cfg, name, email)
		}
		return m, nil
	case "q", "esc":
		if m.nameInput.Value() == "" && m.emailInput.Value() == "" {
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	if m.authFocused == 0 {
		m.nameInput, cmd = m.nameInput.Update(msg)
	} else {
		m.emailInput, cmd = m.emailInput.Update(msg)
	}
	return m, cmd
}

func (m uiModel) updateNewGroup(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	people := m.snap.Individuals
	switch msg.String() {
	case "esc":
		m.showNewGroup = false
		return m, nil
	case "up":
		if m.groupCursor > 0 {
			m.groupCursor--
		}
		return m, nil
	case "down":
		if m.groupCursor < len(people)-1 {
			m.groupCursor++
		}
		return m, nil
	case " ":
		if m.groupCursor < len(people) {
			id := people[m.groupCursor].Counterpart.ID
			m.groupMembers[id] = !m.groupMembers[id]
		}
		return m, nil
	case "enter":
		name := strings.TrimSpace(m.groupNameInput.Value())
		var ids []string
		for id, on := range m.groupMembers {
			if on {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return m, nil
		}
		m.showNewGroup = false
		m.groupNameInput.SetValue("")
		m.groupMembers = make(map[string]bool)
		eng := m.eng
		return m, engineOp(func(ctx context.Context) error {
			return eng.CreateGroup(ctx, name, ids)
		})
	}
	var cmd tea.Cmd
	m.groupNameInput, cmd = m.groupNameInput.Update(msg)
	return m, cmd
}

func (m uiModel) updateMain(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch m.focusedPane {
	case paneSidebar:
		entries := m.entries()
		switch msg.String() {
		case "q":
			m.stopEngine()
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(entries)-1 {
				m.selected++
			}
		case "enter", "l", "right":
			if m.selected < len(entries) {
				return m, m.openEntry(entries[m.selected])
			}
		case "g":
			m.showNewGroup = true
			m.groupCursor = 0
			m.groupNameInput.Focus()
		case "r":
			eng := m.eng
			cmds = append(cmds, engineOp(func(ctx context.Context) error {
				return eng.RefreshDirectory(ctx)
			}))
		case "L":
			session.Clear()
			m.stopEngine()
			return m, tea.Quit
		}

	case paneChat:
		switch msg.String() {
		case "esc":
			m.focusedPane = paneSidebar
			m.messageInput.Blur()
			return m, nil
		case "pgup":
			if m.snap.CanLoadOlder && !m.snap.Loading {
				eng := m.eng
				cmds = append(cmds, engineOp(func(ctx context.Context) error {
					return eng.LoadOlder(ctx)
				}))
			}
		case "enter":
			if v := strings.TrimSpace(m.messageInput.Value()); v != "" {
				m.messageInput.SetValue("")
				cmds = append(cmds, m.submit(v))
			}
		default:
			// Любой печатный ввод считается набором текста.
			if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace || msg.Type == tea.KeyBackspace {
				m.eng.Keystroke()
			}
		}
		var cmd tea.Cmd
		m.messageInput, cmd = m.messageInput.Update(msg)
		cmds = append(cmds, cmd)
		m.chatViewport, cmd = m.chatViewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// submit разбирает строку ввода: обычный текст или /-команда.
func (m *uiModel) submit(v string) tea.Cmd {
	eng := m.eng
	switch {
	case strings.HasPrefix(v, "/upload "):
		path := strings.TrimSpace(strings.TrimPrefix(v, "/upload "))
		return engineOp(func(ctx context.Context) error {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			st, err := f.Stat()
			if err != nil {
				return err
			}
			return eng.SendAttachment(ctx, filepath.Base(path), f, st.Size(), "")
		})
	case strings.HasPrefix(v, "/edit "):
		rest := strings.TrimPrefix(v, "/edit ")
		idxStr, text, ok := strings.Cut(rest, " ")
		if !ok {
			m.status = "usage: /edit <n> <text>"
			return nil
		}
		id := m.messageIDAt(idxStr)
		if id == "" {
			return nil
		}
		return engineOp(func(ctx context.Context) error {
			return eng.EditMessage(ctx, id, text)
		})
	case strings.HasPrefix(v, "/del "):
		id := m.messageIDAt(strings.TrimSpace(strings.TrimPrefix(v, "/del ")))
		if id == "" {
			return nil
		}
		return engineOp(func(ctx context.Context) error {
			return eng.DeleteMessage(ctx, id)
		})
	default:
		return engineOp(func(ctx context.Context) error {
			return eng.SendText(ctx, v)
		})
	}
}

// messageIDAt переводит номер сообщения с конца списка (1 — последнее) в id.
func (m *uiModel) messageIDAt(s string) string {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > len(m.snap.Messages) {
		m.status = "no such message number"
		return ""
	}
	return m.snap.Messages[len(m.snap.Messages)-n].ID
}

func (m *uiModel) openEntry(e chat.Entry) tea.Cmd {
	eng := m.eng
	if e.ChatID != "" {
		chatID := e.ChatID
		return engineOp(func(ctx context.Context) error {
			return eng.OpenConversation(ctx, chatID)
		})
	}
	counterpartID := e.Counterpart.ID
	return engineOp(func(ctx context.Context) error {
		return eng.OpenIndividualConversation(ctx, counterpartID)
	})
}

// entries — плоский список sidebar'а: сначала личные, затем группы.
func (m *uiModel) entries() []chat.Entry {
	out := make([]chat.Entry, 0, len(m.snap.Individuals)+len(m.snap.Groups))
	out = append(out, m.snap.Individuals...)
	out = append(out, m.snap.Groups...)
	return out
}

func (m *uiModel) resize(w, h int) {
	m.width = w
	m.height = h

	m.sidebarWidth = w / 4
	if m.sidebarWidth < 25 {
		m.sidebarWidth = 25
	}
	sidebarStyle = sidebarStyle.Width(m.sidebarWidth - 2).Height(h - 2)

	chatWidth := w - m.sidebarWidth - 4
	chatHeight := h - 2
	chatWindowStyle = chatWindowStyle.Width(chatWidth).Height(chatHeight)
	headerStyle = headerStyle.Width(chatWidth - 2)
	footerStyle = footerStyle.Width(chatWidth - 2)

	m.chatViewport = viewport.New(chatWidth-4, chatHeight-7)
	m.messageInput.Width = chatWidth - 6
}

func (m *uiModel) refreshViewport(toBottom bool) {
	m.chatViewport.SetContent(m.renderMessages())
	if toBottom {
		m.chatViewport.GotoBottom()
	}
}

func (m *uiModel) renderMessages() string {
	var b strings.Builder
	if m.snap.CanLoadOlder {
		b.WriteString(mutedStyle.Render("· PgUp to load older messages ·") + "\n")
	}
	for _, msg := range m.snap.Messages {
		b.WriteString(m.renderMessage(msg) + "\n")
	}
	return b.String()
}

func (m *uiModel) renderMessage(msg model.Message) string {
	ts := mutedStyle.Render(msg.CreatedAt.Local().Format("15:04"))

	if msg.Deleted {
		return fmt.Sprintf("%s %s", ts, deletedStyle.Render("message deleted"))
	}

	nameStyle := otherNameStyle
	name := m.senderName(msg.SenderID)
	if msg.SenderID == m.sess.UserID {
		nameStyle = ownNameStyle
		name = m.sess.Name
	}

	body := msg.Content
	if msg.HasAttachment() {
		att := fmt.Sprintf("[%s: %s]", msg.ContentType, msg.FileName)
		if body != "" {
			body = att + " " + body
		} else {
			body = att
		}
	}
	line := fmt.Sprintf("%s %s: %s", ts, nameStyle.Render(name), body)
	if msg.EditedAt != nil {
		line += " " + mutedStyle.Render("(edited)")
	}
	if strings.HasPrefix(msg.ID, "pending:") {
		line += " " + mutedStyle.Render("…")
	}
	return line
}

// senderName ищет имя отправителя по справочнику переписок.
func (m *uiModel) senderName(userID string) string {
	for _, e := range m.snap.Individuals {
		if e.Counterpart.ID == userID {
			return e.Counterpart.Name
		}
	}
	for _, e := range m.snap.Groups {
		for _, p := range e.Group.Members {
			if p.ID == userID {
				return p.Name
			}
		}
	}
	return userID
}

// --- View ---

func (m uiModel) View() string {
	if !m.authenticated {
		return m.authView()
	}
	if m.showNewGroup {
		return m.newGroupView()
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, m.sidebarView(), m.chatWindowView())
}

func (m uiModel) authView() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("teamchat") + "\n\n")
	s.WriteString("Name:  " + m.nameInput.View() + "\n")
	s.WriteString("Email: " + m.emailInput.View() + "\n\n")
	if m.authError != "" {
		s.WriteString(errorStyle.Render(m.authError) + "\n")
	}
	if m.isLoading {
		s.WriteString(mutedStyle.Render("Signing in..."))
	} else {
		s.WriteString(mutedStyle.Render("Enter to sign in • Tab to switch field"))
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, boxStyle.Render(s.String()))
}

func (m uiModel) newGroupView() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("New Group") + "\n\n")
	s.WriteString("Name: " + m.groupNameInput.View() + "\n\n")
	s.WriteString("Members (space to toggle):\n")
	for i, e := range m.snap.Individuals {
		mark := "[ ]"
		if m.groupMembers[e.Counterpart.ID] {
			mark = "[x]"
		}
		line := fmt.Sprintf("%s %s", mark, e.DisplayName)
		if i == m.groupCursor {
			s.WriteString(selectedItemStyle.Render(line) + "\n")
		} else {
			s.WriteString(unselectedItemStyle.Render(line) + "\n")
		}
	}
	s.WriteString("\n" + mutedStyle.Render("Enter to create • Esc to cancel"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, boxStyle.Render(s.String()))
}

func (m uiModel) sidebarView() string {
	var s strings.Builder

	borderColor := mutedColor
	if m.focusedPane == paneSidebar {
		borderColor = activeBorder
	}
	style := sidebarStyle.BorderForeground(borderColor)

	title := m.sess.Name
	if m.snap.UnreadTotal > 0 {
		title = fmt.Sprintf("%s (%d)", m.sess.Name, m.snap.UnreadTotal)
	}
	s.WriteString(titleStyle.Render(title) + "\n\n")

	entries := m.entries()
	if len(entries) == 0 {
		s.WriteString(mutedStyle.Render("Nobody here yet.\n'r' to refresh."))
	}

	idx := 0
	writeEntry := func(e chat.Entry) {
		icon := "##"
		if e.Kind == model.KindIndividual {
			icon = e.Counterpart.Initials()
		}
		unread := ""
		if e.Unread > 0 {
			unread = errorStyle.Render(fmt.Sprintf(" (%d)", e.Unread))
		}
		line := icon + " " + e.DisplayName + unread
		if idx == m.selected {
			s.WriteString(selectedItemStyle.Render(line) + "\n")
		} else {
			s.WriteString(unselectedItemStyle.Render(line) + "\n")
		}
		idx++
	}

	if len(m.snap.Individuals) > 0 {
		s.WriteString(sectionStyle.Render("People") + "\n")
		for _, e := range m.snap.Individuals {
			writeEntry(e)
		}
	}
	if len(m.snap.Groups) > 0 {
		s.WriteString("\n" + sectionStyle.Render("Groups") + "\n")
		for _, e := range m.snap.Groups {
			writeEntry(e)
		}
	}

	s.WriteString("\n" + mutedStyle.Render("g: new group · L: logout"))
	return style.Render(s.String())
}

func (m uiModel) chatWindowView() string {
	if m.snap.OpenChatID == "" {
		return chatWindowStyle.Render(
			lipgloss.Place(
				m.width-m.sidebarWidth-6, m.height-4,
				lipgloss.Center, lipgloss.Center,
				mutedStyle.Render("Select a conversation"),
			),
		)
	}

	borderColor := mutedColor
	if m.focusedPane == paneChat {
		borderColor = activeBorder
	}

	headerText := m.openChatName()
	if m.snap.Loading {
		headerText += mutedStyle.Render("  loading...")
	}
	if m.snap.Uploading {
		headerText += mutedStyle.Render("  uploading...")
	}
	if m.connectionLost {
		headerText = errorStyle.Render("⚠ connection lost, restart to reconnect") + "  " + headerText
	}
	header := headerStyle.Render(headerText)

	statusLine := ""
	if m.snap.TypistActive {
		statusLine = mutedStyle.Render(fmt.Sprintf("%s is typing...", m.senderName(m.snap.Typist.UserID)))
	} else if m.status != "" {
		statusLine = errorStyle.Render(m.status)
	}

	footerContent := m.messageInput.View()
	if statusLine != "" {
		footerContent = statusLine + "\n" + footerContent
	}
	footer := footerStyle.Render(footerContent)

	return chatWindowStyle.BorderForeground(borderColor).Render(
		lipgloss.JoinVertical(lipgloss.Left, header, m.chatViewport.View(), footer))
}

func (m uiModel) openChatName() string {
	for _, e := range m.entries() {
		if e.ChatID == m.snap.OpenChatID {
			return e.DisplayName
		}
	}
	return "Conversation"
}

// --- Main ---

func main() {
	cfg := config.Load()
	logger.SetPrefix("chat")
	logger.SetLevel(cfg.LogLevel)

	// Логи не должны попадать в терминал поверх интерфейса.
	home, err := os.UserHomeDir()
	if err == nil {
		logPath := filepath.Join(home, ".teamchat", "chat.log")
		os.MkdirAll(filepath.Dir(logPath), 0o700)
		if f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
			logger.SetOutput(f)
			defer f.Close()
		}
	}

	mdl := initialModel(cfg)
	if sess, err := session.Load(); err == nil && sess.Valid() {
		mdl.sess = sess
	}

	p := tea.NewProgram(mdl, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
