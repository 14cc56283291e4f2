package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/teamchat/internal/logger"
	"github.com/teamchat/internal/model"
	"github.com/teamchat/internal/realtime"
)

type loginRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// handleLogin — dev-логин без пароля: пользователь создаётся при первом входе.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "name and email required")
		return
	}

	user, err := s.repo.GetUserByEmail(r.Context(), req.Email)
	if errors.Is(err, ErrNotFound) {
		user = model.Profile{ID: uuid.New().String(), Name: req.Name, Email: req.Email}
		err = s.repo.UpsertUser(r.Context(), user)
	}
	if err != nil {
		logger.Errorf("login %s: %v", req.Email, err)
		writeError(w, http.StatusInternalServerError, "failed to login")
		return
	}

	token := uuid.New().String()
	if err := s.sessions.Set(r.Context(), token, user.ID); err != nil {
		logger.Errorf("login session %s: %v", req.Email, err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.repo.ListUsers(r.Context())
	if err != nil {
		logger.Errorf("list users: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.repo.ListGroups(r.Context(), requestUserID(r))
	if err != nil {
		logger.Errorf("list groups: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list groups")
		return
	}
	if groups == nil {
		groups = []model.Conversation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (s *Server) handleTimestamps(w http.ResponseWriter, r *http.Request) {
	stamps, err := s.repo.Timestamps(r.Context(), requestUserID(r))
	if err != nil {
		logger.Errorf("timestamps: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load timestamps")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"timestamps": stamps})
}

type openIndividualRequest struct {
	RecipientID string `json:"recipientId"`
}

// handleOpenIndividual — get-or-create личной переписки; идемпотентен по
// паре участников.
func (s *Server) handleOpenIndividual(w http.ResponseWriter, r *http.Request) {
	var req openIndividualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	selfID := requestUserID(r)
	if req.RecipientID == "" {
		writeError(w, http.StatusBadRequest, "recipientId required")
		return
	}
	if req.RecipientID == selfID {
		writeError(w, http.StatusBadRequest, "cannot open chat with yourself")
		return
	}

	if chat, err := s.repo.FindIndividual(r.Context(), selfID, req.RecipientID); err == nil {
		writeJSON(w, http.StatusOK, map[string]any{"chat": chat})
		return
	} else if !errors.Is(err, ErrNotFound) {
		logger.Errorf("find individual: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to open chat")
		return
	}

	self, err := s.repo.GetUser(r.Context(), selfID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to open chat")
		return
	}
	recipient, err := s.repo.GetUser(r.Context(), req.RecipientID)
	if err != nil {
		writeError(w, http.StatusNotFound, "recipient not found")
		return
	}

	chat := model.Conversation{
		ID:        uuid.New().String(),
		Kind:      model.KindIndividual,
		Members:   []model.Profile{self, recipient},
		CreatedBy: selfID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateChat(r.Context(), chat); err != nil {
		logger.Errorf("create individual: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create chat")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"chat": chat})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	chat, err := s.repo.GetChat(r.Context(), chatID)
	if err != nil {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	if !chat.HasMember(requestUserID(r)) {
		writeError(w, http.StatusForbidden, "not a member")
		return
	}

	limit := queryInt(r, "limit", s.cfg.PageSize)
	page := queryInt(r, "page", 1)
	msgs, totalPages, err := s.repo.PageMessages(r.Context(), chatID, page, limit)
	if err != nil {
		logger.Errorf("page messages chat=%s: %v", chatID, err)
		writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"messages":   msgs,
		"pagination": model.Pagination{TotalPages: totalPages, CurrentPage: page},
	})
}

type sendMessageRequest struct {
	Content     string            `json:"content"`
	FileURL     string            `json:"fileUrl"`
	ContentType model.ContentKind `json:"contentType"`
	FileName    string            `json:"fileName"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	selfID := requestUserID(r)

	chat, err := s.repo.GetChat(r.Context(), chatID)
	if err != nil {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	if !chat.HasMember(selfID) {
		writeError(w, http.StatusForbidden, "not a member")
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Content == "" && req.FileURL == "" {
		writeError(w, http.StatusBadRequest, "content or fileUrl required")
		return
	}

	m := model.Message{
		ID:          uuid.New().String(),
		ChatID:      chatID,
		SenderID:    selfID,
		Content:     req.Content,
		FileURL:     req.FileURL,
		ContentType: req.ContentType,
		FileName:    req.FileName,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.CreateMessage(r.Context(), m); err != nil {
		logger.Errorf("create message chat=%s: %v", chatID, err)
		writeError(w, http.StatusInternalServerError, "failed to save message")
		return
	}

	s.hub.BroadcastToChat(r.Context(), chatID, realtime.Event{
		Type:    realtime.EventMessage,
		Message: &m,
	})
	writeJSON(w, http.StatusCreated, map[string]any{"message": m})
}

type editMessageRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleEditMessage(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")
	var req editMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		writeError(w, http.StatusBadRequest, "content required")
		return
	}

	original, err := s.repo.GetMessage(r.Context(), messageID)
	if err != nil {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}
	if original.SenderID != requestUserID(r) {
		writeError(w, http.StatusForbidden, "can only edit own messages")
		return
	}

	m, err := s.repo.UpdateMessageContent(r.Context(), messageID, req.Content, time.Now().UTC())
	if err != nil {
		logger.Errorf("edit message %s: %v", messageID, err)
		writeError(w, http.StatusInternalServerError, "failed to edit")
		return
	}

	s.hub.BroadcastToChat(r.Context(), m.ChatID, realtime.Event{
		Type:    realtime.EventMessageUpdated,
		Message: &m,
	})
	writeJSON(w, http.StatusOK, map[string]any{"message": m})
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")

	original, err := s.repo.GetMessage(r.Context(), messageID)
	if err != nil {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}
	if original.SenderID != requestUserID(r) {
		writeError(w, http.StatusForbidden, "can only delete own messages")
		return
	}

	m, err := s.repo.SoftDeleteMessage(r.Context(), messageID)
	if err != nil {
		logger.Errorf("delete message %s: %v", messageID, err)
		writeError(w, http.StatusInternalServerError, "failed to delete")
		return
	}

	s.hub.BroadcastToChat(r.Context(), m.ChatID, realtime.Event{
		Type:    realtime.EventMessageDeleted,
		Message: &m,
	})
	writeJSON(w, http.StatusOK, map[string]any{"message": m})
}

// contentKindFor классифицирует вложение по расширению имени файла.
func contentKindFor(fileName string) model.ContentKind {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return model.ContentImage
	case ".mp4", ".mov", ".webm", ".avi":
		return model.ContentVideo
	case ".mp3", ".ogg", ".wav", ".m4a":
		return model.ContentAudio
	default:
		return model.ContentDocument
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadSize); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field required")
		return
	}
	defer file.Close()

	// "+" часто приходит вместо пробела (URL-кодирование).
	fileName := strings.TrimSpace(strings.ReplaceAll(header.Filename, "+", " "))
	fileName = filepath.Base(fileName)
	stored := uuid.New().String() + "_" + fileName

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		logger.Errorf("upload mkdir: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to store file")
		return
	}
	dst, err := os.Create(filepath.Join(s.cfg.UploadDir, stored))
	if err != nil {
		logger.Errorf("upload create: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to store file")
		return
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		logger.Errorf("upload copy: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"fileUrl":     "/files/" + stored,
		"contentType": contentKindFor(fileName),
		"fileName":    fileName,
	})
}

func (s *Server) handleServeFile(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(chi.URLParam(r, "filename"))
	http.ServeFile(w, r, filepath.Join(s.cfg.UploadDir, name))
}

type createGroupRequest struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	selfID := requestUserID(r)
	members, err := s.resolveMembers(r, selfID, req.Members)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	group := model.Conversation{
		ID:        uuid.New().String(),
		Kind:      model.KindGroup,
		Name:      strings.TrimSpace(req.Name),
		Members:   members,
		CreatedBy: selfID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateChat(r.Context(), group); err != nil {
		logger.Errorf("create group: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create group")
		return
	}

	s.hub.BroadcastToChat(r.Context(), group.ID, realtime.Event{
		Type:  realtime.EventGroupCreated,
		Group: &group,
	})
	writeJSON(w, http.StatusCreated, map[string]any{"group": group})
}

type updateMembersRequest struct {
	Members []string `json:"members"`
}

func (s *Server) handleUpdateGroupMembers(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	selfID := requestUserID(r)

	group, err := s.repo.GetChat(r.Context(), groupID)
	if err != nil || group.Kind != model.KindGroup {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}
	if !group.HasMember(selfID) {
		writeError(w, http.StatusForbidden, "not a member")
		return
	}

	var req updateMembersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	members, err := s.resolveMembers(r, selfID, req.Members)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.repo.SetGroupMembers(r.Context(), groupID, members); err != nil {
		logger.Errorf("update group members %s: %v", groupID, err)
		writeError(w, http.StatusInternalServerError, "failed to update group")
		return
	}
	group, err = s.repo.GetChat(r.Context(), groupID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update group")
		return
	}

	s.hub.BroadcastToChat(r.Context(), groupID, realtime.Event{
		Type:  realtime.EventGroupUpdated,
		Group: &group,
	})
	writeJSON(w, http.StatusOK, map[string]any{"group": group})
}

// resolveMembers превращает список id в профили и гарантирует хотя бы одного
// участника кроме создателя.
func (s *Server) resolveMembers(r *http.Request, selfID string, ids []string) ([]model.Profile, error) {
	unique := map[string]struct{}{selfID: {}}
	self, err := s.repo.GetUser(r.Context(), selfID)
	if err != nil {
		return nil, errors.New("unknown user")
	}
	members := []model.Profile{self}
	for _, id := range ids {
		if _, seen := unique[id]; seen {
			continue
		}
		p, err := s.repo.GetUser(r.Context(), id)
		if err != nil {
			return nil, errors.New("unknown member " + id)
		}
		unique[id] = struct{}{}
		members = append(members, p)
	}
	if len(members) < 2 {
		return nil, errors.New("group needs at least one member besides the creator")
	}
	return members, nil
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWS авторизует по токену в query (браузерный websocket не умеет
// выставлять заголовки) и запускает соединение.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	userID, err := s.sessions.Get(r.Context(), token)
	if err != nil || userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorf("ws upgrade: %v", err)
		return
	}
	client := newWSClient(s.hub, conn, userID, s.cfg.WSSendBufferSize, s.cfg.WSMaxMessageSize)
	go client.run(context.Background())
}
