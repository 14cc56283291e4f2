// Package api — REST-клиент бэкенда чатов. Все вызовы идут с Bearer-токеном
// из явной сессии; ошибки классифицируются по ErrorKind.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/teamchat/internal/logger"
	"github.com/teamchat/internal/model"
	"github.com/teamchat/internal/session"
)

// Client вызывает REST API бэкенда. Потокобезопасен.
type Client struct {
	baseURL       string
	sess          session.Session
	httpClient    *http.Client
	maxUploadSize int64
}

// NewClient создаёт клиент. maxUploadSize — потолок размера файла в байтах
// (проверяется до отправки), 0 — без ограничения.
func NewClient(baseURL string, sess session.Session, maxUploadSize int64) *Client {
	return &Client{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		sess:          sess,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		maxUploadSize: maxUploadSize,
	}
}

// do выполняет запрос и декодирует ответ в out (если out != nil).
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindValidation, Err: fmt.Errorf("encode body: %w", err)}
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Kind: KindNetwork, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.sess.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.sess.Token)
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var body struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err != nil {
			body.Error = resp.Status
		}
		kind := KindNetwork
		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			kind = KindAuthExpired
		case resp.StatusCode < 500:
			kind = KindValidation
		}
		return &Error{Kind: kind, Status: resp.StatusCode, Message: body.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindNetwork, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// Login получает токен у dev-сервера (внешняя система авторизации вне зоны клиента).
func (c *Client) Login(ctx context.Context, name, email string) (session.Session, error) {
	if name == "" || email == "" {
		return session.Session{}, &Error{Kind: KindValidation, Message: "name and email required"}
	}
	var resp struct {
		Token string        `json:"token"`
		User  model.Profile `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{"name": name, "email": email}, &resp)
	if err != nil {
		return session.Session{}, err
	}
	sess := session.Session{
		UserID: resp.User.ID,
		Name:   resp.User.Name,
		Email:  resp.User.Email,
		Token:  resp.Token,
	}
	c.sess = sess
	return sess, nil
}

// Users возвращает справочник профилей для построения списка переписок.
func (c *Client) Users(ctx context.Context) ([]model.Profile, error) {
	defer logger.DeferLogDuration("api.Users", time.Now())()
	var resp struct {
		Users []model.Profile `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, "/chats/users", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// Groups возвращает групповые переписки пользователя.
func (c *Client) Groups(ctx context.Context) ([]model.Conversation, error) {
	defer logger.DeferLogDuration("api.Groups", time.Now())()
	var resp struct {
		Groups []model.Conversation `json:"groups"`
	}
	if err := c.do(ctx, http.MethodGet, "/chats/groups", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Groups, nil
}

// Timestamps возвращает время последней активности по перепискам.
func (c *Client) Timestamps(ctx context.Context) (map[string]time.Time, error) {
	var resp struct {
		Timestamps map[string]time.Time `json:"timestamps"`
	}
	if err := c.do(ctx, http.MethodGet, "/chats/timestamps", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Timestamps, nil
}

// OpenIndividual — get-or-create личной переписки с recipientID. Идемпотентен:
// повторный вызов с тем же собеседником возвращает тот же chatId.
func (c *Client) OpenIndividual(ctx context.Context, recipientID string) (model.Conversation, error) {
	if recipientID == "" {
		return model.Conversation{}, &Error{Kind: KindValidation, Message: "recipient id required"}
	}
	var resp struct {
		Chat model.Conversation `json:"chat"`
	}
	err := c.do(ctx, http.MethodPost, "/chats/individual", map[string]string{"recipientId": recipientID}, &resp)
	if err != nil {
		return model.Conversation{}, err
	}
	return resp.Chat, nil
}

// Messages загружает страницу истории. Страница 1 — самые свежие сообщения.
func (c *Client) Messages(ctx context.Context, chatID string, page, limit int) ([]model.Message, model.Pagination, error) {
	defer logger.DeferLogDuration("api.Messages", time.Now())()
	var resp struct {
		Messages   []model.Message  `json:"messages"`
		Pagination model.Pagination `json:"pagination"`
	}
	path := fmt.Sprintf("/chats/%s/messages?limit=%d&page=%d", chatID, limit, page)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, model.Pagination{}, err
	}
	return resp.Messages, resp.Pagination, nil
}

// SendRequest — тело отправки сообщения.
type SendRequest struct {
	Content     string            `json:"content,omitempty"`
	FileURL     string            `json:"fileUrl,omitempty"`
	ContentType model.ContentKind `json:"contentType,omitempty"`
	FileName    string            `json:"fileName,omitempty"`
}

// Send отправляет сообщение; сервер назначает id и createdAt.
func (c *Client) Send(ctx context.Context, chatID string, req SendRequest) (model.Message, error) {
	if req.Content == "" && req.FileURL == "" {
		return model.Message{}, &Error{Kind: KindValidation, Message: "empty message"}
	}
	var resp struct {
		Message model.Message `json:"message"`
	}
	err := c.do(ctx, http.MethodPost, "/chats/"+chatID+"/messages", req, &resp)
	if err != nil {
		return model.Message{}, err
	}
	return resp.Message, nil
}

// Edit изменяет текст сообщения; сервер проставляет editedAt.
func (c *Client) Edit(ctx context.Context, messageID, content string) (model.Message, error) {
	if content == "" {
		return model.Message{}, &Error{Kind: KindValidation, Message: "content required"}
	}
	var resp struct {
		Message model.Message `json:"message"`
	}
	err := c.do(ctx, http.MethodPut, "/chats/messages/"+messageID, map[string]string{"content": content}, &resp)
	if err != nil {
		return model.Message{}, err
	}
	return resp.Message, nil
}

// Delete помечает сообщение удалённым (tombstone, запись остаётся).
func (c *Client) Delete(ctx context.Context, messageID string) error {
	return c.do(ctx, http.MethodDelete, "/chats/messages/"+messageID, nil, nil)
}

// UploadResult — ответ сервера на загрузку файла.
type UploadResult struct {
	FileURL     string            `json:"fileUrl"`
	ContentType model.ContentKind `json:"contentType"`
	FileName    string            `json:"fileName"`
}

// Upload отправляет файл multipart-запросом. Размер проверяется до отправки:
// превышение потолка не уходит в сеть.
func (c *Client) Upload(ctx context.Context, fileName string, r io.Reader, size int64) (UploadResult, error) {
	defer logger.DeferLogDuration("api.Upload", time.Now())()
	if c.maxUploadSize > 0 && size > c.maxUploadSize {
		return UploadResult{}, &Error{
			Kind:    KindUploadTooLarge,
			Message: fmt.Sprintf("file %s is %d bytes, limit %d", fileName, size, c.maxUploadSize),
		}
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return UploadResult{}, &Error{Kind: KindNetwork, Err: err}
	}
	if _, err := io.Copy(part, r); err != nil {
		return UploadResult{}, &Error{Kind: KindNetwork, Err: err}
	}
	if err := mw.Close(); err != nil {
		return UploadResult{}, &Error{Kind: KindNetwork, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chats/upload", &buf)
	if err != nil {
		return UploadResult{}, &Error{Kind: KindNetwork, Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Content-Length", strconv.Itoa(buf.Len()))
	if c.sess.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.sess.Token)
	}

	var result UploadResult
	if err := c.send(req, &result); err != nil {
		return UploadResult{}, err
	}
	return result, nil
}

// CreateGroup создаёт групповую переписку. Пустой список участников — ошибка валидации.
func (c *Client) CreateGroup(ctx context.Context, name string, memberIDs []string) (model.Conversation, error) {
	if len(memberIDs) == 0 {
		return model.Conversation{}, &Error{Kind: KindValidation, Message: "group needs at least one member"}
	}
	var resp struct {
		Group model.Conversation `json:"group"`
	}
	body := map[string]any{"name": name, "members": memberIDs}
	err := c.do(ctx, http.MethodPost, "/chats/groups", body, &resp)
	if err != nil {
		return model.Conversation{}, err
	}
	return resp.Group, nil
}

// UpdateGroupMembers заменяет состав группы.
func (c *Client) UpdateGroupMembers(ctx context.Context, groupID string, memberIDs []string) (model.Conversation, error) {
	if len(memberIDs) == 0 {
		return model.Conversation{}, &Error{Kind: KindValidation, Message: "group needs at least one member"}
	}
	var resp struct {
		Group model.Conversation `json:"group"`
	}
	err := c.do(ctx, http.MethodPut, "/chats/groups/"+groupID+"/members", map[string]any{"members": memberIDs}, &resp)
	if err != nil {
		return model.Conversation{}, err
	}
	return resp.Group, nil
}
