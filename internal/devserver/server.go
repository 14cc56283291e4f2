// Package devserver — учебный бэкенд чатов: реализует REST- и realtime-контракт
// в памяти (или поверх Postgres) для локальной разработки и тестов клиента.
package devserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/teamchat/internal/config"
	"github.com/teamchat/internal/logger"
)

// Server собирает репозиторий, хранилище сессий и hub в один http.Handler.
type Server struct {
	cfg      *config.Config
	repo     Repository
	sessions SessionStore
	hub      *Hub
}

func New(cfg *config.Config, repo Repository, sessions SessionStore) *Server {
	return &Server{
		cfg:      cfg,
		repo:     repo,
		sessions: sessions,
		hub:      NewHub(repo),
	}
}

// Hub возвращает realtime-hub (для graceful shutdown).
func (s *Server) Hub() *Hub { return s.hub }

// Handler строит маршрутизатор сервера.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(s.recoverJSON)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.cfg.CORSAllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Post("/auth/login", s.handleLogin)
	r.Get("/files/{filename}", s.handleServeFile)
	r.Get("/ws", s.handleWS)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/chats/users", s.handleUsers)
		r.Get("/chats/groups", s.handleGroups)
		r.Get("/chats/timestamps", s.handleTimestamps)
		r.Post("/chats/individual", s.handleOpenIndividual)
		r.Get("/chats/{chatID}/messages", s.handleMessages)
		r.Post("/chats/{chatID}/messages", s.handleSendMessage)
		r.Put("/chats/messages/{messageID}", s.handleEditMessage)
		r.Delete("/chats/messages/{messageID}", s.handleDeleteMessage)
		r.Post("/chats/upload", s.handleUpload)
		r.Post("/chats/groups", s.handleCreateGroup)
		r.Put("/chats/groups/{groupID}/members", s.handleUpdateGroupMembers)
	})

	return r
}

// recoverJSON превращает панику обработчика в 500 с JSON-телом.
func (s *Server) recoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Errorf("panic in %s %s: %v", r.Method, r.URL.Path, rec)
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type ctxKey int

const userIDKey ctxKey = 0

// requireAuth проверяет Bearer-токен по хранилищу сессий и кладёт userID в контекст.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing token")
			return
		}
		userID, err := s.sessions.Get(r.Context(), token)
		if err != nil {
			logger.Errorf("session lookup: %v", err)
			writeError(w, http.StatusInternalServerError, "session store unavailable")
			return
		}
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "session expired")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

func requestUserID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("writeJSON encode: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}
