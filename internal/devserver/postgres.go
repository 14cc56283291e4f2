package devserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/teamchat/internal/logger"
	"github.com/teamchat/internal/model"
)

// pgRepo — Postgres-реализация Repository поверх pgxpool.
type pgRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository оборачивает пул соединений в Repository.
func NewPostgresRepository(pool *pgxpool.Pool) Repository {
	return &pgRepo{pool: pool}
}

func (r *pgRepo) Close() {
	r.pool.Close()
}

func (r *pgRepo) UpsertUser(ctx context.Context, p model.Profile) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, name, email) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email`,
		p.ID, p.Name, p.Email)
	if err != nil {
		return fmt.Errorf("repo.UpsertUser: %w", err)
	}
	return nil
}

func (r *pgRepo) GetUserByEmail(ctx context.Context, email string) (model.Profile, error) {
	var p model.Profile
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email FROM users WHERE email = $1`, email).
		Scan(&p.ID, &p.Name, &p.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Profile{}, ErrNotFound
	}
	if err != nil {
		return model.Profile{}, fmt.Errorf("repo.GetUserByEmail: %w", err)
	}
	return p, nil
}

func (r *pgRepo) GetUser(ctx context.Context, id string) (model.Profile, error) {
	var p model.Profile
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email FROM users WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Profile{}, ErrNotFound
	}
	if err != nil {
		return model.Profile{}, fmt.Errorf("repo.GetUser: %w", err)
	}
	return p, nil
}

func (r *pgRepo) ListUsers(ctx context.Context) ([]model.Profile, error) {
	defer logger.DeferLogDuration("repo.ListUsers", time.Now())()
	rows, err := r.pool.Query(ctx, `SELECT id, name, email FROM users ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("repo.ListUsers: %w", err)
	}
	defer rows.Close()

	var out []model.Profile
	for rows.Next() {
		var p model.Profile
		if err := rows.Scan(&p.ID, &p.Name, &p.Email); err != nil {
			return nil, fmt.Errorf("repo.ListUsers scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *pgRepo) CreateChat(ctx context.Context, c model.Conversation) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repo.CreateChat begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO chats (id, kind, name, created_by, created_at, last_activity_at)
		 VALUES ($1, $2, $3, $4, $5, $5)`,
		c.ID, c.Kind, c.Name, c.CreatedBy, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("repo.CreateChat: %w", err)
	}
	for _, m := range c.Members {
		if _, err := tx.Exec(ctx,
			`INSERT INTO chat_members (chat_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			c.ID, m.ID); err != nil {
			return fmt.Errorf("repo.CreateChat member: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (r *pgRepo) loadMembers(ctx context.Context, chatID string) ([]model.Profile, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT u.id, u.name, u.email FROM chat_members cm
		 JOIN users u ON u.id = cm.user_id
		 WHERE cm.chat_id = $1 ORDER BY u.name`, chatID)
	if err != nil {
		return nil, fmt.Errorf("repo.loadMembers: %w", err)
	}
	defer rows.Close()

	var out []model.Profile
	for rows.Next() {
		var p model.Profile
		if err := rows.Scan(&p.ID, &p.Name, &p.Email); err != nil {
			return nil, fmt.Errorf("repo.loadMembers scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *pgRepo) GetChat(ctx context.Context, id string) (model.Conversation, error) {
	var c model.Conversation
	err := r.pool.QueryRow(ctx,
		`SELECT id, kind, name, created_by, created_at FROM chats WHERE id = $1`, id).
		Scan(&c.ID, &c.Kind, &c.Name, &c.CreatedBy, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Conversation{}, ErrNotFound
	}
	if err != nil {
		return model.Conversation{}, fmt.Errorf("repo.GetChat: %w", err)
	}
	c.Members, err = r.loadMembers(ctx, c.ID)
	if err != nil {
		return model.Conversation{}, err
	}
	return c, nil
}

func (r *pgRepo) FindIndividual(ctx context.Context, userA, userB string) (model.Conversation, error) {
	defer logger.DeferLogDuration("repo.FindIndividual", time.Now())()
	var id string
	err := r.pool.QueryRow(ctx,
		`SELECT c.id FROM chats c
		 JOIN chat_members a ON a.chat_id = c.id AND a.user_id = $1
		 JOIN chat_members b ON b.chat_id = c.id AND b.user_id = $2
		 WHERE c.kind = 'individual'
		 LIMIT 1`, userA, userB).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Conversation{}, ErrNotFound
	}
	if err != nil {
		return model.Conversation{}, fmt.Errorf("repo.FindIndividual: %w", err)
	}
	return r.GetChat(ctx, id)
}

func (r *pgRepo) ListGroups(ctx context.Context, userID string) ([]model.Conversation, error) {
	defer logger.DeferLogDuration("repo.ListGroups", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT c.id FROM chats c
		 JOIN chat_members cm ON cm.chat_id = c.id
		 WHERE c.kind = 'group' AND cm.user_id = $1
		 ORDER BY c.created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("repo.ListGroups: %w", err)
	}
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("repo.ListGroups scan: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.Conversation, 0, len(ids))
	for _, id := range ids {
		c, err := r.GetChat(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *pgRepo) SetGroupMembers(ctx context.Context, chatID string, members []model.Profile) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repo.SetGroupMembers begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM chat_members WHERE chat_id = $1`, chatID); err != nil {
		return fmt.Errorf("repo.SetGroupMembers clear: %w", err)
	}
	for _, m := range members {
		if _, err := tx.Exec(ctx,
			`INSERT INTO chat_members (chat_id, user_id) VALUES ($1, $2)`, chatID, m.ID); err != nil {
			return fmt.Errorf("repo.SetGroupMembers insert: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (r *pgRepo) CreateMessage(ctx context.Context, m model.Message) error {
	defer logger.DeferLogDuration("repo.CreateMessage", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repo.CreateMessage begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO messages (id, chat_id, sender_id, content, file_url, content_type, file_name, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.ChatID, m.SenderID, m.Content, m.FileURL, m.ContentType, m.FileName, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("repo.CreateMessage: %w", err)
	}
	_, err = tx.Exec(ctx,
		`UPDATE chats SET last_activity_at = GREATEST(last_activity_at, $2) WHERE id = $1`,
		m.ChatID, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("repo.CreateMessage activity: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *pgRepo) scanMessage(row pgx.Row) (model.Message, error) {
	var m model.Message
	err := row.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.FileURL,
		&m.ContentType, &m.FileName, &m.CreatedAt, &m.EditedAt, &m.Deleted)
	return m, err
}

const messageColumns = `id, chat_id, sender_id, content, file_url, content_type, file_name, created_at, edited_at, deleted`

func (r *pgRepo) GetMessage(ctx context.Context, id string) (model.Message, error) {
	m, err := r.scanMessage(r.pool.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Message{}, ErrNotFound
	}
	if err != nil {
		return model.Message{}, fmt.Errorf("repo.GetMessage: %w", err)
	}
	return m, nil
}

func (r *pgRepo) UpdateMessageContent(ctx context.Context, id, content string, editedAt time.Time) (model.Message, error) {
	m, err := r.scanMessage(r.pool.QueryRow(ctx,
		`UPDATE messages SET content = $2, edited_at = $3 WHERE id = $1
		 RETURNING `+messageColumns, id, content, editedAt))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Message{}, ErrNotFound
	}
	if err != nil {
		return model.Message{}, fmt.Errorf("repo.UpdateMessageContent: %w", err)
	}
	return m, nil
}

func (r *pgRepo) SoftDeleteMessage(ctx context.Context, id string) (model.Message, error) {
	m, err := r.scanMessage(r.pool.QueryRow(ctx,
		`UPDATE messages SET deleted = TRUE, content = '', file_url = '', file_name = ''
		 WHERE id = $1
		 RETURNING `+messageColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Message{}, ErrNotFound
	}
	if err != nil {
		return model.Message{}, fmt.Errorf("repo.SoftDeleteMessage: %w", err)
	}
	return m, nil
}

func (r *pgRepo) PageMessages(ctx context.Context, chatID string, page, limit int) ([]model.Message, int, error) {
	defer logger.DeferLogDuration("repo.PageMessages", time.Now())()
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE chat_id = $1`, chatID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repo.PageMessages count: %w", err)
	}
	totalPages := (total + limit - 1) / limit

	// Окно выбирается с конца (самые свежие — страница 1) и разворачивается
	// в хронологический порядок.
	rows, err := r.pool.Query(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE chat_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`, chatID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.PageMessages: %w", err)
	}
	defer rows.Close()

	var desc []model.Message
	for rows.Next() {
		m, err := r.scanMessage(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repo.PageMessages scan: %w", err)
		}
		desc = append(desc, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	out := make([]model.Message, len(desc))
	for i, m := range desc {
		out[len(desc)-1-i] = m
	}
	return out, totalPages, nil
}

func (r *pgRepo) Timestamps(ctx context.Context, userID string) (map[string]time.Time, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.last_activity_at FROM chats c
		 JOIN chat_members cm ON cm.chat_id = c.id
		 WHERE cm.user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("repo.Timestamps: %w", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var id string
		var t time.Time
		if err := rows.Scan(&id, &t); err != nil {
			return nil, fmt.Errorf("repo.Timestamps scan: %w", err)
		}
		out[id] = t
	}
	return out, rows.Err()
}
