package devserver

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// redisSessions хранит токены в Redis по ключу session:{token} с TTL.
type redisSessions struct {
	cli *redis.Client
}

// NewRedisSessions подключается к Redis по URL и проверяет соединение.
func NewRedisSessions(ctx context.Context, url string) (SessionStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &redisSessions{cli: cli}, nil
}

func (s *redisSessions) Close() error {
	return s.cli.Close()
}

func (s *redisSessions) Set(ctx context.Context, token, userID string) error {
	return s.cli.Set(ctx, "session:"+token, userID, sessionTTL).Err()
}

// Get возвращает userID токена; отсутствие ключа — не ошибка.
func (s *redisSessions) Get(ctx context.Context, token string) (string, error) {
	val, err := s.cli.Get(ctx, "session:"+token).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

func (s *redisSessions) Delete(ctx context.Context, token string) error {
	return s.cli.Del(ctx, "session:"+token).Err()
}
