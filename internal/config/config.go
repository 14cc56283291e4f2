package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/teamchat/internal/logger"
	"gopkg.in/yaml.v3"
)

// loadEnv читает .env только вне production (в контейнере/prod конфиг только из env).
func loadEnv() {
	if os.Getenv("APP_ENV") == "production" {
		return
	}
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for i := 0; i < 5; i++ {
		path := dir + "/.env"
		f, err := os.Open(path)
		if err == nil {
			loadEnvFrom(f)
			f.Close()
			return
		}
		parent := strings.TrimSuffix(dir, "/")
		idx := strings.LastIndex(parent, "/")
		if idx <= 0 {
			return
		}
		dir = parent[:idx]
		if dir == "" {
			dir = "/"
		}
	}
}

func loadEnvFrom(f *os.File) {
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		if key == "" {
			continue
		}
		if len(val) >= 2 && (val[0] == '"' && val[len(val)-1] == '"' || val[0] == '\'' && val[len(val)-1] == '\'') {
			val = val[1 : len(val)-1]
		}
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// DatabaseConfig — Postgres для dev-сервера (пустой URL — хранение в памяти).
type DatabaseConfig struct {
	URL            string `yaml:"database_url"`
	MaxConnections int    `yaml:"db_max_connections"`
}

// RedisConfig — Redis для хранилища сессий dev-сервера (пустой URL — память).
type RedisConfig struct {
	URL string `yaml:"url"`
}

// Config содержит настройки клиента и dev-сервера.
// Приоритет: переменные окружения > YAML-файл > значения по умолчанию.
type Config struct {
	// Клиент
	ServerURL string `yaml:"server_url"`
	// Realtime
	TypingEmitInterval time.Duration `yaml:"-"`
	TypingIdleTimeout  time.Duration `yaml:"-"`
	ReconnectAttempts  int           `yaml:"reconnect_attempts"`
	ReconnectDelay     time.Duration `yaml:"-"`
	// Лента сообщений
	PageSize int `yaml:"page_size"`

	// Dev-сервер
	ServerAddr   string        `yaml:"server_addr"`
	ReadTimeout  time.Duration `yaml:"-"`
	WriteTimeout time.Duration `yaml:"-"`
	IdleTimeout  time.Duration `yaml:"-"`

	// Файлы
	UploadDir     string `yaml:"upload_dir"`
	MaxUploadSize int64  `yaml:"-"`

	// WebSocket
	WSSendBufferSize int `yaml:"ws_send_buffer_size"`
	WSMaxMessageSize int `yaml:"ws_max_message_size"`

	// CORS
	CORSAllowedOrigins string `yaml:"cors_allowed_origins"`

	// Логирование
	LogLevel string `yaml:"log_level"`

	Database DatabaseConfig `yaml:"-"`
	Redis    RedisConfig    `yaml:"-"`
}

// DatabaseURL возвращает строку подключения к БД (пустая — память).
func (c *Config) DatabaseURL() string { return c.Database.URL }

// DBMaxConnections возвращает максимальное число соединений в пуле.
func (c *Config) DBMaxConnections() int {
	if c.Database.MaxConnections <= 0 {
		return 10
	}
	return c.Database.MaxConnections
}

// yamlConfig — промежуточная структура для парсинга YAML (длительности в единицах).
type yamlConfig struct {
	ServerURL            string `yaml:"server_url"`
	TypingEmitIntervalMS int    `yaml:"typing_emit_interval_ms"`
	TypingIdleTimeoutMS  int    `yaml:"typing_idle_timeout_ms"`
	ReconnectAttempts    int    `yaml:"reconnect_attempts"`
	ReconnectDelayMS     int    `yaml:"reconnect_delay_ms"`
	PageSize             int    `yaml:"page_size"`
	ServerAddr           string `yaml:"server_addr"`
	ReadTimeout          int    `yaml:"read_timeout"`
	WriteTimeout         int    `yaml:"write_timeout"`
	IdleTimeout          int    `yaml:"idle_timeout"`
	UploadDir            string `yaml:"upload_dir"`
	MaxUploadSizeMB      int    `yaml:"max_upload_size_mb"`
	WSSendBufferSize     int    `yaml:"ws_send_buffer_size"`
	WSMaxMessageSize     int    `yaml:"ws_max_message_size"`
	CORSAllowedOrigins   string `yaml:"cors_allowed_origins"`
	LogLevel             string `yaml:"log_level"`
}

// Load загружает конфигурацию.
// Сначала подгружаются переменные из .env (если есть), затем YAML и env (env имеет приоритет).
func Load() *Config {
	loadEnv()
	// Значения по умолчанию
	yc := yamlConfig{
		ServerURL:            "http://localhost:8080",
		TypingEmitIntervalMS: 500,
		TypingIdleTimeoutMS:  2000,
		ReconnectAttempts:    5,
		ReconnectDelayMS:     1000,
		PageSize:             50,
		ServerAddr:           ":8080",
		ReadTimeout:          15,
		WriteTimeout:         15,
		IdleTimeout:          60,
		UploadDir:            "./uploads",
		MaxUploadSizeMB:      20,
		WSSendBufferSize:     256,
		WSMaxMessageSize:     65536,
		CORSAllowedOrigins:   "*",
		LogLevel:             "info",
	}

	// Загрузка YAML: CONFIG_PATH → config/chat.yaml → config/devserver.yaml
	paths := []string{os.Getenv("CONFIG_PATH"), "config/chat.yaml", "config/devserver.yaml"}
	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, &yc); err != nil {
			logger.Errorf("config: ошибка парсинга %s: %v (используются значения по умолчанию)", path, err)
		} else {
			logger.Infof("config: загружен %s", path)
		}
		break
	}

	cfg := &Config{
		ServerURL:          strings.TrimSuffix(envStr("SERVER_URL", yc.ServerURL), "/"),
		TypingEmitInterval: time.Duration(envInt("TYPING_EMIT_INTERVAL_MS", yc.TypingEmitIntervalMS)) * time.Millisecond,
		TypingIdleTimeout:  time.Duration(envInt("TYPING_IDLE_TIMEOUT_MS", yc.TypingIdleTimeoutMS)) * time.Millisecond,
		ReconnectAttempts:  envInt("RECONNECT_ATTEMPTS", yc.ReconnectAttempts),
		ReconnectDelay:     time.Duration(envInt("RECONNECT_DELAY_MS", yc.ReconnectDelayMS)) * time.Millisecond,
		PageSize:           envInt("PAGE_SIZE", yc.PageSize),
		ServerAddr:         envStr("SERVER_ADDR", yc.ServerAddr),
		ReadTimeout:        time.Duration(envInt("READ_TIMEOUT", yc.ReadTimeout)) * time.Second,
		WriteTimeout:       time.Duration(envInt("WRITE_TIMEOUT", yc.WriteTimeout)) * time.Second,
		IdleTimeout:        time.Duration(envInt("IDLE_TIMEOUT", yc.IdleTimeout)) * time.Second,
		UploadDir:          envStr("UPLOAD_DIR", yc.UploadDir),
		MaxUploadSize:      int64(envInt("MAX_UPLOAD_SIZE_MB", yc.MaxUploadSizeMB)) << 20,
		WSSendBufferSize:   envInt("WS_SEND_BUFFER_SIZE", yc.WSSendBufferSize),
		WSMaxMessageSize:   envInt("WS_MAX_MESSAGE_SIZE", yc.WSMaxMessageSize),
		CORSAllowedOrigins: envStr("CORS_ALLOWED_ORIGINS", yc.CORSAllowedOrigins),
		LogLevel:           envStr("LOG_LEVEL", yc.LogLevel),
		Database: DatabaseConfig{
			URL:            envStr("DATABASE_URL", ""),
			MaxConnections: envInt("DB_MAX_CONNECTIONS", 10),
		},
		Redis: RedisConfig{URL: envStr("REDIS_URL", "")},
	}

	if cfg.ReconnectAttempts <= 0 {
		cfg.ReconnectAttempts = 5
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}

	return cfg
}

// WSURL возвращает адрес realtime-канала, выведенный из ServerURL.
func (c *Config) WSURL() string {
	u := c.ServerURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

// envStr возвращает значение переменной окружения или fallback.
func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt возвращает числовое значение переменной окружения или fallback.
func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
