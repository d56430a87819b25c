// Пакет config — загрузка и валидация конфигурации Upload Relay
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Допустимые backend'ы KV-хранилища метаданных.
const (
	KVBackendNone     = "none"
	KVBackendFS       = "fs"
	KVBackendBadger   = "badger"
	KVBackendPostgres = "postgres"
)

// Политики обработки ошибки записи метаданных в KV.
const (
	// KVWritePolicyStrict — ошибка записи KV возвращается клиенту как 500
	KVWritePolicyStrict = "strict"
	// KVWritePolicyBestEffort — ошибка логируется, клиент получает URL
	KVWritePolicyBestEffort = "best_effort"
)

// Config содержит все параметры конфигурации Upload Relay.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (по умолчанию 8040)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// Таймаут graceful shutdown (по умолчанию 5s)
	ShutdownTimeout time.Duration

	// --- Telegram Bot API ---

	// Токен бота (обязательный)
	BotToken string
	// Идентификатор чата-получателя (обязательный)
	ChatID string
	// Базовый URL Bot API (по умолчанию https://api.telegram.org)
	APIURL string
	// Таймаут HTTP-запросов к Bot API. 0 — без таймаута.
	UpstreamTimeout time.Duration

	// --- Публичные URL ---

	// Базовый URL для ссылок на файлы. Пустая строка — из входящего запроса.
	PublicBaseURL string
	// Объём памяти для ParseMultipartForm (остальное — во временные файлы)
	MultipartMemory int64

	// --- KV-хранилище метаданных ---

	// KVBackend — none, fs, badger, postgres
	KVBackend string
	// KVDir — директория для fs и badger
	KVDir string
	// KVWritePolicy — strict или best_effort
	KVWritePolicy string

	// --- PostgreSQL (KVBackend = postgres) ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string //nolint:gosec // G101: поле конфигурации
	DBSSLMode  string

	// --- Кэш file_path для /file/{key} ---

	FileCacheSize int
	FileCacheTTL  time.Duration

	// --- topologymetrics ---

	DephealthEnabled       bool
	DephealthGroup         string
	DephealthCheckInterval time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	cfg.Port, err = getEnvInt("UR_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("UR_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("UR_PORT: значение %d вне диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("UR_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("UR_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("UR_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("UR_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("UR_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("UR_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("UR_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("UR_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("UR_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("UR_HTTP_IDLE_TIMEOUT: %w", err)
	}
	cfg.ShutdownTimeout, err = getEnvDuration("UR_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("UR_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- Telegram Bot API ---

	cfg.BotToken, err = getEnvRequired("UR_TG_BOT_TOKEN")
	if err != nil {
		return nil, err
	}
	cfg.ChatID, err = getEnvRequired("UR_TG_CHAT_ID")
	if err != nil {
		return nil, err
	}

	cfg.APIURL = strings.TrimRight(getEnvDefault("UR_TG_API_URL", "https://api.telegram.org"), "/")
	if err := validateURL(cfg.APIURL); err != nil {
		return nil, fmt.Errorf("UR_TG_API_URL: %w", err)
	}

	// UR_TG_TIMEOUT — 0 означает отсутствие таймаута (ограничивает только транспорт)
	cfg.UpstreamTimeout, err = getEnvDuration("UR_TG_TIMEOUT", 0)
	if err != nil {
		return nil, fmt.Errorf("UR_TG_TIMEOUT: %w", err)
	}
	if cfg.UpstreamTimeout < 0 {
		return nil, fmt.Errorf("UR_TG_TIMEOUT: значение не может быть отрицательным")
	}

	// --- Публичные URL ---

	cfg.PublicBaseURL = strings.TrimRight(os.Getenv("UR_PUBLIC_BASE_URL"), "/")
	if cfg.PublicBaseURL != "" {
		if err := validateURL(cfg.PublicBaseURL); err != nil {
			return nil, fmt.Errorf("UR_PUBLIC_BASE_URL: %w", err)
		}
	}

	cfg.MultipartMemory, err = getEnvInt64("UR_MULTIPART_MEMORY", 32<<20)
	if err != nil {
		return nil, fmt.Errorf("UR_MULTIPART_MEMORY: %w", err)
	}
	if cfg.MultipartMemory <= 0 {
		return nil, fmt.Errorf("UR_MULTIPART_MEMORY: значение должно быть > 0")
	}

	// --- KV-хранилище ---

	cfg.KVBackend = strings.ToLower(getEnvDefault("UR_KV_BACKEND", KVBackendNone))
	switch cfg.KVBackend {
	case KVBackendNone, KVBackendFS, KVBackendBadger, KVBackendPostgres:
	default:
		return nil, fmt.Errorf("UR_KV_BACKEND: недопустимое значение %q, допустимые: none, fs, badger, postgres", cfg.KVBackend)
	}

	cfg.KVDir = getEnvDefault("UR_KV_DIR", "./data/kv")

	cfg.KVWritePolicy = strings.ToLower(getEnvDefault("UR_KV_WRITE_POLICY", KVWritePolicyStrict))
	if cfg.KVWritePolicy != KVWritePolicyStrict && cfg.KVWritePolicy != KVWritePolicyBestEffort {
		return nil, fmt.Errorf("UR_KV_WRITE_POLICY: недопустимое значение %q, допустимые: strict, best_effort", cfg.KVWritePolicy)
	}

	// --- PostgreSQL ---

	cfg.DBHost = getEnvDefault("UR_DB_HOST", "localhost")
	cfg.DBPort, err = getEnvInt("UR_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("UR_DB_PORT: %w", err)
	}
	cfg.DBName = getEnvDefault("UR_DB_NAME", "relay")
	cfg.DBUser = getEnvDefault("UR_DB_USER", "relay")
	cfg.DBPassword = os.Getenv("UR_DB_PASSWORD")
	cfg.DBSSLMode = getEnvDefault("UR_DB_SSL_MODE", "disable")

	if cfg.KVBackend == KVBackendPostgres && cfg.DBPassword == "" {
		return nil, fmt.Errorf("UR_DB_PASSWORD: обязательна при UR_KV_BACKEND=postgres")
	}

	// --- Кэш file_path ---

	cfg.FileCacheSize, err = getEnvInt("UR_FILE_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("UR_FILE_CACHE_SIZE: %w", err)
	}
	if cfg.FileCacheSize < 1 {
		return nil, fmt.Errorf("UR_FILE_CACHE_SIZE: значение должно быть >= 1")
	}

	// Bot API гарантирует валидность ссылки на файл не менее часа
	cfg.FileCacheTTL, err = getEnvDuration("UR_FILE_CACHE_TTL", 50*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("UR_FILE_CACHE_TTL: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthEnabled, err = getEnvBool("UR_DEPHEALTH_ENABLED", true)
	if err != nil {
		return nil, fmt.Errorf("UR_DEPHEALTH_ENABLED: %w", err)
	}
	cfg.DephealthGroup = getEnvDefault("UR_DEPHEALTH_GROUP", "upload-relay")
	cfg.DephealthCheckInterval, err = getEnvDuration("UR_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("UR_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает DSN для pgxpool.
func (c *Config) DatabaseDSN() string {
	return c.databaseURL("postgres")
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов метрик и логов).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// MigrateURL возвращает URL для golang-migrate (драйвер pgx5).
func (c *Config) MigrateURL() string {
	return c.databaseURL("pgx5")
}

// databaseURL собирает URL подключения. Userinfo экранируется по правилам
// userinfo, а не query: пробел в пароле — %20, а не "+".
func (c *Config) databaseURL(scheme string) string {
	u := url.URL{
		Scheme:   scheme,
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort)),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.DBSSLMode}}.Encode(),
	}
	return u.String()
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 — аналог getEnvInt для размеров в байтах.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// validateURL проверяет, что строка — абсолютный http(s) URL.
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("некорректный URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL %q должен начинаться с http:// или https://", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q не содержит хост", raw)
	}
	return nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
