// Пакет config — загрузка и валидация конфигурации видеосервиса
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации видеосервиса.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Домен для генерации ссылок на видео (например, "video.example.com")
	Domain string
	// Путь к директории собранных видео
	DataDir string
	// Путь к директории временных chunk-файлов
	ChunksDir string
	// Максимальный размер итогового файла в байтах
	MaxFileSize int64

	// Параметры подключения к PostgreSQL
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// TTL незавершённой chunk-сессии: сессии старше удаляются cleanup-ом
	UploadTTL time.Duration
	// Интервал запуска cleanup
	CleanupInterval time.Duration

	// Размер LRU-кэша публичных ключей
	KeyCacheSize int
	// TTL записи в кэше публичных ключей
	KeyCacheTTL time.Duration

	// Идентификатор начального админ-ключа (bootstrap, опционально)
	InitialAdminKeyID string
	// PEM начального админ-ключа (bootstrap, опционально)
	InitialAdminPublicKey string

	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics (VS_DEPHEALTH_GROUP)
	DephealthGroup string
	// Имя владельца пода для метки name в topologymetrics (DEPHEALTH_NAME)
	DephealthName string

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// VS_PORT — порт HTTP-сервера (по умолчанию 8000)
	cfg.Port, err = getEnvInt("VS_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("VS_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("VS_PORT: значение %d вне диапазона 1-65535", cfg.Port)
	}

	// VS_DOMAIN — домен для генерации ссылок (по умолчанию localhost:8000)
	cfg.Domain = getEnvDefault("VS_DOMAIN", "localhost:8000")

	// VS_DATA_DIR — обязательный
	cfg.DataDir, err = getEnvRequired("VS_DATA_DIR")
	if err != nil {
		return nil, err
	}

	// VS_CHUNKS_DIR — обязательный
	cfg.ChunksDir, err = getEnvRequired("VS_CHUNKS_DIR")
	if err != nil {
		return nil, err
	}

	// VS_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 4 GB)
	cfg.MaxFileSize, err = getEnvInt64("VS_MAX_FILE_SIZE", 4*1024*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("VS_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize <= 0 {
		return nil, fmt.Errorf("VS_MAX_FILE_SIZE: значение должно быть положительным")
	}

	// --- PostgreSQL ---

	// VS_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("VS_DB_HOST")
	if err != nil {
		return nil, err
	}

	// VS_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("VS_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("VS_DB_PORT: %w", err)
	}

	// VS_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("VS_DB_NAME")
	if err != nil {
		return nil, err
	}

	// VS_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("VS_DB_USER")
	if err != nil {
		return nil, err
	}

	// VS_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("VS_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// VS_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("VS_DB_SSL_MODE", "disable")

	// --- Загрузки ---

	// VS_UPLOAD_TTL — TTL незавершённой сессии (по умолчанию 24h)
	cfg.UploadTTL, err = getEnvDuration("VS_UPLOAD_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("VS_UPLOAD_TTL: %w", err)
	}

	// VS_CLEANUP_INTERVAL — интервал cleanup (по умолчанию 1h)
	cfg.CleanupInterval, err = getEnvDuration("VS_CLEANUP_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("VS_CLEANUP_INTERVAL: %w", err)
	}

	// --- Кэш ключей ---

	// VS_KEY_CACHE_SIZE — размер LRU-кэша ключей (по умолчанию 256)
	cfg.KeyCacheSize, err = getEnvInt("VS_KEY_CACHE_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("VS_KEY_CACHE_SIZE: %w", err)
	}
	if cfg.KeyCacheSize <= 0 {
		return nil, fmt.Errorf("VS_KEY_CACHE_SIZE: значение должно быть положительным")
	}

	// VS_KEY_CACHE_TTL — TTL записи в кэше ключей (по умолчанию 5m)
	cfg.KeyCacheTTL, err = getEnvDuration("VS_KEY_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("VS_KEY_CACHE_TTL: %w", err)
	}

	// --- Bootstrap админ-ключа ---

	// VS_INITIAL_ADMIN_KEY_ID — идентификатор начального админ-ключа (опционально)
	cfg.InitialAdminKeyID = getEnvDefault("VS_INITIAL_ADMIN_KEY_ID", "")

	// VS_INITIAL_ADMIN_PUBLIC_KEY — PEM ключа, либо
	// VS_INITIAL_ADMIN_PUBLIC_KEY_FILE — путь к PEM-файлу
	cfg.InitialAdminPublicKey = getEnvDefault("VS_INITIAL_ADMIN_PUBLIC_KEY", "")
	if cfg.InitialAdminPublicKey == "" {
		if path := os.Getenv("VS_INITIAL_ADMIN_PUBLIC_KEY_FILE"); path != "" {
			data, readErr := os.ReadFile(path)
			if readErr != nil {
				return nil, fmt.Errorf("VS_INITIAL_ADMIN_PUBLIC_KEY_FILE: %w", readErr)
			}
			cfg.InitialAdminPublicKey = string(data)
		}
	}

	// --- Логирование ---

	// VS_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("VS_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("VS_LOG_LEVEL: %w", err)
	}

	// VS_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("VS_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("VS_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- topologymetrics ---

	// VS_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("VS_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("VS_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// VS_DEPHEALTH_GROUP — имя группы в метриках topologymetrics (по умолчанию "vidstore")
	cfg.DephealthGroup = getEnvDefault("VS_DEPHEALTH_GROUP", "vidstore")

	// DEPHEALTH_NAME — имя владельца пода для метки name в topologymetrics
	cfg.DephealthName = getEnvDefault("DEPHEALTH_NAME", "")

	// VS_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("VS_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("VS_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает DSN для подключения pgxpool.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// ServerURL возвращает базовый URL сервера для генерации ссылок.
func (c *Config) ServerURL() string {
	return "https://" + c.Domain
}

// VideoLink возвращает полную ссылку на видео по share-токену.
func (c *Config) VideoLink(shareToken string) string {
	return fmt.Sprintf("%s/videos/%s", c.ServerURL(), shareToken)
}

// HasInitialAdminKey сообщает, задан ли bootstrap админ-ключа.
func (c *Config) HasInitialAdminKey() bool {
	return c.InitialAdminKeyID != "" && c.InitialAdminPublicKey != ""
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

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
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
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 24h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
