// Пакет config — загрузка и валидация конфигурации pdfmill
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации pdfmill.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Путь к директории исходных загрузок
	UploadDir string
	// Путь к директории конвертированных PDF
	ConvertedDir string
	// Путь к директории служебных данных (metadata.db, users.json)
	DataDir string
	// Максимальный размер загружаемого файла в байтах
	MaxUploadSize int64
	// Срок хранения конвертированных файлов
	Retention time.Duration
	// Интервал запуска Retention Sweeper
	SweepInterval time.Duration
	// Таймаут одной конвертации
	ConvertTimeout time.Duration
	// Путь к бинарю LibreOffice
	SofficeBin string
	// Путь к бинарю ImageMagick
	MagickBin string
	// Секрет подписи JWT (HS256)
	JWTSecret string
	// Срок жизни сессионного токена
	TokenTTL time.Duration
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
	// Разрешённые CORS origins браузерного фронтенда
	CORSOrigins []string
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
// Перед чтением окружения подхватывает .env файл, если он есть.
func Load() (*Config, error) {
	// .env опционален, отсутствие файла не ошибка
	_ = godotenv.Load()

	cfg := &Config{}
	var err error

	// PM_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("PM_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("PM_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PM_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// PM_UPLOAD_DIR — обязательный
	cfg.UploadDir, err = getEnvRequired("PM_UPLOAD_DIR")
	if err != nil {
		return nil, err
	}

	// PM_CONVERTED_DIR — обязательный
	cfg.ConvertedDir, err = getEnvRequired("PM_CONVERTED_DIR")
	if err != nil {
		return nil, err
	}

	// PM_DATA_DIR — обязательный
	cfg.DataDir, err = getEnvRequired("PM_DATA_DIR")
	if err != nil {
		return nil, err
	}

	// PM_MAX_UPLOAD_SIZE — максимальный размер загрузки (по умолчанию 20 MB)
	cfg.MaxUploadSize, err = getEnvInt64("PM_MAX_UPLOAD_SIZE", 20*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("PM_MAX_UPLOAD_SIZE: %w", err)
	}
	if cfg.MaxUploadSize <= 0 {
		return nil, fmt.Errorf("PM_MAX_UPLOAD_SIZE: значение должно быть положительным")
	}

	// PM_RETENTION — срок хранения файлов (по умолчанию 30m)
	cfg.Retention, err = getEnvDuration("PM_RETENTION", 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("PM_RETENTION: %w", err)
	}
	if cfg.Retention <= 0 {
		return nil, fmt.Errorf("PM_RETENTION: значение должно быть положительным")
	}

	// PM_SWEEP_INTERVAL — интервал Retention Sweeper (по умолчанию 10m).
	// Должен быть не больше половины retention, иначе просроченные файлы
	// задерживаются на диске дольше допустимого.
	cfg.SweepInterval, err = getEnvDuration("PM_SWEEP_INTERVAL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("PM_SWEEP_INTERVAL: %w", err)
	}
	if cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("PM_SWEEP_INTERVAL: значение должно быть положительным")
	}
	if cfg.SweepInterval > cfg.Retention/2 {
		return nil, fmt.Errorf("PM_SWEEP_INTERVAL: значение %s должно быть <= PM_RETENTION/2 (%s)",
			cfg.SweepInterval, cfg.Retention/2)
	}

	// PM_CONVERT_TIMEOUT — таймаут одной конвертации (по умолчанию 2m)
	cfg.ConvertTimeout, err = getEnvDuration("PM_CONVERT_TIMEOUT", 2*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("PM_CONVERT_TIMEOUT: %w", err)
	}
	if cfg.ConvertTimeout <= 0 {
		return nil, fmt.Errorf("PM_CONVERT_TIMEOUT: значение должно быть положительным")
	}

	// PM_SOFFICE_BIN — бинарь LibreOffice (по умолчанию soffice из PATH)
	cfg.SofficeBin = getEnvDefault("PM_SOFFICE_BIN", "soffice")

	// PM_MAGICK_BIN — бинарь ImageMagick (по умолчанию magick из PATH)
	cfg.MagickBin = getEnvDefault("PM_MAGICK_BIN", "magick")

	// PM_JWT_SECRET — обязательный
	cfg.JWTSecret, err = getEnvRequired("PM_JWT_SECRET")
	if err != nil {
		return nil, err
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("PM_JWT_SECRET: длина секрета должна быть не менее 32 символов")
	}

	// PM_TOKEN_TTL — срок жизни токена (по умолчанию 24h)
	cfg.TokenTTL, err = getEnvDuration("PM_TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("PM_TOKEN_TTL: %w", err)
	}

	// PM_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("PM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("PM_LOG_LEVEL: %w", err)
	}

	// PM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("PM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("PM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// PM_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("PM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PM_SHUTDOWN_TIMEOUT: %w", err)
	}

	// PM_CORS_ORIGINS — список origins через запятую (по умолчанию *)
	cfg.CORSOrigins = splitList(getEnvDefault("PM_CORS_ORIGINS", "*"))
	if len(cfg.CORSOrigins) == 0 {
		return nil, fmt.Errorf("PM_CORS_ORIGINS: список origins пуст")
	}

	return cfg, nil
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

// splitList разбирает список значений через запятую, пустые элементы отбрасываются.
func splitList(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

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
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 10m, 1h)", val)
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
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
