// Точка входа pdfmill — сервиса конвертации файлов в PDF.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/arturkryukov/pdfmill/internal/api/handlers"
	"github.com/arturkryukov/pdfmill/internal/config"
	"github.com/arturkryukov/pdfmill/internal/convert"
	"github.com/arturkryukov/pdfmill/internal/server"
	"github.com/arturkryukov/pdfmill/internal/service"
	"github.com/arturkryukov/pdfmill/internal/storage/blobstore"
	"github.com/arturkryukov/pdfmill/internal/storage/metastore"
	"github.com/arturkryukov/pdfmill/internal/storage/userstore"
)

func main() {
	// Загрузка конфигурации из переменных окружения (+ .env)
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("pdfmill запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("retention", cfg.Retention.String()),
	)

	// --- Инициализация компонентов ---

	// 1. Blob-хранилище (uploads + converted)
	blobs, err := blobstore.New(cfg.UploadDir, cfg.ConvertedDir)
	if err != nil {
		logger.Error("Ошибка инициализации blob-хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Хранилище метаданных (SQLite)
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		logger.Error("Ошибка создания директории данных", slog.String("error", err.Error()))
		os.Exit(1)
	}
	meta, err := metastore.OpenSQLite(filepath.Join(cfg.DataDir, "metadata.db"), logger)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища метаданных", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer meta.Close()

	// 3. Хранилище пользователей (users.json)
	users, err := userstore.New(filepath.Join(cfg.DataDir, "users.json"))
	if err != nil {
		logger.Error("Ошибка инициализации хранилища пользователей", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Конвертеры
	gateway := convert.NewGateway(convert.Options{
		SofficeBin: cfg.SofficeBin,
		MagickBin:  cfg.MagickBin,
	}, logger)

	// 5. Сервисы
	uploadSvc := service.NewUploadService(cfg, gateway, blobs, meta, logger)
	accessSvc := service.NewAccessService(blobs, meta, logger)
	authSvc := service.NewAuthService(users, cfg.JWTSecret, cfg.TokenTTL, logger)

	// 6. Retention Sweeper — фоновая очистка по возрасту
	ctx := context.Background()
	sweeper := service.NewSweeper(blobs, meta, cfg.Retention, cfg.SweepInterval, logger)
	sweeper.Start(ctx)

	// 7. Handlers
	h := server.Handlers{
		Auth:   handlers.NewAuthHandler(authSvc),
		Files:  handlers.NewFilesHandler(uploadSvc, accessSvc, cfg.MaxUploadSize),
		Health: handlers.NewHealthHandler(cfg.UploadDir, cfg.ConvertedDir, meta),
	}

	// 8. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, h)

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// --- Graceful shutdown фоновых процессов ---
	logger.Info("Остановка фоновых процессов...")
	sweeper.Stop()

	logger.Info("pdfmill остановлен")
}
