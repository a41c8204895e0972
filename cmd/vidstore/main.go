// vidstore — self-hosted сервис обмена видео.
//
// Приём видео по chunk-протоколу с Ed25519-подписями запросов,
// выдача по share-токенам. Метаданные — PostgreSQL, файлы — локальный диск.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/vidstore/internal/api/handlers"
	"github.com/bigkaa/vidstore/internal/api/middleware"
	"github.com/bigkaa/vidstore/internal/config"
	"github.com/bigkaa/vidstore/internal/database"
	"github.com/bigkaa/vidstore/internal/repository"
	"github.com/bigkaa/vidstore/internal/server"
	"github.com/bigkaa/vidstore/internal/service"
	"github.com/bigkaa/vidstore/internal/storage/blobstore"
	"github.com/bigkaa/vidstore/internal/storage/chunkstore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Фатальная ошибка: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Конфигурация из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	logger := config.SetupLogger(cfg)
	logger.Info("Запуск vidstore",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("domain", cfg.Domain),
	)

	ctx := context.Background()

	// Миграции схемы до открытия пула
	if err := database.Migrate(cfg, logger); err != nil {
		return fmt.Errorf("ошибка миграции БД: %w", err)
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("ошибка подключения к БД: %w", err)
	}
	defer pool.Close()

	// *sql.DB поверх pgxpool — для SQL checker-а topologymetrics
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// Хранилища на диске
	blobs, err := blobstore.New(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("ошибка инициализации хранилища видео: %w", err)
	}
	chunks, err := chunkstore.New(cfg.ChunksDir)
	if err != nil {
		return fmt.Errorf("ошибка инициализации хранилища chunk-ов: %w", err)
	}

	// Репозитории
	keyRepo := repository.NewKeyRepository(pool)
	sessionRepo := repository.NewUploadSessionRepository(pool)
	videoRepo := repository.NewVideoRepository(pool)

	// Сервисы
	keyCache := service.NewKeyCache(cfg.KeyCacheSize, cfg.KeyCacheTTL)
	keySvc := service.NewKeyService(keyRepo, keyCache, logger)
	uploadSvc := service.NewUploadService(cfg, sessionRepo, chunks, blobs, logger)
	playbackSvc := service.NewPlaybackService(videoRepo, blobs, logger)

	// Bootstrap начального админ-ключа (идемпотентно)
	if err := keySvc.Bootstrap(ctx, cfg); err != nil {
		return fmt.Errorf("ошибка bootstrap админ-ключа: %w", err)
	}

	// Фоновая очистка брошенных сессий
	cleanupSvc := service.NewCleanupService(sessionRepo, chunks, cfg.UploadTTL, cfg.CleanupInterval, logger)
	cleanupSvc.Start(ctx)
	defer cleanupSvc.Stop()

	// Мониторинг зависимостей: ошибка не фатальна, сервис работает без него
	dephealthSvc, err := service.NewDephealthService(
		dephealthName(cfg.DephealthName),
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseDSN(),
		cfg.DephealthCheckInterval,
		logger,
	)
	if err != nil {
		logger.Warn("Мониторинг зависимостей не инициализирован", slog.String("error", err.Error()))
	} else {
		if err := dephealthSvc.Start(ctx); err != nil {
			logger.Warn("Мониторинг зависимостей не запущен", slog.String("error", err.Error()))
		} else {
			defer dephealthSvc.Stop()
		}
	}

	// HTTP-обработчики
	h := server.Handlers{
		Whitelist: handlers.NewWhitelistHandler(keySvc, logger),
		Upload:    handlers.NewUploadHandler(uploadSvc, cfg, logger),
		Video:     handlers.NewVideoHandler(playbackSvc, logger),
		Health:    handlers.NewHealthHandler(cfg.DataDir, cfg.ChunksDir, database.NewReadinessChecker(pool)),
		System:    handlers.NewSystemHandler(playbackSvc, blobs, cfg, logger),
	}

	sigAuth := middleware.NewSignatureAuth(keySvc, logger)

	return server.New(cfg, logger, sigAuth, h).Run()
}
