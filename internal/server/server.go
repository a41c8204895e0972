// Пакет server — HTTP-сервер видеосервиса: маршруты, middleware,
// graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/vidstore/internal/api/handlers"
	"github.com/bigkaa/vidstore/internal/api/middleware"
	"github.com/bigkaa/vidstore/internal/config"
)

// Handlers — набор обработчиков для регистрации маршрутов.
type Handlers struct {
	Whitelist *handlers.WhitelistHandler
	Upload    *handlers.UploadHandler
	Video     *handlers.VideoHandler
	Health    *handlers.HealthHandler
	System    *handlers.SystemHandler
}

// Server — HTTP-сервер видеосервиса.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
// sigAuth — middleware проверки подписей для защищённых endpoints.
func New(cfg *config.Config, logger *slog.Logger, sigAuth *middleware.SignatureAuth, h Handlers) *Server {
	router := chi.NewRouter()

	// Глобальные middleware: метрики считаются до логирования,
	// чтобы нормализованный путь попадал в лейблы для любого ответа
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Ambient endpoints — без подписи
	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	router.Get("/api/v1/info", h.System.Info)

	// Просмотр видео — share-токен является единственным реквизитом
	router.Get("/videos/{share_token}", h.Video.Get)

	// Управление whitelist — подпись административным ключом
	router.Group(func(r chi.Router) {
		r.Use(sigAuth.Middleware())
		r.Use(middleware.RequireAdmin())

		r.Post("/auth/whitelist/add", h.Whitelist.Add)
		r.Post("/auth/whitelist/remove", h.Whitelist.Remove)
		r.Get("/auth/whitelist/list", h.Whitelist.List)
	})

	// Загрузка — подпись любым ключом whitelist
	router.Group(func(r chi.Router) {
		r.Use(sigAuth.Middleware())

		r.Post("/upload/initiate", h.Upload.Initiate)
		r.Post("/upload/chunk", h.Upload.Chunk)
		r.Post("/upload/complete", h.Upload.Complete)
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
		// WriteTimeout не задан: выдача длинных видео и приём больших
		// chunk-ов не должны обрываться по фиксированному таймауту
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown с таймаутом
// VS_SHUTDOWN_TIMEOUT.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
			slog.String("domain", s.cfg.Domain),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
