// cleanup.go — фоновая очистка брошенных сессий загрузки.
//
// Сессия считается устаревшей, если создана раньше чем TTL назад
// и так и не была завершена. Очистка удаляет part-файлы с диска
// и chunk-записи из БД.
//
// Запускается как горутина с периодическим тикером (VS_CLEANUP_INTERVAL).
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/vidstore/internal/repository"
	"github.com/bigkaa/vidstore/internal/storage/chunkstore"
)

// Prometheus метрики очистки
var (
	// cleanupRunsTotal — количество запусков очистки.
	cleanupRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vs_cleanup_runs_total",
		Help: "Общее количество запусков очистки устаревших сессий",
	})

	// cleanupSessionsTotal — количество удалённых сессий.
	cleanupSessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vs_cleanup_sessions_total",
		Help: "Общее количество удалённых устаревших сессий",
	})

	// cleanupDurationSeconds — длительность выполнения очистки.
	cleanupDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vs_cleanup_duration_seconds",
		Help:    "Длительность выполнения очистки в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// CleanupResult — результат одного запуска очистки.
type CleanupResult struct {
	// SessionsDeleted — количество удалённых сессий
	SessionsDeleted int
	// OrphanPartsDeleted — количество удалённых осиротевших part-файлов
	OrphanPartsDeleted int
	// Errors — количество ошибок при обработке сессий
	Errors int
	// Duration — длительность выполнения
	Duration time.Duration
}

// CleanupService — сервис фоновой очистки устаревших сессий.
type CleanupService struct {
	sessions repository.UploadSessionRepository
	chunks   *chunkstore.ChunkStore
	ttl      time.Duration
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
}

// NewCleanupService создаёт сервис очистки.
func NewCleanupService(
	sessions repository.UploadSessionRepository,
	chunks *chunkstore.ChunkStore,
	ttl time.Duration,
	interval time.Duration,
	logger *slog.Logger,
) *CleanupService {
	return &CleanupService{
		sessions: sessions,
		chunks:   chunks,
		ttl:      ttl,
		interval: interval,
		logger:   logger.With(slog.String("component", "cleanup")),
	}
}

// Start запускает фоновую горутину очистки с периодическим тикером.
// Вызывается один раз при старте приложения.
func (cs *CleanupService) Start(ctx context.Context) {
	cleanupCtx, cancel := context.WithCancel(ctx)
	cs.cancel = cancel

	go cs.run(cleanupCtx)

	cs.logger.Info("Очистка устаревших сессий запущена",
		slog.String("ttl", cs.ttl.String()),
		slog.String("interval", cs.interval.String()),
	)
}

// Stop останавливает фоновый процесс очистки.
func (cs *CleanupService) Stop() {
	if cs.cancel != nil {
		cs.cancel()
	}
	cs.logger.Info("Очистка остановлена")
}

// run — основной цикл фоновой горутины.
func (cs *CleanupService) run(ctx context.Context) {
	// Первый запуск — сразу после старта
	cs.RunOnce(ctx)

	ticker := time.NewTicker(cs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cs.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один цикл очистки.
// Потокобезопасен: использует mutex для защиты от параллельного запуска.
//
// Порядок обработки каждой сессии: сначала part-файлы, затем записи в БД.
// При сбое удаления записей сессия останется в реестре и будет
// обработана повторно на следующем запуске.
func (cs *CleanupService) RunOnce(ctx context.Context) *CleanupResult {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	start := time.Now()
	result := &CleanupResult{}

	cs.logger.Debug("Очистка начата")

	before := time.Now().UTC().Add(-cs.ttl)
	stale, err := cs.sessions.ListStale(ctx, before)
	if err != nil {
		cs.logger.Error("Ошибка поиска устаревших сессий", slog.String("error", err.Error()))
		result.Errors++
		return result
	}

	for _, uploadID := range stale {
		if err := cs.cleanSession(ctx, uploadID); err != nil {
			cs.logger.Error("Ошибка очистки сессии",
				slog.String("upload_id", uploadID),
				slog.String("error", err.Error()),
			)
			result.Errors++
			continue
		}
		result.SessionsDeleted++
	}

	// Осиротевшие part-файлы: сессия уже финализирована или очищена,
	// а файлы пережили сбой между этими шагами
	orphans, err := cs.chunks.SweepOrphans(cs.ttl)
	if err != nil {
		cs.logger.Error("Ошибка удаления осиротевших part-файлов", slog.String("error", err.Error()))
		result.Errors++
	}
	result.OrphanPartsDeleted = orphans

	result.Duration = time.Since(start)

	// Обновляем Prometheus метрики
	cleanupRunsTotal.Inc()
	cleanupSessionsTotal.Add(float64(result.SessionsDeleted))
	cleanupDurationSeconds.Observe(result.Duration.Seconds())

	if result.SessionsDeleted > 0 || result.OrphanPartsDeleted > 0 || result.Errors > 0 {
		cs.logger.Info("Очистка завершена",
			slog.Int("deleted", result.SessionsDeleted),
			slog.Int("orphan_parts", result.OrphanPartsDeleted),
			slog.Int("errors", result.Errors),
			slog.Duration("duration", result.Duration),
		)
	}

	return result
}

// cleanSession удаляет part-файлы и chunk-записи одной сессии.
func (cs *CleanupService) cleanSession(ctx context.Context, uploadID string) error {
	rec, err := cs.sessions.Get(ctx, uploadID, 1)
	if err != nil {
		// Сессия исчезла между ListStale и Get (завершена или очищена
		// конкурентно) — нечего удалять
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	if err := cs.chunks.DeleteParts(uploadID, rec.TotalChunks); err != nil {
		return err
	}

	deleted, err := cs.sessions.DeleteByUpload(ctx, uploadID)
	if err != nil {
		return err
	}

	cs.logger.Debug("Сессия очищена",
		slog.String("upload_id", uploadID),
		slog.Int64("records", deleted),
	)
	return nil
}
