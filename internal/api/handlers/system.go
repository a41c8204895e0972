// system.go — обработчик информации о сервисе.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/bigkaa/vidstore/internal/config"
	"github.com/bigkaa/vidstore/internal/service"
	"github.com/bigkaa/vidstore/internal/storage/blobstore"
)

// SystemHandler — обработчик GET /api/v1/info.
type SystemHandler struct {
	playback *service.PlaybackService
	blobs    *blobstore.BlobStore
	cfg      *config.Config
	logger   *slog.Logger
}

// NewSystemHandler создаёт обработчик системной информации.
func NewSystemHandler(playback *service.PlaybackService, blobs *blobstore.BlobStore, cfg *config.Config, logger *slog.Logger) *SystemHandler {
	return &SystemHandler{
		playback: playback,
		blobs:    blobs,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "system_handler")),
	}
}

// Info обрабатывает GET /api/v1/info.
// Возвращает версию, домен и агрегаты каталога видео.
func (h *SystemHandler) Info(w http.ResponseWriter, r *http.Request) {
	count, totalBytes, err := h.playback.Stats(r.Context())
	if err != nil {
		h.logger.Error("Ошибка получения статистики каталога", slog.String("error", err.Error()))
		// Агрегаты недоступны — отдаём остальную информацию
		count, totalBytes = -1, -1
	}

	info := map[string]any{
		"service": "vidstore",
		"version": config.Version,
		"domain":  h.cfg.Domain,
		"videos": map[string]any{
			"count":       count,
			"total_bytes": totalBytes,
		},
		"limits": map[string]any{
			"max_file_size": h.cfg.MaxFileSize,
		},
	}

	// Ёмкость раздела с видео
	if diskTotal, diskUsed, diskAvailable, err := h.blobs.DiskUsage(); err != nil {
		h.logger.Error("Ошибка получения ёмкости диска", slog.String("error", err.Error()))
	} else {
		info["capacity"] = map[string]any{
			"total_bytes":     diskTotal,
			"used_bytes":      diskUsed,
			"available_bytes": diskAvailable,
		}
	}

	writeJSON(w, http.StatusOK, info)
}
