// videos.go — обработчик выдачи видео по share-токену.
// Единственный endpoint без подписи: токен — сам по себе реквизит доступа.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/vidstore/internal/service"
)

// VideoHandler — обработчик /videos/{share_token}.
type VideoHandler struct {
	playback *service.PlaybackService
	logger   *slog.Logger
}

// NewVideoHandler создаёт обработчик выдачи видео.
func NewVideoHandler(playback *service.PlaybackService, logger *slog.Logger) *VideoHandler {
	return &VideoHandler{
		playback: playback,
		logger:   logger.With(slog.String("component", "video_handler")),
	}
}

// Get обрабатывает GET /videos/{share_token}.
// Отдаёт файл через http.ServeFile: Range-запросы и ETag работают
// из коробки, что необходимо для перемотки в плеерах.
func (h *VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	shareToken := chi.URLParam(r, "share_token")

	res, svcErr := h.playback.GetByToken(r.Context(), shareToken)
	if svcErr != nil {
		svcErr.Write(w)
		return
	}

	http.ServeFile(w, r, res.FullPath)
}
