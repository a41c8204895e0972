// playback.go — сервис выдачи видео по share-токену.
// Токен — единственный необходимый реквизит просмотра, подпись не требуется.
package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/vidstore/internal/api/errors"
	"github.com/bigkaa/vidstore/internal/api/middleware"
	"github.com/bigkaa/vidstore/internal/domain/model"
	"github.com/bigkaa/vidstore/internal/repository"
	"github.com/bigkaa/vidstore/internal/storage/blobstore"
)

// PlaybackResult — найденное видео и путь к файлу на диске.
type PlaybackResult struct {
	Video *model.Video
	// FullPath — абсолютный путь файла для отдачи через http.ServeFile
	FullPath string
}

// PlaybackService — сервис выдачи видео.
type PlaybackService struct {
	videos repository.VideoRepository
	blobs  *blobstore.BlobStore
	logger *slog.Logger
}

// NewPlaybackService создаёт сервис выдачи видео.
func NewPlaybackService(videos repository.VideoRepository, blobs *blobstore.BlobStore, logger *slog.Logger) *PlaybackService {
	return &PlaybackService{
		videos: videos,
		blobs:  blobs,
		logger: logger.With(slog.String("component", "playback_service")),
	}
}

// GetByToken возвращает видео по share-токену.
// Неизвестный токен и отсутствующий на диске файл дают одинаковый
// внешний ответ 404, но различимы в логах: потеря файла при живой
// записи каталога — инцидент, а не ошибка клиента.
func (s *PlaybackService) GetByToken(ctx context.Context, shareToken string) (*PlaybackResult, *Error) {
	video, err := s.videos.GetByToken(ctx, shareToken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			middleware.OperationsTotal.WithLabelValues("playback", "not_found").Inc()
			return nil, &Error{
				StatusCode: http.StatusNotFound,
				Code:       apierrors.CodeVideoNotFound,
				Message:    "Видео не найдено",
			}
		}
		s.logger.Error("Ошибка поиска видео",
			slog.String("share_token", shareToken),
			slog.String("error", err.Error()),
		)
		return nil, internalError("Ошибка поиска видео")
	}

	if !s.blobs.FileExists(video.Filename) {
		s.logger.Error("Файл видео отсутствует на диске при живой записи каталога",
			slog.String("share_token", shareToken),
			slog.String("filename", video.Filename),
		)
		middleware.OperationsTotal.WithLabelValues("playback", "missing_file").Inc()
		return nil, &Error{
			StatusCode: http.StatusNotFound,
			Code:       apierrors.CodeVideoNotFound,
			Message:    "Видео не найдено",
		}
	}

	middleware.OperationsTotal.WithLabelValues("playback", "success").Inc()
	return &PlaybackResult{
		Video:    video,
		FullPath: s.blobs.FullPath(video.Filename),
	}, nil
}

// Stats возвращает количество видео и суммарный размер каталога.
func (s *PlaybackService) Stats(ctx context.Context) (count int64, totalBytes int64, err error) {
	return s.videos.Stats(ctx)
}
