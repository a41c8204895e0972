// upload.go — сервис chunk-загрузки видео.
//
// Жизненный цикл загрузки:
//  1. Initiate — создание сессии: реестр ожидаемых chunk-ов в БД
//  2. ReceiveChunk — приём частей в произвольном порядке, идемпотентно
//  3. Complete — сборка файла в порядке номеров, выдача share-токена,
//     атомарная фиксация в БД (запись видео + закрытие сессии)
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	apierrors "github.com/bigkaa/vidstore/internal/api/errors"
	"github.com/bigkaa/vidstore/internal/api/middleware"
	"github.com/bigkaa/vidstore/internal/config"
	"github.com/bigkaa/vidstore/internal/domain/model"
	"github.com/bigkaa/vidstore/internal/repository"
	"github.com/bigkaa/vidstore/internal/storage/blobstore"
	"github.com/bigkaa/vidstore/internal/storage/chunkstore"
)

// InitiateResult — результат создания сессии загрузки.
type InitiateResult struct {
	// UploadID — идентификатор сессии
	UploadID string
	// Filename — назначенное сессии имя итогового файла на диске
	Filename string
	// TotalChunks — ожидаемое количество частей
	TotalChunks int
}

// ChunkResult — результат приёма одной части.
type ChunkResult struct {
	// ChunkNumber — номер принятой части
	ChunkNumber int
	// AlreadyReceived — часть была получена ранее (повторная доставка)
	AlreadyReceived bool
}

// CompleteResult — результат завершения загрузки.
type CompleteResult struct {
	// Video — зарегистрированное видео
	Video *model.Video
	// VideoLink — полная ссылка для просмотра
	VideoLink string
}

// UploadService — сервис chunk-загрузки видео.
type UploadService struct {
	cfg      *config.Config
	sessions repository.UploadSessionRepository
	chunks   *chunkstore.ChunkStore
	blobs    *blobstore.BlobStore
	logger   *slog.Logger

	// mu защищает completing — множество сессий, для которых
	// сборка выполняется прямо сейчас. Конкурентный Complete той же
	// сессии получает 409 вместо гонки за файлами.
	mu         sync.Mutex
	completing map[string]bool
}

// NewUploadService создаёт сервис загрузки.
func NewUploadService(
	cfg *config.Config,
	sessions repository.UploadSessionRepository,
	chunks *chunkstore.ChunkStore,
	blobs *blobstore.BlobStore,
	logger *slog.Logger,
) *UploadService {
	return &UploadService{
		cfg:        cfg,
		sessions:   sessions,
		chunks:     chunks,
		blobs:      blobs,
		logger:     logger.With(slog.String("component", "upload_service")),
		completing: make(map[string]bool),
	}
}

// Initiate создаёт сессию загрузки: uploadID, имя итогового файла
// и реестр ожидаемых chunk-ов. Имя назначается здесь, чтобы сборка
// при complete записывала файл ровно под тем именем, которое сессия
// получила при создании.
func (s *UploadService) Initiate(ctx context.Context, filename string, totalChunks int, keyID string) (*InitiateResult, *Error) {
	if filename == "" {
		return nil, validationError("filename не может быть пустым")
	}
	if totalChunks < 1 {
		return nil, validationError("total_chunks должен быть не меньше 1")
	}

	uploadID := uuid.New().String()
	storageName := blobstore.GenerateStorageName(filename)

	if err := s.sessions.CreateSession(ctx, uploadID, storageName, totalChunks, keyID); err != nil {
		s.logger.Error("Ошибка создания сессии загрузки",
			slog.String("upload_id", uploadID),
			slog.String("error", err.Error()),
		)
		return nil, internalError("Ошибка создания сессии загрузки")
	}

	middleware.OperationsTotal.WithLabelValues("initiate", "success").Inc()
	s.logger.Info("Сессия загрузки создана",
		slog.String("upload_id", uploadID),
		slog.String("filename", filename),
		slog.String("storage_name", storageName),
		slog.Int("total_chunks", totalChunks),
		slog.String("key_id", keyID),
	)

	return &InitiateResult{
		UploadID:    uploadID,
		Filename:    storageName,
		TotalChunks: totalChunks,
	}, nil
}

// ReceiveChunk принимает одну часть загрузки. Части приходят в произвольном
// порядке; повторная доставка той же части безопасна — данные перезаписываются,
// флаг received остаётся установленным.
func (s *UploadService) ReceiveChunk(ctx context.Context, uploadID string, chunkNumber int, reader io.Reader, keyID string) (*ChunkResult, *Error) {
	if chunkNumber < 1 {
		return nil, validationError("chunk_number должен быть не меньше 1")
	}

	rec, err := s.sessions.Get(ctx, uploadID, chunkNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, s.chunkNotFound(ctx, uploadID, chunkNumber)
		}
		s.logger.Error("Ошибка получения chunk-записи",
			slog.String("upload_id", uploadID),
			slog.String("error", err.Error()),
		)
		return nil, internalError("Ошибка получения сессии загрузки")
	}

	if svcErr := s.checkOwner(rec, keyID); svcErr != nil {
		return nil, svcErr
	}

	size, err := s.chunks.WriteChunk(uploadID, chunkNumber, reader)
	if err != nil {
		s.logger.Error("Ошибка записи части",
			slog.String("upload_id", uploadID),
			slog.Int("chunk_number", chunkNumber),
			slog.String("error", err.Error()),
		)
		return nil, internalError("Ошибка записи части на диск")
	}

	if err := s.sessions.MarkReceived(ctx, uploadID, chunkNumber); err != nil {
		s.logger.Error("Ошибка отметки части",
			slog.String("upload_id", uploadID),
			slog.Int("chunk_number", chunkNumber),
			slog.String("error", err.Error()),
		)
		return nil, internalError("Ошибка отметки части")
	}

	middleware.OperationsTotal.WithLabelValues("chunk", "success").Inc()
	s.logger.Debug("Часть принята",
		slog.String("upload_id", uploadID),
		slog.Int("chunk_number", chunkNumber),
		slog.Int64("size", size),
		slog.Bool("already_received", rec.Received),
	)

	return &ChunkResult{
		ChunkNumber:     chunkNumber,
		AlreadyReceived: rec.Received,
	}, nil
}

// Complete завершает загрузку: проверяет полноту сессии, собирает файл
// в порядке номеров частей, выдаёт share-токен и атомарно фиксирует
// результат в БД. Part-файлы удаляются только после фиксации.
func (s *UploadService) Complete(ctx context.Context, uploadID, keyID string) (*CompleteResult, *Error) {
	if !s.tryLock(uploadID) {
		middleware.OperationsTotal.WithLabelValues("complete", "in_progress").Inc()
		return nil, &Error{
			StatusCode: http.StatusConflict,
			Code:       apierrors.CodeCompletionInProgress,
			Message:    fmt.Sprintf("Сборка загрузки %s уже выполняется", uploadID),
		}
	}
	defer s.unlock(uploadID)

	records, err := s.sessions.ListByUpload(ctx, uploadID)
	if err != nil {
		s.logger.Error("Ошибка получения сессии",
			slog.String("upload_id", uploadID),
			slog.String("error", err.Error()),
		)
		return nil, internalError("Ошибка получения сессии загрузки")
	}
	if len(records) == 0 {
		return nil, &Error{
			StatusCode: http.StatusNotFound,
			Code:       apierrors.CodeUploadNotFound,
			Message:    fmt.Sprintf("Сессия загрузки %s не найдена", uploadID),
		}
	}

	// Владелец проверяется по каждой записи: расхождение внутри сессии
	// означает повреждение реестра, отдавать сборку по нему нельзя
	first := records[0]
	for _, rec := range records {
		if svcErr := s.checkOwner(rec, keyID); svcErr != nil {
			return nil, svcErr
		}
	}

	// Проверяем полноту: каждая часть должна быть отмечена полученной
	var missing []int
	for _, rec := range records {
		if !rec.Received {
			missing = append(missing, rec.ChunkNumber)
		}
	}
	if len(missing) > 0 {
		middleware.OperationsTotal.WithLabelValues("complete", "incomplete").Inc()
		return nil, &Error{
			StatusCode: http.StatusBadRequest,
			Code:       apierrors.CodeUploadIncomplete,
			Message: fmt.Sprintf("Получено %d из %d частей, отсутствуют: %s",
				len(records)-len(missing), first.TotalChunks, formatMissing(missing)),
		}
	}

	// Сборка: итоговый файл появляется в каталоге видео атомарно
	saved, err := s.chunks.Assemble(s.blobs, uploadID, first.TotalChunks, first.Filename)
	if err != nil {
		s.logger.Error("Ошибка сборки файла",
			slog.String("upload_id", uploadID),
			slog.String("error", err.Error()),
		)
		return nil, internalError("Ошибка сборки файла из частей")
	}

	video := &model.Video{
		Filename:      saved.StorageName,
		FileSize:      saved.Size,
		ShareToken:    uuid.New().String(),
		UploaderKeyID: keyID,
	}

	// Атомарная фиксация: запись видео и закрытие сессии в одной транзакции
	if err := s.sessions.Finalize(ctx, video, uploadID); err != nil {
		// БД не зафиксировала результат — убираем собранный файл
		_ = s.blobs.DeleteFile(saved.StorageName)
		s.logger.Error("Ошибка фиксации загрузки",
			slog.String("upload_id", uploadID),
			slog.String("error", err.Error()),
		)
		return nil, internalError("Ошибка фиксации загрузки")
	}

	// Part-файлы больше не нужны; ошибки удаления не откатывают фиксацию
	if err := s.chunks.DeleteParts(uploadID, first.TotalChunks); err != nil {
		s.logger.Warn("Ошибка удаления part-файлов после фиксации",
			slog.String("upload_id", uploadID),
			slog.String("error", err.Error()),
		)
	}

	middleware.OperationsTotal.WithLabelValues("complete", "success").Inc()
	middleware.UploadedBytesTotal.Add(float64(saved.Size))

	s.logger.Info("Загрузка завершена",
		slog.String("upload_id", uploadID),
		slog.String("filename", video.Filename),
		slog.Int64("size", video.FileSize),
		slog.String("share_token", video.ShareToken),
		slog.String("key_id", keyID),
	)

	return &CompleteResult{
		Video:     video,
		VideoLink: s.cfg.VideoLink(video.ShareToken),
	}, nil
}

// tryLock пытается захватить сессию для сборки.
// Возвращает false, если сборка этой сессии уже идёт.
func (s *UploadService) tryLock(uploadID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completing[uploadID] {
		return false
	}
	s.completing[uploadID] = true
	return true
}

func (s *UploadService) unlock(uploadID string) {
	s.mu.Lock()
	delete(s.completing, uploadID)
	s.mu.Unlock()
}

// checkOwner проверяет, что сессия принадлежит подписавшему ключу.
func (s *UploadService) checkOwner(rec *model.ChunkRecord, keyID string) *Error {
	if rec.UploaderKeyID != keyID {
		middleware.OperationsTotal.WithLabelValues("upload", "owner_mismatch").Inc()
		s.logger.Warn("Попытка доступа к чужой сессии",
			slog.String("upload_id", rec.UploadID),
			slog.String("owner", rec.UploaderKeyID),
			slog.String("key_id", keyID),
		)
		return &Error{
			StatusCode: http.StatusForbidden,
			Code:       apierrors.CodeOwnerMismatch,
			Message:    "Сессия загрузки принадлежит другому ключу",
		}
	}
	return nil
}

// chunkNotFound различает неизвестную сессию (404) и номер части
// вне диапазона существующей сессии (400).
func (s *UploadService) chunkNotFound(ctx context.Context, uploadID string, chunkNumber int) *Error {
	if _, err := s.sessions.Get(ctx, uploadID, 1); err == nil {
		return validationError(
			fmt.Sprintf("chunk_number %d вне диапазона сессии", chunkNumber))
	}
	return &Error{
		StatusCode: http.StatusNotFound,
		Code:       apierrors.CodeUploadNotFound,
		Message:    fmt.Sprintf("Сессия загрузки %s не найдена", uploadID),
	}
}

// formatMissing форматирует список отсутствующих частей,
// ограничивая его первыми десятью номерами.
func formatMissing(missing []int) string {
	const maxShown = 10
	shown := missing
	suffix := ""
	if len(missing) > maxShown {
		shown = missing[:maxShown]
		suffix = fmt.Sprintf(" и ещё %d", len(missing)-maxShown)
	}
	return fmt.Sprintf("%v%s", shown, suffix)
}
