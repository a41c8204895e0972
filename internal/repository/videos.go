package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/vidstore/internal/domain/model"
)

// VideoRepository — каталог загруженных видео.
// Записи создаются только через UploadSessionRepository.Finalize;
// путей обновления и удаления нет.
type VideoRepository interface {
	// GetByToken возвращает видео по share-токену. ErrNotFound, если отсутствует.
	GetByToken(ctx context.Context, shareToken string) (*model.Video, error)
	// Create регистрирует видео вне транзакции завершения загрузки.
	// Используется в тестах и при ручном восстановлении каталога.
	Create(ctx context.Context, video *model.Video) error
	// Stats возвращает количество видео и суммарный размер в байтах.
	Stats(ctx context.Context) (count int64, totalBytes int64, err error)
}

// videoRepo — реализация VideoRepository поверх PostgreSQL.
type videoRepo struct {
	db DBTX
}

// NewVideoRepository создаёт репозиторий каталога видео.
func NewVideoRepository(db DBTX) VideoRepository {
	return &videoRepo{db: db}
}

const videoColumns = `filename, upload_date, file_size, share_token, transcoded, password, uploader_key_id`

// scanVideo сканирует строку результата в модель Video.
func scanVideo(row pgx.Row) (*model.Video, error) {
	v := &model.Video{}
	err := row.Scan(&v.Filename, &v.UploadDate, &v.FileSize, &v.ShareToken,
		&v.Transcoded, &v.Password, &v.UploaderKeyID)
	return v, err
}

func (r *videoRepo) GetByToken(ctx context.Context, shareToken string) (*model.Video, error) {
	query := fmt.Sprintf(`SELECT %s FROM videos WHERE share_token = $1`, videoColumns)
	v, err := scanVideo(r.db.QueryRow(ctx, query, shareToken))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения видео: %w", err)
	}
	return v, nil
}

func (r *videoRepo) Create(ctx context.Context, video *model.Video) error {
	query := `
		INSERT INTO videos (filename, file_size, share_token, transcoded, password, uploader_key_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING upload_date`

	err := r.db.QueryRow(ctx, query,
		video.Filename, video.FileSize, video.ShareToken,
		video.Transcoded, video.Password, video.UploaderKeyID,
	).Scan(&video.UploadDate)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: share_token или filename уже заняты", ErrConflict)
		}
		return fmt.Errorf("ошибка создания записи видео: %w", err)
	}
	return nil
}

func (r *videoRepo) Stats(ctx context.Context) (int64, int64, error) {
	var count, totalBytes int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(file_size), 0) FROM videos`,
	).Scan(&count, &totalBytes)
	if err != nil {
		return 0, 0, fmt.Errorf("ошибка получения статистики видео: %w", err)
	}
	return count, totalBytes, nil
}
