package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/vidstore/internal/domain/model"
)

// UploadSessionRepository — реестр chunk-сессий загрузки.
// Сессия — это totalChunks записей с одинаковым upload_id,
// создаваемых одним INSERT-ом при initiate.
type UploadSessionRepository interface {
	// CreateSession создаёт записи для всех ожидаемых chunk-ов сессии.
	CreateSession(ctx context.Context, uploadID, filename string, totalChunks int, uploaderKeyID string) error
	// Get возвращает запись chunk-а. ErrNotFound, если отсутствует.
	Get(ctx context.Context, uploadID string, chunkNumber int) (*model.ChunkRecord, error)
	// MarkReceived помечает chunk полученным. Повторный вызов безопасен.
	MarkReceived(ctx context.Context, uploadID string, chunkNumber int) error
	// ListByUpload возвращает все записи сессии в порядке chunk_number.
	ListByUpload(ctx context.Context, uploadID string) ([]*model.ChunkRecord, error)
	// Finalize атомарно (в одной транзакции) создаёт запись Video
	// и удаляет все chunk-записи сессии.
	Finalize(ctx context.Context, video *model.Video, uploadID string) error
	// ListStale возвращает upload_id сессий, созданных раньше before.
	ListStale(ctx context.Context, before time.Time) ([]string, error)
	// DeleteByUpload удаляет все записи сессии. Возвращает количество удалённых.
	DeleteByUpload(ctx context.Context, uploadID string) (int64, error)
}

// uploadRepo — реализация UploadSessionRepository поверх PostgreSQL.
// Держит pool (а не DBTX), т.к. Finalize открывает собственную транзакцию.
type uploadRepo struct {
	pool *pgxpool.Pool
}

// NewUploadSessionRepository создаёт репозиторий chunk-сессий.
func NewUploadSessionRepository(pool *pgxpool.Pool) UploadSessionRepository {
	return &uploadRepo{pool: pool}
}

const chunkColumns = `upload_id, chunk_number, total_chunks, filename, received, uploader_key_id, created_at`

// scanChunk сканирует строку результата в модель ChunkRecord.
func scanChunk(row pgx.Row) (*model.ChunkRecord, error) {
	c := &model.ChunkRecord{}
	err := row.Scan(&c.UploadID, &c.ChunkNumber, &c.TotalChunks, &c.Filename,
		&c.Received, &c.UploaderKeyID, &c.CreatedAt)
	return c, err
}

func (r *uploadRepo) CreateSession(ctx context.Context, uploadID, filename string, totalChunks int, uploaderKeyID string) error {
	query := `
		INSERT INTO chunk_uploads (upload_id, chunk_number, total_chunks, filename, received, uploader_key_id)
		SELECT $1, n, $2, $3, false, $4
		FROM generate_series(1, $2) AS n`

	if _, err := r.pool.Exec(ctx, query, uploadID, totalChunks, filename, uploaderKeyID); err != nil {
		return fmt.Errorf("ошибка создания chunk-сессии: %w", err)
	}
	return nil
}

func (r *uploadRepo) Get(ctx context.Context, uploadID string, chunkNumber int) (*model.ChunkRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM chunk_uploads WHERE upload_id = $1 AND chunk_number = $2`, chunkColumns)
	c, err := scanChunk(r.pool.QueryRow(ctx, query, uploadID, chunkNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения chunk-записи: %w", err)
	}
	return c, nil
}

func (r *uploadRepo) MarkReceived(ctx context.Context, uploadID string, chunkNumber int) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE chunk_uploads SET received = true WHERE upload_id = $1 AND chunk_number = $2`,
		uploadID, chunkNumber)
	if err != nil {
		return fmt.Errorf("ошибка отметки chunk-а: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *uploadRepo) ListByUpload(ctx context.Context, uploadID string) ([]*model.ChunkRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM chunk_uploads WHERE upload_id = $1 ORDER BY chunk_number`, chunkColumns)
	rows, err := r.pool.Query(ctx, query, uploadID)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса chunk-сессии: %w", err)
	}
	defer rows.Close()

	var records []*model.ChunkRecord
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования chunk-записи: %w", err)
		}
		records = append(records, c)
	}
	return records, rows.Err()
}

// Finalize создаёт запись Video и удаляет chunk-записи в одной транзакции:
// при сбое между этими шагами БД остаётся в согласованном состоянии —
// либо видео зарегистрировано и сессия закрыта, либо ни то, ни другое.
func (r *uploadRepo) Finalize(ctx context.Context, video *model.Video, uploadID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // откат после коммита — no-op

	insert := `
		INSERT INTO videos (filename, file_size, share_token, transcoded, password, uploader_key_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING upload_date`

	err = tx.QueryRow(ctx, insert,
		video.Filename, video.FileSize, video.ShareToken,
		video.Transcoded, video.Password, video.UploaderKeyID,
	).Scan(&video.UploadDate)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: share_token или filename уже заняты", ErrConflict)
		}
		return fmt.Errorf("ошибка создания записи видео: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM chunk_uploads WHERE upload_id = $1`, uploadID); err != nil {
		return fmt.Errorf("ошибка удаления chunk-записей: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *uploadRepo) ListStale(ctx context.Context, before time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT upload_id FROM chunk_uploads WHERE created_at < $1`, before)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса устаревших сессий: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ошибка сканирования upload_id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *uploadRepo) DeleteByUpload(ctx context.Context, uploadID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM chunk_uploads WHERE upload_id = $1`, uploadID)
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления chunk-сессии: %w", err)
	}
	return tag.RowsAffected(), nil
}
