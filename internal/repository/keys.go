package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/vidstore/internal/domain/model"
)

// KeyRepository — интерфейс whitelist публичных ключей.
// Материал ключа неизменяем: update-метода нет намеренно,
// замена — только Delete + Create.
type KeyRepository interface {
	// Create регистрирует новый ключ. ErrConflict, если key_id занят.
	Create(ctx context.Context, key *model.Key) error
	// GetByID возвращает ключ по идентификатору. ErrNotFound, если отсутствует.
	GetByID(ctx context.Context, keyID string) (*model.Key, error)
	// Delete удаляет ключ. ErrNotFound, если отсутствует.
	Delete(ctx context.Context, keyID string) error
	// List возвращает все зарегистрированные ключи.
	List(ctx context.Context) ([]*model.Key, error)
	// ListAdmins возвращает ключи с административным флагом.
	ListAdmins(ctx context.Context) ([]*model.Key, error)
}

// keyRepo — реализация KeyRepository поверх PostgreSQL.
type keyRepo struct {
	db DBTX
}

// NewKeyRepository создаёт репозиторий публичных ключей.
func NewKeyRepository(db DBTX) KeyRepository {
	return &keyRepo{db: db}
}

const keyColumns = `key_id, public_key_pem, is_admin, created_by, created_at, domain`

// scanKey сканирует строку результата в модель Key.
func scanKey(row pgx.Row) (*model.Key, error) {
	k := &model.Key{}
	err := row.Scan(&k.KeyID, &k.PublicKeyPEM, &k.IsAdmin, &k.CreatedBy, &k.CreatedAt, &k.Domain)
	return k, err
}

func (r *keyRepo) Create(ctx context.Context, key *model.Key) error {
	query := `
		INSERT INTO public_keys (key_id, public_key_pem, is_admin, created_by, domain)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		key.KeyID, key.PublicKeyPEM, key.IsAdmin, key.CreatedBy, key.Domain,
	).Scan(&key.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: ключ %s уже зарегистрирован", ErrConflict, key.KeyID)
		}
		return fmt.Errorf("ошибка регистрации ключа: %w", err)
	}
	return nil
}

func (r *keyRepo) GetByID(ctx context.Context, keyID string) (*model.Key, error) {
	query := fmt.Sprintf(`SELECT %s FROM public_keys WHERE key_id = $1`, keyColumns)
	k, err := scanKey(r.db.QueryRow(ctx, query, keyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения ключа: %w", err)
	}
	return k, nil
}

func (r *keyRepo) Delete(ctx context.Context, keyID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM public_keys WHERE key_id = $1`, keyID)
	if err != nil {
		return fmt.Errorf("ошибка удаления ключа: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *keyRepo) List(ctx context.Context) ([]*model.Key, error) {
	return r.list(ctx, fmt.Sprintf(`SELECT %s FROM public_keys ORDER BY created_at`, keyColumns))
}

func (r *keyRepo) ListAdmins(ctx context.Context) ([]*model.Key, error) {
	return r.list(ctx, fmt.Sprintf(`SELECT %s FROM public_keys WHERE is_admin ORDER BY created_at`, keyColumns))
}

func (r *keyRepo) list(ctx context.Context, query string) ([]*model.Key, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса списка ключей: %w", err)
	}
	defer rows.Close()

	var keys []*model.Key
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования ключа: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
