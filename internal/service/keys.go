// keys.go — сервис whitelist публичных ключей.
// Регистрация, удаление, список, bootstrap первого админ-ключа
// и выдача ключей для проверки подписей (через LRU-кэш).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/vidstore/internal/api/errors"
	"github.com/bigkaa/vidstore/internal/api/middleware"
	"github.com/bigkaa/vidstore/internal/auth"
	"github.com/bigkaa/vidstore/internal/config"
	"github.com/bigkaa/vidstore/internal/domain/model"
	"github.com/bigkaa/vidstore/internal/repository"
)

// AddKeyParams — параметры регистрации ключа в whitelist.
type AddKeyParams struct {
	// KeyID — идентификатор ключа
	KeyID string
	// PublicKeyPEM — публичный ключ Ed25519 в формате PEM (SubjectPublicKeyInfo)
	PublicKeyPEM string
	// IsAdmin — административный флаг
	IsAdmin bool
	// Domain — опциональная метка домена владельца
	Domain string
	// CreatedBy — key_id администратора, выполняющего регистрацию
	CreatedBy string
}

// KeyService — сервис whitelist публичных ключей.
type KeyService struct {
	keys   repository.KeyRepository
	cache  *KeyCache
	logger *slog.Logger
}

// NewKeyService создаёт сервис whitelist.
func NewKeyService(keys repository.KeyRepository, cache *KeyCache, logger *slog.Logger) *KeyService {
	return &KeyService{
		keys:   keys,
		cache:  cache,
		logger: logger.With(slog.String("component", "key_service")),
	}
}

// Add регистрирует новый публичный ключ в whitelist.
// Материал ключа валидируется как Ed25519 PEM до записи в БД.
func (s *KeyService) Add(ctx context.Context, params AddKeyParams) (*model.Key, *Error) {
	if params.KeyID == "" {
		return nil, validationError("key_id не может быть пустым")
	}
	if _, err := auth.ParsePublicKeyPEM(params.PublicKeyPEM); err != nil {
		return nil, validationError(
			fmt.Sprintf("public_key_pem не является валидным Ed25519 PEM: %s", err.Error()))
	}

	key := &model.Key{
		KeyID:        params.KeyID,
		PublicKeyPEM: params.PublicKeyPEM,
		IsAdmin:      params.IsAdmin,
		Domain:       params.Domain,
	}
	if params.CreatedBy != "" {
		key.CreatedBy = &params.CreatedBy
	}

	if err := s.keys.Create(ctx, key); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			middleware.OperationsTotal.WithLabelValues("whitelist_add", "duplicate").Inc()
			return nil, &Error{
				StatusCode: http.StatusBadRequest,
				Code:       apierrors.CodeDuplicateKey,
				Message:    fmt.Sprintf("Ключ %s уже зарегистрирован", params.KeyID),
			}
		}
		s.logger.Error("Ошибка регистрации ключа",
			slog.String("key_id", params.KeyID),
			slog.String("error", err.Error()),
		)
		return nil, internalError("Ошибка регистрации ключа")
	}

	middleware.OperationsTotal.WithLabelValues("whitelist_add", "success").Inc()
	s.logger.Info("Ключ зарегистрирован",
		slog.String("key_id", key.KeyID),
		slog.Bool("is_admin", key.IsAdmin),
		slog.String("created_by", params.CreatedBy),
	)

	return key, nil
}

// Remove удаляет ключ из whitelist и инвалидирует кэш.
func (s *KeyService) Remove(ctx context.Context, keyID string) *Error {
	if keyID == "" {
		return validationError("key_id не может быть пустым")
	}

	if err := s.keys.Delete(ctx, keyID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &Error{
				StatusCode: http.StatusNotFound,
				Code:       apierrors.CodeKeyNotFound,
				Message:    fmt.Sprintf("Ключ %s не найден", keyID),
			}
		}
		s.logger.Error("Ошибка удаления ключа",
			slog.String("key_id", keyID),
			slog.String("error", err.Error()),
		)
		return internalError("Ошибка удаления ключа")
	}

	// Инвалидация кэша: уже выданные запросы ключ не переживёт TTL
	s.cache.Delete(keyID)

	middleware.OperationsTotal.WithLabelValues("whitelist_remove", "success").Inc()
	s.logger.Info("Ключ удалён из whitelist", slog.String("key_id", keyID))

	return nil
}

// List возвращает все зарегистрированные ключи.
func (s *KeyService) List(ctx context.Context) ([]*model.Key, *Error) {
	keys, err := s.keys.List(ctx)
	if err != nil {
		s.logger.Error("Ошибка получения списка ключей", slog.String("error", err.Error()))
		return nil, internalError("Ошибка получения списка ключей")
	}
	return keys, nil
}

// GetKey возвращает ключ для проверки подписи: сначала из кэша,
// при промахе — из БД с записью в кэш.
// Реализует middleware.KeyProvider.
func (s *KeyService) GetKey(ctx context.Context, keyID string) (*model.Key, error) {
	if key, ok := s.cache.Get(keyID); ok {
		return key, nil
	}

	key, err := s.keys.GetByID(ctx, keyID)
	if err != nil {
		return nil, err
	}

	s.cache.Set(keyID, key)
	return key, nil
}

// Bootstrap регистрирует начальный административный ключ из конфигурации,
// если whitelist ещё не содержит ни одного админ-ключа.
// Без этого шага новая инсталляция не может выполнить ни одну
// административную операцию.
func (s *KeyService) Bootstrap(ctx context.Context, cfg *config.Config) error {
	if !cfg.HasInitialAdminKey() {
		s.logger.Debug("Bootstrap админ-ключа не задан в конфигурации")
		return nil
	}

	admins, err := s.keys.ListAdmins(ctx)
	if err != nil {
		return fmt.Errorf("ошибка проверки существующих админ-ключей: %w", err)
	}
	if len(admins) > 0 {
		s.logger.Debug("Bootstrap пропущен: админ-ключи уже существуют",
			slog.Int("count", len(admins)),
		)
		return nil
	}

	if _, err := auth.ParsePublicKeyPEM(cfg.InitialAdminPublicKey); err != nil {
		return fmt.Errorf("bootstrap-ключ не является валидным Ed25519 PEM: %w", err)
	}

	key := &model.Key{
		KeyID:        cfg.InitialAdminKeyID,
		PublicKeyPEM: cfg.InitialAdminPublicKey,
		IsAdmin:      true,
	}
	if err := s.keys.Create(ctx, key); err != nil {
		// Конкурентный старт нескольких реплик: ключ уже создан соседом
		if errors.Is(err, repository.ErrConflict) {
			s.logger.Info("Bootstrap пропущен: ключ уже зарегистрирован",
				slog.String("key_id", cfg.InitialAdminKeyID),
			)
			return nil
		}
		return fmt.Errorf("ошибка регистрации bootstrap-ключа: %w", err)
	}

	s.logger.Info("Начальный административный ключ зарегистрирован",
		slog.String("key_id", cfg.InitialAdminKeyID),
	)
	return nil
}
