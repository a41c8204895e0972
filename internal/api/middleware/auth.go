// auth.go — middleware аутентификации по detached-подписи Ed25519.
// Каждый подписанный запрос несёт три заголовка: key-id, signature (base64),
// message (base64). Middleware находит публичный ключ в whitelist, проверяет
// подпись и помещает ключ и подписанное сообщение в контекст запроса.
// Соответствие сообщения параметрам запроса проверяют handlers.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/vidstore/internal/api/errors"
	"github.com/bigkaa/vidstore/internal/auth"
	"github.com/bigkaa/vidstore/internal/domain/model"
	"github.com/bigkaa/vidstore/internal/repository"
)

// Заголовки подписанного запроса.
const (
	HeaderKeyID     = "key-id"
	HeaderSignature = "signature"
	HeaderMessage   = "message"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// contextKeyKey — проверенный ключ whitelist в контексте запроса.
	contextKeyKey contextKey = "auth_key"
	// contextKeyMessage — декодированное подписанное сообщение.
	contextKeyMessage contextKey = "auth_message"
)

// KeyProvider — источник публичных ключей whitelist.
// Реализуется сервисом ключей (repo + LRU-кэш).
type KeyProvider interface {
	// GetKey возвращает ключ по идентификатору.
	// repository.ErrNotFound, если ключ не зарегистрирован.
	GetKey(ctx context.Context, keyID string) (*model.Key, error)
}

// SignatureAuth — middleware проверки Ed25519-подписей.
type SignatureAuth struct {
	keys   KeyProvider
	logger *slog.Logger
}

// NewSignatureAuth создаёт middleware проверки подписей.
func NewSignatureAuth(keys KeyProvider, logger *slog.Logger) *SignatureAuth {
	return &SignatureAuth{
		keys:   keys,
		logger: logger.With(slog.String("component", "signature_auth")),
	}
}

// Middleware возвращает HTTP middleware, требующий валидную подпись.
// Порядок проверок: наличие заголовков → поиск ключа → декодирование
// base64 → криптографическая проверка. Ошибки кодирования (BAD_ENCODING)
// отделены от ошибок проверки подписи (INVALID_SIGNATURE).
func (sa *SignatureAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			keyID := r.Header.Get(HeaderKeyID)
			sigB64 := r.Header.Get(HeaderSignature)
			msgB64 := r.Header.Get(HeaderMessage)

			if keyID == "" || sigB64 == "" || msgB64 == "" {
				AuthFailuresTotal.WithLabelValues("missing_header").Inc()
				apierrors.Unauthorized(w, apierrors.CodeValidationError,
					"Требуются заголовки key-id, signature и message")
				return
			}

			key, err := sa.keys.GetKey(r.Context(), keyID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					AuthFailuresTotal.WithLabelValues("unknown_key").Inc()
					apierrors.Unauthorized(w, apierrors.CodeKeyNotFound,
						"Ключ не зарегистрирован в whitelist")
					return
				}
				sa.logger.Error("Ошибка получения ключа",
					slog.String("key_id", keyID),
					slog.String("error", err.Error()),
				)
				apierrors.InternalError(w, "Ошибка проверки ключа")
				return
			}

			message, err := auth.VerifyEncoded(key.PublicKeyPEM, sigB64, msgB64)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrBadEncoding):
					AuthFailuresTotal.WithLabelValues("bad_encoding").Inc()
					apierrors.Unauthorized(w, apierrors.CodeBadEncoding,
						"Некорректное base64- или PEM-кодирование")
				case errors.Is(err, auth.ErrInvalidSignature):
					AuthFailuresTotal.WithLabelValues("invalid_signature").Inc()
					sa.logger.Warn("Невалидная подпись",
						slog.String("key_id", keyID),
						slog.String("remote_addr", r.RemoteAddr),
					)
					apierrors.Unauthorized(w, apierrors.CodeInvalidSignature,
						"Подпись не прошла проверку")
				default:
					sa.logger.Error("Ошибка проверки подписи",
						slog.String("key_id", keyID),
						slog.String("error", err.Error()),
					)
					apierrors.InternalError(w, "Ошибка проверки подписи")
				}
				return
			}

			ctx := context.WithValue(r.Context(), contextKeyKey, key)
			ctx = context.WithValue(ctx, contextKeyMessage, message)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin возвращает middleware, пропускающий только ключи с
// административным флагом. Должен использоваться ПОСЛЕ Middleware().
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := KeyFromContext(r.Context())
			if key == nil {
				apierrors.Unauthorized(w, apierrors.CodeValidationError,
					"Отсутствует ключ в контексте")
				return
			}
			if !key.IsAdmin {
				AuthFailuresTotal.WithLabelValues("not_admin").Inc()
				apierrors.Unauthorized(w, apierrors.CodeNotAdmin,
					"Операция доступна только административным ключам")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// --- Context helpers ---

// KeyFromContext извлекает проверенный ключ из контекста запроса.
// Возвращает nil, если запрос не проходил через Middleware().
func KeyFromContext(ctx context.Context) *model.Key {
	key, _ := ctx.Value(contextKeyKey).(*model.Key)
	return key
}

// KeyIDFromContext извлекает идентификатор проверенного ключа.
// Возвращает пустую строку, если ключ не найден.
func KeyIDFromContext(ctx context.Context) string {
	key := KeyFromContext(ctx)
	if key == nil {
		return ""
	}
	return key.KeyID
}

// MessageFromContext извлекает декодированное подписанное сообщение.
// Возвращает nil, если запрос не проходил через Middleware().
func MessageFromContext(ctx context.Context) []byte {
	msg, _ := ctx.Value(contextKeyMessage).([]byte)
	return msg
}
