// Пакет model — доменные модели видеосервиса.
// Key — публичный ключ из whitelist, ChunkRecord — запись chunk-сессии
// загрузки, Video — метаданные загруженного видео.
package model

import (
	"time"
)

// Key — зарегистрированный публичный ключ Ed25519.
// Материал ключа неизменяем: замена выполняется только через
// удаление и повторное добавление, update-пути нет.
type Key struct {
	// KeyID — уникальный идентификатор ключа
	KeyID string `json:"key_id"`

	// PublicKeyPEM — публичный ключ в PEM-формате (SubjectPublicKeyInfo)
	PublicKeyPEM string `json:"public_key_pem"`

	// IsAdmin — признак административного ключа
	IsAdmin bool `json:"is_admin"`

	// CreatedBy — идентификатор ключа, зарегистрировавшего этот ключ.
	// nil для ключей, созданных при bootstrap.
	CreatedBy *string `json:"created_by,omitempty"`

	// CreatedAt — дата и время регистрации (UTC)
	CreatedAt time.Time `json:"created_at"`

	// Domain — домен сервера, на котором зарегистрирован ключ
	Domain string `json:"domain"`
}
