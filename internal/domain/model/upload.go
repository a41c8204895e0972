package model

import (
	"time"
)

// ChunkRecord — запись одного ожидаемого chunk-а в рамках сессии загрузки.
// Все записи одного UploadID разделяют Filename, TotalChunks и UploaderKeyID.
// Сессия считается завершённой, когда Received == true у всех записей;
// после успешной сборки все записи сессии удаляются.
type ChunkRecord struct {
	// UploadID — идентификатор сессии загрузки (UUID v4)
	UploadID string `json:"upload_id"`

	// ChunkNumber — номер chunk-а, 1..TotalChunks
	ChunkNumber int `json:"chunk_number"`

	// TotalChunks — общее количество chunk-ов сессии
	TotalChunks int `json:"total_chunks"`

	// Filename — имя итогового файла на диске.
	// Формат: {name}_{timestamp}_{uuid}.{ext}, генерируется при initiate.
	Filename string `json:"filename"`

	// Received — получен ли chunk
	Received bool `json:"received"`

	// UploaderKeyID — ключ, инициировавший сессию.
	// Chunk-и и complete от других ключей отклоняются.
	UploaderKeyID string `json:"uploader_key_id"`

	// CreatedAt — время создания сессии (UTC)
	CreatedAt time.Time `json:"created_at"`
}
