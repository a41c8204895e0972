package model

import (
	"time"
)

// Video — метаданные загруженного видео. Создаётся атомарно при
// завершении сборки chunk-ов и после этого не изменяется.
type Video struct {
	// Filename — имя файла на диске (относительно VS_DATA_DIR)
	Filename string `json:"filename"`

	// UploadDate — дата и время завершения загрузки (UTC)
	UploadDate time.Time `json:"upload_date"`

	// FileSize — размер собранного файла в байтах
	FileSize int64 `json:"file_size"`

	// ShareToken — непредсказуемый токен доступа (UUID v4).
	// Единственный credential для скачивания видео.
	ShareToken string `json:"share_token"`

	// Transcoded — зарезервировано, всегда false
	Transcoded bool `json:"transcoded"`

	// Password — зарезервировано, не используется
	Password *string `json:"password,omitempty"`

	// UploaderKeyID — ключ, загрузивший видео
	UploaderKeyID string `json:"uploader_key_id"`
}
