// Пакет blobstore — операции с готовыми видеофайлами на диске.
// Обеспечивает streaming-запись по паттерну temp файл → fsync →
// atomic rename, чтение и удаление.
package blobstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BlobStore — управление видеофайлами на диске.
type BlobStore struct {
	// dataDir — корневая директория хранения видео (VS_DATA_DIR)
	dataDir string
}

// SaveResult — результат сохранения видеофайла на диск.
type SaveResult struct {
	// StorageName — имя файла в dataDir, уникальное в каталоге
	StorageName string
	// FullPath — абсолютный путь файла на диске
	FullPath string
	// Size — размер записанных данных в байтах
	Size int64
}

// New создаёт новый BlobStore. Проверяет и создаёт директорию
// если она не существует.
func New(dataDir string) (*BlobStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}

	return &BlobStore{dataDir: dataDir}, nil
}

// SaveFile записывает данные из reader на диск под свежесгенерированным
// именем. Формат имени файла: {name}_{timestamp}_{uuid}.{ext}
func (bs *BlobStore) SaveFile(reader io.Reader, originalFilename string) (*SaveResult, error) {
	return bs.SaveFileAs(reader, GenerateStorageName(originalFilename))
}

// SaveFileAs записывает данные из reader на диск под заранее назначенным
// именем storageName (выдаётся через GenerateStorageName при создании
// сессии загрузки).
//
// Паттерн: temp файл → запись → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (bs *BlobStore) SaveFileAs(reader io.Reader, storageName string) (*SaveResult, error) {
	fullPath := filepath.Join(bs.dataDir, storageName)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	size, err := io.Copy(f, reader)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	// Атомарный rename: файл становится видимым целиком или никак
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{
		StorageName: storageName,
		FullPath:    fullPath,
		Size:        size,
	}, nil
}

// ReadFile открывает видеофайл для чтения и возвращает io.ReadCloser.
// Вызывающий код обязан закрыть ReadCloser.
func (bs *BlobStore) ReadFile(storageName string) (*os.File, error) {
	fullPath := filepath.Join(bs.dataDir, storageName)

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("файл не найден: %s", storageName)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", storageName, err)
	}

	return f, nil
}

// FullPath возвращает абсолютный путь к файлу на диске.
func (bs *BlobStore) FullPath(storageName string) string {
	return filepath.Join(bs.dataDir, storageName)
}

// DeleteFile удаляет файл с диска.
// Возвращает nil если файл уже не существует.
func (bs *BlobStore) DeleteFile(storageName string) error {
	fullPath := filepath.Join(bs.dataDir, storageName)

	err := os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", storageName, err)
	}
	return nil
}

// FileExists проверяет существование файла на диске.
func (bs *BlobStore) FileExists(storageName string) bool {
	fullPath := filepath.Join(bs.dataDir, storageName)
	_, err := os.Stat(fullPath)
	return err == nil
}

// FileSize возвращает размер файла на диске.
func (bs *BlobStore) FileSize(storageName string) (int64, error) {
	fullPath := filepath.Join(bs.dataDir, storageName)
	info, err := os.Stat(fullPath)
	if err != nil {
		return 0, fmt.Errorf("ошибка получения информации о файле %s: %w", storageName, err)
	}
	return info.Size(), nil
}

// DataDir возвращает путь к директории данных.
func (bs *BlobStore) DataDir() string {
	return bs.dataDir
}

// GenerateStorageName генерирует уникальное имя файла для хранения на диске.
// Формат: {name}_{timestamp}_{uuid}.{ext}
// Пример: vacation_20260901150405_a1b2c3d4.mp4
func GenerateStorageName(originalFilename string) string {
	ext := filepath.Ext(originalFilename)
	name := strings.TrimSuffix(filepath.Base(originalFilename), ext)

	// Убираем небезопасные символы из имени
	name = sanitize(name)

	// Ограничиваем длину имени для предотвращения проблем с FS
	if len(name) > 50 {
		name = name[:50]
	}

	ts := time.Now().UTC().Format("20060102150405")
	uid := uuid.New().String()[:8] // Короткий UUID для уникальности

	if ext != "" {
		return fmt.Sprintf("%s_%s_%s%s", name, ts, uid, ext)
	}
	return fmt.Sprintf("%s_%s_%s", name, ts, uid)
}

// sanitize убирает небезопасные символы из строки для использования в имени файла.
// Оставляет только буквы, цифры, дефис и подчёркивание.
func sanitize(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' ||
			(r >= 0x0400 && r <= 0x04FF) { // Кириллица
			result.WriteRune(r)
		}
	}
	if result.Len() == 0 {
		return "video"
	}
	return result.String()
}
