// Пакет chunkstore — хранение частей (chunks) незавершённых загрузок
// на диске и сборка готового файла в порядке номеров частей.
package chunkstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bigkaa/vidstore/internal/storage/blobstore"
)

// ChunkStore — управление part-файлами незавершённых загрузок.
type ChunkStore struct {
	// chunksDir — директория хранения частей (VS_CHUNKS_DIR)
	chunksDir string
}

// New создаёт новый ChunkStore. Проверяет и создаёт директорию
// если она не существует.
func New(chunksDir string) (*ChunkStore, error) {
	if err := os.MkdirAll(chunksDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию частей %s: %w", chunksDir, err)
	}

	return &ChunkStore{chunksDir: chunksDir}, nil
}

// WriteChunk записывает часть на диск. Повторная запись той же части
// безопасна: temp файл → fsync → atomic rename перезаписывает прежнюю.
// Возвращает размер записанных данных.
func (cs *ChunkStore) WriteChunk(uploadID string, chunkNumber int, reader io.Reader) (int64, error) {
	fullPath := cs.PartPath(uploadID, chunkNumber)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания временного файла части: %w", err)
	}

	size, err := io.Copy(f, reader)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка записи части: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка fsync части: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка закрытия файла части: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка атомарного переименования части: %w", err)
	}

	return size, nil
}

// PartPath возвращает абсолютный путь part-файла.
// Формат имени: {uploadID}_{chunkNumber}.part
func (cs *ChunkStore) PartPath(uploadID string, chunkNumber int) string {
	return filepath.Join(cs.chunksDir, fmt.Sprintf("%s_%d.part", uploadID, chunkNumber))
}

// PartExists проверяет существование part-файла на диске.
func (cs *ChunkStore) PartExists(uploadID string, chunkNumber int) bool {
	_, err := os.Stat(cs.PartPath(uploadID, chunkNumber))
	return err == nil
}

// Assemble собирает части 1..totalChunks в готовый файл через blobstore
// под именем storageName, назначенным сессии при создании.
// Части читаются последовательно в порядке номеров, итоговый файл
// появляется атомарно. Part-файлы НЕ удаляются: вызывающий код удаляет
// их после фиксации результата.
func (cs *ChunkStore) Assemble(bs *blobstore.BlobStore, uploadID string, totalChunks int, storageName string) (*blobstore.SaveResult, error) {
	// Перед сборкой убеждаемся, что все части на месте
	for n := 1; n <= totalChunks; n++ {
		if !cs.PartExists(uploadID, n) {
			return nil, fmt.Errorf("часть %d загрузки %s отсутствует на диске", n, uploadID)
		}
	}

	reader := &partsReader{cs: cs, uploadID: uploadID, totalChunks: totalChunks}
	defer reader.Close()

	result, err := bs.SaveFileAs(reader, storageName)
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки загрузки %s: %w", uploadID, err)
	}

	return result, nil
}

// DeleteParts удаляет все part-файлы загрузки.
// Отсутствующие части не считаются ошибкой.
func (cs *ChunkStore) DeleteParts(uploadID string, totalChunks int) error {
	var firstErr error
	for n := 1; n <= totalChunks; n++ {
		err := os.Remove(cs.PartPath(uploadID, n))
		if err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = fmt.Errorf("ошибка удаления части %d загрузки %s: %w", n, uploadID, err)
		}
	}
	return firstErr
}

// SweepOrphans удаляет part- и tmp-файлы, не менявшиеся дольше age:
// остатки сессий, чьи записи в реестре уже исчезли (сбой между
// финализацией и удалением частей). Возвращает количество удалённых.
func (cs *ChunkStore) SweepOrphans(age time.Duration) (int, error) {
	entries, err := os.ReadDir(cs.chunksDir)
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения директории частей: %w", err)
	}

	cutoff := time.Now().Add(-age)
	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".part") && !strings.HasSuffix(name, ".tmp") {
			continue
		}

		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(cs.chunksDir, name)); err != nil && !os.IsNotExist(err) {
			return deleted, fmt.Errorf("ошибка удаления осиротевшего файла %s: %w", name, err)
		}
		deleted++
	}
	return deleted, nil
}

// ChunksDir возвращает путь к директории частей.
func (cs *ChunkStore) ChunksDir() string {
	return cs.chunksDir
}

// partsReader — последовательное чтение part-файлов 1..totalChunks.
// Открывает не более одного файла одновременно.
type partsReader struct {
	cs          *ChunkStore
	uploadID    string
	totalChunks int

	next    int // номер следующей части для открытия
	current *os.File
}

func (r *partsReader) Read(p []byte) (int, error) {
	for {
		if r.current == nil {
			if r.next >= r.totalChunks {
				return 0, io.EOF
			}
			r.next++
			f, err := os.Open(r.cs.PartPath(r.uploadID, r.next))
			if err != nil {
				return 0, fmt.Errorf("ошибка открытия части %d: %w", r.next, err)
			}
			r.current = f
		}

		n, err := r.current.Read(p)
		if err == io.EOF {
			r.current.Close()
			r.current = nil
			if n > 0 {
				return n, nil
			}
			continue // переходим к следующей части
		}
		return n, err
	}
}

func (r *partsReader) Close() error {
	if r.current != nil {
		err := r.current.Close()
		r.current = nil
		return err
	}
	return nil
}
