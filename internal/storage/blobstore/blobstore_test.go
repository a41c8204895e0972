package blobstore

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestNew_CreatesDirectory проверяет создание директории данных.
func TestNew_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "videos")

	bs, err := New(dir)
	if err != nil {
		t.Fatalf("ошибка создания BlobStore: %v", err)
	}

	if bs.DataDir() != dir {
		t.Errorf("ожидался путь %s, получен %s", dir, bs.DataDir())
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("директория не создана: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("путь не является директорией")
	}
}

// TestSaveFile проверяет сохранение видеофайла.
func TestSaveFile(t *testing.T) {
	bs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания BlobStore: %v", err)
	}

	content := []byte("video bytes — тестовые данные вместо настоящего mp4")
	result, err := bs.SaveFile(bytes.NewReader(content), "vacation.mp4")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	if result.Size != int64(len(content)) {
		t.Errorf("размер: ожидалось %d, получено %d", len(content), result.Size)
	}

	// Проверяем, что файл существует на диске
	if _, err := os.Stat(result.FullPath); os.IsNotExist(err) {
		t.Error("файл не найден на диске")
	}

	// Проверяем формат имени файла
	if !strings.Contains(result.StorageName, "vacation") {
		t.Errorf("имя файла должно содержать оригинальное имя: %s", result.StorageName)
	}
	if !strings.HasSuffix(result.StorageName, ".mp4") {
		t.Errorf("имя файла должно сохранять расширение: %s", result.StorageName)
	}

	// Проверяем содержимое
	data, err := os.ReadFile(result.FullPath)
	if err != nil {
		t.Fatalf("ошибка чтения файла: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("содержимое файла не совпадает")
	}
}

// TestSaveFile_NoTmpFile проверяет, что temp файл удалён после сохранения.
func TestSaveFile_NoTmpFile(t *testing.T) {
	bs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания BlobStore: %v", err)
	}

	result, err := bs.SaveFile(bytes.NewReader([]byte("data")), "clip.mp4")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	tmpPath := result.FullPath + ".tmp"
	if _, err := os.Stat(tmpPath); !os.IsNotExist(err) {
		t.Error("временный файл не должен существовать")
	}
}

// TestSaveFile_UniqueNames проверяет, что два сохранения одного имени
// дают разные имена на диске.
func TestSaveFile_UniqueNames(t *testing.T) {
	bs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания BlobStore: %v", err)
	}

	r1, err := bs.SaveFile(bytes.NewReader([]byte("first")), "movie.mp4")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}
	r2, err := bs.SaveFile(bytes.NewReader([]byte("second")), "movie.mp4")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	if r1.StorageName == r2.StorageName {
		t.Errorf("имена должны быть уникальными: %s", r1.StorageName)
	}
}

// TestSaveFileAs проверяет сохранение под заранее назначенным именем.
func TestSaveFileAs(t *testing.T) {
	bs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания BlobStore: %v", err)
	}

	storageName := GenerateStorageName("assigned.mp4")
	content := []byte("content under assigned name")
	result, err := bs.SaveFileAs(bytes.NewReader(content), storageName)
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	if result.StorageName != storageName {
		t.Errorf("имя на диске должно совпадать с назначенным: %s != %s",
			result.StorageName, storageName)
	}

	data, err := os.ReadFile(bs.FullPath(storageName))
	if err != nil {
		t.Fatalf("ошибка чтения файла: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("содержимое файла не совпадает")
	}
}

// TestReadFile проверяет чтение файла.
func TestReadFile(t *testing.T) {
	bs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания BlobStore: %v", err)
	}

	content := []byte("read test data")
	result, err := bs.SaveFile(bytes.NewReader(content), "read-test.webm")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	f, err := bs.ReadFile(result.StorageName)
	if err != nil {
		t.Fatalf("ошибка открытия для чтения: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}

	if !bytes.Equal(data, content) {
		t.Error("прочитанные данные не совпадают с записанными")
	}
}

// TestReadFile_NotFound проверяет ошибку при чтении несуществующего файла.
func TestReadFile_NotFound(t *testing.T) {
	bs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания BlobStore: %v", err)
	}

	if _, err := bs.ReadFile("nonexistent.mp4"); err == nil {
		t.Error("ожидалась ошибка для несуществующего файла")
	}
}

// TestDeleteFile проверяет удаление файла, включая идемпотентность.
func TestDeleteFile(t *testing.T) {
	bs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания BlobStore: %v", err)
	}

	result, err := bs.SaveFile(bytes.NewReader([]byte("delete me")), "delete.mp4")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	if err := bs.DeleteFile(result.StorageName); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}
	if bs.FileExists(result.StorageName) {
		t.Error("файл должен быть удалён")
	}

	// Повторное удаление — не ошибка
	if err := bs.DeleteFile(result.StorageName); err != nil {
		t.Errorf("удаление несуществующего файла не должно быть ошибкой: %v", err)
	}
}

// TestFileSize проверяет получение размера файла.
func TestFileSize(t *testing.T) {
	bs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания BlobStore: %v", err)
	}

	content := []byte("size check data - 123")
	result, err := bs.SaveFile(bytes.NewReader(content), "size.mp4")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	size, err := bs.FileSize(result.StorageName)
	if err != nil {
		t.Fatalf("ошибка получения размера: %v", err)
	}
	if size != int64(len(content)) {
		t.Errorf("размер: ожидалось %d, получено %d", len(content), size)
	}
}

// TestGenerateStorageName проверяет генерацию имени файла.
func TestGenerateStorageName(t *testing.T) {
	name := GenerateStorageName("My Vacation Video.mp4")

	if !strings.HasSuffix(name, ".mp4") {
		t.Errorf("должно сохраняться расширение .mp4: %s", name)
	}
	if strings.Contains(name, " ") {
		t.Errorf("не должно содержать пробелов: %s", name)
	}
	// Попытка path traversal в имени обрезается до базового имени
	traversal := GenerateStorageName("../../etc/passwd")
	if strings.Contains(traversal, "/") || strings.Contains(traversal, "..") {
		t.Errorf("имя не должно содержать элементов пути: %s", traversal)
	}
}

// TestSanitize проверяет очистку строк для имени файла.
func TestSanitize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello", "hello"},
		{"hello world", "helloworld"},
		{"test-file_01", "test-file_01"},
		{"file@#$%", "file"},
		{"", "video"}, // пустая строка → "video"
		{"тест", "тест"},
	}

	for _, tt := range tests {
		result := sanitize(tt.input)
		if result != tt.expected {
			t.Errorf("sanitize(%q): ожидалось %q, получено %q", tt.input, tt.expected, result)
		}
	}
}

// TestFullPath проверяет формирование полного пути.
func TestFullPath(t *testing.T) {
	bs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания BlobStore: %v", err)
	}

	fullPath := bs.FullPath("test.mp4")
	expected := filepath.Join(bs.DataDir(), "test.mp4")

	if fullPath != expected {
		t.Errorf("ожидалось %s, получено %s", expected, fullPath)
	}
}
