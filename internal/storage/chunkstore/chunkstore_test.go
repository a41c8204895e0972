package chunkstore

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/bigkaa/vidstore/internal/storage/blobstore"
)

// TestWriteChunk проверяет запись части на диск.
func TestWriteChunk(t *testing.T) {
	cs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания ChunkStore: %v", err)
	}

	content := []byte("chunk data")
	size, err := cs.WriteChunk("upl-1", 1, bytes.NewReader(content))
	if err != nil {
		t.Fatalf("ошибка записи части: %v", err)
	}

	if size != int64(len(content)) {
		t.Errorf("размер: ожидалось %d, получено %d", len(content), size)
	}
	if !cs.PartExists("upl-1", 1) {
		t.Error("part-файл должен существовать")
	}

	data, err := os.ReadFile(cs.PartPath("upl-1", 1))
	if err != nil {
		t.Fatalf("ошибка чтения part-файла: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("содержимое part-файла не совпадает")
	}
}

// TestWriteChunk_Rewrite проверяет идемпотентность повторной записи части.
func TestWriteChunk_Rewrite(t *testing.T) {
	cs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания ChunkStore: %v", err)
	}

	if _, err := cs.WriteChunk("upl-1", 2, bytes.NewReader([]byte("first"))); err != nil {
		t.Fatalf("ошибка записи части: %v", err)
	}
	if _, err := cs.WriteChunk("upl-1", 2, bytes.NewReader([]byte("second"))); err != nil {
		t.Fatalf("ошибка повторной записи части: %v", err)
	}

	data, err := os.ReadFile(cs.PartPath("upl-1", 2))
	if err != nil {
		t.Fatalf("ошибка чтения part-файла: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("ожидалось содержимое повторной записи, получено %q", data)
	}
}

// TestAssemble проверяет сборку файла из частей в порядке номеров,
// независимо от порядка их записи.
func TestAssemble(t *testing.T) {
	cs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания ChunkStore: %v", err)
	}
	bs, err := blobstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания BlobStore: %v", err)
	}

	// Части записываются не по порядку
	parts := map[int]string{3: "CCC", 1: "AAA", 2: "BBB"}
	for n, data := range parts {
		if _, err := cs.WriteChunk("upl-asm", n, strings.NewReader(data)); err != nil {
			t.Fatalf("ошибка записи части %d: %v", n, err)
		}
	}

	storageName := blobstore.GenerateStorageName("movie.mp4")
	result, err := cs.Assemble(bs, "upl-asm", 3, storageName)
	if err != nil {
		t.Fatalf("ошибка сборки: %v", err)
	}
	if result.StorageName != storageName {
		t.Errorf("файл должен собираться под назначенным именем: %s != %s",
			result.StorageName, storageName)
	}

	data, err := os.ReadFile(result.FullPath)
	if err != nil {
		t.Fatalf("ошибка чтения собранного файла: %v", err)
	}
	if string(data) != "AAABBBCCC" {
		t.Errorf("части должны собираться по номерам: получено %q", data)
	}
	if result.Size != 9 {
		t.Errorf("размер: ожидалось 9, получено %d", result.Size)
	}

	// Part-файлы остаются до явного удаления
	if !cs.PartExists("upl-asm", 1) {
		t.Error("part-файлы не должны удаляться при сборке")
	}
}

// TestAssemble_MissingPart проверяет ошибку сборки при отсутствии части.
func TestAssemble_MissingPart(t *testing.T) {
	cs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания ChunkStore: %v", err)
	}
	bs, err := blobstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания BlobStore: %v", err)
	}

	if _, err := cs.WriteChunk("upl-gap", 1, strings.NewReader("AAA")); err != nil {
		t.Fatalf("ошибка записи части: %v", err)
	}
	// Часть 2 отсутствует

	if _, err := cs.Assemble(bs, "upl-gap", 2, blobstore.GenerateStorageName("movie.mp4")); err == nil {
		t.Fatal("ожидалась ошибка сборки при отсутствии части")
	}
}

// TestDeleteParts проверяет удаление part-файлов, включая идемпотентность.
func TestDeleteParts(t *testing.T) {
	cs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания ChunkStore: %v", err)
	}

	for n := 1; n <= 3; n++ {
		if _, err := cs.WriteChunk("upl-del", n, strings.NewReader("x")); err != nil {
			t.Fatalf("ошибка записи части %d: %v", n, err)
		}
	}

	if err := cs.DeleteParts("upl-del", 3); err != nil {
		t.Fatalf("ошибка удаления частей: %v", err)
	}
	for n := 1; n <= 3; n++ {
		if cs.PartExists("upl-del", n) {
			t.Errorf("часть %d должна быть удалена", n)
		}
	}

	// Повторное удаление — не ошибка
	if err := cs.DeleteParts("upl-del", 3); err != nil {
		t.Errorf("повторное удаление не должно быть ошибкой: %v", err)
	}
}

// TestPartPath проверяет формат имени part-файла.
func TestPartPath(t *testing.T) {
	cs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания ChunkStore: %v", err)
	}

	path := cs.PartPath("abc-123", 7)
	if !strings.HasSuffix(path, "abc-123_7.part") {
		t.Errorf("неверный формат имени part-файла: %s", path)
	}
}
