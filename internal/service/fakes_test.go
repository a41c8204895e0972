package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/vidstore/internal/domain/model"
	"github.com/bigkaa/vidstore/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- In-memory реализации репозиториев для тестов сервисного слоя ---

// fakeKeyRepo — in-memory KeyRepository.
type fakeKeyRepo struct {
	mu   sync.Mutex
	keys map[string]*model.Key

	failWith error // если задано — все методы возвращают эту ошибку
}

func newFakeKeyRepo() *fakeKeyRepo {
	return &fakeKeyRepo{keys: make(map[string]*model.Key)}
}

func (f *fakeKeyRepo) Create(_ context.Context, key *model.Key) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.keys[key.KeyID]; ok {
		return fmt.Errorf("%w: ключ %s уже зарегистрирован", repository.ErrConflict, key.KeyID)
	}
	key.CreatedAt = time.Now().UTC()
	f.keys[key.KeyID] = key
	return nil
}

func (f *fakeKeyRepo) GetByID(_ context.Context, keyID string) (*model.Key, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	key, ok := f.keys[keyID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return key, nil
}

func (f *fakeKeyRepo) Delete(_ context.Context, keyID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.keys[keyID]; !ok {
		return repository.ErrNotFound
	}
	delete(f.keys, keyID)
	return nil
}

func (f *fakeKeyRepo) List(_ context.Context) ([]*model.Key, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []*model.Key
	for _, k := range f.keys {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].KeyID < out[j].KeyID })
	return out, nil
}

func (f *fakeKeyRepo) ListAdmins(_ context.Context) ([]*model.Key, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []*model.Key
	for _, k := range f.keys {
		if k.IsAdmin {
			out = append(out, k)
		}
	}
	return out, nil
}

// fakeVideoRepo — in-memory VideoRepository.
type fakeVideoRepo struct {
	mu     sync.Mutex
	videos map[string]*model.Video // share_token → video
}

func newFakeVideoRepo() *fakeVideoRepo {
	return &fakeVideoRepo{videos: make(map[string]*model.Video)}
}

func (f *fakeVideoRepo) GetByToken(_ context.Context, shareToken string) (*model.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.videos[shareToken]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return v, nil
}

func (f *fakeVideoRepo) Create(_ context.Context, video *model.Video) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.videos[video.ShareToken]; ok {
		return repository.ErrConflict
	}
	video.UploadDate = time.Now().UTC()
	f.videos[video.ShareToken] = video
	return nil
}

func (f *fakeVideoRepo) Stats(_ context.Context) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, v := range f.videos {
		total += v.FileSize
	}
	return int64(len(f.videos)), total, nil
}

// fakeSessionRepo — in-memory UploadSessionRepository.
// Finalize пишет видео в связанный fakeVideoRepo, имитируя транзакцию.
type fakeSessionRepo struct {
	mu      sync.Mutex
	records map[string][]*model.ChunkRecord // upload_id → записи
	videos  *fakeVideoRepo

	finalizeErr error // если задано — Finalize возвращает эту ошибку
	// finalizeHook вызывается в начале Finalize (для симуляции гонок)
	finalizeHook func()
}

func newFakeSessionRepo(videos *fakeVideoRepo) *fakeSessionRepo {
	return &fakeSessionRepo{
		records: make(map[string][]*model.ChunkRecord),
		videos:  videos,
	}
}

func (f *fakeSessionRepo) CreateSession(_ context.Context, uploadID, filename string, totalChunks int, uploaderKeyID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	recs := make([]*model.ChunkRecord, 0, totalChunks)
	now := time.Now().UTC()
	for n := 1; n <= totalChunks; n++ {
		recs = append(recs, &model.ChunkRecord{
			UploadID:      uploadID,
			ChunkNumber:   n,
			TotalChunks:   totalChunks,
			Filename:      filename,
			UploaderKeyID: uploaderKeyID,
			CreatedAt:     now,
		})
	}
	f.records[uploadID] = recs
	return nil
}

func (f *fakeSessionRepo) Get(_ context.Context, uploadID string, chunkNumber int) (*model.ChunkRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records[uploadID] {
		if rec.ChunkNumber == chunkNumber {
			// Возвращаем копию: реальный репозиторий отдаёт снимок строки,
			// а не указатель на внутреннее состояние.
			snapshot := *rec
			return &snapshot, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeSessionRepo) MarkReceived(_ context.Context, uploadID string, chunkNumber int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records[uploadID] {
		if rec.ChunkNumber == chunkNumber {
			rec.Received = true
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeSessionRepo) ListByUpload(_ context.Context, uploadID string) ([]*model.ChunkRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[uploadID], nil
}

func (f *fakeSessionRepo) Finalize(ctx context.Context, video *model.Video, uploadID string) error {
	if f.finalizeHook != nil {
		f.finalizeHook()
	}
	f.mu.Lock()
	if f.finalizeErr != nil {
		f.mu.Unlock()
		return f.finalizeErr
	}
	delete(f.records, uploadID)
	f.mu.Unlock()
	return f.videos.Create(ctx, video)
}

func (f *fakeSessionRepo) ListStale(_ context.Context, before time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, recs := range f.records {
		if len(recs) > 0 && recs[0].CreatedAt.Before(before) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeSessionRepo) DeleteByUpload(_ context.Context, uploadID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := int64(len(f.records[uploadID]))
	delete(f.records, uploadID)
	return n, nil
}

// setOwner подменяет владельца одной записи сессии
// (для тестов проверки владельца по каждой записи).
func (f *fakeSessionRepo) setOwner(t *testing.T, uploadID string, chunkNumber int, keyID string) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records[uploadID] {
		if rec.ChunkNumber == chunkNumber {
			rec.UploaderKeyID = keyID
			return
		}
	}
	t.Fatalf("запись %d сессии %s не найдена", chunkNumber, uploadID)
}

// setCreatedAt сдвигает время создания всех записей сессии (для тестов очистки).
func (f *fakeSessionRepo) setCreatedAt(t *testing.T, uploadID string, at time.Time) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records[uploadID] {
		rec.CreatedAt = at
	}
}
