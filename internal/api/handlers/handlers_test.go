package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/vidstore/internal/config"
	"github.com/bigkaa/vidstore/internal/domain/model"
	"github.com/bigkaa/vidstore/internal/repository"
	"github.com/bigkaa/vidstore/internal/service"
	"github.com/bigkaa/vidstore/internal/storage/blobstore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubVideoRepo — каталог видео в памяти.
type stubVideoRepo struct {
	videos map[string]*model.Video
}

func (r *stubVideoRepo) GetByToken(_ context.Context, token string) (*model.Video, error) {
	v, ok := r.videos[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return v, nil
}

func (r *stubVideoRepo) Create(_ context.Context, v *model.Video) error {
	r.videos[v.ShareToken] = v
	return nil
}

func (r *stubVideoRepo) Stats(_ context.Context) (int64, int64, error) {
	var total int64
	for _, v := range r.videos {
		total += v.FileSize
	}
	return int64(len(r.videos)), total, nil
}

// stubChecker — проверка готовности с фиксированным результатом.
type stubChecker struct {
	status  string
	message string
}

func (c *stubChecker) CheckReady() (string, string) {
	return c.status, c.message
}

// --- HealthHandler ---

func TestHealthLive(t *testing.T) {
	h := NewHealthHandler(t.TempDir(), t.TempDir(), nil)

	rec := httptest.NewRecorder()
	h.HealthLive(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, хотели 200", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("разбор ответа: %v", err)
	}
	if body["status"] != "ok" || body["service"] != "vidstore" {
		t.Errorf("неожиданное тело: %v", body)
	}
}

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name       string
		db         ReadinessChecker
		wantStatus int
	}{
		{
			name:       "всё готово",
			db:         &stubChecker{status: "ok"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "БД недоступна",
			db:         &stubChecker{status: "fail", message: "connection refused"},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(t.TempDir(), t.TempDir(), tt.db)

			rec := httptest.NewRecorder()
			h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("статус = %d, хотели %d; тело: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestHealthReady_UnwritableDir(t *testing.T) {
	h := NewHealthHandler("/proc/нет-такой-директории", t.TempDir(), &stubChecker{status: "ok"})

	rec := httptest.NewRecorder()
	h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("статус = %d, хотели 503", rec.Code)
	}
}

// --- VideoHandler ---

func TestVideoGet(t *testing.T) {
	blobs, err := blobstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}

	saved, err := blobs.SaveFile(strings.NewReader("video-content"), "clip.mp4")
	if err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	repo := &stubVideoRepo{videos: map[string]*model.Video{
		"token-1": {
			Filename:      saved.StorageName,
			FileSize:      saved.Size,
			ShareToken:    "token-1",
			UploaderKeyID: "alice",
		},
	}}
	playback := service.NewPlaybackService(repo, blobs, testLogger())
	h := NewVideoHandler(playback, testLogger())

	router := chi.NewRouter()
	router.Get("/videos/{share_token}", h.Get)

	// Успешная выдача
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/videos/token-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, хотели 200", rec.Code)
	}
	if rec.Body.String() != "video-content" {
		t.Errorf("тело = %q", rec.Body.String())
	}

	// Range-запрос обслуживается http.ServeFile
	req := httptest.NewRequest(http.MethodGet, "/videos/token-1", nil)
	req.Header.Set("Range", "bytes=6-12")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("Range: статус = %d, хотели 206", rec.Code)
	}
	if rec.Body.String() != "content" {
		t.Errorf("Range: тело = %q", rec.Body.String())
	}

	// Неизвестный токен
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/videos/чужой-токен", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("неизвестный токен: статус = %d, хотели 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "VIDEO_NOT_FOUND") {
		t.Errorf("неизвестный токен: тело = %s", rec.Body.String())
	}
}

// --- SystemHandler ---

func TestSystemInfo(t *testing.T) {
	blobs, err := blobstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}

	repo := &stubVideoRepo{videos: map[string]*model.Video{
		"t1": {Filename: "a.mp4", FileSize: 100, ShareToken: "t1"},
		"t2": {Filename: "b.mp4", FileSize: 250, ShareToken: "t2"},
	}}
	playback := service.NewPlaybackService(repo, blobs, testLogger())

	cfg := &config.Config{Domain: "video.example.com", MaxFileSize: 1024}
	h := NewSystemHandler(playback, blobs, cfg, testLogger())

	rec := httptest.NewRecorder()
	h.Info(rec, httptest.NewRequest(http.MethodGet, "/api/v1/info", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, хотели 200", rec.Code)
	}

	var body struct {
		Service string `json:"service"`
		Domain  string `json:"domain"`
		Videos  struct {
			Count      int64 `json:"count"`
			TotalBytes int64 `json:"total_bytes"`
		} `json:"videos"`
		Capacity struct {
			TotalBytes int64 `json:"total_bytes"`
		} `json:"capacity"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("разбор ответа: %v", err)
	}
	if body.Service != "vidstore" || body.Domain != "video.example.com" {
		t.Errorf("неожиданные поля: %+v", body)
	}
	if body.Videos.Count != 2 || body.Videos.TotalBytes != 350 {
		t.Errorf("videos = %+v, хотели count=2 total=350", body.Videos)
	}
	if body.Capacity.TotalBytes <= 0 {
		t.Errorf("capacity.total_bytes = %d, хотели > 0", body.Capacity.TotalBytes)
	}
}
