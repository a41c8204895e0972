package service

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

// newCleanupEnv создаёт сервис очистки поверх общего upload-окружения.
func newCleanupEnv(t *testing.T, ttl time.Duration) (*CleanupService, *uploadEnv) {
	t.Helper()
	env := newUploadEnv(t)
	cs := NewCleanupService(env.sessions, env.chunks, ttl, time.Hour, testLogger())
	return cs, env
}

// TestCleanup_RemovesStaleSessions проверяет удаление устаревших сессий:
// part-файлы и chunk-записи исчезают, свежие сессии не затронуты.
func TestCleanup_RemovesStaleSessions(t *testing.T) {
	cs, env := newCleanupEnv(t, 24*time.Hour)

	// Устаревшая сессия с двумя доставленными частями
	staleRes, svcErr := env.svc.Initiate(context.Background(), "old.mp4", 2, "user1")
	if svcErr != nil {
		t.Fatalf("initiate: %v", svcErr)
	}
	for n := 1; n <= 2; n++ {
		if _, svcErr := env.svc.ReceiveChunk(context.Background(), staleRes.UploadID, n, strings.NewReader("x"), "user1"); svcErr != nil {
			t.Fatalf("chunk %d: %v", n, svcErr)
		}
	}
	env.sessions.setCreatedAt(t, staleRes.UploadID, time.Now().UTC().Add(-48*time.Hour))

	// Свежая сессия
	freshRes, svcErr := env.svc.Initiate(context.Background(), "new.mp4", 1, "user1")
	if svcErr != nil {
		t.Fatalf("initiate: %v", svcErr)
	}

	result := cs.RunOnce(context.Background())

	if result.SessionsDeleted != 1 {
		t.Errorf("удалено сессий: ожидалось 1, получено %d", result.SessionsDeleted)
	}
	if result.Errors != 0 {
		t.Errorf("ошибок: %d", result.Errors)
	}

	// Устаревшая сессия исчезла полностью
	recs, _ := env.sessions.ListByUpload(context.Background(), staleRes.UploadID)
	if len(recs) != 0 {
		t.Error("chunk-записи устаревшей сессии должны быть удалены")
	}
	for n := 1; n <= 2; n++ {
		if env.chunks.PartExists(staleRes.UploadID, n) {
			t.Errorf("part-файл %d должен быть удалён", n)
		}
	}

	// Свежая сессия не затронута
	recs, _ = env.sessions.ListByUpload(context.Background(), freshRes.UploadID)
	if len(recs) != 1 {
		t.Error("свежая сессия не должна быть затронута")
	}
}

// TestCleanup_EmptyRegistry проверяет запуск без устаревших сессий.
func TestCleanup_EmptyRegistry(t *testing.T) {
	cs, _ := newCleanupEnv(t, time.Hour)

	result := cs.RunOnce(context.Background())
	if result.SessionsDeleted != 0 || result.Errors != 0 {
		t.Errorf("ожидался пустой результат: %+v", result)
	}
}

// TestCleanup_SweepsOrphanParts проверяет удаление part-файлов,
// оставшихся без chunk-записей в реестре.
func TestCleanup_SweepsOrphanParts(t *testing.T) {
	cs, env := newCleanupEnv(t, time.Hour)

	// Осиротевший part-файл: записи в реестре нет, файл старше TTL
	if _, err := env.chunks.WriteChunk("осиротевшая-сессия", 1, strings.NewReader("x")); err != nil {
		t.Fatalf("запись части: %v", err)
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(env.chunks.PartPath("осиротевшая-сессия", 1), old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	// Свежая часть живой сессии
	res, svcErr := env.svc.Initiate(context.Background(), "live.mp4", 1, "user1")
	if svcErr != nil {
		t.Fatalf("initiate: %v", svcErr)
	}
	if _, svcErr := env.svc.ReceiveChunk(context.Background(), res.UploadID, 1, strings.NewReader("y"), "user1"); svcErr != nil {
		t.Fatalf("chunk: %v", svcErr)
	}

	result := cs.RunOnce(context.Background())

	if result.OrphanPartsDeleted != 1 {
		t.Errorf("удалено осиротевших файлов: ожидалось 1, получено %d", result.OrphanPartsDeleted)
	}
	if env.chunks.PartExists("осиротевшая-сессия", 1) {
		t.Error("осиротевший part-файл должен быть удалён")
	}
	if !env.chunks.PartExists(res.UploadID, 1) {
		t.Error("часть живой сессии не должна быть затронута")
	}
}

// TestCleanup_StartStop проверяет запуск и остановку фоновой горутины.
func TestCleanup_StartStop(t *testing.T) {
	cs, env := newCleanupEnv(t, time.Hour)

	res, svcErr := env.svc.Initiate(context.Background(), "old.mp4", 1, "user1")
	if svcErr != nil {
		t.Fatalf("initiate: %v", svcErr)
	}
	env.sessions.setCreatedAt(t, res.UploadID, time.Now().UTC().Add(-2*time.Hour))

	cs.Start(context.Background())
	defer cs.Stop()

	// Первый запуск выполняется сразу после старта
	deadline := time.After(2 * time.Second)
	for {
		recs, _ := env.sessions.ListByUpload(context.Background(), res.UploadID)
		if len(recs) == 0 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("устаревшая сессия не была очищена после Start")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
