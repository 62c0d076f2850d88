package service

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/arturkryukov/pdfmill/internal/storage/blobstore"
)

func newTestSweeper(env *testEnv, retention time.Duration) *Sweeper {
	return NewSweeper(env.blobs, env.meta, retention, time.Minute, testLogger())
}

func TestSweepEmptyStore(t *testing.T) {
	env := setupEnv(t)
	sw := newTestSweeper(env, time.Hour)

	result := sw.RunOnce(context.Background())

	if result.ReclaimedCount != 0 {
		t.Errorf("ReclaimedCount: хотели 0, получили %d", result.ReclaimedCount)
	}
	if result.OrphanCount != 0 {
		t.Errorf("OrphanCount: хотели 0, получили %d", result.OrphanCount)
	}
	if result.Errors != 0 {
		t.Errorf("Errors: хотели 0, получили %d", result.Errors)
	}
}

func TestSweepReclaimsExpired(t *testing.T) {
	env := setupEnv(t)
	sw := newTestSweeper(env, time.Hour)
	ctx := context.Background()

	now := time.Now().UTC()
	expired := seedRecord(t, env, "user-1", "old", now.Add(-2*time.Hour))
	fresh := seedRecord(t, env, "user-1", "new", now)

	origSize, _ := env.blobs.Size(blobstore.KindOriginal, expired.StoredOriginalName)
	pdfSize, _ := env.blobs.Size(blobstore.KindConverted, expired.StoredConvertedName)

	result := sw.RunOnce(ctx)

	if result.ReclaimedCount != 1 {
		t.Errorf("ReclaimedCount: хотели 1, получили %d", result.ReclaimedCount)
	}
	if want := origSize + pdfSize; result.ReclaimedBytes != want {
		t.Errorf("ReclaimedBytes: хотели %d, получили %d", want, result.ReclaimedBytes)
	}

	// Устаревшая запись удалена целиком
	if got, _ := env.meta.GetByID(ctx, expired.ID); got != nil {
		t.Error("устаревшая запись осталась в метаданных")
	}
	if env.blobs.Exists(blobstore.KindOriginal, expired.StoredOriginalName) {
		t.Error("оригинал устаревшей записи остался на диске")
	}
	if env.blobs.Exists(blobstore.KindConverted, expired.StoredConvertedName) {
		t.Error("PDF устаревшей записи остался на диске")
	}

	// Свежая запись не тронута
	if got, _ := env.meta.GetByID(ctx, fresh.ID); got == nil {
		t.Error("свежая запись удалена")
	}
	if !env.blobs.Exists(blobstore.KindConverted, fresh.StoredConvertedName) {
		t.Error("PDF свежей записи удалён")
	}
}

func TestSweepToleratesMissingBlobs(t *testing.T) {
	env := setupEnv(t)
	sw := newTestSweeper(env, time.Hour)
	ctx := context.Background()

	expired := seedRecord(t, env, "user-1", "race", time.Now().UTC().Add(-2*time.Hour))

	// Blob-ы уже удалены вручную, запись осталась
	_ = env.blobs.Delete(blobstore.KindOriginal, expired.StoredOriginalName)
	_ = env.blobs.Delete(blobstore.KindConverted, expired.StoredConvertedName)

	result := sw.RunOnce(ctx)

	if result.Errors != 0 {
		t.Errorf("Errors: хотели 0, получили %d", result.Errors)
	}
	if result.ReclaimedCount != 1 {
		t.Errorf("ReclaimedCount: хотели 1, получили %d", result.ReclaimedCount)
	}
	if result.ReclaimedBytes != 0 {
		t.Errorf("ReclaimedBytes: хотели 0, получили %d", result.ReclaimedBytes)
	}
	if got, _ := env.meta.GetByID(ctx, expired.ID); got != nil {
		t.Error("запись без blob-ов не удалена")
	}
}

func TestSweepCollectsOrphans(t *testing.T) {
	env := setupEnv(t)
	sw := newTestSweeper(env, time.Hour)

	// Blob без записи в метаданных — след аварии между шагами загрузки
	if _, err := env.blobs.Save(blobstore.KindOriginal, "orphan.txt", strings.NewReader("сирота")); err != nil {
		t.Fatalf("Ошибка сохранения blob-а: %v", err)
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(env.blobs.Path(blobstore.KindOriginal, "orphan.txt"), old, old); err != nil {
		t.Fatalf("Ошибка изменения mtime: %v", err)
	}

	result := sw.RunOnce(context.Background())

	if result.OrphanCount != 1 {
		t.Errorf("OrphanCount: хотели 1, получили %d", result.OrphanCount)
	}
	if env.blobs.Exists(blobstore.KindOriginal, "orphan.txt") {
		t.Error("blob-сирота остался на диске")
	}
}

func TestSweepKeepsFreshOrphans(t *testing.T) {
	env := setupEnv(t)
	sw := newTestSweeper(env, time.Hour)

	// Свежий blob без записи: возможно, конвертация ещё идёт
	if _, err := env.blobs.Save(blobstore.KindOriginal, "inflight.txt", strings.NewReader("в работе")); err != nil {
		t.Fatalf("Ошибка сохранения blob-а: %v", err)
	}

	result := sw.RunOnce(context.Background())

	if result.OrphanCount != 0 {
		t.Errorf("OrphanCount: хотели 0, получили %d", result.OrphanCount)
	}
	if !env.blobs.Exists(blobstore.KindOriginal, "inflight.txt") {
		t.Error("свежий blob удалён до истечения порога")
	}
}

func TestSweepKeepsReferencedBlobs(t *testing.T) {
	env := setupEnv(t)
	sw := newTestSweeper(env, time.Hour)

	// Запись свежая, но mtime blob-ов старый: известные blob-ы
	// не считаются сиротами независимо от возраста файла
	rec := seedRecord(t, env, "user-1", "ref", time.Now().UTC())
	old := time.Now().Add(-2 * time.Hour)
	for _, p := range []string{
		env.blobs.Path(blobstore.KindOriginal, rec.StoredOriginalName),
		env.blobs.Path(blobstore.KindConverted, rec.StoredConvertedName),
	} {
		if err := os.Chtimes(p, old, old); err != nil {
			t.Fatalf("Ошибка изменения mtime: %v", err)
		}
	}

	result := sw.RunOnce(context.Background())

	if result.OrphanCount != 0 {
		t.Errorf("OrphanCount: хотели 0, получили %d", result.OrphanCount)
	}
	if !env.blobs.Exists(blobstore.KindConverted, rec.StoredConvertedName) {
		t.Error("blob с живой записью удалён orphan-проходом")
	}
}

func TestSweeperStartStop(t *testing.T) {
	env := setupEnv(t)
	sw := NewSweeper(env.blobs, env.meta, time.Hour, 50*time.Millisecond, testLogger())

	sw.Start(context.Background())
	time.Sleep(120 * time.Millisecond)
	sw.Stop()

	// Stop дождался завершения цикла, повторный RunOnce безопасен
	result := sw.RunOnce(context.Background())
	if result == nil {
		t.Fatal("RunOnce вернул nil после Stop")
	}
}
