package metastore

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arturkryukov/pdfmill/internal/domain/model"
)

// testLogger — логгер для тестов, пишет только ошибки.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// openTestStore открывает SQLite-хранилище во временной директории.
func openTestStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "metadata.db")
	store, err := OpenSQLite(path, testLogger())
	if err != nil {
		t.Fatalf("Ошибка открытия хранилища: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, path
}

// newTestRecord создаёт запись с заданным суффиксом и временем создания.
func newTestRecord(suffix string, createdAt time.Time) *model.ConversionRecord {
	return &model.ConversionRecord{
		ID:                  "rec-" + suffix,
		OwnerID:             "owner-1",
		OriginalName:        "doc-" + suffix + ".txt",
		StoredOriginalName:  "doc_" + suffix + ".txt",
		StoredConvertedName: "doc_" + suffix + ".pdf",
		SizeBytes:           100,
		CreatedAt:           createdAt,
		ConvertedAt:         createdAt.Add(time.Second),
	}
}

func TestCreateAndGet(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	rec := newTestRecord("a", time.Now().UTC())
	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("Ошибка Create: %v", err)
	}

	got, err := store.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Ошибка GetByID: %v", err)
	}
	if got == nil {
		t.Fatal("запись не найдена после Create")
	}
	if got.StoredConvertedName != rec.StoredConvertedName {
		t.Errorf("StoredConvertedName: хотели %q, получили %q", rec.StoredConvertedName, got.StoredConvertedName)
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("CreatedAt: хотели %v, получили %v", rec.CreatedAt, got.CreatedAt)
	}

	byName, err := store.GetByStoredName(ctx, rec.StoredConvertedName)
	if err != nil {
		t.Fatalf("Ошибка GetByStoredName: %v", err)
	}
	if byName == nil || byName.ID != rec.ID {
		t.Errorf("GetByStoredName вернул не ту запись: %+v", byName)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	got, err := store.GetByID(ctx, "no-such-id")
	if err != nil {
		t.Fatalf("Ошибка GetByID: %v", err)
	}
	if got != nil {
		t.Errorf("хотели nil, получили %+v", got)
	}
}

func TestCreateDuplicateKey(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	rec1 := newTestRecord("dup", time.Now().UTC())
	if err := store.Create(ctx, rec1); err != nil {
		t.Fatalf("Ошибка Create: %v", err)
	}

	// Другая запись с тем же stored_converted_name
	rec2 := newTestRecord("dup2", time.Now().UTC())
	rec2.StoredConvertedName = rec1.StoredConvertedName

	err := store.Create(ctx, rec2)
	if !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("хотели ErrDuplicateKey, получили %v", err)
	}

	// Первая запись не повреждена
	got, _ := store.GetByID(ctx, rec1.ID)
	if got == nil {
		t.Error("исходная запись пропала после конфликтной вставки")
	}
}

func TestDeleteIdempotent(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	rec := newTestRecord("del", time.Now().UTC())
	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("Ошибка Create: %v", err)
	}

	found, err := store.DeleteByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Ошибка DeleteByID: %v", err)
	}
	if !found {
		t.Error("первое удаление: хотели true, получили false")
	}

	found, err = store.DeleteByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Повторное DeleteByID: %v", err)
	}
	if found {
		t.Error("повторное удаление: хотели false, получили true")
	}
}

func TestListByOwnerIsolation(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	mine := newTestRecord("mine", now)
	other := newTestRecord("other", now)
	other.OwnerID = "owner-2"

	for _, rec := range []*model.ConversionRecord{mine, other} {
		if err := store.Create(ctx, rec); err != nil {
			t.Fatalf("Ошибка Create: %v", err)
		}
	}

	records, err := store.ListByOwner(ctx, "owner-1")
	if err != nil {
		t.Fatalf("Ошибка ListByOwner: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("количество записей: хотели 1, получили %d", len(records))
	}
	if records[0].ID != mine.ID {
		t.Errorf("чужая запись в выдаче: %s", records[0].ID)
	}
}

func TestListByOwnerNewestFirst(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	oldRec := newTestRecord("old", base)
	newRec := newTestRecord("new", base.Add(30*time.Minute))

	if err := store.Create(ctx, oldRec); err != nil {
		t.Fatalf("Ошибка Create: %v", err)
	}
	if err := store.Create(ctx, newRec); err != nil {
		t.Fatalf("Ошибка Create: %v", err)
	}

	records, err := store.ListByOwner(ctx, "owner-1")
	if err != nil {
		t.Fatalf("Ошибка ListByOwner: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("количество записей: хотели 2, получили %d", len(records))
	}
	if records[0].ID != newRec.ID {
		t.Errorf("порядок: хотели %s первой, получили %s", newRec.ID, records[0].ID)
	}
}

func TestListOlderThan(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	expired := newTestRecord("expired", now.Add(-time.Hour))
	fresh := newTestRecord("fresh", now)

	for _, rec := range []*model.ConversionRecord{expired, fresh} {
		if err := store.Create(ctx, rec); err != nil {
			t.Fatalf("Ошибка Create: %v", err)
		}
	}

	records, err := store.ListOlderThan(ctx, now.Add(-30*time.Minute))
	if err != nil {
		t.Fatalf("Ошибка ListOlderThan: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("количество записей: хотели 1, получили %d", len(records))
	}
	if records[0].ID != expired.ID {
		t.Errorf("хотели %s, получили %s", expired.ID, records[0].ID)
	}
}

func TestSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.db")
	ctx := context.Background()

	store, err := OpenSQLite(path, testLogger())
	if err != nil {
		t.Fatalf("Ошибка открытия хранилища: %v", err)
	}

	rec := newTestRecord("durable", time.Now().UTC())
	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("Ошибка Create: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Ошибка Close: %v", err)
	}

	// Повторное открытие имитирует рестарт процесса
	reopened, err := OpenSQLite(path, testLogger())
	if err != nil {
		t.Fatalf("Ошибка повторного открытия: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Ошибка GetByID: %v", err)
	}
	if got == nil {
		t.Fatal("запись не пережила переоткрытие базы")
	}
	if got.OriginalName != rec.OriginalName {
		t.Errorf("OriginalName: хотели %q, получили %q", rec.OriginalName, got.OriginalName)
	}
}

func TestListAll(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for _, suffix := range []string{"a", "b", "c"} {
		if err := store.Create(ctx, newTestRecord(suffix, now)); err != nil {
			t.Fatalf("Ошибка Create: %v", err)
		}
	}

	records, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("Ошибка ListAll: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("количество записей: хотели 3, получили %d", len(records))
	}
}

func TestReturnedRecordIsCopy(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	rec := newTestRecord("copy", time.Now().UTC())
	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("Ошибка Create: %v", err)
	}

	first, _ := store.GetByID(ctx, rec.ID)
	first.OriginalName = "испорчено"

	second, _ := store.GetByID(ctx, rec.ID)
	if second.OriginalName != rec.OriginalName {
		t.Errorf("изменение возвращённой записи видно в хранилище: %q", second.OriginalName)
	}
}
