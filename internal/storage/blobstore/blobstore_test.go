package blobstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// setupStore создаёт Store поверх временных директорий.
func setupStore(t *testing.T) *Store {
	t.Helper()

	base := t.TempDir()
	store, err := New(filepath.Join(base, "uploads"), filepath.Join(base, "converted"))
	if err != nil {
		t.Fatalf("Ошибка создания Store: %v", err)
	}
	return store
}

func TestSaveAndOpen(t *testing.T) {
	store := setupStore(t)

	data := "содержимое тестового файла"
	size, err := store.Save(KindOriginal, "test.txt", strings.NewReader(data))
	if err != nil {
		t.Fatalf("Ошибка Save: %v", err)
	}
	if size != int64(len(data)) {
		t.Errorf("размер: хотели %d, получили %d", len(data), size)
	}

	f, err := store.Open(KindOriginal, "test.txt")
	if err != nil {
		t.Fatalf("Ошибка Open: %v", err)
	}
	defer f.Close()

	buf := make([]byte, len(data))
	if _, err := f.Read(buf); err != nil {
		t.Fatalf("Ошибка чтения: %v", err)
	}
	if string(buf) != data {
		t.Errorf("содержимое: хотели %q, получили %q", data, string(buf))
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	store := setupStore(t)

	if _, err := store.Save(KindConverted, "out.pdf", strings.NewReader("pdf data")); err != nil {
		t.Fatalf("Ошибка Save: %v", err)
	}

	keys, err := store.List(KindConverted)
	if err != nil {
		t.Fatalf("Ошибка List: %v", err)
	}
	for _, key := range keys {
		if strings.HasSuffix(key, ".tmp") {
			t.Errorf("temp файл остался после Save: %s", key)
		}
	}
}

func TestDeleteIdempotent(t *testing.T) {
	store := setupStore(t)

	if _, err := store.Save(KindOriginal, "doomed.txt", strings.NewReader("x")); err != nil {
		t.Fatalf("Ошибка Save: %v", err)
	}

	if err := store.Delete(KindOriginal, "doomed.txt"); err != nil {
		t.Fatalf("Первое удаление: %v", err)
	}
	// Повторное удаление того же ключа — не ошибка
	if err := store.Delete(KindOriginal, "doomed.txt"); err != nil {
		t.Errorf("Повторное удаление: хотели nil, получили %v", err)
	}
	if store.Exists(KindOriginal, "doomed.txt") {
		t.Error("файл существует после удаления")
	}
}

func TestPathEscapeGuard(t *testing.T) {
	store := setupStore(t)

	// Ключ с попыткой выхода за пределы корня нормализуется до basename
	path := store.Path(KindOriginal, "../../etc/passwd")
	if filepath.Base(path) != "passwd" {
		t.Fatalf("неожиданный путь: %s", path)
	}
	if strings.Contains(path, "..") {
		t.Errorf("путь содержит выход за пределы корня: %s", path)
	}
}

func TestAdoptFile(t *testing.T) {
	store := setupStore(t)

	scratch := t.TempDir()
	srcPath := filepath.Join(scratch, "out.pdf")
	if err := os.WriteFile(srcPath, []byte("%PDF-1.4 данные"), 0o640); err != nil {
		t.Fatalf("Ошибка создания исходного файла: %v", err)
	}

	size, err := store.AdoptFile(KindConverted, "adopted.pdf", srcPath)
	if err != nil {
		t.Fatalf("Ошибка AdoptFile: %v", err)
	}
	if size == 0 {
		t.Error("размер принятого файла нулевой")
	}

	if !store.Exists(KindConverted, "adopted.pdf") {
		t.Error("принятый файл отсутствует в хранилище")
	}
	if _, err := os.Stat(srcPath); !os.IsNotExist(err) {
		t.Error("исходный файл не удалён после переноса")
	}
}

func TestListSkipsTempAndHidden(t *testing.T) {
	store := setupStore(t)

	if _, err := store.Save(KindOriginal, "visible.txt", strings.NewReader("a")); err != nil {
		t.Fatalf("Ошибка Save: %v", err)
	}

	root := filepath.Dir(store.Path(KindOriginal, "visible.txt"))
	if err := os.WriteFile(filepath.Join(root, "partial.txt.tmp"), []byte("b"), 0o640); err != nil {
		t.Fatalf("Ошибка создания tmp файла: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, ".hidden"), []byte("c"), 0o640); err != nil {
		t.Fatalf("Ошибка создания скрытого файла: %v", err)
	}

	keys, err := store.List(KindOriginal)
	if err != nil {
		t.Fatalf("Ошибка List: %v", err)
	}
	if len(keys) != 1 || keys[0] != "visible.txt" {
		t.Errorf("List: хотели [visible.txt], получили %v", keys)
	}
}

func TestNewStorageKeyUnique(t *testing.T) {
	k1 := NewStorageKey("report.docx", "user-1", "docx")
	k2 := NewStorageKey("report.docx", "user-1", "docx")

	if k1 == k2 {
		t.Errorf("ключи совпали: %s", k1)
	}
	if !strings.HasSuffix(k1, ".docx") {
		t.Errorf("ключ без расширения: %s", k1)
	}
}

func TestNewStorageKeySanitizes(t *testing.T) {
	key := NewStorageKey("../od/d file!.txt", "user/1", "txt")

	if strings.ContainsAny(key, "/!\\ ") {
		t.Errorf("ключ содержит небезопасные символы: %s", key)
	}
}

func TestNewStorageKeyCyrillic(t *testing.T) {
	key := NewStorageKey("отчёт.txt", "user-1", "txt")

	if !strings.Contains(key, "отчёт") {
		t.Errorf("кириллица потеряна в ключе: %s", key)
	}
}
