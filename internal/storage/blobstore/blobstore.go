// Пакет blobstore — операции с бинарными payload на диске.
// Хранилище владеет двумя корнями: uploads (исходные загрузки)
// и converted (конвертированные PDF). Доступ к файлам — только
// по сгенерированным ключам хранения, пользовательские имена
// ключами не являются.
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

// Kind — вид blob-а: исходная загрузка или конвертированный PDF.
type Kind string

const (
	// KindOriginal — исходный загруженный файл (корень uploads)
	KindOriginal Kind = "original"
	// KindConverted — конвертированный PDF (корень converted)
	KindConverted Kind = "converted"
)

// Store — хранилище blob-ов с двумя корневыми директориями.
type Store struct {
	uploadDir    string
	convertedDir string
}

// New создаёт Store. Создаёт корневые директории, если они не существуют.
func New(uploadDir, convertedDir string) (*Store, error) {
	for _, dir := range []string{uploadDir, convertedDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
		}
	}

	return &Store{
		uploadDir:    uploadDir,
		convertedDir: convertedDir,
	}, nil
}

// root возвращает корневую директорию для указанного вида blob-а.
func (s *Store) root(kind Kind) string {
	if kind == KindConverted {
		return s.convertedDir
	}
	return s.uploadDir
}

// Path возвращает абсолютный путь blob-а на диске.
// Ключ нормализуется через filepath.Base: выход за пределы корня невозможен.
func (s *Store) Path(kind Kind, key string) string {
	return filepath.Join(s.root(kind), filepath.Base(key))
}

// Save записывает данные из reader на диск под указанным ключом.
// Возвращает размер записанных данных.
//
// Паттерн: temp файл → запись → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (s *Store) Save(kind Kind, key string, r io.Reader) (int64, error) {
	fullPath := s.Path(kind, key)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	size, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка записи данных: %w", err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return size, nil
}

// AdoptFile перемещает готовый файл srcPath внутрь хранилища под указанным
// ключом. Используется для приёма результата конвертера из scratch-директории.
// Возвращает размер принятого файла.
func (s *Store) AdoptFile(kind Kind, key, srcPath string) (int64, error) {
	dstPath := s.Path(kind, key)

	if err := os.Rename(srcPath, dstPath); err != nil {
		// Rename через границу файловых систем невозможен — копируем
		src, openErr := os.Open(srcPath)
		if openErr != nil {
			return 0, fmt.Errorf("ошибка открытия файла %s: %w", srcPath, openErr)
		}
		defer src.Close()

		size, copyErr := s.Save(kind, key, src)
		if copyErr != nil {
			return 0, copyErr
		}
		_ = os.Remove(srcPath)
		return size, nil
	}

	info, err := os.Stat(dstPath)
	if err != nil {
		return 0, fmt.Errorf("ошибка получения информации о файле %s: %w", dstPath, err)
	}
	return info.Size(), nil
}

// Open открывает blob для чтения. Вызывающий код обязан закрыть файл.
func (s *Store) Open(kind Kind, key string) (*os.File, error) {
	f, err := os.Open(s.Path(kind, key))
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Delete удаляет blob с диска.
// Возвращает nil, если blob уже не существует: удаление идемпотентно,
// гонка со Sweeper-ом безопасна.
func (s *Store) Delete(kind Kind, key string) error {
	err := os.Remove(s.Path(kind, key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", key, err)
	}
	return nil
}

// Exists проверяет существование blob-а на диске.
func (s *Store) Exists(kind Kind, key string) bool {
	_, err := os.Stat(s.Path(kind, key))
	return err == nil
}

// Size возвращает размер blob-а на диске.
func (s *Store) Size(kind Kind, key string) (int64, error) {
	info, err := os.Stat(s.Path(kind, key))
	if err != nil {
		return 0, fmt.Errorf("ошибка получения информации о файле %s: %w", key, err)
	}
	return info.Size(), nil
}

// List возвращает ключи всех blob-ов указанного вида.
// Temp файлы незавершённых записей пропускаются.
func (s *Store) List(kind Kind) ([]string, error) {
	entries, err := os.ReadDir(s.root(kind))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения директории %s: %w", s.root(kind), err)
	}

	var keys []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") {
			continue
		}
		keys = append(keys, name)
	}
	return keys, nil
}

// ModTime возвращает время последней модификации blob-а.
// Нужен Sweeper-у: blob-сироты удаляются только после остывания.
func (s *Store) ModTime(kind Kind, key string) (time.Time, error) {
	info, err := os.Stat(s.Path(kind, key))
	if err != nil {
		return time.Time{}, fmt.Errorf("ошибка получения информации о файле %s: %w", key, err)
	}
	return info.ModTime(), nil
}

// NewStorageKey генерирует уникальный ключ хранения.
// Формат: {name}_{owner}_{timestamp}_{uuid}.{ext}
// Пример: notes_a1b2c3d4_20260831150405_e5f6a7b8.pdf
func NewStorageKey(originalName, ownerID, ext string) string {
	name := strings.TrimSuffix(originalName, filepath.Ext(originalName))

	// Убираем небезопасные символы из имени и владельца
	name = sanitize(name)
	owner := sanitize(ownerID)

	// Ограничиваем длину имени для предотвращения проблем с FS
	if len(name) > 50 {
		name = name[:50]
	}
	if len(owner) > 20 {
		owner = owner[:20]
	}

	ts := time.Now().UTC().Format("20060102150405")
	uid := uuid.New().String()[:8] // Короткий UUID для уникальности

	return fmt.Sprintf("%s_%s_%s_%s.%s", name, owner, ts, uid, strings.ToLower(ext))
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
		return "file"
	}
	return result.String()
}
