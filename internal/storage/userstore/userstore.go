// Пакет userstore — персистентная таблица пользователей (users.json).
// Все операции записи выполняются атомарно: temp → fsync → rename.
// Таблица маленькая (пользователей единицы-сотни), полная перезапись
// файла на каждую мутацию приемлема.
package userstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/arturkryukov/pdfmill/internal/domain/model"
)

// ErrEmailExists возвращается из Create, если email уже занят.
var ErrEmailExists = errors.New("email уже зарегистрирован")

// Store — потокобезопасное хранилище пользователей.
type Store struct {
	path string

	mu    sync.RWMutex
	users map[string]*model.User // email (lowercase) → user
}

// New открывает хранилище пользователей. Если файла нет, создаёт пустой.
func New(path string) (*Store, error) {
	s := &Store{
		path:  path,
		users: make(map[string]*model.User),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if writeErr := s.persist(); writeErr != nil {
			return nil, writeErr
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения %s: %w", path, err)
	}

	var list []*model.User
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("ошибка десериализации %s: %w", path, err)
	}
	for _, u := range list {
		s.users[strings.ToLower(u.Email)] = u
	}

	return s, nil
}

// Create добавляет пользователя. Возвращает ошибку, если email уже занят.
// Мутация долговечна до возврата.
func (s *Store) Create(u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(u.Email)
	if _, ok := s.users[key]; ok {
		return ErrEmailExists
	}

	copied := *u
	s.users[key] = &copied

	if err := s.persist(); err != nil {
		delete(s.users, key)
		return err
	}
	return nil
}

// GetByEmail возвращает пользователя по email или nil, если его нет.
// Возвращается копия: внутреннее состояние снаружи не изменить.
func (s *Store) GetByEmail(email string) *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[strings.ToLower(email)]
	if !ok {
		return nil
	}
	copied := *u
	return &copied
}

// Count возвращает количество зарегистрированных пользователей.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// persist атомарно записывает таблицу на диск.
// Вызывается под занятым mutex-ом.
func (s *Store) persist() error {
	list := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		list = append(list, u)
	}

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации пользователей: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("не удалось создать директорию %s: %w", filepath.Dir(s.path), err)
	}

	// Атомарная запись: temp → fsync → rename
	tmpPath := s.path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return nil
}
