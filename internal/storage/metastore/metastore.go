// Пакет metastore — долговечное хранилище метаданных конвертаций.
//
// Store — абстрактный контракт: каждая мутация долговечна до возврата
// из вызова, записи читаются как независимые копии, удаление идемпотентно.
// Конкретная реализация — одна таблица SQLite (metastore_sqlite.go).
package metastore

import (
	"context"
	"errors"
	"time"

	"github.com/arturkryukov/pdfmill/internal/domain/model"
)

// ErrDuplicateKey возвращается из Create при коллизии stored_converted_name.
// При uuid-суффиксах в ключах практически недостижима, но проверяется всегда.
var ErrDuplicateKey = errors.New("stored_converted_name уже существует")

// Store — контракт хранилища метаданных конвертаций.
//
// Все методы чтения возвращают копии: изменение возвращённой записи
// не влияет на содержимое хранилища. Get-методы возвращают (nil, nil),
// если запись не найдена. Мутации сериализуются внутри реализации.
type Store interface {
	// Create сохраняет новую запись. Долговечна до возврата.
	Create(ctx context.Context, rec *model.ConversionRecord) error

	// GetByID возвращает запись по id или (nil, nil), если её нет.
	GetByID(ctx context.Context, id string) (*model.ConversionRecord, error)

	// GetByStoredName возвращает запись по stored_converted_name
	// или (nil, nil), если её нет.
	GetByStoredName(ctx context.Context, storedConvertedName string) (*model.ConversionRecord, error)

	// ListByOwner возвращает все записи владельца, новые первые.
	ListByOwner(ctx context.Context, ownerID string) ([]*model.ConversionRecord, error)

	// ListOlderThan возвращает записи с created_at раньше cutoff.
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]*model.ConversionRecord, error)

	// ListAll возвращает все записи хранилища. Используется Sweeper-ом
	// для построения множества известных blob-ов.
	ListAll(ctx context.Context) ([]*model.ConversionRecord, error)

	// DeleteByID удаляет запись. Возвращает false, если записи не было:
	// повторное удаление не ошибка.
	DeleteByID(ctx context.Context, id string) (bool, error)

	// Close освобождает ресурсы хранилища.
	Close() error
}
