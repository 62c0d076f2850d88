// metastore_sqlite.go — реализация Store поверх одной таблицы SQLite.
// Драйвер modernc.org/sqlite (pure Go, без cgo).
package metastore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite" // регистрация драйвера "sqlite"

	"github.com/arturkryukov/pdfmill/internal/domain/model"
)

// schema — таблица записей конвертаций.
// UNIQUE по stored_converted_name страхует генерацию ключей хранения.
const schema = `
CREATE TABLE IF NOT EXISTS conversion_records (
	id                    TEXT PRIMARY KEY,
	owner_id              TEXT NOT NULL,
	original_name         TEXT NOT NULL,
	stored_original_name  TEXT NOT NULL,
	stored_converted_name TEXT NOT NULL UNIQUE,
	size_bytes            INTEGER NOT NULL,
	created_at            TEXT NOT NULL,
	converted_at          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_owner   ON conversion_records (owner_id);
CREATE INDEX IF NOT EXISTS idx_records_created ON conversion_records (created_at);
`

// SQLiteStore — хранилище метаданных в одной таблице SQLite.
// Мутации сериализуются mutex-ом: конкурентные Create/DeleteByID
// не могут повредить таблицу, а проверка дубликата ключа атомарна
// относительно вставки.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *slog.Logger
}

// OpenSQLite открывает (и при необходимости создаёт) базу метаданных.
// synchronous=FULL: каждая мутация на диске до возврата из вызова.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы метаданных %s: %w", path, err)
	}

	// Один connection: SQLite не рассчитан на конкурентную запись,
	// а сериализация мутаций и так обеспечивается на уровне Store.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("ошибка применения %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка создания схемы метаданных: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With(slog.String("component", "metastore")),
	}, nil
}

// Create сохраняет новую запись конвертации.
// Возвращает ErrDuplicateKey при коллизии stored_converted_name.
func (s *SQLiteStore) Create(ctx context.Context, rec *model.ConversionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Проверка уникальности ключа до вставки. Мутации сериализованы
	// mutex-ом, поэтому между проверкой и вставкой гонки нет.
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM conversion_records WHERE stored_converted_name = ?)`,
		rec.StoredConvertedName,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("ошибка проверки уникальности ключа: %w", err)
	}
	if exists {
		return ErrDuplicateKey
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversion_records
			(id, owner_id, original_name, stored_original_name, stored_converted_name,
			 size_bytes, created_at, converted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OwnerID, rec.OriginalName, rec.StoredOriginalName, rec.StoredConvertedName,
		rec.SizeBytes, formatTime(rec.CreatedAt), formatTime(rec.ConvertedAt),
	)
	if err != nil {
		return fmt.Errorf("ошибка вставки записи %s: %w", rec.ID, err)
	}

	return nil
}

// GetByID возвращает запись по id или (nil, nil), если её нет.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*model.ConversionRecord, error) {
	return s.getOne(ctx, `WHERE id = ?`, id)
}

// GetByStoredName возвращает запись по stored_converted_name или (nil, nil).
func (s *SQLiteStore) GetByStoredName(ctx context.Context, storedConvertedName string) (*model.ConversionRecord, error) {
	return s.getOne(ctx, `WHERE stored_converted_name = ?`, storedConvertedName)
}

// ListByOwner возвращает все записи владельца, новые первые.
func (s *SQLiteStore) ListByOwner(ctx context.Context, ownerID string) ([]*model.ConversionRecord, error) {
	return s.list(ctx, `WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
}

// ListOlderThan возвращает записи с created_at раньше cutoff.
// Используется Retention Sweeper-ом.
func (s *SQLiteStore) ListOlderThan(ctx context.Context, cutoff time.Time) ([]*model.ConversionRecord, error) {
	return s.list(ctx, `WHERE created_at < ? ORDER BY created_at ASC`, formatTime(cutoff))
}

// ListAll возвращает все записи хранилища.
func (s *SQLiteStore) ListAll(ctx context.Context) ([]*model.ConversionRecord, error) {
	return s.list(ctx, `ORDER BY created_at ASC`)
}

// DeleteByID удаляет запись. Возвращает false, если записи не было.
func (s *SQLiteStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM conversion_records WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("ошибка удаления записи %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ошибка получения числа удалённых строк: %w", err)
	}
	return n > 0, nil
}

// Ping проверяет доступность базы метаданных. Используется readiness probe.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close закрывает базу метаданных.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// selectColumns — общий список колонок для всех чтений.
const selectColumns = `SELECT id, owner_id, original_name, stored_original_name,
	stored_converted_name, size_bytes, created_at, converted_at
	FROM conversion_records `

// getOne выполняет чтение одной записи по условию where.
func (s *SQLiteStore) getOne(ctx context.Context, where string, arg any) (*model.ConversionRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+where, arg)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения записи: %w", err)
	}
	return rec, nil
}

// list выполняет чтение набора записей по условию where.
func (s *SQLiteStore) list(ctx context.Context, where string, args ...any) ([]*model.ConversionRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+where, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки записей: %w", err)
	}
	defer rows.Close()

	var result []*model.ConversionRecord
	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("ошибка чтения строки: %w", scanErr)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации по строкам: %w", err)
	}

	return result, nil
}

// scanner — общий интерфейс sql.Row и sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanRecord читает одну строку таблицы в ConversionRecord.
// Каждый вызов создаёт новую структуру: наружу всегда уходит копия.
func scanRecord(row scanner) (*model.ConversionRecord, error) {
	var rec model.ConversionRecord
	var createdAt, convertedAt string

	err := row.Scan(
		&rec.ID, &rec.OwnerID, &rec.OriginalName, &rec.StoredOriginalName,
		&rec.StoredConvertedName, &rec.SizeBytes, &createdAt, &convertedAt,
	)
	if err != nil {
		return nil, err
	}

	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("некорректный created_at %q: %w", createdAt, err)
	}
	if rec.ConvertedAt, err = parseTime(convertedAt); err != nil {
		return nil, fmt.Errorf("некорректный converted_at %q: %w", convertedAt, err)
	}

	return &rec, nil
}

// timeLayout — RFC3339 с фиксированной шириной наносекунд.
// RFC3339Nano не подходит: он отбрасывает хвостовые нули, и
// лексикографический порядок строк расходится с хронологическим,
// ломая сравнения created_at < ? в SQL.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime сериализует время в UTC фиксированной ширины.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime разбирает время из формата, записанного formatTime.
func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
