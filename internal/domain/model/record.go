// Пакет model — доменные модели pdfmill.
// ConversionRecord — единая структура метаданных конвертации, используется
// как in-memory представление и как строка таблицы metastore.
package model

import (
	"time"
)

// ConversionRecord — метаданные одной успешной конвертации.
// Запись неизменяема после создания: операций обновления нет,
// запись живёт до явного удаления или до истечения срока хранения.
type ConversionRecord struct {
	// ID — уникальный идентификатор записи (UUID v4)
	ID string `json:"id"`

	// OwnerID — идентификатор пользователя-владельца (sub из JWT).
	// Никогда не переназначается, все проверки доступа идут по нему.
	OwnerID string `json:"owner_id"`

	// OriginalName — оригинальное имя файла при загрузке.
	// Хранится только для отображения, ключом хранения не является.
	OriginalName string `json:"original_name"`

	// StoredOriginalName — ключ исходного файла в blobstore.
	// Формат: {name}_{owner}_{timestamp}_{uuid}.{ext}
	StoredOriginalName string `json:"stored_original_name"`

	// StoredConvertedName — ключ конвертированного PDF в blobstore.
	// Уникален на всё время жизни системы.
	StoredConvertedName string `json:"stored_converted_name"`

	// SizeBytes — размер конвертированного PDF в байтах
	SizeBytes int64 `json:"size_bytes"`

	// CreatedAt — дата и время загрузки (UTC)
	CreatedAt time.Time `json:"created_at"`

	// ConvertedAt — дата и время завершения конвертации (UTC)
	ConvertedAt time.Time `json:"converted_at"`
}

// IsOlderThan проверяет, создана ли запись раньше указанного момента.
// Используется Retention Sweeper для отбора записей на удаление.
func (r *ConversionRecord) IsOlderThan(cutoff time.Time) bool {
	return r.CreatedAt.Before(cutoff)
}
