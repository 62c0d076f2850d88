// access.go — операции доступа к конвертированным файлам:
// список, скачивание, удаление. Всё строго в пределах владельца.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	apierrors "github.com/arturkryukov/pdfmill/internal/api/errors"
	"github.com/arturkryukov/pdfmill/internal/domain/model"
	"github.com/arturkryukov/pdfmill/internal/storage/blobstore"
	"github.com/arturkryukov/pdfmill/internal/storage/metastore"
)

// AccessError — ошибка операции доступа с HTTP-кодом.
//
// Forbidden и NotFound различаются внутри (логи, метрики), но HTTP-слой
// отдаёт их одинаково как 404: чужой владелец не должен узнать о
// существовании ресурса.
type AccessError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// AccessService — сервис операций list/download/delete.
type AccessService struct {
	blobs  *blobstore.Store
	meta   metastore.Store
	logger *slog.Logger
}

// NewAccessService создаёт сервис доступа.
func NewAccessService(blobs *blobstore.Store, meta metastore.Store, logger *slog.Logger) *AccessService {
	return &AccessService{
		blobs:  blobs,
		meta:   meta,
		logger: logger.With(slog.String("component", "access_service")),
	}
}

// List возвращает записи владельца, новые первые.
// Записи других владельцев не попадают в выдачу ни при каком interleaving.
func (s *AccessService) List(ctx context.Context, ownerID string) ([]*model.ConversionRecord, *AccessError) {
	recs, err := s.meta.ListByOwner(ctx, ownerID)
	if err != nil {
		s.logger.Error("Ошибка выборки записей",
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		return nil, &AccessError{
			StatusCode: 500,
			Code:       apierrors.CodePersistenceError,
			Message:    "Ошибка чтения метаданных",
		}
	}
	return recs, nil
}

// Serve отдаёт конвертированный PDF клиенту через http.ServeContent.
// Владелец проверяется после резолва имени: чужая запись — Forbidden.
// Отсутствие blob-а на диске равносильно отсутствию записи: метаданные
// лениво подчищаются, клиент получает NotFound.
func (s *AccessService) Serve(w http.ResponseWriter, r *http.Request, ownerID, storedConvertedName string) *AccessError {
	rec, accessErr := s.resolveOwned(r.Context(), ownerID, storedConvertedName)
	if accessErr != nil {
		return accessErr
	}

	file, err := s.blobs.Open(blobstore.KindConverted, rec.StoredConvertedName)
	if err != nil {
		if os.IsNotExist(err) {
			return s.lazyCleanup(r.Context(), rec)
		}
		s.logger.Error("Ошибка открытия blob-а",
			slog.String("record_id", rec.ID),
			slog.String("error", err.Error()),
		)
		return &AccessError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка чтения файла",
		}
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return &AccessError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка чтения файла",
		}
	}

	downloadName := pdfDownloadName(rec.OriginalName)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName))

	// http.ServeContent берёт на себя Range requests и Content-Length
	http.ServeContent(w, r, downloadName, stat.ModTime(), file)

	operationsTotal.WithLabelValues("download", "success").Inc()

	s.logger.Debug("Файл скачан",
		slog.String("record_id", rec.ID),
		slog.String("owner_id", ownerID),
	)
	return nil
}

// Delete удаляет запись и оба blob-а. Идемпотентна: повторное удаление
// и гонка со Sweeper-ом безопасны. Возвращает false, если записи
// уже не было.
func (s *AccessService) Delete(ctx context.Context, ownerID, storedConvertedName string) (bool, *AccessError) {
	rec, accessErr := s.resolveOwned(ctx, ownerID, storedConvertedName)
	if accessErr != nil {
		if accessErr.Code == apierrors.CodeNotFound {
			return false, nil
		}
		return false, accessErr
	}

	// Сначала blob-ы, затем запись: авария между шагами оставляет
	// запись без blob-ов, которую чтение трактует как NotFound,
	// а не blob-сироту без указателя.
	if err := s.blobs.Delete(blobstore.KindOriginal, rec.StoredOriginalName); err != nil {
		s.logger.Error("Ошибка удаления оригинала",
			slog.String("record_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.blobs.Delete(blobstore.KindConverted, rec.StoredConvertedName); err != nil {
		s.logger.Error("Ошибка удаления PDF",
			slog.String("record_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}

	found, err := s.meta.DeleteByID(ctx, rec.ID)
	if err != nil {
		return false, &AccessError{
			StatusCode: 500,
			Code:       apierrors.CodePersistenceError,
			Message:    "Ошибка удаления метаданных",
		}
	}

	operationsTotal.WithLabelValues("delete", "success").Inc()

	s.logger.Info("Файл удалён",
		slog.String("record_id", rec.ID),
		slog.String("owner_id", ownerID),
	)
	return found, nil
}

// resolveOwned резолвит имя в запись и проверяет владельца.
func (s *AccessService) resolveOwned(ctx context.Context, ownerID, storedConvertedName string) (*model.ConversionRecord, *AccessError) {
	rec, err := s.meta.GetByStoredName(ctx, storedConvertedName)
	if err != nil {
		s.logger.Error("Ошибка чтения метаданных",
			slog.String("stored_name", storedConvertedName),
			slog.String("error", err.Error()),
		)
		return nil, &AccessError{
			StatusCode: 500,
			Code:       apierrors.CodePersistenceError,
			Message:    "Ошибка чтения метаданных",
		}
	}
	if rec == nil {
		return nil, &AccessError{
			StatusCode: 404,
			Code:       apierrors.CodeNotFound,
			Message:    "Файл не найден",
		}
	}
	if rec.OwnerID != ownerID {
		s.logger.Warn("Попытка доступа к чужой записи",
			slog.String("record_id", rec.ID),
			slog.String("owner_id", ownerID),
		)
		return nil, &AccessError{
			StatusCode: 403,
			Code:       apierrors.CodeForbidden,
			Message:    "Файл не найден",
		}
	}
	return rec, nil
}

// lazyCleanup подчищает запись, чей blob уже удалён (например, Sweeper-ом
// между чтением метаданных и открытием файла). Для клиента — NotFound.
func (s *AccessService) lazyCleanup(ctx context.Context, rec *model.ConversionRecord) *AccessError {
	_ = s.blobs.Delete(blobstore.KindOriginal, rec.StoredOriginalName)
	if _, err := s.meta.DeleteByID(ctx, rec.ID); err != nil {
		s.logger.Error("Ошибка ленивой очистки метаданных",
			slog.String("record_id", rec.ID),
			slog.String("error", err.Error()),
		)
	} else {
		s.logger.Info("Запись без blob-а подчищена",
			slog.String("record_id", rec.ID),
		)
	}
	return &AccessError{
		StatusCode: 404,
		Code:       apierrors.CodeNotFound,
		Message:    "Файл не найден",
	}
}

// pdfDownloadName строит имя файла для Content-Disposition:
// оригинальное имя с заменой расширения на .pdf.
func pdfDownloadName(originalName string) string {
	base := originalName
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '.' {
			base = base[:i]
			break
		}
		if base[i] == '/' || base[i] == '\\' {
			break
		}
	}
	if base == "" {
		base = "converted"
	}
	return base + ".pdf"
}
