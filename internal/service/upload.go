// Пакет service — бизнес-логика pdfmill.
// upload.go — pipeline загрузки: валидация → сохранение оригинала →
// конвертация → сохранение PDF → запись метаданных.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	apierrors "github.com/arturkryukov/pdfmill/internal/api/errors"
	"github.com/arturkryukov/pdfmill/internal/config"
	"github.com/arturkryukov/pdfmill/internal/convert"
	"github.com/arturkryukov/pdfmill/internal/domain/model"
	"github.com/arturkryukov/pdfmill/internal/storage/blobstore"
	"github.com/arturkryukov/pdfmill/internal/storage/metastore"
)

// UploadParams — параметры загрузки файла.
type UploadParams struct {
	// Reader — поток данных файла
	Reader io.Reader
	// OriginalName — оригинальное имя файла
	OriginalName string
	// Size — заявленный размер файла (из multipart part)
	Size int64
	// OwnerID — идентификатор владельца (sub из JWT)
	OwnerID string
}

// UploadError — ошибка загрузки с HTTP-кодом.
type UploadError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// UploadService — сервис загрузки и конвертации файлов.
type UploadService struct {
	cfg     *config.Config
	gateway *convert.Gateway
	blobs   *blobstore.Store
	meta    metastore.Store
	logger  *slog.Logger
}

// NewUploadService создаёт сервис загрузки.
func NewUploadService(
	cfg *config.Config,
	gateway *convert.Gateway,
	blobs *blobstore.Store,
	meta metastore.Store,
	logger *slog.Logger,
) *UploadService {
	return &UploadService{
		cfg:     cfg,
		gateway: gateway,
		blobs:   blobs,
		meta:    meta,
		logger:  logger.With(slog.String("component", "upload_service")),
	}
}

// Upload выполняет полный pipeline загрузки.
//
// Поток:
//  1. Валидация (имя, размер, расширение) — до любой записи на диск
//  2. Сохранение оригинала в blobstore
//  3. Конвертация в PDF (с таймаутом)
//  4. Приём PDF в blobstore
//  5. Создание записи метаданных
//
// Каждая точка отказа выполняет компенсирующие удаления: наружу видно
// либо полную запись с обоими blob-ами, либо ничего. Осиротевшие blob-ы
// после аварийного завершения процесса добирает Sweeper.
func (s *UploadService) Upload(ctx context.Context, params UploadParams) (rec *model.ConversionRecord, uploadErr *UploadError) {
	// Метрика операции инкрементируется ровно один раз на любой исход,
	// включая ошибки валидации и хранилища
	defer func() {
		result := "success"
		if uploadErr != nil {
			result = "error"
		}
		operationsTotal.WithLabelValues("upload", result).Inc()
	}()

	// 1. Валидация до любой записи
	if params.OriginalName == "" {
		return nil, &UploadError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    "Файл не передан",
		}
	}

	if params.Size > s.cfg.MaxUploadSize {
		return nil, &UploadError{
			StatusCode: 413,
			Code:       apierrors.CodeFileTooLarge,
			Message:    fmt.Sprintf("Размер файла %d байт превышает максимум %d байт", params.Size, s.cfg.MaxUploadSize),
		}
	}

	ext := convert.NormalizeExt(filepath.Ext(params.OriginalName))
	if !s.gateway.Supports(ext) {
		return nil, &UploadError{
			StatusCode: 400,
			Code:       apierrors.CodeUnsupportedFormat,
			Message:    fmt.Sprintf("Расширение %q не поддерживается, допустимые: %v", ext, s.gateway.SupportedExtensions()),
		}
	}

	createdAt := time.Now().UTC()

	// 2. Сохраняем оригинал
	storedOriginalName := blobstore.NewStorageKey(params.OriginalName, params.OwnerID, ext)
	written, err := s.blobs.Save(blobstore.KindOriginal, storedOriginalName, params.Reader)
	if err != nil {
		s.logger.Error("Ошибка сохранения оригинала",
			slog.String("filename", params.OriginalName),
			slog.String("error", err.Error()),
		)
		return nil, &UploadError{
			StatusCode: 500,
			Code:       apierrors.CodePersistenceError,
			Message:    "Ошибка сохранения файла",
		}
	}

	// Заявленному размеру не доверяем: проверяем фактически записанное
	if written > s.cfg.MaxUploadSize {
		_ = s.blobs.Delete(blobstore.KindOriginal, storedOriginalName)
		return nil, &UploadError{
			StatusCode: 413,
			Code:       apierrors.CodeFileTooLarge,
			Message:    fmt.Sprintf("Размер файла %d байт превышает максимум %d байт", written, s.cfg.MaxUploadSize),
		}
	}

	// 3. Конвертация в scratch-директорию с таймаутом
	scratch, err := os.MkdirTemp("", "pdfmill-convert-")
	if err != nil {
		_ = s.blobs.Delete(blobstore.KindOriginal, storedOriginalName)
		return nil, &UploadError{
			StatusCode: 500,
			Code:       apierrors.CodePersistenceError,
			Message:    "Ошибка подготовки конвертации",
		}
	}
	defer os.RemoveAll(scratch)

	convCtx, cancel := context.WithTimeout(ctx, s.cfg.ConvertTimeout)
	defer cancel()

	srcPath := s.blobs.Path(blobstore.KindOriginal, storedOriginalName)
	outPath, convErr := s.gateway.Convert(convCtx, srcPath, ext, scratch)
	if convErr != nil {
		_ = s.blobs.Delete(blobstore.KindOriginal, storedOriginalName)
		return nil, classifyConvertError(convErr, convCtx)
	}

	convertedAt := time.Now().UTC()

	// 4. Принимаем PDF в blobstore
	storedConvertedName := blobstore.NewStorageKey(params.OriginalName, params.OwnerID, "pdf")
	size, err := s.blobs.AdoptFile(blobstore.KindConverted, storedConvertedName, outPath)
	if err != nil {
		_ = s.blobs.Delete(blobstore.KindOriginal, storedOriginalName)
		s.logger.Error("Ошибка сохранения PDF",
			slog.String("filename", params.OriginalName),
			slog.String("error", err.Error()),
		)
		return nil, &UploadError{
			StatusCode: 500,
			Code:       apierrors.CodePersistenceError,
			Message:    "Ошибка сохранения результата конвертации",
		}
	}

	// 5. Создаём запись метаданных
	rec = &model.ConversionRecord{
		ID:                  uuid.New().String(),
		OwnerID:             params.OwnerID,
		OriginalName:        params.OriginalName,
		StoredOriginalName:  storedOriginalName,
		StoredConvertedName: storedConvertedName,
		SizeBytes:           size,
		CreatedAt:           createdAt,
		ConvertedAt:         convertedAt,
	}

	if err := s.meta.Create(ctx, rec); err != nil {
		// Компенсация: запись не видна — не должно остаться и blob-ов
		_ = s.blobs.Delete(blobstore.KindOriginal, storedOriginalName)
		_ = s.blobs.Delete(blobstore.KindConverted, storedConvertedName)
		s.logger.Error("Ошибка записи метаданных",
			slog.String("record_id", rec.ID),
			slog.String("error", err.Error()),
		)
		return nil, &UploadError{
			StatusCode: 500,
			Code:       apierrors.CodePersistenceError,
			Message:    "Ошибка сохранения метаданных",
		}
	}

	s.logger.Info("Файл конвертирован",
		slog.String("record_id", rec.ID),
		slog.String("filename", params.OriginalName),
		slog.String("owner_id", params.OwnerID),
		slog.Int64("size", size),
		slog.Duration("took", convertedAt.Sub(createdAt)),
	)

	return rec, nil
}

// classifyConvertError переводит ошибку шлюза конвертации в UploadError.
// Детали причины пользователю не отдаются.
func classifyConvertError(err error, convCtx context.Context) *UploadError {
	switch {
	case errors.Is(err, convert.ErrUnsupportedFormat):
		return &UploadError{
			StatusCode: 400,
			Code:       apierrors.CodeUnsupportedFormat,
			Message:    "Формат файла не поддерживается",
		}
	case errors.Is(err, context.DeadlineExceeded) || convCtx.Err() == context.DeadlineExceeded:
		return &UploadError{
			StatusCode: 500,
			Code:       apierrors.CodeConversionTimeout,
			Message:    "Конвертация не уложилась в отведённое время",
		}
	default:
		return &UploadError{
			StatusCode: 500,
			Code:       apierrors.CodeConversionFailed,
			Message:    "Не удалось конвертировать файл",
		}
	}
}
