// files.go — HTTP handlers файловых операций.
// Convert (upload), List, Download, Delete.
package handlers

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arturkryukov/pdfmill/internal/api/errors"
	"github.com/arturkryukov/pdfmill/internal/api/middleware"
	"github.com/arturkryukov/pdfmill/internal/domain/model"
	"github.com/arturkryukov/pdfmill/internal/service"
)

// FilesHandler — обработчик файловых endpoints.
type FilesHandler struct {
	uploadSvc *service.UploadService
	accessSvc *service.AccessService
	// maxUploadSize — лимит размера тела запроса
	maxUploadSize int64
}

// NewFilesHandler создаёт обработчик файловых endpoints.
func NewFilesHandler(uploadSvc *service.UploadService, accessSvc *service.AccessService, maxUploadSize int64) *FilesHandler {
	return &FilesHandler{
		uploadSvc:     uploadSvc,
		accessSvc:     accessSvc,
		maxUploadSize: maxUploadSize,
	}
}

// fileResponse — представление записи конвертации в API-ответах.
type fileResponse struct {
	ID            string `json:"id"`
	OriginalName  string `json:"originalName"`
	ConvertedName string `json:"convertedName"`
	SizeBytes     int64  `json:"sizeBytes"`
	CreatedAt     string `json:"createdAt"`
	ConvertedAt   string `json:"convertedAt"`
}

// Convert обрабатывает POST /api/files/convert.
// Multipart form: file (обязательно). Ответ 201 с метаданными записи.
func (h *FilesHandler) Convert(w http.ResponseWriter, r *http.Request) {
	subject := middleware.SubjectFromContext(r.Context())

	// Жёсткий лимит тела запроса: превышение обрывает чтение,
	// небольшой запас — на multipart заголовки
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+1<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			errors.FileTooLarge(w, fmt.Sprintf("Размер запроса превышает максимум %d байт", h.maxUploadSize))
			return
		}
		errors.ValidationError(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		errors.ValidationError(w, "Поле 'file' обязательно")
		return
	}
	defer file.Close()

	rec, uploadErr := h.uploadSvc.Upload(r.Context(), service.UploadParams{
		Reader:       file,
		OriginalName: header.Filename,
		Size:         header.Size,
		OwnerID:      subject,
	})
	if uploadErr != nil {
		errors.WriteError(w, uploadErr.StatusCode, uploadErr.Code, uploadErr.Message)
		return
	}

	writeJSON(w, http.StatusCreated, domainToAPIRecord(rec))
}

// List обрабатывает GET /api/files/list.
// Возвращает записи владельца, новые первые.
func (h *FilesHandler) List(w http.ResponseWriter, r *http.Request) {
	subject := middleware.SubjectFromContext(r.Context())

	records, accessErr := h.accessSvc.List(r.Context(), subject)
	if accessErr != nil {
		errors.WriteError(w, accessErr.StatusCode, accessErr.Code, accessErr.Message)
		return
	}

	items := make([]fileResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, domainToAPIRecord(rec))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": len(items),
	})
}

// Download обрабатывает GET /api/files/download/{convertedName}.
// Отдаёт PDF как attachment, поддерживает Range requests.
func (h *FilesHandler) Download(w http.ResponseWriter, r *http.Request) {
	subject := middleware.SubjectFromContext(r.Context())
	convertedName := chi.URLParam(r, "convertedName")

	accessErr := h.accessSvc.Serve(w, r, subject, convertedName)
	if accessErr != nil {
		// Forbidden наружу не отдаём: чужой владелец получает 404,
		// как будто записи нет
		if accessErr.Code == errors.CodeForbidden {
			errors.NotFound(w, "Файл не найден")
			return
		}
		errors.WriteError(w, accessErr.StatusCode, accessErr.Code, accessErr.Message)
	}
}

// Delete обрабатывает DELETE /api/files/{convertedName}.
// Идемпотентно: повторное удаление того же имени — тоже 404,
// но без ошибки на стороне хранилища.
func (h *FilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	subject := middleware.SubjectFromContext(r.Context())
	convertedName := chi.URLParam(r, "convertedName")

	found, accessErr := h.accessSvc.Delete(r.Context(), subject, convertedName)
	if accessErr != nil {
		if accessErr.Code == errors.CodeForbidden {
			errors.NotFound(w, "Файл не найден")
			return
		}
		errors.WriteError(w, accessErr.StatusCode, accessErr.Code, accessErr.Message)
		return
	}
	if !found {
		errors.NotFound(w, "Файл не найден")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// domainToAPIRecord преобразует доменную модель в API-формат.
// Внутреннее имя оригинала наружу не уходит.
func domainToAPIRecord(rec *model.ConversionRecord) fileResponse {
	return fileResponse{
		ID:            rec.ID,
		OriginalName:  rec.OriginalName,
		ConvertedName: rec.StoredConvertedName,
		SizeBytes:     rec.SizeBytes,
		CreatedAt:     formatTime(rec.CreatedAt),
		ConvertedAt:   formatTime(rec.ConvertedAt),
	}
}

// formatTime форматирует время для API-ответов.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
