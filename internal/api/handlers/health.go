// health.go — обработчики health endpoints для Kubernetes probes
// и публичного /api/health.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/arturkryukov/pdfmill/internal/config"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// MetaPinger — интерфейс проверки доступности хранилища метаданных.
type MetaPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler реализует health endpoints: /health/live, /health/ready, /api/health.
type HealthHandler struct {
	version string
	// uploadDir, convertedDir — директории blob-ов (проверка FS)
	uploadDir    string
	convertedDir string
	// meta — хранилище метаданных для проверки готовности
	meta MetaPinger
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(uploadDir, convertedDir string, meta MetaPinger) *HealthHandler {
	return &HealthHandler{
		version:      config.Version,
		uploadDir:    uploadDir,
		convertedDir: convertedDir,
		meta:         meta,
	}
}

// Health обрабатывает GET /api/health.
// Публичный endpoint: процесс жив, базовая информация о сервисе.
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "pdfmill",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.Health(w, r)
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет: директории blob-ов на запись, доступность метаданных.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	uploadCheck := checkDirWritable(h.uploadDir)
	convertedCheck := checkDirWritable(h.convertedDir)
	if uploadCheck["status"] != "ok" || convertedCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	metaCheck := h.checkMeta(r)
	if metaCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	resp := map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "pdfmill",
		"checks": map[string]any{
			"upload_dir":    uploadCheck,
			"converted_dir": convertedCheck,
			"metastore":     metaCheck,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(resp)
}

// checkMeta проверяет доступность хранилища метаданных.
func (h *HealthHandler) checkMeta(r *http.Request) map[string]any {
	if h.meta == nil {
		return map[string]any{
			"status":  "ok",
			"message": "Проверка не настроена",
		}
	}
	if err := h.meta.Ping(r.Context()); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": "Хранилище метаданных недоступно: " + err.Error(),
		}
	}
	return map[string]any{
		"status": "ok",
	}
}

// checkDirWritable проверяет доступность директории на запись.
func checkDirWritable(dir string) map[string]any {
	if dir == "" {
		return map[string]any{
			"status":  "ok",
			"message": "Проверка не настроена",
		}
	}

	testFile := filepath.Join(dir, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": "Директория недоступна для записи: " + err.Error(),
		}
	}
	_ = os.Remove(testFile)

	return map[string]any{
		"status": "ok",
	}
}
