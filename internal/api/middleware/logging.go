// logging.go — журналирование обработанных HTTP-запросов.
// Каждый запрос даёт ровно одну строку лога после завершения обработки;
// уровень строки определяется итоговым статус-кодом.
package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// loggedWriter накапливает статус и объём ответа для строки лога.
type loggedWriter struct {
	http.ResponseWriter
	status int
	size   int64
}

func (lw *loggedWriter) WriteHeader(code int) {
	lw.status = code
	lw.ResponseWriter.WriteHeader(code)
}

func (lw *loggedWriter) Write(b []byte) (int, error) {
	n, err := lw.ResponseWriter.Write(b)
	lw.size += int64(n)
	return n, err
}

// Unwrap отдаёт исходный ResponseWriter для http.ResponseController.
func (lw *loggedWriter) Unwrap() http.ResponseWriter {
	return lw.ResponseWriter
}

// levelForStatus выбирает уровень лога по статус-коду:
// 5xx — ERROR, 4xx — WARN, остальное — INFO.
func levelForStatus(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// RequestLogger возвращает middleware журналирования запросов.
// Ошибки загрузки и скачивания видны по уровню строки, без отдельного
// разбора тела ответа.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	httpLogger := logger.With(slog.String("component", "http"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lw := &loggedWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(lw, r)

			httpLogger.LogAttrs(r.Context(), levelForStatus(lw.status), "Запрос обработан",
				slog.String("method", r.Method),
				slog.Int("status", lw.status),
				slog.String("path", r.URL.Path),
				slog.Int64("size_bytes", lw.size),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}
