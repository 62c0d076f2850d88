// recovery.go — перехват паник в обработчиках.
package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	apierrors "github.com/arturkryukov/pdfmill/internal/api/errors"
)

// Recoverer возвращает middleware, переводящий панику обработчика
// в ответ 500 стандартного формата вместо обрыва соединения.
// http.ErrAbortHandler пробрасывается дальше: это штатный способ
// оборвать ответ.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("Паника в обработчике",
						slog.Any("panic", rec),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("stack", string(debug.Stack())),
					)
					apierrors.InternalError(w, "Внутренняя ошибка сервера")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
