// Пакет server — HTTP-сервер pdfmill с graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arturkryukov/pdfmill/internal/api/handlers"
	"github.com/arturkryukov/pdfmill/internal/api/middleware"
	"github.com/arturkryukov/pdfmill/internal/config"
)

// Handlers — набор обработчиков, монтируемых на роутер.
type Handlers struct {
	Auth   *handlers.AuthHandler
	Files  *handlers.FilesHandler
	Health *handlers.HealthHandler
}

// Server — HTTP-сервер pdfmill.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
func New(cfg *config.Config, logger *slog.Logger, h Handlers) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      newRouter(cfg, logger, h),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// newRouter собирает chi-роутер с middleware и всеми endpoints.
func newRouter(cfg *config.Config, logger *slog.Logger, h Handlers) chi.Router {
	router := chi.NewRouter()

	// Middleware: логирование первым, затем метрики,
	// перехват паник и CORS для браузерного фронтенда
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.Recoverer(logger))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret, logger)

	// Публичные endpoints
	router.Get("/api/health", h.Health.Health)
	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Handle("/metrics", promhttp.Handler())

	router.Post("/api/auth/register", h.Auth.Register)
	router.Post("/api/auth/login", h.Auth.Login)

	// Файловые endpoints — только с валидным токеном
	router.Group(func(r chi.Router) {
		r.Use(jwtAuth.Middleware())

		r.Post("/api/files/convert", h.Files.Convert)
		r.Get("/api/files/list", h.Files.List)
		r.Get("/api/files/download/{convertedName}", h.Files.Download)
		r.Delete("/api/files/{convertedName}", h.Files.Delete)
	})

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown с таймаутом
// PM_SHUTDOWN_TIMEOUT.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
