// sweeper.go — фоновая очистка файлов по возрасту.
//
// Sweeper выполняет две задачи:
//  1. Удаляет записи старше порога хранения (оба blob-а + метаданные)
//  2. Подбирает blob-ы-сироты — файлы на диске без записи в метаданных
//
// Запускается как горутина с периодическим тикером (PM_SWEEP_INTERVAL).
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arturkryukov/pdfmill/internal/storage/blobstore"
	"github.com/arturkryukov/pdfmill/internal/storage/metastore"
)

// Prometheus метрики Sweeper-а
var (
	// sweepRunsTotal — количество запусков очистки.
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pm_sweep_runs_total",
		Help: "Общее количество запусков очистки",
	})

	// sweepReclaimedTotal — количество удалённых по возрасту записей.
	sweepReclaimedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pm_sweep_reclaimed_total",
		Help: "Общее количество записей, удалённых по возрасту",
	})

	// sweepReclaimedBytes — объём освобождённого дискового пространства.
	sweepReclaimedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pm_sweep_reclaimed_bytes_total",
		Help: "Общий объём освобождённого по возрасту дискового пространства в байтах",
	})

	// sweepOrphansTotal — количество подобранных blob-ов-сирот.
	sweepOrphansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pm_sweep_orphans_total",
		Help: "Общее количество удалённых blob-ов без записи в метаданных",
	})

	// sweepDurationSeconds — длительность выполнения очистки.
	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pm_sweep_duration_seconds",
		Help:    "Длительность выполнения очистки в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// SweepResult — результат одного запуска очистки.
type SweepResult struct {
	// ReclaimedCount — количество записей, удалённых по возрасту
	ReclaimedCount int
	// ReclaimedBytes — суммарный размер удалённых по возрасту blob-ов
	ReclaimedBytes int64
	// OrphanCount — количество удалённых blob-ов-сирот
	OrphanCount int
	// Errors — количество ошибок при обработке
	Errors int
	// Duration — длительность выполнения
	Duration time.Duration
}

// Sweeper — сервис фоновой очистки файлов по возрасту.
type Sweeper struct {
	blobs     *blobstore.Store
	meta      metastore.Store
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper создаёт сервис очистки.
func NewSweeper(
	blobs *blobstore.Store,
	meta metastore.Store,
	retention time.Duration,
	interval time.Duration,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		blobs:     blobs,
		meta:      meta,
		retention: retention,
		interval:  interval,
		logger:    logger.With(slog.String("component", "sweeper")),
	}
}

// Start запускает фоновую горутину очистки с периодическим тикером.
// Вызывается один раз при старте приложения.
func (sw *Sweeper) Start(ctx context.Context) {
	swCtx, cancel := context.WithCancel(ctx)
	sw.cancel = cancel
	sw.done = make(chan struct{})

	go sw.run(swCtx)

	sw.logger.Info("Очистка запущена",
		slog.String("retention", sw.retention.String()),
		slog.String("interval", sw.interval.String()),
	)
}

// Stop останавливает фоновый процесс и дожидается завершения текущего цикла.
func (sw *Sweeper) Stop() {
	if sw.cancel != nil {
		sw.cancel()
		<-sw.done
	}
	sw.logger.Info("Очистка остановлена")
}

// run — основной цикл фоновой горутины.
func (sw *Sweeper) run(ctx context.Context) {
	defer close(sw.done)

	// Первый запуск — сразу после старта: подчистить хвосты
	// после рестарта, не дожидаясь первого тика.
	sw.RunOnce(ctx)

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sw.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один цикл очистки.
// Потокобезопасен: mutex защищает от параллельного запуска.
//
// Порядок обработки:
//  1. Записи старше порога: сначала blob-ы, затем метаданные
//  2. Blob-ы-сироты: файлы на диске старше порога без записи
func (sw *Sweeper) RunOnce(ctx context.Context) *SweepResult {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	start := time.Now()
	result := &SweepResult{}

	sw.logger.Debug("Цикл очистки начат")

	cutoff := time.Now().UTC().Add(-sw.retention)

	reclaimed, reclaimedBytes, errs := sw.reclaimExpired(ctx, cutoff)
	result.ReclaimedCount = reclaimed
	result.ReclaimedBytes = reclaimedBytes
	result.Errors = errs

	orphans, errs := sw.collectOrphans(ctx, cutoff)
	result.OrphanCount = orphans
	result.Errors += errs

	result.Duration = time.Since(start)

	sweepRunsTotal.Inc()
	sweepReclaimedTotal.Add(float64(reclaimed))
	sweepReclaimedBytes.Add(float64(reclaimedBytes))
	sweepOrphansTotal.Add(float64(orphans))
	sweepDurationSeconds.Observe(result.Duration.Seconds())

	sw.logger.Info("Цикл очистки завершён",
		slog.Int("reclaimed", result.ReclaimedCount),
		slog.Int64("reclaimed_bytes", result.ReclaimedBytes),
		slog.Int("orphans", result.OrphanCount),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", result.Duration),
	)

	return result
}

// reclaimExpired удаляет записи с created_at раньше cutoff.
// Порядок строгий: оба blob-а, затем метаданные. Ошибка на одной записи
// не прерывает обработку остальных. Гонка с ручным удалением безопасна:
// отсутствующий blob и отсутствующая запись — не ошибки.
func (sw *Sweeper) reclaimExpired(ctx context.Context, cutoff time.Time) (reclaimed int, reclaimedBytes int64, errors int) {
	records, err := sw.meta.ListOlderThan(ctx, cutoff)
	if err != nil {
		sw.logger.Error("Ошибка выборки устаревших записей",
			slog.String("error", err.Error()),
		)
		return 0, 0, 1
	}

	for _, rec := range records {
		// Страховка от расхождения текстового сравнения дат в SQL
		// с реальным временем записи.
		if !rec.IsOlderThan(cutoff) {
			continue
		}

		// Размеры снимаем до удаления; уже исчезнувший blob даёт 0
		var recBytes int64
		if n, err := sw.blobs.Size(blobstore.KindOriginal, rec.StoredOriginalName); err == nil {
			recBytes += n
		}
		if n, err := sw.blobs.Size(blobstore.KindConverted, rec.StoredConvertedName); err == nil {
			recBytes += n
		}

		if err := sw.blobs.Delete(blobstore.KindOriginal, rec.StoredOriginalName); err != nil {
			sw.logger.Error("Ошибка удаления оригинала",
				slog.String("record_id", rec.ID),
				slog.String("error", err.Error()),
			)
			errors++
			continue
		}
		if err := sw.blobs.Delete(blobstore.KindConverted, rec.StoredConvertedName); err != nil {
			sw.logger.Error("Ошибка удаления PDF",
				slog.String("record_id", rec.ID),
				slog.String("error", err.Error()),
			)
			errors++
			continue
		}

		if _, err := sw.meta.DeleteByID(ctx, rec.ID); err != nil {
			sw.logger.Error("Ошибка удаления метаданных",
				slog.String("record_id", rec.ID),
				slog.String("error", err.Error()),
			)
			errors++
			continue
		}

		sw.logger.Debug("Устаревшая запись удалена",
			slog.String("record_id", rec.ID),
			slog.String("original_name", rec.OriginalName),
		)
		reclaimed++
		reclaimedBytes += recBytes
	}

	return reclaimed, reclaimedBytes, errors
}

// collectOrphans удаляет blob-ы без записи в метаданных.
// Сироты появляются после аварии между записью blob-а и созданием
// записи. Трогаем только файлы старше cutoff: свежий blob может
// принадлежать ещё не завершённой конвертации.
func (sw *Sweeper) collectOrphans(ctx context.Context, cutoff time.Time) (orphans, errors int) {
	records, err := sw.meta.ListAll(ctx)
	if err != nil {
		sw.logger.Error("Ошибка выборки всех записей",
			slog.String("error", err.Error()),
		)
		return 0, 1
	}

	known := make(map[string]struct{}, len(records)*2)
	for _, rec := range records {
		known[string(blobstore.KindOriginal)+"/"+rec.StoredOriginalName] = struct{}{}
		known[string(blobstore.KindConverted)+"/"+rec.StoredConvertedName] = struct{}{}
	}

	for _, kind := range []blobstore.Kind{blobstore.KindOriginal, blobstore.KindConverted} {
		names, err := sw.blobs.List(kind)
		if err != nil {
			sw.logger.Error("Ошибка сканирования каталога",
				slog.String("kind", string(kind)),
				slog.String("error", err.Error()),
			)
			errors++
			continue
		}

		for _, name := range names {
			if _, ok := known[string(kind)+"/"+name]; ok {
				continue
			}

			mtime, err := sw.blobs.ModTime(kind, name)
			if err != nil {
				// Файл мог исчезнуть между List и ModTime
				continue
			}
			if !mtime.Before(cutoff) {
				continue
			}

			if err := sw.blobs.Delete(kind, name); err != nil {
				sw.logger.Error("Ошибка удаления blob-а-сироты",
					slog.String("kind", string(kind)),
					slog.String("name", name),
					slog.String("error", err.Error()),
				)
				errors++
				continue
			}

			sw.logger.Debug("Blob-сирота удалён",
				slog.String("kind", string(kind)),
				slog.String("name", name),
			)
			orphans++
		}
	}

	return orphans, errors
}
