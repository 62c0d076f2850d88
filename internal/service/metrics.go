// metrics.go — Prometheus бизнес-метрики файловых операций.
// HTTP-метрики регистрируются в internal/api/middleware,
// метрики Sweeper — в sweeper.go.
package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// operationsTotal — общее количество файловых операций по результату.
var operationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pm_operations_total",
		Help: "Общее количество файловых операций",
	},
	[]string{"operation", "result"},
)
