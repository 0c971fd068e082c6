package incall

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arzzra/incall/pkg/call"
)

// MetricsCollector собирает метрики in-call приложения.
//
// Prometheus метрики для внешнего мониторинга плюс атомарные performance
// counters для внутренней диагностики. Выключенный сборщик — no-op.
type MetricsCollector struct {
	enabled bool
	logger  call.StructuredLogger

	callsTotal       *prometheus.CounterVec
	callsActive      prometheus.Gauge
	callDuration     prometheus.Histogram
	stateTransitions *prometheus.CounterVec
	disconnectsTotal *prometheus.CounterVec
	upgradeRequests  prometheus.Counter
	errorsTotal      *prometheus.CounterVec

	totalIncoming    int64
	totalDisconnects int64
	totalErrors      int64
}

// MetricsConfig конфигурация сборщика метрик
type MetricsConfig struct {
	// Enabled включает/выключает сбор метрик
	Enabled bool

	// Namespace префикс для Prometheus метрик
	Namespace string

	// Subsystem подсистема для Prometheus метрик
	Subsystem string

	// Logger для диагностики метрик
	Logger call.StructuredLogger
}

// DefaultMetricsConfig возвращает конфигурацию по умолчанию
func DefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		Enabled:   true,
		Namespace: "incall",
		Subsystem: "core",
		Logger:    call.GetDefaultLogger().WithComponent("metrics"),
	}
}

// NewMetricsCollector создает сборщик метрик
func NewMetricsCollector(config *MetricsConfig) *MetricsCollector {
	if config == nil {
		config = DefaultMetricsConfig()
	}
	if !config.Enabled {
		return &MetricsCollector{enabled: false}
	}

	mc := &MetricsCollector{
		enabled: true,
		logger:  config.Logger,
	}
	mc.initPrometheusMetrics(config.Namespace, config.Subsystem)
	return mc
}

func (mc *MetricsCollector) initPrometheusMetrics(namespace, subsystem string) {
	mc.callsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "calls_total",
		Help:      "Total number of calls seen by the in-call core",
	}, []string{"direction"})

	mc.callsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "calls_active",
		Help:      "Number of calls currently tracked by the registry",
	})

	mc.callDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "call_duration_seconds",
		Help:      "Duration of connected calls in seconds",
		Buckets:   []float64{1, 5, 15, 30, 60, 180, 600, 1800, 3600},
	})

	mc.stateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "state_transitions_total",
		Help:      "Total number of application state transitions",
	}, []string{"from_state", "to_state"})

	mc.disconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "disconnects_total",
		Help:      "Total number of call disconnects by cause",
	}, []string{"cause"})

	mc.upgradeRequests = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "video_upgrade_requests_total",
		Help:      "Total number of received video upgrade requests",
	})

	mc.errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "errors_total",
		Help:      "Total number of errors by category",
	}, []string{"category", "severity"})
}

// StateTransition учитывает переход состояния приложения
func (mc *MetricsCollector) StateTransition(from, to InCallState) {
	if !mc.enabled {
		return
	}
	mc.stateTransitions.WithLabelValues(from.String(), to.String()).Inc()
}

// IncomingCall учитывает входящий вызов
func (mc *MetricsCollector) IncomingCall(c *call.Call) {
	if !mc.enabled {
		return
	}
	mc.callsTotal.WithLabelValues("incoming").Inc()
	atomic.AddInt64(&mc.totalIncoming, 1)
}

// OutgoingCall учитывает исходящий вызов
func (mc *MetricsCollector) OutgoingCall(c *call.Call) {
	if !mc.enabled {
		return
	}
	mc.callsTotal.WithLabelValues("outgoing").Inc()
}

// SetActiveCalls обновляет gauge отслеживаемых вызовов
func (mc *MetricsCollector) SetActiveCalls(n int) {
	if !mc.enabled {
		return
	}
	mc.callsActive.Set(float64(n))
}

// CallDisconnected учитывает завершение вызова
func (mc *MetricsCollector) CallDisconnected(c *call.Call) {
	if !mc.enabled {
		return
	}
	mc.disconnectsTotal.WithLabelValues(c.DisconnectCause().Code.String()).Inc()
	atomic.AddInt64(&mc.totalDisconnects, 1)

	if connectTime := c.ConnectTime(); connectTime > 0 {
		duration := time.Since(time.UnixMilli(connectTime))
		if duration > 0 {
			mc.callDuration.Observe(duration.Seconds())
		}
	}
}

// UpgradeRequested учитывает входящий запрос upgrade на видео
func (mc *MetricsCollector) UpgradeRequested() {
	if !mc.enabled {
		return
	}
	mc.upgradeRequests.Inc()
}

// ErrorOccurred учитывает ошибку ядра
func (mc *MetricsCollector) ErrorOccurred(err *call.CallError) {
	if !mc.enabled {
		return
	}
	mc.errorsTotal.WithLabelValues(string(err.Category), string(err.Severity)).Inc()
	atomic.AddInt64(&mc.totalErrors, 1)
}

// GetPerformanceCounters возвращает текущие performance counters
func (mc *MetricsCollector) GetPerformanceCounters() map[string]int64 {
	if !mc.enabled {
		return nil
	}
	return map[string]int64{
		"total_incoming":    atomic.LoadInt64(&mc.totalIncoming),
		"total_disconnects": atomic.LoadInt64(&mc.totalDisconnects),
		"total_errors":      atomic.LoadInt64(&mc.totalErrors),
	}
}
