package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics глобальный контейнер метрик
type Metrics struct {
	// HTTP метрики
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Бизнес-метрики жизненного цикла сканирования
	ScansSubmittedTotal  *prometheus.CounterVec
	ScansCompletedTotal  *prometheus.CounterVec
	ScansFailedTotal     prometheus.Counter
	ScanDuration         *prometheus.HistogramVec
	ScansActive          prometheus.Gauge
	GVMConnectionErrors  prometheus.Counter
	ProbeActiveScans     *prometheus.GaugeVec
	SchedulerDueTargets  prometheus.Gauge
	TargetSyncTotal      *prometheus.CounterVec
	CallbackDispatch     *prometheus.CounterVec

	// Системные метрики
	MemoryUsage *prometheus.GaugeVec
	Goroutines  prometheus.Gauge

	// Информация о сервисе
	ServiceInfo *prometheus.GaugeVec
}

var defaultMetrics *Metrics

// InitMetrics инициализирует метрики
func InitMetrics(namespace, subsystem string) *Metrics {
	m := &Metrics{
		// HTTP метрики
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"route", "method"},
		),

		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		ScansSubmittedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "scans_submitted_total",
				Help:      "Total number of scans submitted for execution",
			},
			[]string{"scan_type"},
		),

		ScansCompletedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "scans_completed_total",
				Help:      "Total number of scans that reached a terminal GVM status",
			},
			[]string{"gvm_status"},
		),

		ScansFailedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "scans_failed_total",
				Help:      "Total number of scans that failed (GVM error, timeout, connection loss)",
			},
		),

		ScanDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "scan_duration_seconds",
				Help:      "Wall-clock duration of completed scans, from create to terminal state",
				Buckets:   []float64{30, 60, 300, 900, 1800, 3600, 7200, 14400, 28800},
			},
			[]string{"scan_type"},
		),

		ScansActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "scans_active",
				Help:      "Current number of scans in a non-terminal state",
			},
		),

		GVMConnectionErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "gvm_connection_errors_total",
				Help:      "Total number of GMP connection failures across all probes",
			},
		),

		ProbeActiveScans: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "probe_active_scans",
				Help:      "Current number of active scans per probe, as seen by the selector",
			},
			[]string{"probe"},
		),

		SchedulerDueTargets: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "scheduler_due_targets",
				Help:      "Number of targets due for a scan at the last scheduler tick",
			},
		),

		TargetSyncTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "target_sync_total",
				Help:      "Total number of target catalog synchronization runs",
			},
			[]string{"outcome"},
		),

		CallbackDispatch: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "callback_dispatch_total",
				Help:      "Total number of completion callback dispatch attempts",
			},
			[]string{"outcome"},
		),

		// Системные метрики
		MemoryUsage: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "memory_usage_bytes",
				Help:      "Current memory usage",
			},
			[]string{"type"},
		),

		Goroutines: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "goroutines",
				Help:      "Current number of goroutines",
			},
		),

		ServiceInfo: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "service_info",
				Help:      "Service information",
			},
			[]string{"version", "environment"},
		),
	}

	defaultMetrics = m
	return m
}

// Get возвращает глобальные метрики
func Get() *Metrics {
	if defaultMetrics == nil {
		return InitMetrics("scanhub", "")
	}
	return defaultMetrics
}

// RecordHTTPRequest записывает метрики HTTP запроса
func (m *Metrics) RecordHTTPRequest(route, method, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(route, method, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordScanSubmitted записывает факт постановки скана на выполнение
func (m *Metrics) RecordScanSubmitted(scanType string) {
	m.ScansSubmittedTotal.WithLabelValues(scanType).Inc()
}

// RecordScanCompleted записывает завершение скана с финальным статусом GVM
func (m *Metrics) RecordScanCompleted(scanType, gvmStatus string, duration time.Duration) {
	m.ScansCompletedTotal.WithLabelValues(gvmStatus).Inc()
	m.ScanDuration.WithLabelValues(scanType).Observe(duration.Seconds())
}

// RecordScanFailed записывает неуспешное завершение скана
func (m *Metrics) RecordScanFailed() {
	m.ScansFailedTotal.Inc()
}

// RecordGVMConnectionError записывает ошибку подключения к probe по GMP
func (m *Metrics) RecordGVMConnectionError() {
	m.GVMConnectionErrors.Inc()
}

// SetProbeActiveScans устанавливает текущее число активных сканов на probe
func (m *Metrics) SetProbeActiveScans(probe string, count int) {
	m.ProbeActiveScans.WithLabelValues(probe).Set(float64(count))
}

// SetSchedulerDueTargets устанавливает число целей, готовых к сканированию
func (m *Metrics) SetSchedulerDueTargets(count int) {
	m.SchedulerDueTargets.Set(float64(count))
}

// RecordTargetSync записывает итог одного прогона синхронизации каталога
func (m *Metrics) RecordTargetSync(outcome string) {
	m.TargetSyncTotal.WithLabelValues(outcome).Inc()
}

// RecordCallbackDispatch записывает итог одной попытки доставки callback-а
func (m *Metrics) RecordCallbackDispatch(outcome string) {
	m.CallbackDispatch.WithLabelValues(outcome).Inc()
}

// SetServiceInfo устанавливает информацию о сервисе
func (m *Metrics) SetServiceInfo(version, environment string) {
	m.ServiceInfo.WithLabelValues(version, environment).Set(1)
}

// Handler возвращает HTTP handler для /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartMetricsServer запускает HTTP сервер для метрик
func StartMetricsServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		// Игнорируем ошибку записи - response уже отправлен
		_, _ = w.Write([]byte("OK")) //nolint:errcheck // health endpoint, ошибка записи не критична
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
