package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	DigestRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "digest_runs_total",
		Help: "Количество начатых запусков рассылки",
	})
	DigestRunLockContentionTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "digest_run_lock_contention_total",
		Help: "Запуски, прерванные из-за уже активной блокировки",
	})
	DigestRunDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "digest_run_duration_seconds",
		Help:    "Длительность полного запуска рассылки",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600, 7200, 10800},
	})
	DigestRecipientsSelected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "digest_recipients_selected",
		Help: "Количество получателей, отобранных в последнем запуске",
	})
	DigestDispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "digest_dispatch_total",
		Help: "Количество отправок дайджеста по исходу",
	}, []string{"status"})
	DigestSupplementalAttachedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "digest_supplemental_attached_total",
		Help: "Количество вложенных дополнительных постов по виду",
	}, []string{"kind"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		DigestRunsTotal,
		DigestRunLockContentionTotal,
		DigestRunDurationSeconds,
		DigestRecipientsSelected,
		DigestDispatchTotal,
		DigestSupplementalAttachedTotal,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// IncRun увеличивает счётчик начатых запусков.
func IncRun() {
	DigestRunsTotal.Inc()
}

// IncRunLockContention отмечает запуск, не получивший блокировку.
func IncRunLockContention() {
	DigestRunLockContentionTotal.Inc()
}

// ObserveRunDuration записывает длительность запуска.
func ObserveRunDuration(d time.Duration) {
	DigestRunDurationSeconds.Observe(d.Seconds())
}

// SetRecipientsSelected сохраняет размер когорты последнего запуска.
func SetRecipientsSelected(n int) {
	DigestRecipientsSelected.Set(float64(n))
}

// IncDispatch увеличивает счётчик отправок с указанным исходом.
func IncDispatch(status string) {
	DigestDispatchTotal.WithLabelValues(status).Inc()
}

// IncSupplementalAttached отмечает вложение дополнительного поста.
func IncSupplementalAttached(kind string) {
	DigestSupplementalAttachedTotal.WithLabelValues(kind).Inc()
}
