package infra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: сколько времени заняла обработка запроса
	RequestDuration *prometheus.HistogramVec

	// Traffic: общее кол-во запросов
	TotalRequests *prometheus.CounterVec

	// Загрузки архивов на диск (по результату)
	DriveUploads *prometheus.CounterVec

	// Отказы guard-цепочки (missing_token, invalid_token, forbidden)
	AuthRejections *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern — если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		RequestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "printhub_request_duration_seconds",
			Help:    "Histogram of request latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"route", "method", "status"}),

		TotalRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "printhub_requests_total",
			Help: "Total number of processed requests.",
		}, []string{"route", "method"}),

		DriveUploads: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "printhub_drive_uploads_total",
			Help: "Total number of drive upload attempts by result.",
		}, []string{"result"}), // результаты: ok, error, not_connected, breaker_open

		AuthRejections: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "printhub_auth_rejections_total",
			Help: "Total number of requests rejected by the guard chain.",
		}, []string{"reason"}),
	}
}
