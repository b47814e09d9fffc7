// Package metrics содержит метрики Prometheus сервера личного кабинета.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "investdash_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "investdash_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	BackendRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "investdash_backend_requests_total",
			Help: "Requests issued to the backend API by outcome.",
		},
		[]string{"method", "outcome"},
	)
	GuardRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "investdash_session_guard_rejections_total",
			Help: "Protected requests redirected to login by the session guard.",
		},
	)
	GateFailOpen = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "investdash_kyc_gate_fail_open_total",
			Help: "Verification status lookups that failed and defaulted to no banner.",
		},
	)
	FeedFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "investdash_feed_fallbacks_total",
			Help: "Public feed responses served from the static fallback set by reason.",
		},
		[]string{"reason"},
	)
)

// NewRegistry создаёт реестр с метриками сервиса и стандартными коллекторами процесса.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		RequestCount,
		RequestDuration,
		BackendRequests,
		GuardRejections,
		GateFailOpen,
		FeedFallbacks,
	)
	return registry
}

// Handler возвращает HTTP-обработчик для выдачи метрик.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
