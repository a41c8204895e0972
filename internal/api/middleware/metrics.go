// metrics.go — Prometheus HTTP метрики видеосервиса.
// Регистрирует метрики: vs_http_requests_total, vs_http_request_duration_seconds.
// Бизнес-метрики обновляются из сервисного слоя.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vs_http_requests_total",
			Help: "Общее количество HTTP-запросов к видеосервису",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vs_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к видеосервису в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Бизнес-метрики (экспортируются для обновления из сервисного слоя)
var (
	// OperationsTotal — количество бизнес-операций по типу и результату.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vs_operations_total",
			Help: "Общее количество операций видеосервиса",
		},
		[]string{"operation", "result"},
	)

	// UploadedBytesTotal — суммарный объём собранных видео в байтах.
	UploadedBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vs_uploaded_bytes_total",
			Help: "Суммарный объём собранных видеофайлов в байтах",
		},
	)

	// AuthFailuresTotal — количество отклонённых запросов по причине.
	AuthFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vs_auth_failures_total",
			Help: "Общее количество отклонённых попыток аутентификации",
		},
		[]string{"reason"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (заменяем токены и идентификаторы для предотвращения кардинальности)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath заменяет переменные сегменты пути на плейсхолдеры
// для предотвращения взрывного роста кардинальности метрик.
// /videos/a1b2c3d4-... → /videos/{token}
func normalizePath(path string) string {
	switch {
	case path == "/health/live", path == "/health/ready", path == "/metrics",
		path == "/api/v1/info",
		path == "/auth/whitelist/add", path == "/auth/whitelist/remove",
		path == "/auth/whitelist/list",
		path == "/upload/initiate", path == "/upload/chunk", path == "/upload/complete":
		return path
	case strings.HasPrefix(path, "/videos/"):
		return "/videos/{token}"
	}
	return path
}
