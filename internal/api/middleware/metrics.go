// metrics.go — Prometheus HTTP метрики Upload Relay.
// Регистрирует метрики: ur_http_requests_total, ur_http_request_duration_seconds.
// Нормализация путей предотвращает взрывной рост кардинальности.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ur_http_requests_total",
			Help: "Общее количество HTTP-запросов к Upload Relay",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ur_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Upload Relay в секундах",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			route := routeOf(r)
			httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.code())).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// normalizePath заменяет ключ файла на {key}; неизвестные пути
// сводятся к "other". Используется, если шаблон маршрута chi недоступен.
// /file/AgACAgIAAxk.png → /file/{key}
func normalizePath(path string) string {
	switch path {
	case "/health/live", "/health/ready", "/metrics", "/upload", "/api/upload":
		return path
	}

	if strings.HasPrefix(path, "/file/") && len(path) > len("/file/") {
		return "/file/{key}"
	}

	return "other"
}
