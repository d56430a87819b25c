// logging.go — журнал HTTP-запросов Upload Relay.
// Запись содержит шаблон маршрута вместо пути: ключи файлов (/file/{key})
// не порождают отдельных путей в логах, сам ключ пишется атрибутом.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// statusRecorder запоминает статус и объём ответа.
// Общий для журнала и метрик.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	n, err := rec.ResponseWriter.Write(b)
	rec.bytes += int64(n)
	return n, err
}

// Unwrap нужен http.ResponseController (Flush при streaming download).
func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// code возвращает статус; обработчик без записи ответа — 200.
func (rec *statusRecorder) code() int {
	if rec.status == 0 {
		return http.StatusOK
	}
	return rec.status
}

// routeOf возвращает шаблон маршрута chi или нормализованный путь,
// если маршрут не найден (404, 405, вызов вне роутера).
func routeOf(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" && pattern != "/*" {
			return pattern
		}
	}
	return normalizePath(r.URL.Path)
}

// isProbe — запросы kubelet и Prometheus: успешные пишутся на уровне DEBUG.
func isProbe(route string) bool {
	return strings.HasPrefix(route, "/health/") || route == "/metrics"
}

// RequestLogger возвращает middleware журнала запросов.
// Уровень: ERROR для 5xx, WARN для 4xx, DEBUG для успешных probe, иначе INFO.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With(slog.String("component", "http"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			route := routeOf(r)
			status := rec.code()

			var level slog.Level
			switch {
			case status >= http.StatusInternalServerError:
				level = slog.LevelError
			case status >= http.StatusBadRequest:
				level = slog.LevelWarn
			case isProbe(route):
				level = slog.LevelDebug
			default:
				level = slog.LevelInfo
			}

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(r.Context())),
				slog.String("method", r.Method),
				slog.String("route", route),
				slog.Int("status", status),
				slog.Int64("bytes", rec.bytes),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr),
			}
			if key := chi.URLParam(r, "key"); key != "" {
				attrs = append(attrs, slog.String("key", key))
			}

			logger.LogAttrs(r.Context(), level, "HTTP запрос", attrs...)
		})
	}
}
