// health.go — обработчики health endpoints Upload Relay.
// /health/live — liveness probe (процесс жив)
// /health/ready — readiness probe (KV и Bot API)
// /metrics — Prometheus метрики
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/goartstore/upload-relay/internal/config"
)

// Константы статусов health check.
const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	statusFail     = "fail"
)

// ReadinessChecker — интерфейс проверки готовности зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и сообщение.
	CheckReady() (status, message string)
}

// --- Проверки зависимостей ---

// pinger — хранилище с проверкой доступности (kv.Store).
type pinger interface {
	Ready(ctx context.Context) error
}

// KVChecker — готовность KV-хранилища. Недоступное KV — fail.
type KVChecker struct {
	store pinger
}

// NewKVChecker создаёт проверку KV.
func NewKVChecker(store pinger) *KVChecker {
	return &KVChecker{store: store}
}

// CheckReady проверяет KV с таймаутом 3s.
func (c *KVChecker) CheckReady() (status, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := c.store.Ready(ctx); err != nil {
		return statusFail, fmt.Sprintf("KV недоступно: %v", err)
	}
	return statusOK, "хранилище доступно"
}

// DependencyChecker — состояние зависимостей из dephealth.
// Недоступный Bot API — degraded: загрузки вернут ошибку, но перезапуск не поможет.
type DependencyChecker struct {
	health func() map[string]bool
}

// NewDependencyChecker создаёт проверку по карте состояний (DephealthService.Health).
func NewDependencyChecker(health func() map[string]bool) *DependencyChecker {
	return &DependencyChecker{health: health}
}

// CheckReady возвращает degraded, если хотя бы одна зависимость недоступна.
func (c *DependencyChecker) CheckReady() (status, message string) {
	var failed []string
	for name, ok := range c.health() {
		if !ok {
			failed = append(failed, name)
		}
	}
	if len(failed) == 0 {
		return statusOK, "зависимости доступны"
	}
	sort.Strings(failed)
	return statusDegraded, "недоступны: " + strings.Join(failed, ", ")
}

// --- HealthHandler ---

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	kvChecker   ReadinessChecker
	depsChecker ReadinessChecker
	promHandler http.Handler
}

// NewHealthHandler создаёт обработчик health endpoints.
// kvChecker — nil, если KV не настроено; depsChecker — nil, если мониторинг выключен.
func NewHealthHandler(kvChecker, depsChecker ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		kvChecker:   kvChecker,
		depsChecker: depsChecker,
		promHandler: promhttp.Handler(),
	}
}

// healthCheckResult — результат проверки одной зависимости.
type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthLiveResponse — ответ liveness probe.
type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

// healthReadyResponse — ответ readiness probe.
type healthReadyResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
	Checks    struct {
		KV           healthCheckResult `json:"kv"`
		Dependencies healthCheckResult `json:"dependencies"`
	} `json:"checks"`
}

// HealthLive — liveness probe. Возвращает 200 если процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthLiveResponse{
		Status:    statusOK,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   "upload-relay",
	})
}

// HealthReady — readiness probe. Возвращает 200 (ok/degraded) или 503 (fail).
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	resp := healthReadyResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   "upload-relay",
	}

	resp.Checks.KV = runCheck(h.kvChecker, "KV не настроено")
	resp.Checks.Dependencies = runCheck(h.depsChecker, "мониторинг выключен")
	resp.Status = overallStatus(resp.Checks.KV.Status, resp.Checks.Dependencies.Status)

	status := http.StatusOK
	if resp.Status == statusFail {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// GetMetrics — Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

// runCheck выполняет проверку; отсутствующая проверка считается ok.
func runCheck(c ReadinessChecker, disabledMsg string) healthCheckResult {
	if c == nil {
		return healthCheckResult{Status: statusOK, Message: disabledMsg}
	}
	status, msg := c.CheckReady()
	return healthCheckResult{Status: status, Message: msg}
}

// overallStatus определяет итоговый статус из статусов зависимостей.
// Если хотя бы одна зависимость fail — итог fail.
// Если хотя бы одна degraded — итог degraded. Иначе — ok.
func overallStatus(statuses ...string) string {
	hasDegraded := false
	for _, s := range statuses {
		if s == statusFail {
			return statusFail
		}
		if s == statusDegraded {
			hasDegraded = true
		}
	}
	if hasDegraded {
		return statusDegraded
	}
	return statusOK
}
