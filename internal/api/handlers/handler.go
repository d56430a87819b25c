// handler.go — основной обработчик API Upload Relay.
// Объединяет health, загрузку и выдачу файлов.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bigkaa/goartstore/upload-relay/internal/domain/model"
	"github.com/bigkaa/goartstore/upload-relay/internal/service"
)

// Relayer — загрузка файла в Bot API (service.RelayService).
type Relayer interface {
	Handle(ctx context.Context, file *model.InboundFile, baseURL string) (*service.RelayResponse, *service.RelayError)
}

// Downloader — выдача файла по ключу (service.DownloadService).
type Downloader interface {
	Download(ctx context.Context, w http.ResponseWriter, key, rangeHeader string) error
	Head(ctx context.Context, w http.ResponseWriter, key, rangeHeader string) error
}

// Options — параметры обработчиков загрузки.
type Options struct {
	// PublicBaseURL — базовый URL в ответах; пусто — вычисляется из запроса
	PublicBaseURL string
	// MultipartMemory — лимит памяти ParseMultipartForm, остальное на диск
	MultipartMemory int64
}

// APIHandler — основной обработчик API.
type APIHandler struct {
	health   *HealthHandler
	relay    Relayer
	download Downloader
	opts     Options
	logger   *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	relay Relayer,
	download Downloader,
	opts Options,
	logger *slog.Logger,
) *APIHandler {
	if opts.MultipartMemory <= 0 {
		opts.MultipartMemory = 32 << 20
	}
	return &APIHandler{
		health:   health,
		relay:    relay,
		download: download,
		opts:     opts,
		logger:   logger.With(slog.String("component", "api_handler")),
	}
}

// --- Health endpoints (делегируются в HealthHandler) ---

// HealthLive — liveness probe.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
