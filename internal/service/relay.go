// relay.go — RelayService: приём файла, загрузка в Bot API, запись метаданных
// и формирование публичного URL.
package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/upload-relay/internal/domain/media"
	"github.com/bigkaa/goartstore/upload-relay/internal/domain/model"
	"github.com/bigkaa/goartstore/upload-relay/internal/storage/kv"
)

const (
	// MsgNoFile — ответ на запрос без поля "file"
	MsgNoFile = `No file provided in the "file" field.`
	// MsgNoReference — успешный ответ Bot API без распознаваемого медиа
	MsgNoReference = "Failed to get file ID from Telegram response."
)

// Prometheus-метрики RelayService.
var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ur_uploads_total",
		Help: "Количество обработанных загрузок по категории и результату.",
	}, []string{"category", "result"})

	uploadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ur_upload_duration_seconds",
		Help:    "Длительность загрузки (включая повторы и запись метаданных).",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"category"})

	kvWriteFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ur_kv_write_failures_total",
		Help: "Количество ошибок записи метаданных в KV.",
	})
)

// RelayResponse — успешный ответ: публичный URL файла.
type RelayResponse struct {
	URL string `json:"url"`
	// Key — ключ KV-записи "<id>.<ext>"
	Key string `json:"-"`
}

// RelayError — ошибка загрузки с HTTP-статусом для клиента.
type RelayError struct {
	StatusCode int
	Message    string
}

func (e *RelayError) Error() string {
	return e.Message
}

func badRequest(msg string) *RelayError {
	return &RelayError{StatusCode: http.StatusBadRequest, Message: msg}
}

func internalError(msg string) *RelayError {
	return &RelayError{StatusCode: http.StatusInternalServerError, Message: msg}
}

// RelayConfig — параметры RelayService.
type RelayConfig struct {
	// RecipientID — chat_id получателя (из конфигурации, не от клиента)
	RecipientID string
	// StrictKV — ошибка записи метаданных возвращает 500;
	// иначе ошибка логируется, а клиент получает URL
	StrictKV bool
}

// RelayService — верхний уровень загрузки.
type RelayService struct {
	driver *UploadDriver
	store  kv.Store
	cfg    RelayConfig
	now    func() time.Time
	logger *slog.Logger
}

// NewRelayService создаёт сервис. store == nil — KV не настроено,
// шаг записи метаданных пропускается.
func NewRelayService(driver *UploadDriver, store kv.Store, cfg RelayConfig, logger *slog.Logger) *RelayService {
	return &RelayService{
		driver: driver,
		store:  store,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With(slog.String("component", "relay_service")),
	}
}

// SetClock подменяет источник времени (для тестов).
func (s *RelayService) SetClock(now func() time.Time) {
	s.now = now
}

// Handle выполняет загрузку файла и возвращает URL вида
// <baseURL>/file/<id>.<ext>. Любая непредвиденная ошибка, включая panic,
// возвращается как 500 с её текстом.
func (s *RelayService) Handle(ctx context.Context, file *model.InboundFile, baseURL string) (resp *RelayResponse, relayErr *RelayError) {
	if file == nil || file.Content == nil {
		return nil, badRequest(MsgNoFile)
	}

	category, _ := media.Classify(file.DeclaredType)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Непредвиденная ошибка загрузки",
				slog.String("file_name", file.Name),
				slog.String("panic", fmt.Sprint(r)),
			)
			resp, relayErr = nil, internalError(fmt.Sprint(r))
		}

		result := "success"
		if relayErr != nil {
			result = "error"
		}
		uploadsTotal.WithLabelValues(string(category), result).Inc()
		uploadDuration.WithLabelValues(string(category)).Observe(time.Since(start).Seconds())
	}()

	ext := file.Extension()

	replayable, err := replayableFile(file)
	if err != nil {
		return nil, internalError(err.Error())
	}

	result := s.driver.Upload(ctx, replayable, s.cfg.RecipientID)
	if failure, ok := result.(Failure); ok {
		return nil, internalError(failure.Reason)
	}

	ref, ok := ExtractReference(result)
	if !ok {
		s.logger.Error("Ответ Bot API не содержит медиа",
			slog.String("file_name", file.Name),
		)
		return nil, internalError(MsgNoReference)
	}

	key := ref.Key(ext)

	if s.store != nil {
		meta := model.NewStoredMetadata(file, s.now())
		if err := s.store.Put(ctx, key, "", meta); err != nil {
			kvWriteFailuresTotal.Inc()
			if s.cfg.StrictKV {
				s.logger.Error("Ошибка записи метаданных",
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
				return nil, internalError(err.Error())
			}
			s.logger.Warn("Метаданные не сохранены, URL возвращается",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}

	fileURL := strings.TrimRight(baseURL, "/") + "/file/" + key

	s.logger.Info("Файл загружен",
		slog.String("key", key),
		slog.String("category", string(category)),
		slog.Int64("size", file.Size),
	)

	return &RelayResponse{URL: fileURL, Key: key}, nil
}

// replayableFile гарантирует повторное чтение содержимого: fallback и
// повторы отправляют тот же payload. Содержимое без io.Seeker читается в память.
func replayableFile(file *model.InboundFile) (*model.InboundFile, error) {
	if _, ok := file.Content.(io.Seeker); ok {
		return file, nil
	}

	data, err := io.ReadAll(file.Content)
	if err != nil {
		return nil, fmt.Errorf("чтение содержимого файла: %w", err)
	}

	clone := *file
	clone.Content = bytes.NewReader(data)
	return &clone, nil
}
