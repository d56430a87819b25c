// upload_driver.go — отправка файла в Bot API с повторами и fallback.
//
// Драйвер — явный конечный автомат:
//
//	Attempting(category, transientRetriesLeft, fallbackUsed) → Succeeded | Failed
//
// Бюджеты независимы: fallback photo→document используется не более одного
// раза, транспортных повторов не более двух на всю цепочку запросов.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/upload-relay/internal/domain/media"
	"github.com/bigkaa/goartstore/upload-relay/internal/domain/model"
	"github.com/bigkaa/goartstore/upload-relay/internal/tgclient"
)

const (
	// maxTransientRetries — повторы после транспортной ошибки
	maxTransientRetries = 2
	// retryBackoffStep — шаг линейной задержки (1s, затем 2s)
	retryBackoffStep = time.Second

	// ReasonUploadFailed — причина отказа, если Bot API не прислал описание
	ReasonUploadFailed = "Upload to Telegram failed"
	// ReasonNetworkError — причина после исчерпания транспортных повторов
	ReasonNetworkError = "Network error occurred after multiple retries."
)

// Prometheus-метрики драйвера загрузки.
var (
	upstreamAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ur_upstream_attempts_total",
		Help: "Количество запросов к Bot API по методу и исходу.",
	}, []string{"operation", "outcome"})

	uploadFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ur_upload_fallbacks_total",
		Help: "Количество переходов photo → document после отказа Bot API.",
	})

	uploadRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ur_upload_retries_total",
		Help: "Количество повторов после транспортных ошибок.",
	})
)

// --- Результат загрузки ---

// FailureKind — класс неудачной загрузки.
type FailureKind int

const (
	// FailureRejected — Bot API отклонил запрос
	FailureRejected FailureKind = iota + 1
	// FailureTransport — ответ не получен после всех повторов
	FailureTransport
)

// String возвращает имя класса для логов и метрик.
func (k FailureKind) String() string {
	switch k {
	case FailureRejected:
		return "rejected"
	case FailureTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Result — итог загрузки: Success или Failure, никогда оба.
type Result interface {
	isResult()
}

// Success — Bot API принял файл.
type Success struct {
	Response *tgclient.Response
}

// Failure — загрузка не удалась; Reason передаётся клиенту.
type Failure struct {
	Kind   FailureKind
	Reason string
}

func (Success) isResult() {}
func (Failure) isResult() {}

// --- Драйвер ---

// Uploader — один исходящий запрос к методу send*.
type Uploader interface {
	Send(ctx context.Context, req tgclient.UpstreamRequest) (*tgclient.Response, error)
}

// Sleeper приостанавливает текущую загрузку на d.
type Sleeper func(ctx context.Context, d time.Duration)

// sleepContext — Sleeper по умолчанию.
func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// UploadDriver — оркестрация вызовов Bot API.
type UploadDriver struct {
	uploader Uploader
	sleep    Sleeper
	logger   *slog.Logger
}

// NewUploadDriver создаёт драйвер. sleep == nil — реальная задержка.
func NewUploadDriver(uploader Uploader, sleep Sleeper, logger *slog.Logger) *UploadDriver {
	if sleep == nil {
		sleep = sleepContext
	}
	return &UploadDriver{
		uploader: uploader,
		sleep:    sleep,
		logger:   logger.With(slog.String("component", "upload_driver")),
	}
}

// Upload отправляет файл получателю recipientID.
// Ожидаемые ошибки Bot API и сети возвращаются как Failure, не как error.
func (d *UploadDriver) Upload(ctx context.Context, file *model.InboundFile, recipientID string) Result {
	category, _ := media.Classify(file.DeclaredType)
	req := tgclient.NewUpstreamRequest(category, file, recipientID)

	retriesLeft := maxTransientRetries
	fallbackUsed := false
	retryNumber := 0

	for {
		resp, err := d.uploader.Send(ctx, req)
		if err == nil {
			upstreamAttemptsTotal.WithLabelValues(req.Operation, "success").Inc()
			return Success{Response: resp}
		}

		var rejection *tgclient.RejectionError
		if errors.As(err, &rejection) {
			upstreamAttemptsTotal.WithLabelValues(req.Operation, "rejected").Inc()

			if req.Category == media.Photo && !fallbackUsed {
				d.logger.Warn("Bot API отклонил фото, повтор как документ",
					slog.String("file_name", file.Name),
					slog.String("description", rejection.Description),
				)
				uploadFallbacksTotal.Inc()
				fallbackUsed = true
				req = req.AsDocument()
				continue
			}

			reason := rejection.Description
			if reason == "" {
				reason = ReasonUploadFailed
			}
			d.logger.Warn("Bot API отклонил загрузку",
				slog.String("operation", req.Operation),
				slog.String("file_name", file.Name),
				slog.String("reason", reason),
			)
			return Failure{Kind: FailureRejected, Reason: reason}
		}

		upstreamAttemptsTotal.WithLabelValues(req.Operation, "transport_error").Inc()

		if retriesLeft == 0 {
			d.logger.Error("Транспортные повторы исчерпаны",
				slog.String("operation", req.Operation),
				slog.String("file_name", file.Name),
				slog.String("error", err.Error()),
			)
			return Failure{Kind: FailureTransport, Reason: ReasonNetworkError}
		}

		retriesLeft--
		retryNumber++
		delay := time.Duration(retryNumber) * retryBackoffStep

		d.logger.Warn("Транспортная ошибка Bot API, повтор",
			slog.String("operation", req.Operation),
			slog.Int("retry", retryNumber),
			slog.Duration("backoff", delay),
			slog.String("error", err.Error()),
		)
		uploadRetriesTotal.Inc()
		d.sleep(ctx, delay)
	}
}
