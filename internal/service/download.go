// download.go — выдача ранее загруженного файла по ключу "<id>.<ext>".
// Pipeline: метаданные (KV, если настроено) → file_path (кэш или getFile) →
// streaming download из Bot API.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/upload-relay/internal/domain/model"
	"github.com/bigkaa/goartstore/upload-relay/internal/storage/kv"
	"github.com/bigkaa/goartstore/upload-relay/internal/tgclient"
)

// ErrNotFound — файл не найден (нет записи в KV или Bot API не знает file_id).
var ErrNotFound = errors.New("файл не найден")

// sniffLen — сколько байт читается для определения MIME-типа.
const sniffLen = 3072

// Prometheus-метрики download.
var (
	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ur_downloads_total",
		Help: "Общее количество запросов на скачивание (по статусу).",
	}, []string{"status"})

	downloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ur_download_duration_seconds",
		Help:    "Длительность proxy download (от запроса до завершения streaming).",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	})
)

// FileSource — получение файлов из Bot API.
type FileSource interface {
	GetFile(ctx context.Context, fileID string) (*tgclient.File, error)
	Download(ctx context.Context, filePath, rangeHeader string) (*http.Response, error)
}

// DownloadService — proxy download файлов из Bot API.
type DownloadService struct {
	source FileSource
	cache  *CacheService
	store  kv.Store
	logger *slog.Logger
}

// NewDownloadService создаёт сервис. store == nil — ключ не проверяется по KV.
func NewDownloadService(source FileSource, cache *CacheService, store kv.Store, logger *slog.Logger) *DownloadService {
	return &DownloadService{
		source: source,
		cache:  cache,
		store:  store,
		logger: logger.With(slog.String("component", "download_service")),
	}
}

// Download передаёт файл по ключу в w.
// Возвращает ErrNotFound, если файл неизвестен; после начала записи
// ответа ошибки только логируются.
func (ds *DownloadService) Download(ctx context.Context, w http.ResponseWriter, key, rangeHeader string) error {
	return ds.serve(ctx, w, key, rangeHeader, false)
}

// Head записывает только заголовки ответа. Тело из Bot API не копируется:
// читается не больше sniffLen байт для определения Content-Type.
func (ds *DownloadService) Head(ctx context.Context, w http.ResponseWriter, key, rangeHeader string) error {
	return ds.serve(ctx, w, key, rangeHeader, true)
}

// serve — общий pipeline Download и Head.
func (ds *DownloadService) serve(ctx context.Context, w http.ResponseWriter, key, rangeHeader string, headOnly bool) error {
	start := time.Now()
	fileID, _ := model.SplitKey(key)
	if fileID == "" {
		downloadsTotal.WithLabelValues("not_found").Inc()
		return ErrNotFound
	}

	var fileName string
	if ds.store != nil {
		entry, err := ds.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				downloadsTotal.WithLabelValues("not_found").Inc()
				return ErrNotFound
			}
			downloadsTotal.WithLabelValues("kv_error").Inc()
			return fmt.Errorf("получение метаданных %s: %w", key, err)
		}
		fileName = entry.Metadata.FileName
	}

	resp, err := ds.fetch(ctx, fileID, rangeHeader)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			downloadsTotal.WithLabelValues("not_found").Inc()
		} else {
			downloadsTotal.WithLabelValues("upstream_error").Inc()
		}
		return err
	}
	defer resp.Body.Close()

	// Начало файла читается до записи заголовков: при ошибке чтения
	// клиент получает ответ об ошибке без заголовков файла
	body := io.Reader(resp.Body)
	sniffed := ""
	if resp.StatusCode == http.StatusOK && isGenericType(resp.Header.Get("Content-Type")) {
		head := make([]byte, sniffLen)
		n, readErr := io.ReadFull(resp.Body, head)
		if readErr != nil && !errors.Is(readErr, io.ErrUnexpectedEOF) && !errors.Is(readErr, io.EOF) {
			downloadsTotal.WithLabelValues("upstream_error").Inc()
			return fmt.Errorf("чтение файла %s: %w", fileID, readErr)
		}
		head = head[:n]
		sniffed = mimetype.Detect(head).String()
		body = io.MultiReader(bytes.NewReader(head), resp.Body)
	}

	ds.copyHeaders(w, resp)
	if sniffed != "" {
		w.Header().Set("Content-Type", sniffed)
	}
	if fileName != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": fileName}))
	}

	w.WriteHeader(resp.StatusCode)

	if headOnly {
		downloadsTotal.WithLabelValues("head").Inc()
		return nil
	}

	written, err := io.Copy(w, body)
	if err != nil {
		ds.logger.Error("Ошибка streaming download",
			slog.String("key", key),
			slog.Int64("bytes_written", written),
			slog.String("error", err.Error()),
		)
		downloadsTotal.WithLabelValues("stream_error").Inc()
		return nil
	}

	duration := time.Since(start)
	downloadsTotal.WithLabelValues("success").Inc()
	downloadDuration.Observe(duration.Seconds())

	ds.logger.Debug("Download завершён",
		slog.String("key", key),
		slog.Int64("bytes", written),
		slog.Duration("duration", duration),
	)
	return nil
}

// fetch открывает поток файла. Если file_path из кэша устарел (404),
// кэш инвалидируется и file_path запрашивается повторно один раз.
func (ds *DownloadService) fetch(ctx context.Context, fileID, rangeHeader string) (*http.Response, error) {
	for attempt := 0; attempt < 2; attempt++ {
		filePath, cached, err := ds.resolvePath(ctx, fileID)
		if err != nil {
			return nil, err
		}

		resp, err := ds.source.Download(ctx, filePath, rangeHeader)
		if err != nil {
			return nil, fmt.Errorf("скачивание файла %s: %w", fileID, err)
		}

		switch resp.StatusCode {
		case http.StatusOK, http.StatusPartialContent:
			return resp, nil
		case http.StatusNotFound:
			resp.Body.Close()
			ds.cache.Delete(fileID)
			if cached {
				ds.logger.Debug("file_path из кэша устарел, повторный getFile",
					slog.String("file_id", fileID),
				)
				continue
			}
			return nil, ErrNotFound
		default:
			resp.Body.Close()
			return nil, fmt.Errorf("неожиданный статус Bot API %d для файла %s", resp.StatusCode, fileID)
		}
	}
	return nil, ErrNotFound
}

// resolvePath возвращает file_path из кэша или через getFile.
func (ds *DownloadService) resolvePath(ctx context.Context, fileID string) (string, bool, error) {
	if filePath, ok := ds.cache.Get(fileID); ok {
		return filePath, true, nil
	}

	file, err := ds.source.GetFile(ctx, fileID)
	if err != nil {
		var rejection *tgclient.RejectionError
		if errors.As(err, &rejection) {
			return "", false, ErrNotFound
		}
		return "", false, fmt.Errorf("getFile %s: %w", fileID, err)
	}

	ds.cache.Set(fileID, file.FilePath)
	return file.FilePath, false, nil
}

// copyHeaders пробрасывает заголовки ответа Bot API клиенту.
func (ds *DownloadService) copyHeaders(w http.ResponseWriter, resp *http.Response) {
	headersToProxy := []string{
		"Content-Type",
		"Content-Length",
		"Content-Range",
		"Accept-Ranges",
		"ETag",
		"Last-Modified",
	}

	for _, h := range headersToProxy {
		if v := resp.Header.Get(h); v != "" {
			w.Header().Set(h, v)
		}
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
}

// isGenericType сообщает, что Content-Type не несёт информации о формате.
func isGenericType(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return true
	}
	return mediaType == "application/octet-stream"
}
