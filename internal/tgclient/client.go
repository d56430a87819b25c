// Пакет tgclient — HTTP-клиент Telegram Bot API для загрузки медиа
// и получения файлов по file_id.
//
// Ошибки Send разделены на два класса:
//   - *RejectionError — Bot API получил запрос и отклонил его (не-2xx с JSON-описанием);
//   - *TransportError — ответ не получен или не разобран (сеть, обрыв, не-JSON тело).
//
// Повторы и fallback решает вызывающий код (service.UploadDriver).
package tgclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/bigkaa/goartstore/upload-relay/internal/domain/media"
	"github.com/bigkaa/goartstore/upload-relay/internal/domain/model"
)

// maxResponseSize — ограничение размера JSON-ответа Bot API.
const maxResponseSize = 1 << 20

// errAttemptFinished — закрывает pipe multipart-тела после завершения запроса.
var errAttemptFinished = errors.New("попытка завершена")

// UpstreamRequest — один запрос к методу send*. Создаётся заново на каждую
// попытку; fallback создаёт новый запрос с категорией Document.
type UpstreamRequest struct {
	// Category — категория загрузки (определяет поле multipart)
	Category media.Category
	// Operation — метод Bot API (sendPhoto, sendDocument, ...)
	Operation string
	// File — отправляемый файл
	File *model.InboundFile
	// RecipientID — chat_id получателя
	RecipientID string
}

// NewUpstreamRequest создаёт запрос для категории с соответствующим методом.
func NewUpstreamRequest(category media.Category, file *model.InboundFile, recipientID string) UpstreamRequest {
	return UpstreamRequest{
		Category:    category,
		Operation:   category.Operation(),
		File:        file,
		RecipientID: recipientID,
	}
}

// AsDocument возвращает новый запрос с тем же файлом и получателем,
// отправляемый как документ.
func (r UpstreamRequest) AsDocument() UpstreamRequest {
	return NewUpstreamRequest(media.Document, r.File, r.RecipientID)
}

// RejectionError — Bot API разобрал запрос и вернул отказ.
type RejectionError struct {
	StatusCode  int
	ErrorCode   int
	Description string
}

func (e *RejectionError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("Bot API отклонил запрос (HTTP %d)", e.StatusCode)
	}
	return fmt.Sprintf("Bot API отклонил запрос (HTTP %d): %s", e.StatusCode, e.Description)
}

// TransportError — ответ Bot API не получен или не может быть разобран.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "транспортная ошибка Bot API: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client — HTTP-клиент Bot API.
type Client struct {
	httpClient *http.Client
	apiURL     string
	token      string
	logger     *slog.Logger
}

// New создаёт клиент Bot API.
// apiURL — базовый URL (https://api.telegram.org), token — токен бота,
// timeout — таймаут HTTP-запросов (0 — без таймаута).
func New(apiURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 10,
			},
		},
		apiURL: strings.TrimRight(apiURL, "/"),
		token:  token,
		logger: logger.With(slog.String("component", "tg_client")),
	}
}

// APIURL возвращает базовый URL Bot API (для мониторинга зависимостей).
func (c *Client) APIURL() string {
	return c.apiURL
}

// Send выполняет один multipart POST {apiURL}/bot{token}/{operation}.
// Ровно один исходящий запрос на вызов. Перед отправкой содержимое файла
// перематывается в начало, если оно поддерживает io.Seeker.
func (c *Client) Send(ctx context.Context, req UpstreamRequest) (*Response, error) {
	if seeker, ok := req.File.Content.(io.Seeker); ok {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return nil, &TransportError{Err: fmt.Errorf("перемотка содержимого файла: %w", err)}
		}
	}

	reqURL := c.methodURL(req.Operation)

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	// Тело пишется потоково; горутина гарантированно завершается до выхода из Send
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = pw.CloseWithError(writeMultipart(mw, req))
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, pr)
	if err != nil {
		_ = pr.CloseWithError(errAttemptFinished)
		<-done
		return nil, &TransportError{Err: c.redact(fmt.Errorf("создание запроса %s: %w", req.Operation, err))}
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq) //nolint:gosec // G107: URL из конфигурации
	_ = pr.CloseWithError(errAttemptFinished)
	<-done
	if err != nil {
		return nil, &TransportError{Err: c.redact(fmt.Errorf("запрос %s: %w", req.Operation, err))}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("чтение ответа %s: %w", req.Operation, err)}
	}

	decoded, err := DecodeResponse(body)
	if err != nil {
		// Тело не JSON (например, HTML от прокси) — считаем ответ не полученным
		return nil, &TransportError{Err: fmt.Errorf("%s, HTTP %d: %w", req.Operation, resp.StatusCode, err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RejectionError{
			StatusCode:  resp.StatusCode,
			ErrorCode:   decoded.ErrorCode,
			Description: decoded.Description,
		}
	}

	c.logger.Debug("Bot API ответил",
		slog.String("operation", req.Operation),
		slog.Int("status", resp.StatusCode),
		slog.Bool("ok", decoded.OK),
	)

	return decoded, nil
}

// GetFile выполняет getFile и возвращает описание файла с file_path.
func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	reqURL := c.methodURL("getFile") + "?file_id=" + url.QueryEscape(fileID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, c.redact(fmt.Errorf("создание запроса getFile: %w", err))
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // G107: URL из конфигурации
	if err != nil {
		return nil, &TransportError{Err: c.redact(fmt.Errorf("запрос getFile: %w", err))}
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&env); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("декодирование ответа getFile (HTTP %d): %w", resp.StatusCode, err)}
	}

	if !env.OK || resp.StatusCode != http.StatusOK {
		return nil, &RejectionError{
			StatusCode:  resp.StatusCode,
			ErrorCode:   env.ErrorCode,
			Description: env.Description,
		}
	}

	var file File
	if !env.hasResult() {
		return nil, fmt.Errorf("getFile: пустой result")
	}
	if err := json.Unmarshal(env.Result, &file); err != nil {
		return nil, fmt.Errorf("декодирование File: %w", err)
	}
	if file.FilePath == "" {
		return nil, fmt.Errorf("getFile: пустой file_path для %s", fileID)
	}

	return &file, nil
}

// Download запрашивает содержимое файла по file_path.
// rangeHeader — значение заголовка Range клиента (пустая строка — без Range).
// Возвращает *http.Response — вызывающий код ОБЯЗАН закрыть resp.Body.
func (c *Client) Download(ctx context.Context, filePath, rangeHeader string) (*http.Response, error) {
	reqURL := fmt.Sprintf("%s/file/bot%s/%s", c.apiURL, c.token, strings.TrimLeft(filePath, "/"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, c.redact(fmt.Errorf("создание запроса Download: %w", err))
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // G107: URL из конфигурации
	if err != nil {
		return nil, &TransportError{Err: c.redact(fmt.Errorf("запрос Download: %w", err))}
	}

	// Не закрываем resp.Body — вызывающий код отвечает за это (streaming)
	return resp, nil
}

// methodURL формирует URL метода Bot API.
func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.apiURL, c.token, method)
}

// redact убирает токен бота из текста ошибки (net/http включает URL в ошибки).
func (c *Client) redact(err error) error {
	if c.token == "" || !strings.Contains(err.Error(), c.token) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), c.token, "<token>"))
}

// writeMultipart пишет поля chat_id и файла в multipart writer.
func writeMultipart(mw *multipart.Writer, req UpstreamRequest) error {
	if err := mw.WriteField("chat_id", req.RecipientID); err != nil {
		return fmt.Errorf("запись chat_id: %w", err)
	}

	part, err := mw.CreatePart(filePartHeader(req.Category.Field(), req.File))
	if err != nil {
		return fmt.Errorf("создание части %s: %w", req.Category.Field(), err)
	}

	if _, err := io.Copy(part, req.File.Content); err != nil {
		return fmt.Errorf("запись содержимого файла: %w", err)
	}

	return mw.Close()
}

// quoteEscaper экранирует имя файла в Content-Disposition (как mime/multipart).
var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// filePartHeader формирует заголовки части файла с исходным Content-Type.
func filePartHeader(field string, file *model.InboundFile) textproto.MIMEHeader {
	contentType := file.DeclaredType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return textproto.MIMEHeader{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(field), quoteEscaper.Replace(file.Name))},
		"Content-Type": {contentType},
	}
}
