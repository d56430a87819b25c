// upload.go — обработчик POST /upload (и /api/upload).
// Multipart form: file (обязательно). Получатель задаётся конфигурацией.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/bigkaa/goartstore/upload-relay/internal/api/errors"
	"github.com/bigkaa/goartstore/upload-relay/internal/api/middleware"
	"github.com/bigkaa/goartstore/upload-relay/internal/domain/model"
	"github.com/bigkaa/goartstore/upload-relay/internal/service"
)

// UploadFile принимает файл и возвращает {"url": ...}.
// Загрузка не прерывается при отключении клиента: контекст отвязан от запроса.
func (h *APIHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.opts.MultipartMemory); err != nil {
		h.logger.Debug("Тело запроса не разобрано как multipart",
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		apierrors.ValidationError(w, service.MsgNoFile)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		if !errors.Is(err, http.ErrMissingFile) {
			h.logger.Warn("Ошибка чтения поля file", slog.String("error", err.Error()))
		}
		apierrors.ValidationError(w, service.MsgNoFile)
		return
	}
	defer file.Close()

	inbound := &model.InboundFile{
		Name:         header.Filename,
		DeclaredType: header.Header.Get("Content-Type"),
		Size:         header.Size,
		Content:      file,
	}

	ctx := context.WithoutCancel(r.Context())
	resp, relayErr := h.relay.Handle(ctx, inbound, h.baseURL(r))
	if relayErr != nil {
		apierrors.WriteError(w, relayErr.StatusCode, relayErr.Message)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// baseURL возвращает публичный базовый URL: из конфигурации или
// <scheme>://<host> запроса (схема из TLS или X-Forwarded-Proto).
func (h *APIHandler) baseURL(r *http.Request) string {
	if h.opts.PublicBaseURL != "" {
		return h.opts.PublicBaseURL
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		// Прокси может передать цепочку: "https, http"
		proto = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
		if proto == "http" || proto == "https" {
			scheme = proto
		}
	}

	return scheme + "://" + r.Host
}
