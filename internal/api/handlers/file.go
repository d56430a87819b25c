// file.go — обработчик GET /file/{key}: выдача ранее загруженного файла.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/upload-relay/internal/api/errors"
	"github.com/bigkaa/goartstore/upload-relay/internal/service"
)

// GetFile передаёт файл клиенту потоком. Заголовок Range пробрасывается в Bot API.
// Для HEAD отдаются только заголовки.
func (h *APIHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	serve := h.download.Download
	if r.Method == http.MethodHead {
		serve = h.download.Head
	}

	err := serve(r.Context(), w, key, r.Header.Get("Range"))
	if err == nil {
		return
	}

	if errors.Is(err, service.ErrNotFound) {
		apierrors.NotFound(w, "File not found")
		return
	}

	h.logger.Error("Ошибка выдачи файла",
		slog.String("key", key),
		slog.String("error", err.Error()),
	)
	apierrors.BadGateway(w, "Failed to fetch file from Telegram")
}
