// extractor.go — извлечение канонического идентификатора из ответа Bot API.
package service

import (
	"github.com/samber/lo"

	"github.com/bigkaa/goartstore/upload-relay/internal/domain/model"
	"github.com/bigkaa/goartstore/upload-relay/internal/tgclient"
)

// ExtractReference возвращает идентификатор загруженного медиа.
// Для последовательности вариантов фото выбирается вариант с максимальным
// file_size; при равенстве остаётся первый. Для document/video/audio
// используется file_id объекта. Failure, ok=false, отсутствие сообщения,
// медиа или пустой file_id дают (Reference{}, false).
func ExtractReference(result Result) (model.Reference, bool) {
	success, ok := result.(Success)
	if !ok || success.Response == nil || !success.Response.OK || success.Response.Message == nil {
		return model.Reference{}, false
	}

	m := success.Response.Message.Media

	var id string
	switch m.Kind {
	case tgclient.MediaPhoto:
		if len(m.Variants) == 0 {
			return model.Reference{}, false
		}
		// lo.MaxBy заменяет максимум только при строгом "больше"
		largest := lo.MaxBy(m.Variants, func(a, b tgclient.PhotoSize) bool {
			return a.FileSize > b.FileSize
		})
		id = largest.FileID
	case tgclient.MediaDocument, tgclient.MediaVideo, tgclient.MediaAudio:
		id = m.File.FileID
	default:
		return model.Reference{}, false
	}

	if id == "" {
		return model.Reference{}, false
	}
	return model.Reference{ID: id}, true
}
