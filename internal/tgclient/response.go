// response.go — схема ответов Bot API.
// Ответ декодируется на границе в закрытый набор вариантов медиа,
// дальше по коду наличие полей не проверяется.
package tgclient

import (
	"encoding/json"
	"fmt"
)

// MediaKind — вариант медиа в сообщении.
type MediaKind int

const (
	// MediaNone — сообщение не содержит распознаваемого медиа
	MediaNone MediaKind = iota
	// MediaPhoto — последовательность вариантов изображения (разные разрешения)
	MediaPhoto
	// MediaDocument — документ
	MediaDocument
	// MediaVideo — видео
	MediaVideo
	// MediaAudio — аудио
	MediaAudio
)

// String возвращает имя варианта для логов и метрик.
func (k MediaKind) String() string {
	switch k {
	case MediaPhoto:
		return "photo"
	case MediaDocument:
		return "document"
	case MediaVideo:
		return "video"
	case MediaAudio:
		return "audio"
	default:
		return "none"
	}
}

// PhotoSize — один вариант (разрешение) изображения.
type PhotoSize struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	FileSize     int64  `json:"file_size"`
}

// File — одиночный файл (document, video, audio) или результат getFile.
type File struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileSize     int64  `json:"file_size"`
	FileName     string `json:"file_name,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
	// FilePath — заполняется только в ответе getFile
	FilePath string `json:"file_path,omitempty"`
}

// Media — закрытое объединение вариантов медиа.
// Для MediaPhoto заполнено Variants, для остальных вариантов — File.
type Media struct {
	Kind     MediaKind
	Variants []PhotoSize
	File     File
}

// Message — результат методов send*.
type Message struct {
	MessageID int64
	Media     Media
}

// rawMessage — форма сообщения на проводе.
type rawMessage struct {
	MessageID int64       `json:"message_id"`
	Photo     []PhotoSize `json:"photo"`
	Document  *File       `json:"document"`
	Video     *File       `json:"video"`
	Audio     *File       `json:"audio"`
}

// UnmarshalJSON выбирает вариант медиа. Если сообщение содержит несколько
// секций, порядок приоритета: photo, document, video, audio.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw rawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.MessageID = raw.MessageID
	switch {
	case len(raw.Photo) > 0:
		m.Media = Media{Kind: MediaPhoto, Variants: raw.Photo}
	case raw.Document != nil:
		m.Media = Media{Kind: MediaDocument, File: *raw.Document}
	case raw.Video != nil:
		m.Media = Media{Kind: MediaVideo, File: *raw.Video}
	case raw.Audio != nil:
		m.Media = Media{Kind: MediaAudio, File: *raw.Audio}
	default:
		m.Media = Media{Kind: MediaNone}
	}
	return nil
}

// Response — разобранный ответ метода send*.
type Response struct {
	OK          bool
	Message     *Message
	Description string
	ErrorCode   int
}

// envelope — общая обёртка ответов Bot API.
type envelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

// hasResult сообщает, присутствует ли непустой result.
func (e *envelope) hasResult() bool {
	return len(e.Result) > 0 && string(e.Result) != "null"
}

// DecodeResponse разбирает тело ответа метода send*.
// Ошибка возвращается только для синтаксически некорректного JSON;
// отсутствие result или медиа — валидный ответ с Message == nil / MediaNone.
func DecodeResponse(body []byte) (*Response, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("декодирование ответа Bot API: %w", err)
	}

	resp := &Response{
		OK:          env.OK,
		Description: env.Description,
		ErrorCode:   env.ErrorCode,
	}

	if env.hasResult() {
		var msg Message
		// result не-объект (например, true) — сообщения нет
		if err := json.Unmarshal(env.Result, &msg); err == nil {
			resp.Message = &msg
		}
	}

	return resp, nil
}
