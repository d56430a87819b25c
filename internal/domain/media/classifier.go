// Пакет media — классификация входящих файлов по MIME-типу
// в категории загрузки Bot API.
package media

import "strings"

// Category — категория загрузки. Определяет метод Bot API
// и имя поля multipart-запроса.
type Category string

const (
	// Photo — изображения, метод sendPhoto
	Photo Category = "photo"
	// Audio — аудио, метод sendAudio
	Audio Category = "audio"
	// Video — видео, метод sendVideo
	Video Category = "video"
	// Document — всё остальное, метод sendDocument. Категория по умолчанию.
	Document Category = "document"
)

// Operation возвращает имя метода Bot API для категории.
func (c Category) Operation() string {
	switch c {
	case Photo:
		return "sendPhoto"
	case Audio:
		return "sendAudio"
	case Video:
		return "sendVideo"
	default:
		return "sendDocument"
	}
}

// Field возвращает имя поля multipart, в котором передаётся файл.
func (c Category) Field() string {
	switch c {
	case Photo, Audio, Video:
		return string(c)
	default:
		return string(Document)
	}
}

// Classify определяет категорию и метод Bot API по объявленному MIME-типу.
// Определена для любой строки: пустой и некорректный тип дают Document.
// Сравнение префиксов регистрозависимое.
func Classify(declaredType string) (Category, string) {
	var c Category
	switch {
	case strings.HasPrefix(declaredType, "image/"):
		c = Photo
	case strings.HasPrefix(declaredType, "audio/"):
		c = Audio
	case strings.HasPrefix(declaredType, "video/"):
		c = Video
	default:
		c = Document
	}
	return c, c.Operation()
}
