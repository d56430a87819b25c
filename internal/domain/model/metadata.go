package model

import "time"

// Значения по умолчанию для новых записей.
const (
	// ListTypeNone — файл не находится ни в белом, ни в чёрном списке
	ListTypeNone = "None"
	// LabelNone — метка модерации не назначена
	LabelNone = "None"
)

// StoredMetadata — метаданные загруженного файла в KV.
// Имена JSON-полей фиксированы: записи читает внешняя админ-панель.
// Запись создаётся один раз при успешной загрузке и здесь не изменяется.
type StoredMetadata struct {
	// TimeStamp — время загрузки, миллисекунды Unix epoch
	TimeStamp int64 `json:"TimeStamp"`
	// ListType — тип списка (None, White, Block)
	ListType string `json:"ListType"`
	// Label — метка модерации
	Label string `json:"Label"`
	// Liked — отмечен ли файл в админке
	Liked bool `json:"liked"`
	// FileName — оригинальное имя файла
	FileName string `json:"fileName"`
	// FileSize — размер файла в байтах
	FileSize int64 `json:"fileSize"`
}

// NewStoredMetadata создаёт метаданные для только что загруженного файла.
func NewStoredMetadata(file *InboundFile, now time.Time) StoredMetadata {
	return StoredMetadata{
		TimeStamp: now.UnixMilli(),
		ListType:  ListTypeNone,
		Label:     LabelNone,
		Liked:     false,
		FileName:  file.Name,
		FileSize:  file.Size,
	}
}
