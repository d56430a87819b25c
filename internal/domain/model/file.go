// Пакет model — доменные модели Upload Relay.
package model

import (
	"io"
	"path"
	"strings"
)

// InboundFile — файл, принятый от клиента. Не изменяется после создания.
type InboundFile struct {
	// Name — оригинальное имя файла
	Name string
	// DeclaredType — MIME-тип из заголовка multipart part
	DeclaredType string
	// Size — размер в байтах
	Size int64
	// Content — содержимое. Если реализует io.Seeker, клиент перематывает
	// его перед каждой попыткой (fallback и повторы отправляют тот же payload).
	Content io.Reader
}

// Extension возвращает расширение файла в нижнем регистре: часть имени
// после последней точки. Имя без точки целиком считается расширением.
func (f *InboundFile) Extension() string {
	name := f.Name
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToLower(name)
}

// Reference — канонический идентификатор медиа на стороне Bot API (file_id).
type Reference struct {
	ID string
}

// Key возвращает ключ KV-записи и публичного URL: "<id>.<ext>".
func (r Reference) Key(ext string) string {
	return r.ID + "." + ext
}

// SplitKey разбирает ключ "<id>.<ext>" на file_id и расширение.
// Ключ без точки возвращается целиком как id.
func SplitKey(key string) (id, ext string) {
	ext = path.Ext(key)
	if ext == "" {
		return key, ""
	}
	return strings.TrimSuffix(key, ext), ext[1:]
}
