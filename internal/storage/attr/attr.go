// Пакет attr — чтение и запись файлов записей KV (<sha256(key)>.attr.json).
// Каждая запись fs-бэкенда хранится в отдельном *.attr.json,
// который является единственным источником истины. Имя файла — hex-дайджест
// ключа фиксированной длины; сам ключ хранится внутри JSON.
// Все операции записи выполняются атомарно: temp → fsync → rename.
package attr

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bigkaa/goartstore/upload-relay/internal/storage/kv"
)

// AttrSuffix — суффикс файла записи.
const AttrSuffix = ".attr.json"

// maxAttrFileSize — максимальный допустимый размер attr.json (1 МБ).
// Имя файла клиента приходит из multipart-заголовка и может быть длинным.
const maxAttrFileSize = 1 << 20

// AttrFilePath возвращает путь к attr.json для ключа.
// Длина имени не зависит от ключа, поэтому любые непустые ключи
// (длинные расширения, разделители пути) безопасны.
// Пример: ("/data/kv", "XYZ.png") → "/data/kv/<64 hex>.attr.json"
func AttrFilePath(dir, key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(dir, KeyDigest(key)+AttrSuffix), nil
}

// KeyDigest возвращает hex SHA-256 ключа — базовое имя файла записи.
func KeyDigest(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// ValidateKey проверяет, что ключ непустой.
func ValidateKey(key string) error {
	if key == "" {
		return kv.ErrEmptyKey
	}
	return nil
}

// IsAttrFile проверяет, является ли путь файлом записи.
func IsAttrFile(path string) bool {
	return strings.HasSuffix(path, AttrSuffix)
}

// Write атомарно записывает запись в attr.json файл.
// Паттерн: JSON → temp файл → fsync → atomic rename.
// Возвращает ошибку, если сериализованные данные превышают maxAttrFileSize.
func Write(path string, entry *kv.Entry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации записи: %w", err)
	}

	if len(data) > maxAttrFileSize {
		return fmt.Errorf("размер attr.json (%d байт) превышает максимум (%d байт)", len(data), maxAttrFileSize)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
	}

	// Уникальное имя temp-файла: параллельные записи одного ключа не мешают друг другу
	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	tmpPath := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return nil
}

// Read читает и десериализует запись из attr.json файла.
// Отсутствующий файл даёт ошибку, совместимую с os.ErrNotExist.
func Read(path string) (*kv.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения attr.json %s: %w", path, err)
	}

	var entry kv.Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("ошибка десериализации attr.json %s: %w", path, err)
	}

	return &entry, nil
}

// ScanDir сканирует директорию и возвращает все записи.
// Не рекурсивный. Невалидные файлы пропускаются и возвращаются
// списком путей для логирования.
func ScanDir(dir string) ([]*kv.Entry, []string, error) {
	pattern := filepath.Join(dir, "*"+AttrSuffix)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка сканирования директории %s: %w", dir, err)
	}

	var (
		result  []*kv.Entry
		skipped []string
	)
	for _, path := range matches {
		entry, err := Read(path)
		if err != nil || entry.Key == "" {
			skipped = append(skipped, path)
			continue
		}
		result = append(result, entry)
	}

	return result, skipped, nil
}
