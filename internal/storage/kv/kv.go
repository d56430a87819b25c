// Пакет kv — контракт key-value хранилища метаданных загрузок.
// Реализации: fs (attr + index), badgerkv, pgkv.
package kv

import (
	"context"
	"errors"

	"github.com/bigkaa/goartstore/upload-relay/internal/domain/model"
)

// ErrNotFound — ключ отсутствует в хранилище.
var ErrNotFound = errors.New("ключ не найден")

// ErrEmptyKey — передан пустой ключ.
var ErrEmptyKey = errors.New("пустой ключ")

// Entry — запись хранилища: значение и метаданные.
type Entry struct {
	Key      string               `json:"key"`
	Value    string               `json:"value"`
	Metadata model.StoredMetadata `json:"metadata"`
}

// Store — хранилище метаданных. Реализации потокобезопасны.
type Store interface {
	// Put сохраняет значение и метаданные под ключом (перезаписывает существующее).
	Put(ctx context.Context, key, value string, meta model.StoredMetadata) error
	// Get возвращает запись или ErrNotFound.
	Get(ctx context.Context, key string) (*Entry, error)
	// Ready проверяет доступность хранилища (для /health/ready).
	Ready(ctx context.Context) error
	// Close освобождает ресурсы.
	Close() error
}
