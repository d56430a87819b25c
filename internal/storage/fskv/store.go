// Пакет fskv — файловый бэкенд KV: запись на диск через attr.json,
// чтение из in-memory индекса.
package fskv

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/bigkaa/goartstore/upload-relay/internal/domain/model"
	"github.com/bigkaa/goartstore/upload-relay/internal/storage/attr"
	"github.com/bigkaa/goartstore/upload-relay/internal/storage/index"
	"github.com/bigkaa/goartstore/upload-relay/internal/storage/kv"
)

// Store — файловое хранилище записей.
type Store struct {
	dir string
	idx *index.Index
	// writeMu упорядочивает запись на диск и обновление индекса
	writeMu sync.Mutex
	logger  *slog.Logger
}

var _ kv.Store = (*Store)(nil)

// Open создаёт директорию (если нужно) и строит индекс из существующих записей.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("создание директории KV %s: %w", dir, err)
	}

	idx := index.New(logger)
	if err := idx.BuildFromDir(dir); err != nil {
		return nil, err
	}

	return &Store{
		dir:    dir,
		idx:    idx,
		logger: logger.With(slog.String("component", "kv_fs")),
	}, nil
}

// Put атомарно записывает запись на диск, затем обновляет индекс.
func (s *Store) Put(_ context.Context, key, value string, meta model.StoredMetadata) error {
	path, err := attr.AttrFilePath(s.dir, key)
	if err != nil {
		return err
	}

	entry := &kv.Entry{Key: key, Value: value, Metadata: meta}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := attr.Write(path, entry); err != nil {
		return fmt.Errorf("запись ключа %s: %w", key, err)
	}
	s.idx.Add(entry)

	s.logger.Debug("Запись KV сохранена", slog.String("key", key))
	return nil
}

// Get возвращает запись из индекса.
func (s *Store) Get(_ context.Context, key string) (*kv.Entry, error) {
	if err := attr.ValidateKey(key); err != nil {
		return nil, kv.ErrNotFound
	}
	entry := s.idx.Get(key)
	if entry == nil {
		return nil, kv.ErrNotFound
	}
	return entry, nil
}

// Ready проверяет, что индекс построен и директория доступна.
func (s *Store) Ready(_ context.Context) error {
	if !s.idx.IsReady() {
		return fmt.Errorf("индекс KV не построен")
	}
	if _, err := os.Stat(s.dir); err != nil {
		return fmt.Errorf("директория KV недоступна: %w", err)
	}
	return nil
}

// Count возвращает количество записей.
func (s *Store) Count() int {
	return s.idx.Count()
}

// Close не удерживает ресурсов.
func (s *Store) Close() error {
	return nil
}
