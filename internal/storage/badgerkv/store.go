// Пакет badgerkv — встроенный бэкенд KV на BadgerDB.
// Ключ записи — "entry:<key>", значение — JSON kv.Entry.
package badgerkv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/bigkaa/goartstore/upload-relay/internal/domain/model"
	"github.com/bigkaa/goartstore/upload-relay/internal/storage/kv"
)

// keyPrefix — пространство ключей записей.
const keyPrefix = "entry:"

// Store — хранилище записей в BadgerDB.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

var _ kv.Store = (*Store)(nil)

// Open открывает (или создаёт) базу в директории dir.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("открытие BadgerDB %s: %w", dir, err)
	}
	return New(db, logger), nil
}

// New создаёт хранилище поверх открытой базы (в тестах — in-memory).
func New(db *badger.DB, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With(slog.String("component", "kv_badger")),
	}
}

// Put сохраняет запись. Перезаписывает существующую.
func (s *Store) Put(_ context.Context, key, value string, meta model.StoredMetadata) error {
	if key == "" {
		return kv.ErrEmptyKey
	}

	data, err := json.Marshal(kv.Entry{Key: key, Value: value, Metadata: meta})
	if err != nil {
		return fmt.Errorf("сериализация записи %s: %w", key, err)
	}

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+key), data)
	}); err != nil {
		return fmt.Errorf("запись ключа %s: %w", key, err)
	}

	s.logger.Debug("Запись KV сохранена", slog.String("key", key))
	return nil
}

// Get возвращает запись или kv.ErrNotFound.
func (s *Store) Get(_ context.Context, key string) (*kv.Entry, error) {
	if key == "" {
		return nil, kv.ErrNotFound
	}

	var entry kv.Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &entry)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("чтение ключа %s: %w", key, err)
	}

	return &entry, nil
}

// Ready проверяет, что база открыта.
func (s *Store) Ready(_ context.Context) error {
	if s.db.IsClosed() {
		return errors.New("BadgerDB закрыта")
	}
	return nil
}

// Close закрывает базу.
func (s *Store) Close() error {
	return s.db.Close()
}
