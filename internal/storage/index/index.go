// Пакет index — потокобезопасный in-memory индекс записей fs-бэкенда KV.
//
// Индекс строится при старте из attr.json файлов (BuildFromDir)
// и обновляется синхронно при записи (Add). Чтение не обращается к диску.
//
// Не персистентный: при рестарте пересобирается из attr.json.
package index

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/bigkaa/goartstore/upload-relay/internal/storage/attr"
	"github.com/bigkaa/goartstore/upload-relay/internal/storage/kv"
)

// Index — потокобезопасный in-memory индекс записей.
type Index struct {
	mu      sync.RWMutex
	entries map[string]*kv.Entry // key → entry
	ready   bool
	logger  *slog.Logger
}

// New создаёт пустой индекс. Для заполнения вызовите BuildFromDir.
func New(logger *slog.Logger) *Index {
	return &Index{
		entries: make(map[string]*kv.Entry),
		logger:  logger.With(slog.String("component", "kv_index")),
	}
}

// BuildFromDir строит индекс из attr.json файлов в директории.
// Заменяет текущее содержимое индекса и помечает его как ready.
func (idx *Index) BuildFromDir(dir string) error {
	entries, skipped, err := attr.ScanDir(dir)
	if err != nil {
		return fmt.Errorf("ошибка сканирования директории %s: %w", dir, err)
	}

	for _, path := range skipped {
		idx.logger.Warn("Пропущен невалидный attr.json", slog.String("path", path))
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.entries = make(map[string]*kv.Entry, len(entries))
	for _, e := range entries {
		idx.entries[e.Key] = e
	}
	idx.ready = true

	idx.logger.Info("Индекс KV построен",
		slog.Int("entries", len(idx.entries)),
		slog.String("dir", dir),
	)

	return nil
}

// IsReady возвращает true, если индекс построен.
func (idx *Index) IsReady() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.ready
}

// Add добавляет или перезаписывает запись.
func (idx *Index) Add(entry *kv.Entry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	// Копия: вызывающий код может изменить исходную запись
	copied := *entry
	idx.entries[entry.Key] = &copied
}

// Get возвращает копию записи или nil.
func (idx *Index) Get(key string) *kv.Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	e, ok := idx.entries[key]
	if !ok {
		return nil
	}
	copied := *e
	return &copied
}

// Count возвращает количество записей.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}
