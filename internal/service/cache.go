// cache.go — LRU-кэш file_path, полученных через getFile.
// Bot API гарантирует ссылку на файл не менее часа, поэтому TTL по умолчанию 50m.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ur_file_path_cache_hits_total",
		Help: "Общее количество попаданий в кэш file_path.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ur_file_path_cache_misses_total",
		Help: "Общее количество промахов кэша file_path.",
	})
)

// CacheService — кэш file_id → file_path с автоматическим TTL.
type CacheService struct {
	cache *expirable.LRU[string, string]
}

// NewCacheService создаёт кэш с максимальным размером maxSize и временем жизни ttl.
func NewCacheService(maxSize int, ttl time.Duration) *CacheService {
	return &CacheService{cache: expirable.NewLRU[string, string](maxSize, nil, ttl)}
}

// Get возвращает file_path по file_id. Обновляет метрики hit/miss.
func (c *CacheService) Get(fileID string) (string, bool) {
	val, ok := c.cache.Get(fileID)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return "", false
}

// Set добавляет или обновляет запись.
func (c *CacheService) Set(fileID, filePath string) {
	c.cache.Add(fileID, filePath)
}

// Delete удаляет запись (ссылка устарела).
func (c *CacheService) Delete(fileID string) {
	c.cache.Remove(fileID)
}
