// cache.go — LRU-кэш публичных ключей whitelist с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/vidstore/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	keyCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vs_key_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш публичных ключей.",
	})
	keyCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vs_key_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша публичных ключей.",
	})
)

// KeyCache — LRU-кэш публичных ключей с автоматическим TTL.
// Проверка подписи выполняется на каждом аутентифицированном запросе,
// кэш снимает нагрузку с PostgreSQL на горячем пути.
type KeyCache struct {
	cache *expirable.LRU[string, *model.Key]
}

// NewKeyCache создаёт LRU-кэш с указанным максимальным размером и TTL.
// maxSize — максимальное количество записей в кэше.
// ttl — время жизни записи после добавления.
func NewKeyCache(maxSize int, ttl time.Duration) *KeyCache {
	cache := expirable.NewLRU[string, *model.Key](maxSize, nil, ttl)
	return &KeyCache{cache: cache}
}

// Get возвращает ключ из кэша по keyID.
// Возвращает (ключ, true) при hit или (nil, false) при miss.
// Обновляет Prometheus-метрики hit/miss.
func (c *KeyCache) Get(keyID string) (*model.Key, bool) {
	val, ok := c.cache.Get(keyID)
	if ok {
		keyCacheHitsTotal.Inc()
		return val, true
	}
	keyCacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет ключ в кэше.
func (c *KeyCache) Set(keyID string, key *model.Key) {
	c.cache.Add(keyID, key)
}

// Delete удаляет ключ из кэша (инвалидация при удалении из whitelist).
func (c *KeyCache) Delete(keyID string) {
	c.cache.Remove(keyID)
}
