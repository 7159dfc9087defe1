package store

import (
	"sync"
	"time"

	"market-pulse-api/pkg/models"
)

// ModelCache is an in-process artifact cache. Implementations must make Set atomic with
// respect to Get.
type ModelCache interface {
	Get(productID string) (*models.ModelArtifact, bool)
	Set(productID string, artifact *models.ModelArtifact)
	Delete(productID string)
	Clear()
	Stats() models.CacheStats
}

type cacheItem struct {
	artifact *models.ModelArtifact
	expireAt time.Time
}

func (c *cacheItem) expired(now time.Time) bool {
	return !c.expireAt.IsZero() && now.After(c.expireAt)
}

// MemoryCache is an LRU artifact cache with optional TTL.
type MemoryCache struct {
	data      map[string]*cacheItem
	access    map[string]uint64
	tick      uint64
	mutex     sync.Mutex
	maxSize   int
	ttl       time.Duration
	now       func() time.Time
	hits      uint64
	misses    uint64
	evictions uint64
}

// NewMemoryCache creates a cache holding at most maxSize artifacts. ttl <= 0 disables expiry.
func NewMemoryCache(maxSize int, ttl time.Duration) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &MemoryCache{
		data:    make(map[string]*cacheItem),
		access:  make(map[string]uint64),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (mc *MemoryCache) Get(productID string) (*models.ModelArtifact, bool) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	item, exists := mc.data[productID]
	if !exists || item.expired(mc.now()) {
		if exists {
			delete(mc.data, productID)
			delete(mc.access, productID)
		}
		mc.misses++
		return nil, false
	}
	mc.hits++
	mc.tick++
	mc.access[productID] = mc.tick
	return item.artifact, true
}

func (mc *MemoryCache) Set(productID string, artifact *models.ModelArtifact) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if _, exists := mc.data[productID]; !exists && len(mc.data) >= mc.maxSize {
		mc.evictLRU()
	}
	item := &cacheItem{artifact: artifact}
	if mc.ttl > 0 {
		item.expireAt = mc.now().Add(mc.ttl)
	}
	mc.data[productID] = item
	mc.tick++
	mc.access[productID] = mc.tick
}

func (mc *MemoryCache) Delete(productID string) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	delete(mc.data, productID)
	delete(mc.access, productID)
}

func (mc *MemoryCache) Clear() {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	mc.data = make(map[string]*cacheItem)
	mc.access = make(map[string]uint64)
}

func (mc *MemoryCache) Stats() models.CacheStats {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	stats := models.CacheStats{
		Entries:    len(mc.data),
		MaxEntries: mc.maxSize,
		Hits:       mc.hits,
		Misses:     mc.misses,
		Evictions:  mc.evictions,
	}
	if total := mc.hits + mc.misses; total > 0 {
		stats.HitRate = float64(mc.hits) / float64(total)
	}
	return stats
}

// evictLRU drops the least recently used entry. Caller holds the mutex.
func (mc *MemoryCache) evictLRU() {
	var oldestKey string
	var oldest uint64
	first := true
	for key, t := range mc.access {
		if first || t < oldest {
			oldestKey = key
			oldest = t
			first = false
		}
	}
	if first {
		return
	}
	delete(mc.data, oldestKey)
	delete(mc.access, oldestKey)
	mc.evictions++
}
