package memory

import (
	"time"

	"github.com/patrickmn/go-cache"
)

type SettingCache struct {
	cache *cache.Cache
}

// NewSettingCache builds a read-through cache for settings. Expired entries
// are dropped lazily on read, so no janitor goroutine is started.
func NewSettingCache(ttl time.Duration) *SettingCache {
	return &SettingCache{
		cache: cache.New(ttl, 0),
	}
}

func (r *SettingCache) Save(key, value string) {
	r.cache.Set(key, value, cache.DefaultExpiration)
}

func (r *SettingCache) Get(key string) (string, bool) {
	if x, found := r.cache.Get(key); found {
		return x.(string), true
	}
	return "", false
}

func (r *SettingCache) Delete(key string) {
	r.cache.Delete(key)
}

func (r *SettingCache) Flush() {
	r.cache.Flush()
}
