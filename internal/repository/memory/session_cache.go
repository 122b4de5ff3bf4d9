package memory

import (
	"local-assistant/internal/entity"

	lru "github.com/hashicorp/golang-lru/v2"
)

// SessionCache is a bounded LRU of sessions keyed by id. The least recently
// used session is evicted first; the store stays authoritative.
type SessionCache struct {
	cache *lru.Cache[string, *entity.Session]
}

func NewSessionCache(capacity int, onEvict func(id string)) (*SessionCache, error) {
	if capacity <= 0 {
		capacity = 1
	}

	c, err := lru.NewWithEvict(capacity, func(id string, _ *entity.Session) {
		if onEvict != nil {
			onEvict(id)
		}
	})
	if err != nil {
		return nil, err
	}

	return &SessionCache{cache: c}, nil
}

func (r *SessionCache) Save(session *entity.Session) {
	r.cache.Add(session.Id, session)
}

// Get marks the session as recently used.
func (r *SessionCache) Get(sessionID string) (*entity.Session, bool) {
	return r.cache.Get(sessionID)
}

func (r *SessionCache) Contains(sessionID string) bool {
	return r.cache.Contains(sessionID)
}

func (r *SessionCache) Delete(sessionID string) {
	r.cache.Remove(sessionID)
}

func (r *SessionCache) Len() int {
	return r.cache.Len()
}

func (r *SessionCache) Purge() {
	r.cache.Purge()
}
