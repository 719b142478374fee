package session

import (
	"time"

	"github.com/bluele/gcache"

	"sealkit/internal/domain"
)

// Cache keeps retrieved sessions in memory.
type Cache struct {
	ttl time.Duration
	c   gcache.Cache
	now func() time.Time
}

// NewCache returns a session cache. ttl < 0 keeps entries forever and ttl == 0
// disables caching.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl, c: gcache.New(0).Build(), now: time.Now}
}

// Enabled reports whether Put stores anything.
func (c *Cache) Enabled() bool { return c.ttl != 0 }

// Put stores s and returns it with its cache expiry set. Sessions cached forever keep
// a zero expiry.
func (c *Cache) Put(s domain.EncryptionSession) domain.EncryptionSession {
	switch {
	case c.ttl == 0:
		return s
	case c.ttl < 0:
		s.Expires = time.Time{}
		_ = c.c.Set(s.ID, s)
	default:
		s.Expires = c.now().Add(c.ttl)
		_ = c.c.SetWithExpire(s.ID, s, c.ttl)
	}
	return s
}

// Get returns a cached session.
func (c *Cache) Get(id domain.SessionID) (domain.EncryptionSession, bool) {
	if c.ttl == 0 {
		return domain.EncryptionSession{}, false
	}
	v, err := c.c.Get(id)
	if err != nil {
		return domain.EncryptionSession{}, false
	}
	s := v.(domain.EncryptionSession)
	s.Retrieval.FromCache = true
	return s, true
}

// Remove drops id from the cache.
func (c *Cache) Remove(id domain.SessionID) { c.c.Remove(id) }

// Purge empties the cache.
func (c *Cache) Purge() { c.c.Purge() }
