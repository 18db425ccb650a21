package client

import (
	"sync"
	"time"

	"github.com/example/sectorfs/pkg/api"
)

// statCache keeps recently fetched descriptor attributes so hot Attr
// paths (the FUSE adapter mostly) skip a round trip. Entries expire
// after a short TTL; writes and seeks invalidate their descriptor.
type statCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[int32]statEntry
}

type statEntry struct {
	stat    *api.StatResponse
	fetched time.Time
}

func newStatCache(ttl time.Duration) *statCache {
	return &statCache{
		ttl:     ttl,
		entries: make(map[int32]statEntry),
	}
}

func (c *statCache) get(fd int32) (*api.StatResponse, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[fd]
	if !ok || time.Since(e.fetched) > c.ttl {
		delete(c.entries, fd)
		return nil, false
	}
	return e.stat, true
}

func (c *statCache) put(fd int32, stat *api.StatResponse) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fd] = statEntry{stat: stat, fetched: time.Now()}
}

func (c *statCache) invalidate(fd int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, fd)
}
