package refresh

import (
	"sync"

	"github.com/naka-gawa/pr-dashboard/internal/domain"
)

const maxCachedDetails = 256

type detailKey struct {
	repo   domain.RepositoryRef
	number int
}

// DetailCache holds pull request details for one controller. Every eviction
// bumps the generation; a Put carrying an older generation is ignored, so a
// fetch that raced an invalidation cannot repopulate stale data.
type DetailCache struct {
	mu         sync.Mutex
	generation uint64
	entries    map[detailKey]*domain.PullRequestDetail
}

// NewDetailCache creates an empty cache.
func NewDetailCache() *DetailCache {
	return &DetailCache{entries: make(map[detailKey]*domain.PullRequestDetail)}
}

// Get returns the cached detail, if any.
func (c *DetailCache) Get(repo domain.RepositoryRef, number int) (*domain.PullRequestDetail, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.entries[detailKey{repo, number}]
	return d, ok
}

// Generation returns the value to pass to Put for a fetch starting now.
func (c *DetailCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Put stores d unless the cache was evicted since generation was read.
func (c *DetailCache) Put(repo domain.RepositoryRef, number int, d *domain.PullRequestDetail, generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return false
	}
	if len(c.entries) >= maxCachedDetails {
		clear(c.entries)
	}
	c.entries[detailKey{repo, number}] = d
	return true
}

// Evict removes the details of the given pull request IDs. With no IDs it
// removes everything.
func (c *DetailCache) Evict(ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	if len(ids) == 0 {
		clear(c.entries)
		return
	}
	for k, d := range c.entries {
		for _, id := range ids {
			if d.ID == id {
				delete(c.entries, k)
				break
			}
		}
	}
}

// Len returns the number of cached details.
func (c *DetailCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
