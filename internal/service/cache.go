package service

import (
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/book-expert/audiobook-service/internal/core"
)

// jobCache is an LRU cache of terminal job records. Terminal records never
// change again, so cached entries can never serve stale progress; anything
// non-terminal is simply not cached.
type jobCache struct {
	cache *lru.Cache[uuid.UUID, *core.AudioJob]
}

func newJobCache(size int) (*jobCache, error) {
	cache, err := lru.New[uuid.UUID, *core.AudioJob](size)
	if err != nil {
		return nil, err
	}

	return &jobCache{cache: cache}, nil
}

func (c *jobCache) get(id uuid.UUID) (*core.AudioJob, bool) {
	job, ok := c.cache.Get(id)
	if ok {
		jobCacheHitsTotal.Inc()

		return job, true
	}

	jobCacheMissesTotal.Inc()

	return nil, false
}

// put caches the record only once it is terminal.
func (c *jobCache) put(job *core.AudioJob) {
	if !job.Status.Terminal() {
		return
	}

	c.cache.Add(job.ID, job)
}

func (c *jobCache) remove(id uuid.UUID) {
	c.cache.Remove(id)
}
