package catalog

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{Name: "catalog_novel_cache_hits_total"})
	cacheMiss = promauto.NewCounter(prometheus.CounterOpts{Name: "catalog_novel_cache_miss_total"})
)

type cachedNovel struct {
	novel    *Novel
	loadedAt time.Time
}

// NovelCache keeps novel rows for a short TTL; concurrent misses for the
// same novel share one load.
type NovelCache struct {
	mu    sync.RWMutex
	items map[string]cachedNovel
	ttl   time.Duration
	group singleflight.Group
	now   func() time.Time
}

func NewNovelCache(ttl time.Duration) *NovelCache {
	return &NovelCache{
		items: make(map[string]cachedNovel),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (c *NovelCache) Get(id string) (*Novel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[id]
	if !ok || (c.ttl > 0 && c.now().Sub(v.loadedAt) > c.ttl) {
		return nil, false
	}
	return v.novel, true
}

func (c *NovelCache) Set(id string, n *Novel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[id] = cachedNovel{novel: n, loadedAt: c.now()}
}

func (c *NovelCache) GetOrLoad(id string, load func() (*Novel, error)) (*Novel, error) {
	if n, ok := c.Get(id); ok {
		cacheHits.Inc()
		return n, nil
	}
	cacheMiss.Inc()

	v, err, _ := c.group.Do(id, func() (any, error) {
		n, err := load()
		if err != nil {
			return nil, err
		}
		c.Set(id, n)
		return n, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Novel), nil
}
