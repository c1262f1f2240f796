package infra

import (
	"context"
	"sync"
	"time"

	"blog-engagement/engagement/domain"
)

// MetricsCache é o cache em memória de snapshots por post, com TTL por entrada.
//
// O TTL depende da origem do dado (live: curto, static: longo), por isso é
// informado em cada Put e não fixo na construção.
type MetricsCache struct {
	mu           sync.Mutex
	entries      map[string]domain.CacheEntry
	now          func() time.Time
	cleanupEvery time.Duration
}

type MetricsCacheOption func(*MetricsCache)

func WithClock(now func() time.Time) MetricsCacheOption {
	return func(c *MetricsCache) { c.now = now }
}

func WithCacheCleanupEvery(d time.Duration) MetricsCacheOption {
	return func(c *MetricsCache) { c.cleanupEvery = d }
}

func NewMetricsCache(opts ...MetricsCacheOption) *MetricsCache {
	c := &MetricsCache{
		entries:      make(map[string]domain.CacheEntry),
		now:          time.Now,
		cleanupEvery: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ domain.MetricsCache = (*MetricsCache)(nil)

// Get só reporta entradas frescas. Entrada vencida continua no mapa até o
// próximo Put ou Cleanup.
func (c *MetricsCache) Get(postID string) (domain.PostMetrics, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[postID]
	if !ok || !ent.Fresh(c.now()) {
		return domain.PostMetrics{}, false
	}
	return ent.Data, true
}

// Put sobrescreve a entrada sem merge (último a escrever vence) e aproveita
// para remover as entradas vencidas.
func (c *MetricsCache) Put(postID string, data domain.PostMetrics, ttl time.Duration) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictLocked(now)
	if ttl <= 0 {
		delete(c.entries, postID)
		return
	}
	c.entries[postID] = domain.CacheEntry{Data: data, FetchedAt: now, TTL: ttl}
}

func (c *MetricsCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MetricsCache) Cleanup() {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictLocked(now)
}

func (c *MetricsCache) evictLocked(now time.Time) {
	for k, ent := range c.entries {
		if !ent.Fresh(now) {
			delete(c.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que remove entradas vencidas periodicamente.
// Pare cancelando o contexto.
func (c *MetricsCache) StartJanitor(ctx context.Context) {
	if c.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(c.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				c.Cleanup()
			}
		}
	}()
}
