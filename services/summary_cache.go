package services

import (
	"container/list"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"multi-model-summarizer/utils"

	"github.com/redis/go-redis/v9"
)

// SummaryCache stores generated summaries keyed by a content hash.
type SummaryCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, summary string)
}

const summaryKeyPrefix = "summary:"

// RedisSummaryCache shares summaries across replicas.
type RedisSummaryCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

func NewRedisSummaryCache(rdb *redis.Client, ttl time.Duration, log *slog.Logger) *RedisSummaryCache {
	return &RedisSummaryCache{rdb: rdb, ttl: ttl, log: log}
}

func (c *RedisSummaryCache) Get(ctx context.Context, key string) (string, bool) {
	ctx, cancel := utils.WithShortTimeout(ctx)
	defer cancel()

	val, err := c.rdb.Get(ctx, summaryKeyPrefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.WarnContext(ctx, "summary cache read failed", "error", err)
		}
		return "", false
	}
	return val, true
}

func (c *RedisSummaryCache) Set(ctx context.Context, key, summary string) {
	if summary == "" {
		return
	}
	ctx, cancel := utils.WithShortTimeout(ctx)
	defer cancel()

	if err := c.rdb.Set(ctx, summaryKeyPrefix+key, summary, c.ttl).Err(); err != nil {
		c.log.WarnContext(ctx, "summary cache write failed", "error", err)
	}
}

// MemorySummaryCache is a process-local LRU with per-entry expiry.
type MemorySummaryCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

type summaryCacheEntry struct {
	key       string
	summary   string
	expiresAt time.Time
}

// NewMemorySummaryCache returns nil when maxEntries is not positive.
func NewMemorySummaryCache(maxEntries int, ttl time.Duration) *MemorySummaryCache {
	if maxEntries <= 0 {
		return nil
	}

	return &MemorySummaryCache{
		entries:    make(map[string]*list.Element, maxEntries),
		order:      list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

func (c *MemorySummaryCache) Get(_ context.Context, key string) (string, bool) {
	if c == nil || key == "" {
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return "", false
	}

	entry := elem.Value.(*summaryCacheEntry)
	if c.now().After(entry.expiresAt) {
		c.removeElement(elem)
		return "", false
	}

	c.order.MoveToFront(elem)
	return entry.summary, true
}

func (c *MemorySummaryCache) Set(_ context.Context, key, summary string) {
	if c == nil || key == "" || summary == "" || c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	expiresAt := now.Add(c.ttl)

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*summaryCacheEntry)
		entry.summary = summary
		entry.expiresAt = expiresAt
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(&summaryCacheEntry{
		key:       key,
		summary:   summary,
		expiresAt: expiresAt,
	})
	c.entries[key] = elem

	c.evictExpiredLocked(now)
	c.enforceSizeLimitLocked()
}

// Len reports the number of live entries.
func (c *MemorySummaryCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemorySummaryCache) evictExpiredLocked(now time.Time) {
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if now.After(elem.Value.(*summaryCacheEntry).expiresAt) {
			c.removeElement(elem)
		}
		elem = prev
	}
}

func (c *MemorySummaryCache) enforceSizeLimitLocked() {
	for len(c.entries) > c.maxEntries {
		elem := c.order.Back()
		if elem == nil {
			return
		}
		c.removeElement(elem)
	}
}

func (c *MemorySummaryCache) removeElement(elem *list.Element) {
	delete(c.entries, elem.Value.(*summaryCacheEntry).key)
	c.order.Remove(elem)
}
