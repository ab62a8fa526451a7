package services

import (
	"context"
	"os"
	"testing"
	"time"

	"multi-model-summarizer/internal/config"
	"multi-model-summarizer/internal/logger"
)

func TestMemoryCacheExpiresEntries(t *testing.T) {
	cache := NewMemorySummaryCache(4, time.Minute)
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.Set(context.Background(), "k", "summary")
	if got, ok := cache.Get(context.Background(), "k"); !ok || got != "summary" {
		t.Fatalf("Get = %q, %v", got, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := cache.Get(context.Background(), "k"); ok {
		t.Fatal("expected expired entry to miss")
	}
	if cache.Len() != 0 {
		t.Fatalf("len = %d", cache.Len())
	}
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	cache := NewMemorySummaryCache(2, time.Hour)

	cache.Set(ctx, "a", "1")
	cache.Set(ctx, "b", "2")
	cache.Get(ctx, "a")
	cache.Set(ctx, "c", "3")

	if _, ok := cache.Get(ctx, "b"); ok {
		t.Fatal("b should have been evicted")
	}
	if _, ok := cache.Get(ctx, "a"); !ok {
		t.Fatal("a should still be cached")
	}
}

func TestMemoryCacheIgnoresEmptyAndNil(t *testing.T) {
	ctx := context.Background()
	cache := NewMemorySummaryCache(2, time.Hour)
	cache.Set(ctx, "k", "")
	if cache.Len() != 0 {
		t.Fatal("empty summaries must not be cached")
	}

	var disabled *MemorySummaryCache = NewMemorySummaryCache(0, time.Hour)
	disabled.Set(ctx, "k", "v")
	if _, ok := disabled.Get(ctx, "k"); ok {
		t.Fatal("disabled cache returned a value")
	}
}

func TestRedisSummaryCache(t *testing.T) {
	if os.Getenv("REDIS_URL") == "" {
		t.Skip("REDIS_URL not set")
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		t.Skipf("config load failed: %v", err)
	}
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	defer rdb.Close()

	cache := NewRedisSummaryCache(rdb, time.Minute, logger.Discard())
	ctx := context.Background()
	key := "test-" + time.Now().Format(time.RFC3339Nano)

	if _, ok := cache.Get(ctx, key); ok {
		t.Fatal("unexpected hit")
	}
	cache.Set(ctx, key, "cached summary")
	got, ok := cache.Get(ctx, key)
	if !ok || got != "cached summary" {
		t.Fatalf("Get = %q, %v", got, ok)
	}
	rdb.Del(ctx, summaryKeyPrefix+key)
}
