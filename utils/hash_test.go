package utils

import "testing"

func TestCacheKeyIsStableAndUnambiguous(t *testing.T) {
	if CacheKey("bart", "150", "text") != CacheKey("bart", "150", "text") {
		t.Fatal("same parts produced different keys")
	}
	if CacheKey("ab", "c") == CacheKey("a", "bc") {
		t.Fatal("part boundaries must affect the key")
	}
	if len(CacheKey()) != 64 {
		t.Fatalf("key length = %d, want 64", len(CacheKey()))
	}
}
