package cache_test

import (
	"testing"
	"time"

	"github.com/gestorpj/fiscal-engine-go/internal/infra/cache"
)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	c.Set("key1", "value1")
	val, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != "value1" {
		t.Errorf("expected 'value1', got '%s'", val)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	_, ok := c.Get("nonexistent")
	if ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)

	c.Set("key1", "value1")
	time.Sleep(100 * time.Millisecond)

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestCache_Delete(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	c.Set("key1", "value1")
	c.Delete("key1")

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected key to be deleted")
	}
}

func TestCache_DeletePrefix(t *testing.T) {
	c := cache.New[int](5 * time.Minute)

	c.Set("co-1|2025-01-01|2025-03-01", 100)
	c.Set("co-1|2025-01-01|2025-06-01", 200)
	c.Set("co-2|2025-01-01|2025-03-01", 300)

	c.DeletePrefix("co-1|")

	if _, ok := c.Get("co-1|2025-01-01|2025-03-01"); ok {
		t.Fatal("expected co-1 entries to be invalidated")
	}
	if _, ok := c.Get("co-1|2025-01-01|2025-06-01"); ok {
		t.Fatal("expected co-1 entries to be invalidated")
	}
	if v, ok := c.Get("co-2|2025-01-01|2025-03-01"); !ok || v != 300 {
		t.Errorf("expected co-2 entry to survive, got ok=%v v=%d", ok, v)
	}
}
