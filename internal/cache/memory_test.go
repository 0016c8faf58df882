package cache

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryCache_BasicOperations(t *testing.T) {
	c := NewMemoryCache(1024)

	if _, ok := c.Get("missing"); ok {
		t.Error("Expected miss on empty cache")
	}

	if err := c.Put("a", []byte("alpha")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, ok := c.Get("a")
	if !ok || string(got) != "alpha" {
		t.Errorf("Expected alpha, got %q (%v)", got, ok)
	}
	if c.Size() != 5 {
		t.Errorf("Expected size 5, got %d", c.Size())
	}

	// Replace keeps the size accurate
	_ = c.Put("a", []byte("al"))
	if c.Size() != 2 {
		t.Errorf("Expected size 2 after replace, got %d", c.Size())
	}

	c.Delete("a")
	if c.Contains("a") {
		t.Error("Key still present after Delete")
	}
	if c.Size() != 0 {
		t.Errorf("Expected size 0, got %d", c.Size())
	}
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	c := NewMemoryCache(30)

	_ = c.Put("a", make([]byte, 10))
	_ = c.Put("b", make([]byte, 10))
	_ = c.Put("c", make([]byte, 10))

	// Touch a so b becomes least recently used
	c.Get("a")
	_ = c.Put("d", make([]byte, 10))

	if c.Contains("b") {
		t.Error("Expected b to be evicted")
	}
	for _, k := range []string{"a", "c", "d"} {
		if !c.Contains(k) {
			t.Errorf("Expected %s to survive", k)
		}
	}
	if got := c.Stats().Evictions; got != 1 {
		t.Errorf("Expected 1 eviction, got %d", got)
	}
}

func TestMemoryCache_ItemTooLarge(t *testing.T) {
	c := NewMemoryCache(4)
	if err := c.Put("big", []byte("too large")); !errors.Is(err, ErrItemTooLarge) {
		t.Errorf("Expected ErrItemTooLarge, got %v", err)
	}
}

func TestMemoryCache_Stats(t *testing.T) {
	c := NewMemoryCache(100)
	_ = c.Put("a", []byte("x"))
	c.Get("a")
	c.Get("a")
	c.Get("b")

	stats := c.Stats()
	if stats.Hits != 2 || stats.Misses != 1 || stats.Items != 1 || stats.Capacity != 100 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if rate := stats.HitRate(); rate < 0.66 || rate > 0.67 {
		t.Errorf("Expected hit rate 2/3, got %f", rate)
	}
}

func TestMemoryCache_Prune(t *testing.T) {
	c := NewMemoryCache(100)
	_ = c.Put("old", []byte("x"))
	time.Sleep(20 * time.Millisecond)
	_ = c.Put("new", []byte("y"))

	if n := c.Prune(10 * time.Millisecond); n != 1 {
		t.Errorf("Expected 1 pruned, got %d", n)
	}
	if c.Contains("old") || !c.Contains("new") {
		t.Error("Prune removed the wrong entry")
	}
}

func TestMemoryCache_Clear(t *testing.T) {
	c := NewMemoryCache(100)
	_ = c.Put("a", []byte("x"))
	c.Clear()
	if c.Size() != 0 || c.Contains("a") {
		t.Error("Clear left entries behind")
	}
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	c := NewMemoryCache(1024)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("k%d", i%20)
				_ = c.Put(key, []byte(key))
				c.Get(key)
				if i%10 == 0 {
					c.Delete(key)
				}
			}
		}(g)
	}
	wg.Wait()

	if c.Size() > 1024 {
		t.Errorf("Cache exceeded capacity: %d", c.Size())
	}
}

func BenchmarkMemoryCache_Put(b *testing.B) {
	c := NewMemoryCache(1024 * 1024)
	data := make([]byte, 1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Put(fmt.Sprintf("k%d", i%1000), data)
	}
}
