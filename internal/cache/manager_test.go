package cache

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func testConfig(t *testing.T) Config {
	config := DefaultConfig(t.TempDir())
	config.MemoryCapacity = 1024
	config.DiskCapacity = 1 << 20
	config.CleanupInterval = 0 // Disable automatic cleanup for testing
	return config
}

func TestManager_BasicOperations(t *testing.T) {
	m, err := NewManager(testConfig(t))
	if err != nil {
		t.Fatalf("Failed to create cache manager: %v", err)
	}
	defer m.Close()

	key := Key("Ana joined the channel", "en")
	if err := m.Put(key, []byte("mp3")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok := m.Get(key)
	if !ok || string(got) != "mp3" {
		t.Fatalf("Expected mp3, got %q (%v)", got, ok)
	}

	_ = m.Flush()
	m.Delete(key)
	if _, ok := m.Get(key); ok {
		t.Error("Key still exists after delete")
	}
}

func TestManager_DiskPromotion(t *testing.T) {
	config := testConfig(t)
	config.MemoryCapacity = 16
	m, err := NewManager(config)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	_ = m.Put("a", []byte("0123456789"))
	_ = m.Put("b", []byte("abcdefghij")) // pushes a out of memory
	if err := m.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	if m.memory.Contains("a") {
		t.Fatal("Expected a to be evicted from memory")
	}

	got, ok := m.Get("a")
	if !ok || string(got) != "0123456789" {
		t.Fatalf("Expected disk hit for a, got %q (%v)", got, ok)
	}
	if !m.memory.Contains("a") {
		t.Error("Expected disk hit to be promoted to memory")
	}
	if m.Stats().Promotions != 1 {
		t.Errorf("Expected 1 promotion, got %d", m.Stats().Promotions)
	}
}

func TestManager_MemoryOnly(t *testing.T) {
	config := testConfig(t)
	config.DiskCapacity = 0
	m, err := NewManager(config)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	_ = m.Put("a", []byte("x"))
	if _, ok := m.Get("a"); !ok {
		t.Error("Expected memory hit")
	}
	if m.Stats().Disk.Items != 0 {
		t.Error("Disk level should be disabled")
	}
}

func TestManager_InvalidConfig(t *testing.T) {
	if _, err := NewManager(Config{}); err == nil {
		t.Error("Expected error for zero memory capacity")
	}
	if _, err := NewManager(Config{MemoryCapacity: 10, DiskCapacity: 10}); err == nil {
		t.Error("Expected error for missing disk path")
	}
}

func TestManager_Cleanup(t *testing.T) {
	config := testConfig(t)
	config.TTL = 10 * time.Millisecond
	m, err := NewManager(config)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	_ = m.Put("a", []byte("x"))
	_ = m.Flush()
	time.Sleep(20 * time.Millisecond)

	m.Cleanup()

	if _, ok := m.Get("a"); ok {
		t.Error("Expected expired entry to be gone from both levels")
	}
	if m.Stats().CleanupRuns != 1 {
		t.Errorf("Expected 1 cleanup run, got %d", m.Stats().CleanupRuns)
	}
}

func TestManager_CleanupLoop(t *testing.T) {
	config := testConfig(t)
	config.CleanupInterval = 10 * time.Millisecond
	m, err := NewManager(config)
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(50 * time.Millisecond)
	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if m.Stats().CleanupRuns == 0 {
		t.Error("Expected cleanup loop to run")
	}
	if err := m.Put("a", []byte("x")); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("Expected ErrCacheClosed, got %v", err)
	}
}

func TestManager_Clear(t *testing.T) {
	m, err := NewManager(testConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	for i := 0; i < 5; i++ {
		_ = m.Put(fmt.Sprint(i), []byte("x"))
	}
	if err := m.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	stats := m.Stats()
	if stats.Memory.Items != 0 || stats.Disk.Items != 0 {
		t.Errorf("Expected empty cache, got %+v", stats)
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	m, err := NewManager(testConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				key := Key(fmt.Sprintf("phrase %d", i%10), "en")
				_ = m.Put(key, []byte(key))
				if got, ok := m.Get(key); ok && string(got) != key {
					t.Errorf("Got wrong value for %s", key)
				}
			}
		}(g)
	}
	wg.Wait()
}

func TestKey(t *testing.T) {
	if Key("hello", "en") != Key("hello", " EN ") {
		t.Error("Language should be normalized")
	}
	if Key("hello", "en") == Key("hello", "ro") {
		t.Error("Different languages must not collide")
	}
	if Key("hello", "en") == Key("Hello", "en") {
		t.Error("Text is case sensitive")
	}
	if len(Key("x", "en")) != 32 {
		t.Errorf("Expected 32 hex chars, got %d", len(Key("x", "en")))
	}
}
