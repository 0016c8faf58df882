package cache

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var lookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "herald_speech_cache_lookups_total",
	Help: "Rendered speech cache lookups by level and result.",
}, []string{"level", "result"})

// Manager coordinates the memory and disk levels: lookups fall through from
// memory to disk and disk hits are promoted. Disk writes happen in the
// background.
type Manager struct {
	memory *MemoryCache
	disk   *DiskCache // nil when disabled

	config Config
	logger *log.Logger

	writes sync.WaitGroup
	stop   chan struct{}
	loop   sync.WaitGroup
	closed atomic.Bool

	promotions  atomic.Int64
	cleanupRuns atomic.Int64
}

// ManagerStats aggregates both levels.
type ManagerStats struct {
	Memory      Stats
	Disk        Stats
	Promotions  int64
	CleanupRuns int64
}

// NewManager creates a cache manager and starts its cleanup loop.
func NewManager(config Config) (*Manager, error) {
	if config.MemoryCapacity <= 0 {
		return nil, errors.New("memory capacity must be positive")
	}

	m := &Manager{
		memory: NewMemoryCache(config.MemoryCapacity),
		config: config,
		logger: log.WithPrefix("cache"),
		stop:   make(chan struct{}),
	}

	if config.DiskCapacity > 0 {
		if config.DiskPath == "" {
			return nil, errors.New("disk path must be set when the disk cache is enabled")
		}
		disk, err := NewDiskCache(config.DiskPath, config.DiskCapacity, config.CompressionLevel)
		if err != nil {
			return nil, fmt.Errorf("failed to create disk cache: %w", err)
		}
		m.disk = disk
	}

	if config.CleanupInterval > 0 {
		m.loop.Add(1)
		go m.cleanupLoop()
	}

	return m, nil
}

// Get looks key up in memory, then on disk.
func (m *Manager) Get(key string) ([]byte, bool) {
	if data, ok := m.memory.Get(key); ok {
		lookups.WithLabelValues("memory", "hit").Inc()
		return data, true
	}
	lookups.WithLabelValues("memory", "miss").Inc()

	if m.disk == nil {
		return nil, false
	}

	data, ok := m.disk.Get(key)
	if !ok {
		lookups.WithLabelValues("disk", "miss").Inc()
		return nil, false
	}
	lookups.WithLabelValues("disk", "hit").Inc()

	// Best effort
	if err := m.memory.Put(key, data); err == nil {
		m.promotions.Add(1)
	}
	return data, true
}

// Put stores value in memory now and on disk in the background. Values too
// large for memory still go to disk.
func (m *Manager) Put(key string, value []byte) error {
	if m.closed.Load() {
		return ErrCacheClosed
	}

	if err := m.memory.Put(key, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
		return fmt.Errorf("memory cache: %w", err)
	}

	if m.disk != nil {
		m.writes.Add(1)
		go func() {
			defer m.writes.Done()
			if err := m.disk.Put(key, value); err != nil {
				m.logger.Warn("Failed to write speech to disk cache", "key", key, "error", err)
			}
		}()
	}

	return nil
}

// Delete removes key from both levels.
func (m *Manager) Delete(key string) {
	m.memory.Delete(key)
	if m.disk != nil {
		m.disk.Delete(key)
	}
}

// Clear empties both levels.
func (m *Manager) Clear() error {
	m.writes.Wait()
	m.memory.Clear()
	if m.disk != nil {
		return m.disk.Clear()
	}
	return nil
}

// Flush waits for pending disk writes and persists the disk index.
func (m *Manager) Flush() error {
	m.writes.Wait()
	if m.disk != nil {
		return m.disk.Sync()
	}
	return nil
}

// Stats returns counters of both levels.
func (m *Manager) Stats() ManagerStats {
	stats := ManagerStats{
		Memory:      m.memory.Stats(),
		Promotions:  m.promotions.Load(),
		CleanupRuns: m.cleanupRuns.Load(),
	}
	if m.disk != nil {
		stats.Disk = m.disk.Stats()
	}
	return stats
}

// Cleanup drops expired entries from both levels and persists the disk
// index.
func (m *Manager) Cleanup() {
	m.cleanupRuns.Add(1)

	if m.config.TTL > 0 {
		pruned := m.memory.Prune(m.config.TTL)
		removed := 0
		if m.disk != nil {
			removed = m.disk.RemoveOlderThan(time.Now().Add(-m.config.TTL))
		}
		if pruned+removed > 0 {
			m.logger.Debug("Expired cached speech", "memory", pruned, "disk", removed)
		}
	}

	if m.disk != nil {
		if err := m.disk.Sync(); err != nil {
			m.logger.Warn("Failed to save cache index", "error", err)
		}
	}
}

func (m *Manager) cleanupLoop() {
	defer m.loop.Done()

	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Cleanup()
		case <-m.stop:
			return
		}
	}
}

// Close stops the cleanup loop, waits for disk writes and saves the index.
func (m *Manager) Close() error {
	if m.closed.Swap(true) {
		return nil
	}

	close(m.stop)
	m.loop.Wait()
	m.writes.Wait()

	if m.disk != nil {
		if err := m.disk.Close(); err != nil {
			return fmt.Errorf("failed to close disk cache: %w", err)
		}
	}
	return nil
}
