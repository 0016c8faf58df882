package cache

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"
)

const indexFile = "index.gob"

// DiskCache is the L2 level: one zstd-compressed file per entry plus a gob
// index, all under a single directory.
type DiskCache struct {
	dir      string
	capacity int64
	size     int64 // compressed bytes on disk

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	index map[string]*diskEntry
	dirty bool

	mu     sync.Mutex
	stats  Stats
	logger *log.Logger
}

// diskEntry is persisted in the index, so its fields are exported for gob.
type diskEntry struct {
	File       string // base name inside dir
	Size       int64
	RawSize    int64
	Created    time.Time
	LastAccess time.Time
}

// NewDiskCache opens or creates a disk cache in dir.
func NewDiskCache(dir string, capacity int64, level int) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if level <= 0 {
		level = 3
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	dc := &DiskCache{
		dir:      dir,
		capacity: capacity,
		encoder:  enc,
		decoder:  dec,
		index:    make(map[string]*diskEntry),
		logger:   log.WithPrefix("cache"),
	}

	if err := dc.loadIndex(); err != nil {
		dc.logger.Warn("Discarding unreadable cache index", "dir", dir, "error", err)
		dc.index = make(map[string]*diskEntry)
	}
	for _, e := range dc.index {
		dc.size += e.Size
	}

	return dc, nil
}

// Get reads and decompresses key. Unreadable entries are dropped and
// reported as misses.
func (dc *DiskCache) Get(key string) ([]byte, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	entry, ok := dc.index[key]
	if !ok {
		dc.stats.Misses++
		return nil, false
	}

	compressed, err := os.ReadFile(filepath.Join(dc.dir, entry.File))
	if err == nil {
		var data []byte
		if data, err = dc.decoder.DecodeAll(compressed, nil); err == nil {
			entry.LastAccess = time.Now()
			dc.dirty = true
			dc.stats.Hits++
			return data, true
		}
	}

	dc.logger.Debug("Dropping corrupt cache entry", "key", key, "error", err)
	dc.removeLocked(key, entry)
	dc.stats.Misses++
	return nil, false
}

// Put compresses value and writes it under key.
func (dc *DiskCache) Put(key string, value []byte) error {
	data := dc.encoder.EncodeAll(value, nil)
	n := int64(len(data))

	dc.mu.Lock()
	defer dc.mu.Unlock()

	if n > dc.capacity {
		return ErrItemTooLarge
	}

	if old, ok := dc.index[key]; ok {
		dc.removeLocked(key, old)
	}
	for dc.size+n > dc.capacity && len(dc.index) > 0 {
		dc.evictLocked()
	}

	name := key + ".zst"
	if err := writeAtomic(filepath.Join(dc.dir, name), data); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	now := time.Now()
	dc.index[key] = &diskEntry{
		File:       name,
		Size:       n,
		RawSize:    int64(len(value)),
		Created:    now,
		LastAccess: now,
	}
	dc.size += n
	dc.dirty = true

	return nil
}

// Contains reports whether key is indexed.
func (dc *DiskCache) Contains(key string) bool {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	_, ok := dc.index[key]
	return ok
}

// Delete removes key.
func (dc *DiskCache) Delete(key string) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if entry, ok := dc.index[key]; ok {
		dc.removeLocked(key, entry)
	}
}

// Clear removes every entry and persists the empty index.
func (dc *DiskCache) Clear() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	for key, entry := range dc.index {
		dc.removeLocked(key, entry)
	}
	return dc.saveIndexLocked()
}

// RemoveOlderThan drops entries created before cutoff.
func (dc *DiskCache) RemoveOlderThan(cutoff time.Time) int {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	removed := 0
	for key, entry := range dc.index {
		if entry.Created.Before(cutoff) {
			dc.removeLocked(key, entry)
			removed++
		}
	}
	dc.stats.Expired += int64(removed)
	return removed
}

// Size returns the compressed bytes on disk.
func (dc *DiskCache) Size() int64 {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	return dc.size
}

// Stats returns a snapshot of the counters.
func (dc *DiskCache) Stats() Stats {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	stats := dc.stats
	stats.Capacity = dc.capacity
	stats.Size = dc.size
	stats.Items = len(dc.index)
	return stats
}

// Sync writes the index if it changed.
func (dc *DiskCache) Sync() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if !dc.dirty {
		return nil
	}
	return dc.saveIndexLocked()
}

// Close persists the index and releases the codecs.
func (dc *DiskCache) Close() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	err := dc.saveIndexLocked()
	dc.encoder.Close()
	dc.decoder.Close()
	return err
}

// evictLocked removes the least recently accessed entry.
func (dc *DiskCache) evictLocked() {
	keys := make([]string, 0, len(dc.index))
	for k := range dc.index {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return dc.index[keys[i]].LastAccess.Before(dc.index[keys[j]].LastAccess)
	})
	if len(keys) > 0 {
		dc.removeLocked(keys[0], dc.index[keys[0]])
		dc.stats.Evictions++
	}
}

func (dc *DiskCache) removeLocked(key string, entry *diskEntry) {
	_ = os.Remove(filepath.Join(dc.dir, entry.File))
	delete(dc.index, key)
	dc.size -= entry.Size
	dc.dirty = true
}

func (dc *DiskCache) loadIndex() error {
	f, err := os.Open(filepath.Join(dc.dir, indexFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	if err := gob.NewDecoder(f).Decode(&dc.index); err != nil {
		return err
	}

	// Forget entries whose file went missing
	for key, entry := range dc.index {
		if _, err := os.Stat(filepath.Join(dc.dir, entry.File)); err != nil {
			delete(dc.index, key)
		}
	}
	return nil
}

func (dc *DiskCache) saveIndexLocked() error {
	f, err := os.CreateTemp(dc.dir, indexFile+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	if err := gob.NewEncoder(f).Encode(dc.index); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, filepath.Join(dc.dir, indexFile)); err != nil {
		return err
	}

	dc.dirty = false
	return nil
}

// writeAtomic writes data to a temp file and renames it over path.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
