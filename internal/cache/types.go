package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrItemTooLarge is returned when an item exceeds the cache capacity.
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheClosed is returned by Put after Close.
	ErrCacheClosed = errors.New("cache is closed")
)

// Level identifies a cache tier.
type Level int

const (
	// LevelMemory is the in-process LRU cache.
	LevelMemory Level = iota
	// LevelDisk is the persistent compressed cache.
	LevelDisk
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelMemory:
		return "memory"
	case LevelDisk:
		return "disk"
	default:
		return "unknown"
	}
}

// Stats holds per-level cache counters.
type Stats struct {
	Capacity  int64
	Size      int64
	Items     int
	Hits      int64
	Misses    int64
	Evictions int64
	Expired   int64
}

// HitRate returns hits / (hits + misses), or 0 without traffic.
func (s Stats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// Config holds cache settings.
type Config struct {
	MemoryCapacity   int64 // bytes
	DiskCapacity     int64 // bytes; 0 disables the disk level
	DiskPath         string
	CompressionLevel int // zstd level, 1-22

	TTL             time.Duration // entries older than this are dropped; 0 keeps them
	CleanupInterval time.Duration // 0 disables the cleanup loop
}

// DefaultConfig returns the default configuration rooted at dir.
func DefaultConfig(dir string) Config {
	return Config{
		MemoryCapacity:   32 * 1024 * 1024,
		DiskCapacity:     256 * 1024 * 1024,
		DiskPath:         filepath.Join(dir, "speech"),
		CompressionLevel: 3,
		TTL:              7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// Key derives the cache key of text rendered in lang. Case and surrounding
// whitespace of lang are ignored; text is used verbatim.
func Key(text, lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	hash := sha256.Sum256([]byte(lang + "|" + text))
	return hex.EncodeToString(hash[:16])
}
