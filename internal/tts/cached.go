package tts

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/herald/internal/cache"
)

// Store is the subset of cache.Manager used by Cached.
type Store interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
}

// Cached wraps a Renderer with a speech cache keyed by text and language.
type Cached struct {
	Renderer
	store  Store
	logger *log.Logger
}

// NewCached returns r backed by store.
func NewCached(r Renderer, store Store) *Cached {
	return &Cached{
		Renderer: r,
		store:    store,
		logger:   log.WithPrefix("tts"),
	}
}

// Render returns cached audio when available and caches fresh renders.
// Failed renders are never cached.
func (c *Cached) Render(ctx context.Context, text, lang string) ([]byte, error) {
	key := cache.Key(text, lang)
	if audio, ok := c.store.Get(key); ok {
		c.logger.Debug("Speech cache hit", "lang", lang, "bytes", len(audio))
		return audio, nil
	}

	audio, err := c.Renderer.Render(ctx, text, lang)
	if err != nil {
		return nil, err
	}

	if err := c.store.Put(key, audio); err != nil {
		c.logger.Warn("Failed to cache speech", "error", err)
	}
	return audio, nil
}
