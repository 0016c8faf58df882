package main

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"

	"github.com/dgnsrekt/herald/internal/cache"
	"github.com/dgnsrekt/herald/internal/config"
	"github.com/dgnsrekt/herald/internal/tts"
	"github.com/dgnsrekt/herald/internal/tts/engines"
)

const mb = 1024 * 1024

// speechCacheConfig maps the cache section onto cache.Config.
func speechCacheConfig(c config.CacheConfig) (cache.Config, error) {
	dir := c.Dir
	if dir == "" {
		d, err := gap.NewScope(gap.User, "herald").CacheDir()
		if err != nil {
			return cache.Config{}, fmt.Errorf("unable to find cache directory: %w", err)
		}
		dir = d
	}

	cc := cache.DefaultConfig(dir)
	cc.MemoryCapacity = int64(c.MemoryMB) * mb
	cc.DiskCapacity = int64(c.DiskMB) * mb
	cc.DiskPath = filepath.Join(dir, "speech")
	cc.TTL = c.TTL
	return cc, nil
}

// newRenderer builds the configured engine wrapped in the speech cache. The
// returned closer shuts down both.
func newRenderer(c config.Config) (tts.Renderer, func() error, error) {
	engineType, err := tts.ValidateEngineSelection(c.TTS.Engine)
	if err != nil {
		return nil, nil, err
	}

	var engine tts.Renderer
	switch engineType {
	case tts.EngineMock:
		engine = engines.NewMockEngine()
	default:
		g, err := engines.NewGTTSEngine(engines.GTTSConfig{
			Binary:            c.TTS.GTTS.Binary,
			Slow:              c.TTS.GTTS.Slow,
			Timeout:           c.TTS.GTTS.Timeout,
			RequestsPerMinute: c.TTS.GTTS.RequestsPerMinute,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := g.Validate(); err != nil {
			return nil, nil, err
		}
		engine = g
	}

	cc, err := speechCacheConfig(c.Cache)
	if err != nil {
		_ = engine.Close()
		return nil, nil, err
	}
	store, err := cache.NewManager(cc)
	if err != nil {
		_ = engine.Close()
		return nil, nil, fmt.Errorf("unable to open speech cache: %w", err)
	}
	log.Debug("Speech cache ready", "path", cc.DiskPath, "engine", engineType)

	closer := func() error {
		cerr := store.Close()
		if err := engine.Close(); err != nil {
			return err
		}
		return cerr
	}
	return tts.NewCached(engine, store), closer, nil
}
