// Package settings stores per-guild announcer preferences.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/herald/internal/tts"
)

// ErrInvalidLanguage is returned by SetLanguage for unknown language codes.
var ErrInvalidLanguage = errors.New("invalid language code")

// Guild holds the preferences of one guild.
type Guild struct {
	// Language spoken for messages read out with speak
	Language string `yaml:"language"`

	// IncludeUsername prefixes spoken messages with the author's name
	IncludeUsername bool `yaml:"include_username"`
}

// DefaultGuild is used for guilds without stored preferences.
var DefaultGuild = Guild{Language: "ro"}

// file is the on-disk layout.
type file struct {
	Guilds map[string]Guild `yaml:"guilds"`
}

// Store is a thread-safe set of guild preferences persisted as YAML.
// Mutations are written through to disk when the store has a path.
type Store struct {
	mu       sync.RWMutex
	path     string
	defaults Guild
	guilds   map[string]Guild
	logger   *log.Logger
}

// New creates a store backed by path. An empty path keeps everything in
// memory.
func New(path string, defaults Guild) *Store {
	return &Store{
		path:     path,
		defaults: defaults,
		guilds:   make(map[string]Guild),
		logger:   log.WithPrefix("settings"),
	}
}

// DefaultPath returns the settings file in the user data directory.
func DefaultPath() (string, error) {
	p, err := gap.NewScope(gap.User, "herald").DataPath("settings.yml")
	if err != nil {
		return "", fmt.Errorf("unable to find data directory: %w", err)
	}
	return p, nil
}

// Path returns the backing file, if any.
func (s *Store) Path() string {
	return s.path
}

// Get returns the preferences of guild, falling back to the defaults.
func (s *Store) Get(guild string) Guild {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if g, ok := s.guilds[guild]; ok {
		return g
	}
	return s.defaults
}

// SetDefaults replaces the preferences used for guilds without an entry.
func (s *Store) SetDefaults(defaults Guild) {
	s.mu.Lock()
	s.defaults = defaults
	s.mu.Unlock()
}

// SetLanguage validates lang and stores its canonical code for guild.
func (s *Store) SetLanguage(guild, lang string) (string, error) {
	code, ok := tts.NormalizeLanguage(lang)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidLanguage, lang)
	}

	s.mu.Lock()
	g := s.lookup(guild)
	g.Language = code
	s.guilds[guild] = g
	s.mu.Unlock()

	return code, s.persist()
}

// ToggleUsername flips the username prefix for guild and returns the new
// value.
func (s *Store) ToggleUsername(guild string) (bool, error) {
	s.mu.Lock()
	g := s.lookup(guild)
	g.IncludeUsername = !g.IncludeUsername
	s.guilds[guild] = g
	s.mu.Unlock()

	return g.IncludeUsername, s.persist()
}

// lookup must be called with s.mu held.
func (s *Store) lookup(guild string) Guild {
	if g, ok := s.guilds[guild]; ok {
		return g
	}
	return s.defaults
}

// Load replaces the in-memory preferences with the backing file. A missing
// file is not an error.
func (s *Store) Load() error {
	if s.path == "" {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("unable to read settings: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("unable to parse settings %s: %w", s.path, err)
	}

	guilds := make(map[string]Guild, len(f.Guilds))
	for id, g := range f.Guilds {
		if code, ok := tts.NormalizeLanguage(g.Language); ok {
			g.Language = code
		} else {
			s.logger.Warn("Ignoring invalid stored language", "guild", id, "language", g.Language)
			g.Language = s.defaults.Language
		}
		guilds[id] = g
	}

	s.mu.Lock()
	s.guilds = guilds
	s.mu.Unlock()

	s.logger.Debug("Loaded settings", "path", s.path, "guilds", len(guilds))
	return nil
}

// Save writes every guild entry to the backing file.
func (s *Store) Save() error {
	if s.path == "" {
		return nil
	}

	s.mu.RLock()
	f := file{Guilds: make(map[string]Guild, len(s.guilds))}
	for id, g := range s.guilds {
		f.Guilds[id] = g
	}
	s.mu.RUnlock()

	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("unable to encode settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("unable to create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".settings-*")
	if err != nil {
		return fmt.Errorf("unable to write settings: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("unable to write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("unable to write settings: %w", err)
	}

	return os.Rename(tmp.Name(), s.path)
}

func (s *Store) persist() error {
	if err := s.Save(); err != nil {
		s.logger.Error("Failed to save settings", "error", err)
		return err
	}
	return nil
}
