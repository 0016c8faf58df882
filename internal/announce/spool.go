package announce

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	gap "github.com/muesli/go-app-paths"
)

// Spool writes rendered messages to disk so they can be queued as files and
// attached to replies.
type Spool struct {
	dir string
}

// DefaultSpoolDir returns the spool directory under the user cache dir.
func DefaultSpoolDir() (string, error) {
	dir, err := gap.NewScope(gap.User, "herald").CacheDir()
	if err != nil {
		return "", fmt.Errorf("unable to find cache directory: %w", err)
	}
	return filepath.Join(dir, "spool"), nil
}

// NewSpool creates dir if needed.
func NewSpool(dir string) (*Spool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create spool directory: %w", err)
	}
	return &Spool{dir: dir}, nil
}

// Dir returns the spool directory.
func (s *Spool) Dir() string {
	return s.dir
}

// FileName is the name a message by author at t is saved under.
func FileName(author string, t time.Time) string {
	return fmt.Sprintf("%s_%d.mp3", author, t.Unix())
}

// Write saves audio as a new spool file and returns its path. A second
// message by the same author within the same second gets a numbered name.
func (s *Spool) Write(author string, t time.Time, audio []byte) (string, error) {
	name := FileName(author, t)
	base := strings.TrimSuffix(name, ".mp3")

	for n := 1; ; n++ {
		path := filepath.Join(s.dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			name = fmt.Sprintf("%s_%d.mp3", base, n)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("unable to create spool file: %w", err)
		}

		if _, err := f.Write(audio); err != nil {
			_ = f.Close()
			_ = os.Remove(path)
			return "", fmt.Errorf("unable to write spool file: %w", err)
		}
		if err := f.Close(); err != nil {
			_ = os.Remove(path)
			return "", fmt.Errorf("unable to write spool file: %w", err)
		}
		return path, nil
	}
}

// Sweep removes spool files older than age, left behind by a previous run.
func (s *Spool) Sweep(age time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("unable to read spool directory: %w", err)
	}

	cutoff := time.Now().Add(-age)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".mp3" {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}
