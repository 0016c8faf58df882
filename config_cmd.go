package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# log level: debug, info, warn or error
log:
  level: "info"
  # also write to herald.log in the cache directory
  file: false

discord:
  # command prefix
  prefix: "!"
  # Opus bitrate in bits per second
  bitrate: 64000
  # commands per second per user (0 disables the limit)
  command_rate: 0.5
  command_burst: 3

tts:
  # TTS engine: gtts or mock
  engine: "gtts"
  gtts:
    binary: "gtts-cli"
    slow: false
    timeout: "30s"
    requests_per_minute: 50

playback:
  # pending items per voice channel (0 is unbounded)
  max_pending: 0

# local speaker, used by herald say
speaker:
  sample_rate: 44100
  channels: 1
  buffer_size: "100ms"
  volume: 1.0

# rendered speech cache
cache:
  # dir: "/path/to/cache"
  memory_mb: 32
  disk_mb: 256
  ttl: "168h"

# defaults for guilds that never ran setlang or toggleuser
guilds:
  language: "ro"
  include_username: false
  # settings_file: "/path/to/settings.yml"
  # spool_dir: "/path/to/spool"

http:
  enabled: false
  addr: "127.0.0.1:8089"
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the herald config file",
	Long:    paragraph(fmt.Sprintf("\n%s the herald config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("herald config\nherald config --config path/to/herald.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Herald", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
