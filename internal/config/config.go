// Package config loads herald's configuration from viper and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/herald/internal/tts"
)

// Config contains all configuration options.
type Config struct {
	Log      LogConfig
	Discord  DiscordConfig
	TTS      TTSConfig
	Playback PlaybackConfig
	Speaker  SpeakerConfig
	Cache    CacheConfig
	Guilds   GuildConfig
	HTTP     HTTPConfig
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level"`
	File  bool   `yaml:"file"`
}

// DiscordConfig contains bot settings.
type DiscordConfig struct {
	Prefix       string  `yaml:"prefix"`
	Bitrate      int     `yaml:"bitrate"`
	CommandRate  float64 `yaml:"command_rate"`
	CommandBurst int     `yaml:"command_burst"`
}

// TTSConfig selects and configures the speech engine.
type TTSConfig struct {
	Engine string     `yaml:"engine"`
	GTTS   GTTSConfig `yaml:"gtts"`
}

// GTTSConfig contains gtts-cli settings.
type GTTSConfig struct {
	Binary            string        `yaml:"binary"`
	Slow              bool          `yaml:"slow"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
}

// PlaybackConfig bounds the sink queues.
type PlaybackConfig struct {
	MaxPending int `yaml:"max_pending"`
}

// SpeakerConfig contains local speaker settings.
type SpeakerConfig struct {
	SampleRate int           `yaml:"sample_rate"`
	Channels   int           `yaml:"channels"`
	BufferSize time.Duration `yaml:"buffer_size"`
	Volume     float64       `yaml:"volume"`
}

// CacheConfig contains speech cache settings. Sizes are in MB.
type CacheConfig struct {
	Dir      string        `yaml:"dir"`
	MemoryMB int           `yaml:"memory_mb"`
	DiskMB   int           `yaml:"disk_mb"`
	TTL      time.Duration `yaml:"ttl"`
}

// GuildConfig holds defaults for guilds without stored settings.
type GuildConfig struct {
	Language        string `yaml:"language"`
	IncludeUsername bool   `yaml:"include_username"`
	SettingsFile    string `yaml:"settings_file"`
	SpoolDir        string `yaml:"spool_dir"`
}

// HTTPConfig contains ingress settings.
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Secrets are read from the environment only, never from the config file.
type Secrets struct {
	DiscordToken string `env:"DISCORD_BOT_TOKEN"`
	IngressToken string `env:"HERALD_INGRESS_TOKEN"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Discord: DiscordConfig{
			Prefix:       "!",
			Bitrate:      64000,
			CommandRate:  0.5,
			CommandBurst: 3,
		},
		TTS: TTSConfig{
			Engine: "gtts",
			GTTS: GTTSConfig{
				Binary:            "gtts-cli",
				Timeout:           30 * time.Second,
				RequestsPerMinute: 50,
			},
		},
		Speaker: SpeakerConfig{
			SampleRate: 44100,
			Channels:   1,
			BufferSize: 100 * time.Millisecond,
			Volume:     1.0,
		},
		Cache: CacheConfig{
			MemoryMB: 32,
			DiskMB:   256,
			TTL:      7 * 24 * time.Hour,
		},
		Guilds: GuildConfig{Language: "ro"},
		HTTP:   HTTPConfig{Addr: "127.0.0.1:8089"},
	}
}

// SetDefaults registers the defaults with v so they show up in the config
// file and in environment overrides.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)

	v.SetDefault("discord.prefix", d.Discord.Prefix)
	v.SetDefault("discord.bitrate", d.Discord.Bitrate)
	v.SetDefault("discord.command_rate", d.Discord.CommandRate)
	v.SetDefault("discord.command_burst", d.Discord.CommandBurst)

	v.SetDefault("tts.engine", d.TTS.Engine)
	v.SetDefault("tts.gtts.binary", d.TTS.GTTS.Binary)
	v.SetDefault("tts.gtts.slow", d.TTS.GTTS.Slow)
	v.SetDefault("tts.gtts.timeout", d.TTS.GTTS.Timeout)
	v.SetDefault("tts.gtts.requests_per_minute", d.TTS.GTTS.RequestsPerMinute)

	v.SetDefault("playback.max_pending", d.Playback.MaxPending)

	v.SetDefault("speaker.sample_rate", d.Speaker.SampleRate)
	v.SetDefault("speaker.channels", d.Speaker.Channels)
	v.SetDefault("speaker.buffer_size", d.Speaker.BufferSize)
	v.SetDefault("speaker.volume", d.Speaker.Volume)

	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.memory_mb", d.Cache.MemoryMB)
	v.SetDefault("cache.disk_mb", d.Cache.DiskMB)
	v.SetDefault("cache.ttl", d.Cache.TTL)

	v.SetDefault("guilds.language", d.Guilds.Language)
	v.SetDefault("guilds.include_username", d.Guilds.IncludeUsername)
	v.SetDefault("guilds.settings_file", d.Guilds.SettingsFile)
	v.SetDefault("guilds.spool_dir", d.Guilds.SpoolDir)

	v.SetDefault("http.enabled", d.HTTP.Enabled)
	v.SetDefault("http.addr", d.HTTP.Addr)
}

// Load reads the configuration from v and validates it.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level: v.GetString("log.level"),
			File:  v.GetBool("log.file"),
		},
		Discord: DiscordConfig{
			Prefix:       v.GetString("discord.prefix"),
			Bitrate:      v.GetInt("discord.bitrate"),
			CommandRate:  v.GetFloat64("discord.command_rate"),
			CommandBurst: v.GetInt("discord.command_burst"),
		},
		TTS: TTSConfig{
			Engine: v.GetString("tts.engine"),
			GTTS: GTTSConfig{
				Binary:            v.GetString("tts.gtts.binary"),
				Slow:              v.GetBool("tts.gtts.slow"),
				Timeout:           v.GetDuration("tts.gtts.timeout"),
				RequestsPerMinute: v.GetInt("tts.gtts.requests_per_minute"),
			},
		},
		Playback: PlaybackConfig{
			MaxPending: v.GetInt("playback.max_pending"),
		},
		Speaker: SpeakerConfig{
			SampleRate: v.GetInt("speaker.sample_rate"),
			Channels:   v.GetInt("speaker.channels"),
			BufferSize: v.GetDuration("speaker.buffer_size"),
			Volume:     v.GetFloat64("speaker.volume"),
		},
		Cache: CacheConfig{
			Dir:      v.GetString("cache.dir"),
			MemoryMB: v.GetInt("cache.memory_mb"),
			DiskMB:   v.GetInt("cache.disk_mb"),
			TTL:      v.GetDuration("cache.ttl"),
		},
		Guilds: GuildConfig{
			Language:        v.GetString("guilds.language"),
			IncludeUsername: v.GetBool("guilds.include_username"),
			SettingsFile:    v.GetString("guilds.settings_file"),
			SpoolDir:        v.GetString("guilds.spool_dir"),
		},
		HTTP: HTTPConfig{
			Enabled: v.GetBool("http.enabled"),
			Addr:    v.GetString("http.addr"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	code, _ := tts.NormalizeLanguage(cfg.Guilds.Language)
	cfg.Guilds.Language = code

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	var errs []error

	if _, err := tts.ValidateEngineSelection(c.TTS.Engine); err != nil {
		errs = append(errs, err)
	}
	if c.TTS.GTTS.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("gtts timeout must be positive, got %s", c.TTS.GTTS.Timeout))
	}
	if c.TTS.GTTS.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("gtts requests_per_minute cannot be negative, got %d", c.TTS.GTTS.RequestsPerMinute))
	}

	if strings.TrimSpace(c.Discord.Prefix) == "" {
		errs = append(errs, errors.New("command prefix cannot be empty"))
	}
	if c.Discord.Bitrate < 0 || c.Discord.Bitrate > 512000 {
		errs = append(errs, fmt.Errorf("opus bitrate must be between 0 and 512000, got %d", c.Discord.Bitrate))
	}
	if c.Discord.CommandRate < 0 {
		errs = append(errs, fmt.Errorf("command_rate cannot be negative, got %g", c.Discord.CommandRate))
	}

	if c.Playback.MaxPending < 0 {
		errs = append(errs, fmt.Errorf("max_pending cannot be negative, got %d", c.Playback.MaxPending))
	}

	if c.Speaker.SampleRate != 44100 && c.Speaker.SampleRate != 48000 {
		errs = append(errs, fmt.Errorf("speaker sample_rate must be 44100 or 48000, got %d", c.Speaker.SampleRate))
	}
	if c.Speaker.Channels != 1 && c.Speaker.Channels != 2 {
		errs = append(errs, fmt.Errorf("speaker channels must be 1 or 2, got %d", c.Speaker.Channels))
	}
	if c.Speaker.Volume < 0 || c.Speaker.Volume > 2 {
		errs = append(errs, fmt.Errorf("speaker volume must be between 0.0 and 2.0, got %.2f", c.Speaker.Volume))
	}

	if c.Cache.MemoryMB < 1 || c.Cache.MemoryMB > 1024 {
		errs = append(errs, fmt.Errorf("cache memory_mb must be between 1 and 1024, got %d", c.Cache.MemoryMB))
	}
	if c.Cache.DiskMB < 0 || c.Cache.DiskMB > 10000 {
		errs = append(errs, fmt.Errorf("cache disk_mb must be between 0 and 10000, got %d", c.Cache.DiskMB))
	}

	if _, ok := tts.NormalizeLanguage(c.Guilds.Language); !ok {
		errs = append(errs, fmt.Errorf("unknown default language %q", c.Guilds.Language))
	}

	if c.HTTP.Enabled && c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http addr cannot be empty when enabled"))
	}

	return errors.Join(errs...)
}

// LoadSecrets loads .env files, when present, and reads the secrets from
// the environment. Variables already set win over the files.
func LoadSecrets(files ...string) (Secrets, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Secrets{}, fmt.Errorf("unable to load %s: %w", f, err)
		}
	}

	s, err := env.ParseAs[Secrets]()
	if err != nil {
		return Secrets{}, fmt.Errorf("error parsing environment: %w", err)
	}
	return s, nil
}
