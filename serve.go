package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/herald/internal/announce"
	"github.com/dgnsrekt/herald/internal/command"
	"github.com/dgnsrekt/herald/internal/config"
	"github.com/dgnsrekt/herald/internal/discord"
	"github.com/dgnsrekt/herald/internal/ingress"
	"github.com/dgnsrekt/herald/internal/playback"
	"github.com/dgnsrekt/herald/internal/settings"
)

// spoolMaxAge is how old a spooled file must be to be swept at startup.
const spoolMaxAge = 24 * time.Hour

var errNoToken = errors.New("DISCORD_BOT_TOKEN is not set")

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect to Discord and start announcing",
	Long: paragraph(fmt.Sprintf("\n%s to Discord with the token in DISCORD_BOT_TOKEN (read from the environment or a .env file) and announce voice channel activity in every guild the bot is in.",
		keyword("Connect"))),
	Example: paragraph("herald serve\nherald serve --http --engine mock"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	serveCmd.Flags().Bool("http", false, "serve the HTTP API")
	serveCmd.Flags().String("addr", "", "HTTP API listen address")
	_ = viper.BindPFlag("http.enabled", serveCmd.Flags().Lookup("http"))
	_ = viper.BindPFlag("http.addr", serveCmd.Flags().Lookup("addr"))
}

func guildDefaults(c config.Config) settings.Guild {
	return settings.Guild{
		Language:        c.Guilds.Language,
		IncludeUsername: c.Guilds.IncludeUsername,
	}
}

func commandRate(c config.DiscordConfig) rate.Limit {
	if c.CommandRate <= 0 {
		return rate.Inf
	}
	return rate.Limit(c.CommandRate)
}

func serve(ctx context.Context) error {
	secrets, err := config.LoadSecrets(".env")
	if err != nil {
		return err
	}
	if secrets.DiscordToken == "" {
		return errNoToken
	}

	renderer, closeRenderer, err := newRenderer(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeRenderer() }()

	settingsPath := cfg.Guilds.SettingsFile
	if settingsPath == "" {
		if settingsPath, err = settings.DefaultPath(); err != nil {
			return err
		}
	}
	prefs := settings.New(settingsPath, guildDefaults(cfg))
	if err := prefs.Load(); err != nil {
		return err
	}

	spoolDir := cfg.Guilds.SpoolDir
	if spoolDir == "" {
		if spoolDir, err = announce.DefaultSpoolDir(); err != nil {
			return err
		}
	}
	spool, err := announce.NewSpool(spoolDir)
	if err != nil {
		return err
	}
	if n, err := spool.Sweep(spoolMaxAge); err != nil {
		log.Warn("Could not sweep spool", "dir", spoolDir, "error", err)
	} else if n > 0 {
		log.Info("Removed stale spool files", "count", n)
	}

	session, err := discord.NewSession(secrets.DiscordToken)
	if err != nil {
		return err
	}

	voice := discord.NewVoiceSink(session, discord.WithBitrate(cfg.Discord.Bitrate))
	scheduler := playback.New(voice, playback.WithMaxPending(cfg.Playback.MaxPending))
	defer func() { _ = scheduler.Close() }()

	announcer := announce.New(renderer, scheduler, prefs, spool, announce.WithConnected(voice.IsConnected))
	router := command.New(voice, scheduler, announcer, prefs,
		command.WithPrefix(cfg.Discord.Prefix),
		command.WithRateLimit(commandRate(cfg.Discord), cfg.Discord.CommandBurst),
	)

	bot := discord.NewBot(session, voice, announcer, router, scheduler)
	if err := bot.Open(); err != nil {
		return err
	}
	defer func() {
		if err := bot.Close(); err != nil {
			log.Warn("Error closing Discord session", "error", err)
		}
	}()

	if cfg.HTTP.Enabled {
		srv := ingress.New(ingress.Config{
			Addr:  cfg.HTTP.Addr,
			Token: secrets.IngressToken,
		}, scheduler, announcer)
		if err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Stop(sctx)
		}()
	}

	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		c, err := config.Load(viper.GetViper())
		if err != nil {
			log.Warn("Ignoring invalid configuration change", "path", e.Name, "error", err)
			return
		}
		applyLogLevel(c.Log.Level)
		prefs.SetDefaults(guildDefaults(c))
		log.Info("Configuration reloaded", "path", e.Name)
	})
	if viper.ConfigFileUsed() != "" {
		viper.WatchConfig()
	}

	log.Info("Herald is running", "prefix", router.Prefix(), "engine", cfg.TTS.Engine)
	<-ctx.Done()
	log.Info("Shutting down")
	return nil
}
