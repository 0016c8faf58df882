package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

func getLogFilePath() (string, error) {
	dir, err := gap.NewScope(gap.User, "herald").CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "herald.log"), nil
}

// setupLog configures the default logger from the log.* settings. Output
// goes to stderr, as JSON when stderr is not a terminal, and is copied to a
// log file in the cache directory when log.file is set.
func setupLog() (func() error, error) {
	applyLogLevel(viper.GetString("log.level"))
	log.SetReportTimestamp(true)

	if !term.IsTerminal(int(os.Stderr.Fd())) {
		log.SetFormatter(log.JSONFormatter)
	}

	if !viper.GetBool("log.file") {
		return func() error { return nil }, nil
	}

	logFile, err := getLogFilePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		// log disabled
		return func() error { return nil }, nil
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("unable to open log file: %w", err)
	}
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return f.Close, nil
}

func applyLogLevel(level string) {
	if level == "" {
		return
	}
	l, err := log.ParseLevel(level)
	if err != nil {
		log.Warn("Unknown log level", "level", level)
		return
	}
	log.SetLevel(l)
}
