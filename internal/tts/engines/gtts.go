package engines

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/herald/internal/tts"
)

const (
	gttsMaxTextSize = 5000
	gttsMaxMP3Size  = 50 * 1024 * 1024
)

// GTTSEngine implements tts.Renderer using gTTS (Google Translate TTS).
// It runs gtts-cli and reads the MP3 it writes to stdout. This provides free
// TTS without requiring an API key.
type GTTSEngine struct {
	binary  string
	slow    bool
	timeout time.Duration

	// Rate limiting to avoid being blocked by Google
	rateLimiter *rate.Limiter

	logger *log.Logger
	mu     sync.RWMutex
}

// GTTSConfig holds configuration for the gTTS engine.
type GTTSConfig struct {
	// Binary is the gtts-cli executable - defaults to "gtts-cli"
	Binary string

	// Slow speech (--slow flag) - defaults to false
	Slow bool

	// Timeout per request - defaults to 30s
	Timeout time.Duration

	// Rate limit requests per minute to avoid being blocked (defaults to 50)
	RequestsPerMinute int
}

// NewGTTSEngine creates a new gTTS engine.
func NewGTTSEngine(config GTTSConfig) (*GTTSEngine, error) {
	if config.Binary == "" {
		config.Binary = "gtts-cli"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RequestsPerMinute == 0 {
		config.RequestsPerMinute = 50 // Conservative default
	}
	if config.RequestsPerMinute < 0 {
		return nil, errors.New("requests per minute must not be negative")
	}

	return &GTTSEngine{
		binary:      config.Binary,
		slow:        config.Slow,
		timeout:     config.Timeout,
		rateLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), 1),
		logger:      log.WithPrefix("gtts"),
	}, nil
}

// Render converts text to MP3 audio using gtts-cli.
func (e *GTTSEngine) Render(ctx context.Context, text, lang string) ([]byte, error) {
	if err := tts.ValidateText(text, gttsMaxTextSize); err != nil {
		return nil, tts.NewTTSError(tts.ErrorCodeInvalidInput, "invalid text", err)
	}

	code, ok := tts.NormalizeLanguage(lang)
	if !ok {
		return nil, tts.UnsupportedLanguage(lang)
	}

	// Rate limit to avoid being blocked
	if err := e.rateLimiter.Wait(ctx); err != nil {
		return nil, tts.RenderFailure("rate limit wait cancelled", err)
	}

	start := time.Now()
	audio, err := e.run(ctx, text, code)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("Rendered speech", "lang", code, "chars", len(text), "bytes", len(audio), "took", time.Since(start))
	return audio, nil
}

// run executes gtts-cli with a timeout, interrupting it first and killing it
// if it does not exit.
func (e *GTTSEngine) run(ctx context.Context, text, lang string) ([]byte, error) {
	args := []string{"-l", lang}
	if e.Slow() {
		args = append(args, "--slow")
	}
	// Text comes from stdin so it is never parsed as a flag
	args = append(args, "-o", "-", "-")

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.Command(e.binary, args...)
	cmd.Stdin = strings.NewReader(text)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, tts.RenderFailure("cannot start gtts-cli", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, tts.RenderFailure("gtts-cli failed", fmt.Errorf("%w, stderr: %s", err, strings.TrimSpace(stderr.String())))
		}

	case <-ctx.Done():
		// Try graceful shutdown first
		_ = cmd.Process.Signal(os.Interrupt)
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
			_ = cmd.Process.Kill()
			<-done
		}
		return nil, tts.NewTTSError(tts.ErrorCodeTimeout, "gtts-cli timed out", ctx.Err())
	}

	audio := stdout.Bytes()
	if len(audio) == 0 {
		return nil, tts.RenderFailure("gtts-cli produced no audio", errors.New(strings.TrimSpace(stderr.String())))
	}
	if len(audio) > gttsMaxMP3Size {
		return nil, tts.RenderFailure("gtts-cli output too large", fmt.Errorf("%d bytes (max %d)", len(audio), gttsMaxMP3Size))
	}

	return audio, nil
}

// SupportsLanguage reports whether lang is in the gTTS language table.
func (e *GTTSEngine) SupportsLanguage(lang string) bool {
	_, ok := tts.NormalizeLanguage(lang)
	return ok
}

// Info returns engine capabilities.
func (e *GTTSEngine) Info() tts.EngineInfo {
	return tts.EngineInfo{
		Name:        "gtts",
		Format:      "mp3",
		MaxTextSize: gttsMaxTextSize,
		IsOnline:    true,
	}
}

// Validate checks that gtts-cli is installed.
func (e *GTTSEngine) Validate() error {
	_, err := tts.CheckBinary(e.binary, "pip install gTTS")
	return err
}

// SetSlow enables or disables slow speech.
func (e *GTTSEngine) SetSlow(slow bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.slow = slow
}

// Slow returns whether slow speech is enabled.
func (e *GTTSEngine) Slow() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.slow
}

// Close releases resources held by the engine.
func (e *GTTSEngine) Close() error {
	return nil
}

// Ensure GTTSEngine implements Renderer interface
var _ tts.Renderer = (*GTTSEngine)(nil)
