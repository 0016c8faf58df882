package engines

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/herald/internal/tts"
)

// fakeGTTS writes a shell script standing in for gtts-cli.
func fakeGTTS(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "gtts-cli")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGTTSEngine_NewGTTSEngine(t *testing.T) {
	tests := []struct {
		name        string
		config      GTTSConfig
		expectError bool
	}{
		{"default configuration", GTTSConfig{}, false},
		{"slow speech enabled", GTTSConfig{Slow: true}, false},
		{"custom rate limiting", GTTSConfig{RequestsPerMinute: 30}, false},
		{"negative rate", GTTSConfig{RequestsPerMinute: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := NewGTTSEngine(tt.config)
			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if engine.Slow() != tt.config.Slow {
				t.Errorf("Expected slow=%v", tt.config.Slow)
			}
		})
	}
}

func TestGTTSEngine_RenderPassesArguments(t *testing.T) {
	// Echo the arguments and the text read from stdin as the "audio"
	bin := fakeGTTS(t, `printf '%s|' "$@"; cat`)
	engine, err := NewGTTSEngine(GTTSConfig{Binary: bin, RequestsPerMinute: 6000})
	if err != nil {
		t.Fatal(err)
	}

	audio, err := engine.Render(context.Background(), "--not-a-flag hello", "ro")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if got, want := string(audio), "-l|ro|-o|-|-|--not-a-flag hello"; got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	engine.SetSlow(true)
	audio, _ = engine.Render(context.Background(), "hi", "en-US")
	if !strings.HasPrefix(string(audio), "-l|en|--slow|") {
		t.Errorf("Expected normalized language and slow flag, got %q", audio)
	}
}

func TestGTTSEngine_RenderErrors(t *testing.T) {
	ok := fakeGTTS(t, `cat`)
	engine, _ := NewGTTSEngine(GTTSConfig{Binary: ok, RequestsPerMinute: 6000})

	if _, err := engine.Render(context.Background(), "   ", "en"); !errors.Is(err, tts.ErrEmptyText) {
		t.Errorf("Expected ErrEmptyText, got %v", err)
	}
	if _, err := engine.Render(context.Background(), strings.Repeat("a", 5001), "en"); !errors.Is(err, tts.ErrTextTooLong) {
		t.Errorf("Expected ErrTextTooLong, got %v", err)
	}
	if _, err := engine.Render(context.Background(), "hi", "klingon"); !errors.Is(err, tts.ErrUnsupportedLanguage) {
		t.Errorf("Expected ErrUnsupportedLanguage, got %v", err)
	}

	failing := fakeGTTS(t, `echo "503 from upstream" >&2; exit 1`)
	engine, _ = NewGTTSEngine(GTTSConfig{Binary: failing, RequestsPerMinute: 6000})
	_, err := engine.Render(context.Background(), "hi", "en")
	if !errors.Is(err, tts.ErrRenderFailure) {
		t.Errorf("Expected ErrRenderFailure, got %v", err)
	}
	if err == nil || !strings.Contains(err.Error(), "503 from upstream") {
		t.Errorf("Expected stderr in error, got %v", err)
	}

	silent := fakeGTTS(t, `exit 0`)
	engine, _ = NewGTTSEngine(GTTSConfig{Binary: silent, RequestsPerMinute: 6000})
	if _, err := engine.Render(context.Background(), "hi", "en"); !errors.Is(err, tts.ErrRenderFailure) {
		t.Errorf("Expected ErrRenderFailure for empty output, got %v", err)
	}

	engine, _ = NewGTTSEngine(GTTSConfig{Binary: filepath.Join(t.TempDir(), "missing"), RequestsPerMinute: 6000})
	if _, err := engine.Render(context.Background(), "hi", "en"); !errors.Is(err, tts.ErrRenderFailure) {
		t.Errorf("Expected ErrRenderFailure for missing binary, got %v", err)
	}
	if err := engine.Validate(); !errors.Is(err, tts.ErrEngineNotAvailable) {
		t.Errorf("Expected ErrEngineNotAvailable, got %v", err)
	}
}

func TestGTTSEngine_Timeout(t *testing.T) {
	bin := fakeGTTS(t, `exec sleep 5`)
	engine, _ := NewGTTSEngine(GTTSConfig{Binary: bin, Timeout: 50 * time.Millisecond, RequestsPerMinute: 6000})

	start := time.Now()
	_, err := engine.Render(context.Background(), "hi", "en")

	var ttsErr *tts.TTSError
	if !errors.As(err, &ttsErr) || ttsErr.Code != tts.ErrorCodeTimeout {
		t.Fatalf("Expected timeout error, got %v", err)
	}
	if !ttsErr.IsRetryable() {
		t.Error("Timeouts should be retryable")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Render took %v despite timeout", elapsed)
	}
}

func TestGTTSEngine_RateLimitCancelled(t *testing.T) {
	bin := fakeGTTS(t, `cat`)
	engine, _ := NewGTTSEngine(GTTSConfig{Binary: bin, RequestsPerMinute: 1})

	if _, err := engine.Render(context.Background(), "first", "en"); err != nil {
		t.Fatalf("First render failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := engine.Render(ctx, "second", "en"); !errors.Is(err, tts.ErrRenderFailure) {
		t.Errorf("Expected rate limited render to fail, got %v", err)
	}
}

func TestGTTSEngine_Info(t *testing.T) {
	engine, _ := NewGTTSEngine(GTTSConfig{})
	info := engine.Info()
	if info.Name != "gtts" || info.Format != "mp3" || !info.IsOnline || info.MaxTextSize != 5000 {
		t.Errorf("Unexpected info: %+v", info)
	}
	if !engine.SupportsLanguage("ro") || engine.SupportsLanguage("xx") {
		t.Error("SupportsLanguage disagrees with the language table")
	}
}
