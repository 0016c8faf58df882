package engines

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgnsrekt/herald/internal/tts"
)

func TestMockEngine_Render(t *testing.T) {
	m := NewMockEngine()

	audio, err := m.Render(context.Background(), "Ana has joined.", "EN")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if string(audio) != "mock:en:Ana has joined." {
		t.Errorf("Unexpected audio: %q", audio)
	}
	if m.Calls() != 1 {
		t.Errorf("Expected 1 call, got %d", m.Calls())
	}
}

func TestMockEngine_Languages(t *testing.T) {
	m := NewMockEngine()
	m.SetLanguages("en", "ro")

	if !m.SupportsLanguage("ro") || m.SupportsLanguage("fr") {
		t.Error("Language restriction not applied")
	}
	if _, err := m.Render(context.Background(), "bonjour", "fr"); !errors.Is(err, tts.ErrUnsupportedLanguage) {
		t.Errorf("Expected ErrUnsupportedLanguage, got %v", err)
	}
}

func TestMockEngine_Failure(t *testing.T) {
	m := NewMockEngine()
	m.SetFailure(errors.New("quota"))

	if _, err := m.Render(context.Background(), "hi", "en"); !errors.Is(err, tts.ErrRenderFailure) {
		t.Errorf("Expected ErrRenderFailure, got %v", err)
	}

	m.SetFailure(nil)
	if _, err := m.Render(context.Background(), "hi", "en"); err != nil {
		t.Errorf("Expected success after clearing failure, got %v", err)
	}
}

func TestMockEngine_LatencyRespectsContext(t *testing.T) {
	m := NewMockEngine()
	m.SetLatency(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := m.Render(ctx, "hi", "en"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline error, got %v", err)
	}
}
