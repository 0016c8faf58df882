package engines

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgnsrekt/herald/internal/tts"
)

// MockEngine implements tts.Renderer without any external program. The
// audio it returns is a readable marker, not decodable MP3, so it pairs with
// audio.MockSink.
type MockEngine struct {
	mu        sync.RWMutex
	latency   time.Duration
	failWith  error
	languages map[string]bool // nil accepts every known language

	calls atomic.Int64
}

// NewMockEngine creates a mock engine that renders instantly.
func NewMockEngine() *MockEngine {
	return &MockEngine{}
}

// Render returns "mock:<lang>:<text>".
func (m *MockEngine) Render(ctx context.Context, text, lang string) ([]byte, error) {
	m.calls.Add(1)

	if err := tts.ValidateText(text, 0); err != nil {
		return nil, tts.NewTTSError(tts.ErrorCodeInvalidInput, "invalid text", err)
	}
	code, ok := tts.NormalizeLanguage(lang)
	if !ok || !m.SupportsLanguage(code) {
		return nil, tts.UnsupportedLanguage(lang)
	}

	m.mu.RLock()
	latency, failWith := m.latency, m.failWith
	m.mu.RUnlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return nil, tts.NewTTSError(tts.ErrorCodeTimeout, "mock render cancelled", ctx.Err())
		}
	}
	if failWith != nil {
		return nil, tts.RenderFailure("mock render failed", failWith)
	}

	return []byte(fmt.Sprintf("mock:%s:%s", code, text)), nil
}

// SupportsLanguage reports whether lang is accepted.
func (m *MockEngine) SupportsLanguage(lang string) bool {
	code, ok := tts.NormalizeLanguage(lang)
	if !ok {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.languages == nil || m.languages[strings.ToLower(code)]
}

// Info returns engine capabilities.
func (m *MockEngine) Info() tts.EngineInfo {
	return tts.EngineInfo{Name: "mock", Format: "text"}
}

// Close is a no-op.
func (m *MockEngine) Close() error { return nil }

// SetLatency delays every render by d.
func (m *MockEngine) SetLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency = d
}

// SetFailure makes renders fail with err. nil clears it.
func (m *MockEngine) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// SetLanguages restricts the accepted languages.
func (m *MockEngine) SetLanguages(codes ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.languages = make(map[string]bool, len(codes))
	for _, c := range codes {
		if code, ok := tts.NormalizeLanguage(c); ok {
			m.languages[strings.ToLower(code)] = true
		}
	}
}

// Calls returns how many times Render was called.
func (m *MockEngine) Calls() int64 {
	return m.calls.Load()
}

var _ tts.Renderer = (*MockEngine)(nil)
