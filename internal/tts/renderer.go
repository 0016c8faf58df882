package tts

import "context"

// Renderer turns text into encoded speech. Implementations return MP3 data.
type Renderer interface {
	// Render converts text spoken in lang to audio. It returns an error
	// matching ErrUnsupportedLanguage for languages the engine lacks and
	// ErrRenderFailure when synthesis fails.
	Render(ctx context.Context, text, lang string) ([]byte, error)

	// SupportsLanguage reports whether lang can be rendered.
	SupportsLanguage(lang string) bool

	// Info returns engine capabilities.
	Info() EngineInfo

	// Close releases any resources held by the engine.
	Close() error
}

// EngineInfo describes engine capabilities.
type EngineInfo struct {
	Name        string // Engine name (e.g., "gtts", "mock")
	Format      string // Container of the rendered audio
	MaxTextSize int    // Maximum text size in characters
	IsOnline    bool   // Whether the engine requires internet
}

// EngineType represents the TTS engine selection
type EngineType string

const (
	// EngineGTTS renders through the gtts-cli program.
	EngineGTTS EngineType = "gtts"

	// EngineMock renders deterministic placeholder audio.
	EngineMock EngineType = "mock"

	// EngineNone represents no engine selected
	EngineNone EngineType = ""
)
