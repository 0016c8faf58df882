package tts

import (
	"fmt"
	"os/exec"
	"strings"
	"unicode/utf8"
)

// ValidateEngineSelection resolves the configured engine name. An empty
// name selects gTTS, the only engine that produces real speech.
func ValidateEngineSelection(name string) (EngineType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "gtts", "google":
		return EngineGTTS, nil
	case "mock":
		return EngineMock, nil
	default:
		return EngineNone, fmt.Errorf("%w: %s\n\nSupported engines:\n  - gtts (Google Translate TTS)\n  - mock (silent placeholder audio)", ErrInvalidEngine, name)
	}
}

// ValidateText checks text against the engine limit. maxSize counts
// characters; 0 means no limit.
func ValidateText(text string, maxSize int) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	if n := utf8.RuneCountInString(text); maxSize > 0 && n > maxSize {
		return fmt.Errorf("%w: %d characters (max %d)", ErrTextTooLong, n, maxSize)
	}
	return nil
}

// CheckBinary verifies that program is on PATH and returns its location.
func CheckBinary(program, installHint string) (string, error) {
	path, err := exec.LookPath(program)
	if err != nil {
		return "", fmt.Errorf("%w: %s not found in PATH: %v\n\nInstall with: %s", ErrEngineNotAvailable, program, err, installHint)
	}
	return path, nil
}
