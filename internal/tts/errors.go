package tts

import (
	"errors"
	"fmt"
)

// Common TTS errors
var (
	// ErrRenderFailure indicates the engine could not produce audio.
	ErrRenderFailure = errors.New("speech rendering failed")

	// ErrUnsupportedLanguage indicates the engine does not speak the
	// requested language.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrEmptyText indicates there is nothing left to say after cleanup.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrTextTooLong indicates the text exceeds the engine limit.
	ErrTextTooLong = errors.New("text too long")

	// ErrInvalidEngine indicates an unknown engine was specified.
	ErrInvalidEngine = errors.New("invalid TTS engine specified")

	// ErrEngineNotAvailable indicates the selected engine is not installed.
	ErrEngineNotAvailable = errors.New("selected TTS engine is not available")
)

// ErrorCode identifies specific error types
type ErrorCode string

const (
	ErrorCodeRenderFailure       ErrorCode = "RENDER_FAILURE"
	ErrorCodeUnsupportedLanguage ErrorCode = "UNSUPPORTED_LANGUAGE"
	ErrorCodeInvalidInput        ErrorCode = "INVALID_INPUT"
	ErrorCodeTimeout             ErrorCode = "TIMEOUT"
)

// TTSError represents a TTS-specific error with additional context
type TTSError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// NewTTSError creates a new TTS error.
func NewTTSError(code ErrorCode, message string, cause error) *TTSError {
	return &TTSError{Code: code, Message: message, Cause: cause}
}

// Error implements the error interface
func (e *TTSError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *TTSError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel error of e's code.
func (e *TTSError) Is(target error) bool {
	switch e.Code {
	case ErrorCodeRenderFailure, ErrorCodeTimeout:
		return target == ErrRenderFailure
	case ErrorCodeUnsupportedLanguage:
		return target == ErrUnsupportedLanguage
	default:
		return false
	}
}

// IsRetryable returns true if the operation can be retried
func (e *TTSError) IsRetryable() bool {
	return e.Code == ErrorCodeTimeout
}

// RenderFailure wraps cause as a RENDER_FAILURE error.
func RenderFailure(message string, cause error) *TTSError {
	return NewTTSError(ErrorCodeRenderFailure, message, cause)
}

// UnsupportedLanguage reports lang as unsupported.
func UnsupportedLanguage(lang string) *TTSError {
	return NewTTSError(ErrorCodeUnsupportedLanguage, fmt.Sprintf("language %q", lang), nil)
}
