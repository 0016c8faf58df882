package audio

import "errors"

var (
	// ErrEmptyAudio is returned when a payload decodes to no samples.
	ErrEmptyAudio = errors.New("audio data is empty")

	// ErrSinkClosed is returned when Play is called on a closed sink.
	ErrSinkClosed = errors.New("sink is closed")

	// ErrUnsupportedLayout is returned for channel counts other than 1 or 2.
	ErrUnsupportedLayout = errors.New("unsupported channel layout")
)
