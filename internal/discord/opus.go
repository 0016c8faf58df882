package discord

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"

	"github.com/dgnsrekt/herald/internal/audio"
)

// Discord voice format.
const (
	SampleRate = 48000
	Channels   = 2
	FrameSize  = SampleRate / 50 // 20ms per channel

	maxPacket = 4000
)

// Encoder turns PCM into Opus packets of one 20ms frame each.
type Encoder struct {
	encoder *opus.Encoder
}

// NewEncoder creates an encoder for Discord voice. A bitrate of 0 keeps the
// libopus default.
func NewEncoder(bitrate int) (*Encoder, error) {
	enc, err := opus.NewEncoder(SampleRate, Channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}
	if bitrate > 0 {
		if err := enc.SetBitrate(bitrate); err != nil {
			return nil, fmt.Errorf("failed to set opus bitrate: %w", err)
		}
	}
	return &Encoder{encoder: enc}, nil
}

// EncodeAll encodes pcm, which must already be 48kHz stereo.
func (e *Encoder) EncodeAll(pcm audio.PCM) ([][]byte, error) {
	if pcm.SampleRate != SampleRate || pcm.Channels != Channels {
		return nil, fmt.Errorf("%w: %d Hz, %d channels", audio.ErrUnsupportedLayout, pcm.SampleRate, pcm.Channels)
	}

	frames := chunk(pcm.Samples, FrameSize*Channels)
	packets := make([][]byte, 0, len(frames))
	buf := make([]byte, maxPacket)
	for _, frame := range frames {
		n, err := e.encoder.Encode(frame, buf)
		if err != nil {
			return nil, fmt.Errorf("opus encode error: %w", err)
		}
		packets = append(packets, append([]byte(nil), buf[:n]...))
	}
	return packets, nil
}

// chunk splits samples into frames of size samples, padding the last one
// with silence.
func chunk(samples []int16, size int) [][]int16 {
	if size <= 0 || len(samples) == 0 {
		return nil
	}

	frames := make([][]int16, 0, (len(samples)+size-1)/size)
	for start := 0; start < len(samples); start += size {
		end := start + size
		if end <= len(samples) {
			frames = append(frames, samples[start:end])
			continue
		}
		last := make([]int16, size)
		copy(last, samples[start:])
		frames = append(frames, last)
	}
	return frames
}
