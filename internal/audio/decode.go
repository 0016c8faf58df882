package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// PCM is interleaved signed 16-bit audio.
type PCM struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames.
func (p PCM) Frames() int {
	if p.Channels == 0 {
		return 0
	}
	return len(p.Samples) / p.Channels
}

// Duration returns the playback length.
func (p PCM) Duration() time.Duration {
	if p.SampleRate == 0 {
		return 0
	}
	return time.Duration(p.Frames()) * time.Second / time.Duration(p.SampleRate)
}

// Bytes encodes the samples as little-endian 16-bit PCM, the layout oto
// expects for FormatSignedInt16LE.
func (p PCM) Bytes() []byte {
	out := make([]byte, len(p.Samples)*2)
	for i, s := range p.Samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// DecodeMP3 decodes an MP3 stream and converts it to sampleRate and
// channels.
func DecodeMP3(r io.Reader, sampleRate, channels int) (PCM, error) {
	if channels != 1 && channels != 2 {
		return PCM{}, fmt.Errorf("%w: %d channels", ErrUnsupportedLayout, channels)
	}

	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return PCM{}, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return PCM{}, fmt.Errorf("mp3 decode error: %w", err)
	}
	if len(raw) < 4 {
		return PCM{}, ErrEmptyAudio
	}

	// go-mp3 always produces 16-bit little-endian stereo
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}

	src := PCM{Samples: samples, SampleRate: dec.SampleRate(), Channels: 2}
	return Convert(src, sampleRate, channels)
}

// Convert changes the channel layout and sample rate of src.
func Convert(src PCM, sampleRate, channels int) (PCM, error) {
	out, err := remix(src, channels)
	if err != nil {
		return PCM{}, err
	}

	if sampleRate == out.SampleRate {
		return out, nil
	}

	r := NewResampler(out.SampleRate, sampleRate, out.Channels)
	buf := make([]int16, r.OutputSamplesNeeded(len(out.Samples))+2*out.Channels)
	n := r.Resample(out.Samples, buf)

	return PCM{Samples: buf[:n], SampleRate: sampleRate, Channels: out.Channels}, nil
}

// remix converts between mono and stereo.
func remix(src PCM, channels int) (PCM, error) {
	switch {
	case src.Channels == channels:
		return src, nil
	case src.Channels == 2 && channels == 1:
		out := make([]int16, src.Frames())
		for i := range out {
			l, r := int32(src.Samples[2*i]), int32(src.Samples[2*i+1])
			out[i] = int16((l + r) / 2)
		}
		return PCM{Samples: out, SampleRate: src.SampleRate, Channels: 1}, nil
	case src.Channels == 1 && channels == 2:
		out := make([]int16, len(src.Samples)*2)
		for i, s := range src.Samples {
			out[2*i] = s
			out[2*i+1] = s
		}
		return PCM{Samples: out, SampleRate: src.SampleRate, Channels: 2}, nil
	default:
		return PCM{}, fmt.Errorf("%w: %d to %d channels", ErrUnsupportedLayout, src.Channels, channels)
	}
}
