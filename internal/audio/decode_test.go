package audio

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestPCM_Bytes(t *testing.T) {
	p := PCM{Samples: []int16{1, -1, 256}, SampleRate: 48000, Channels: 1}

	got := p.Bytes()
	want := []byte{0x01, 0x00, 0xff, 0xff, 0x00, 0x01}
	if !bytes.Equal(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestPCM_Duration(t *testing.T) {
	p := PCM{Samples: make([]int16, 48000*2), SampleRate: 48000, Channels: 2}
	if d := p.Duration(); d != time.Second {
		t.Errorf("Expected 1s, got %v", d)
	}
	if d := (PCM{}).Duration(); d != 0 {
		t.Errorf("Expected 0 for empty PCM, got %v", d)
	}
}

func TestConvert_Remix(t *testing.T) {
	stereo := PCM{Samples: []int16{100, 200, -50, 50}, SampleRate: 24000, Channels: 2}

	mono, err := Convert(stereo, 24000, 1)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if len(mono.Samples) != 2 || mono.Samples[0] != 150 || mono.Samples[1] != 0 {
		t.Errorf("Unexpected mono samples: %v", mono.Samples)
	}

	back, err := Convert(mono, 24000, 2)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	want := []int16{150, 150, 0, 0}
	for i := range want {
		if back.Samples[i] != want[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, want[i], back.Samples[i])
		}
	}

	if _, err := Convert(stereo, 24000, 6); !errors.Is(err, ErrUnsupportedLayout) {
		t.Errorf("Expected ErrUnsupportedLayout, got %v", err)
	}
}

func TestConvert_Upsample(t *testing.T) {
	in := make([]int16, 2400) // 100ms of mono at 24 kHz
	for i := range in {
		in[i] = int16(i)
	}

	out, err := Convert(PCM{Samples: in, SampleRate: 24000, Channels: 1}, 48000, 1)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if out.SampleRate != 48000 {
		t.Errorf("Expected 48000 Hz, got %d", out.SampleRate)
	}

	// Linear interpolation of a ramp stays a ramp at half the slope
	if len(out.Samples) < 4790 || len(out.Samples) > 4800 {
		t.Errorf("Expected about 4800 samples, got %d", len(out.Samples))
	}
	for i := 0; i < 100; i++ {
		if want := int16(i / 2); out.Samples[i] != want {
			t.Fatalf("Sample %d: expected %d, got %d", i, want, out.Samples[i])
		}
	}
}

func TestResampler_StereoDownsample(t *testing.T) {
	r := NewResampler(48000, 24000, 2)

	in := make([]int16, 200)
	for i := 0; i < 100; i++ {
		in[2*i] = int16(i)
		in[2*i+1] = int16(-i)
	}
	out := make([]int16, r.OutputSamplesNeeded(len(in))+4)

	n := r.Resample(in, out)
	if n%2 != 0 {
		t.Fatalf("Expected whole frames, got %d samples", n)
	}
	for f := 0; f < n/2; f++ {
		if out[2*f] != int16(2*f) || out[2*f+1] != int16(-2*f) {
			t.Fatalf("Frame %d: got (%d, %d)", f, out[2*f], out[2*f+1])
		}
	}

	if n := r.Resample(nil, out); n != 0 {
		t.Errorf("Expected 0 samples for empty input, got %d", n)
	}
}

func TestDecodeMP3_Invalid(t *testing.T) {
	if _, err := DecodeMP3(bytes.NewReader(nil), 48000, 2); err == nil {
		t.Error("Expected error decoding empty input")
	}
	if _, err := DecodeMP3(bytes.NewReader([]byte("x")), 48000, 5); !errors.Is(err, ErrUnsupportedLayout) {
		t.Errorf("Expected ErrUnsupportedLayout, got %v", err)
	}
}
