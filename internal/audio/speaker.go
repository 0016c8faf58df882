package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"

	"github.com/dgnsrekt/herald/internal/playback"
)

// LocalSink is the sink id of the local speaker.
const LocalSink playback.SinkID = "local"

// SpeakerConfig contains configuration for the local speaker.
type SpeakerConfig struct {
	Sink         playback.SinkID
	SampleRate   int // 44100 or 48000 Hz only
	Channels     int // 1 = mono, 2 = stereo
	BufferSize   time.Duration
	PollInterval time.Duration
}

// DefaultSpeakerConfig returns the default speaker configuration.
func DefaultSpeakerConfig() SpeakerConfig {
	return SpeakerConfig{
		Sink:         LocalSink,
		SampleRate:   44100,
		Channels:     1, // Mono for TTS
		BufferSize:   100 * time.Millisecond,
		PollInterval: 20 * time.Millisecond,
	}
}

func validateConfig(config SpeakerConfig) error {
	// OTO only supports specific sample rates reliably
	if config.SampleRate != 44100 && config.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", config.SampleRate)
	}
	if config.Channels != 1 && config.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", config.Channels)
	}
	if config.Sink == "" {
		return errors.New("sink id must not be empty")
	}
	if config.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}
	return nil
}

// oto allows a single context per process.
var (
	otoCtx     *oto.Context
	otoCtxOnce sync.Once
	otoCtxErr  error
	otoCtxOpts oto.NewContextOptions
)

func sharedContext(op oto.NewContextOptions) (*oto.Context, error) {
	otoCtxOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&op)
		if err != nil {
			otoCtxErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-ready
		otoCtx = ctx
		otoCtxOpts = op
	})
	if otoCtxErr != nil {
		return nil, otoCtxErr
	}
	if otoCtxOpts.SampleRate != op.SampleRate || otoCtxOpts.ChannelCount != op.ChannelCount {
		return nil, fmt.Errorf("oto context already created with %d Hz, %d channels",
			otoCtxOpts.SampleRate, otoCtxOpts.ChannelCount)
	}
	return otoCtx, nil
}

// Speaker plays MP3 payloads on the default output device. It implements
// playback.Sink for a single sink id.
type Speaker struct {
	id       playback.SinkID
	context  *oto.Context
	config   SpeakerConfig
	logger   *log.Logger
	volume   atomic.Uint64 // volume * 1e6
	enabled  atomic.Bool
	closed   atomic.Bool
	mu       sync.Mutex
	player   *oto.Player
	pcm      []byte // kept alive while player reads it
	watchers sync.WaitGroup
}

// NewSpeaker opens the audio device.
func NewSpeaker(config SpeakerConfig) (*Speaker, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ctx, err := sharedContext(oto.NewContextOptions{
		SampleRate:   config.SampleRate,
		ChannelCount: config.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   config.BufferSize,
	})
	if err != nil {
		return nil, err
	}

	s := &Speaker{
		id:      config.Sink,
		context: ctx,
		config:  config,
		logger:  log.WithPrefix("speaker"),
	}
	s.enabled.Store(true)
	s.volume.Store(1000000)

	return s, nil
}

// ID returns the sink id served by the speaker.
func (s *Speaker) ID() playback.SinkID {
	return s.id
}

// IsConnected reports whether sink is this speaker and it is enabled.
func (s *Speaker) IsConnected(sink playback.SinkID) bool {
	return sink == s.id && s.enabled.Load() && !s.closed.Load()
}

// Connect re-enables a disconnected speaker.
func (s *Speaker) Connect() {
	s.enabled.Store(true)
}

// Disconnect stops current playback and refuses new playback until Connect.
func (s *Speaker) Disconnect() {
	s.enabled.Store(false)
	s.stop()
}

// Play decodes payload and starts playing it. done is called from a
// watcher goroutine once the device has drained the stream.
func (s *Speaker) Play(sink playback.SinkID, payload playback.Payload, done func(err error)) error {
	if s.closed.Load() {
		return ErrSinkClosed
	}
	if !s.IsConnected(sink) {
		return fmt.Errorf("%w: %s", playback.ErrSinkNotConnected, sink)
	}

	rc, err := payload.Open()
	if err != nil {
		return err
	}
	pcm, err := DecodeMP3(rc, s.config.SampleRate, s.config.Channels)
	rc.Close()
	if err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}

	data := pcm.Bytes()

	s.mu.Lock()
	if s.player != nil {
		s.mu.Unlock()
		return errors.New("speaker is already playing")
	}
	player := s.context.NewPlayer(bytes.NewReader(data))
	player.SetVolume(s.Volume())
	s.player = player
	s.pcm = data
	s.mu.Unlock()

	player.Play()
	s.logger.Debug("Playing", "duration", pcm.Duration(), "bytes", len(data))

	s.watchers.Add(1)
	go s.watch(player, done)

	return nil
}

// watch waits until player stops and reports completion.
func (s *Speaker) watch(player *oto.Player, done func(err error)) {
	defer s.watchers.Done()

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for range ticker.C {
		if !player.IsPlaying() {
			break
		}
	}

	err := player.Err()
	if errors.Is(err, io.EOF) {
		err = nil
	}

	s.mu.Lock()
	if s.player == player {
		s.player = nil
		s.pcm = nil
	}
	s.mu.Unlock()
	player.Close()

	done(err)
}

// stop halts the current player; its watcher then reports completion.
func (s *Speaker) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.player != nil {
		s.player.Pause()
	}
}

// IsPlaying returns whether audio is currently playing.
func (s *Speaker) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.player != nil && s.player.IsPlaying()
}

// SetVolume sets the playback volume (0.0 to 1.0).
func (s *Speaker) SetVolume(volume float64) error {
	if volume < 0.0 || volume > 1.0 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", volume)
	}
	s.volume.Store(uint64(volume * 1000000))

	s.mu.Lock()
	if s.player != nil {
		s.player.SetVolume(volume)
	}
	s.mu.Unlock()

	return nil
}

// Volume returns the current volume.
func (s *Speaker) Volume() float64 {
	return float64(s.volume.Load()) / 1000000.0
}

// Close stops playback and waits for watchers to report completion. The
// shared oto context stays alive for the rest of the process.
func (s *Speaker) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.stop()
	s.watchers.Wait()
	return nil
}
