package discord

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/herald/internal/audio"
	"github.com/dgnsrekt/herald/internal/playback"
)

// ErrSendTimeout is returned when the voice connection stops accepting
// frames.
var ErrSendTimeout = errors.New("timed out sending voice frame")

const (
	frameTimeout = time.Second
	readyPoll    = 100 * time.Millisecond
)

// joinFunc opens a voice connection. It blocks until the handshake is done.
type joinFunc func(guild, channel string) (*discordgo.VoiceConnection, error)

// VoiceSink plays queued audio into guild voice channels. The sink id of a
// guild is its guild id.
//
// mu only guards the maps and is never held across a gateway round trip.
// Joins and leaves of one guild are serialized by that guild's own lock.
type VoiceSink struct {
	session *discordgo.Session
	join    joinFunc
	bitrate int
	ready   time.Duration
	logger  *log.Logger

	mu      sync.Mutex
	conns   map[string]*discordgo.VoiceConnection
	cancels map[string]context.CancelFunc
	guilds  map[string]*sync.Mutex
	wg      sync.WaitGroup
}

// VoiceOption configures a VoiceSink.
type VoiceOption func(*VoiceSink)

// WithBitrate sets the Opus bitrate in bits per second.
func WithBitrate(bps int) VoiceOption {
	return func(v *VoiceSink) { v.bitrate = bps }
}

// WithReadyTimeout bounds how long playback waits for a fresh connection.
func WithReadyTimeout(d time.Duration) VoiceOption {
	return func(v *VoiceSink) { v.ready = d }
}

// NewVoiceSink creates a sink joining channels through session.
func NewVoiceSink(session *discordgo.Session, opts ...VoiceOption) *VoiceSink {
	v := &VoiceSink{
		session: session,
		bitrate: 64000,
		ready:   3 * time.Second,
		logger:  log.WithPrefix("voice"),
		conns:   make(map[string]*discordgo.VoiceConnection),
		cancels: make(map[string]context.CancelFunc),
		guilds:  make(map[string]*sync.Mutex),
	}
	v.join = func(guild, channel string) (*discordgo.VoiceConnection, error) {
		// Deafened: the bot never listens
		return session.ChannelVoiceJoin(guild, channel, false, true)
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// guildLock returns the lock serializing joins and leaves of guild.
func (v *VoiceSink) guildLock(guild string) *sync.Mutex {
	v.mu.Lock()
	defer v.mu.Unlock()

	l, ok := v.guilds[guild]
	if !ok {
		l = new(sync.Mutex)
		v.guilds[guild] = l
	}
	return l
}

// Connected reports whether the bot is in a voice channel of guild.
func (v *VoiceSink) Connected(guild string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.conns[guild]
	return ok
}

// IsConnected implements playback.Sink.
func (v *VoiceSink) IsConnected(sink playback.SinkID) bool {
	return v.Connected(string(sink))
}

// UserChannel returns the voice channel of user in guild from the session
// state cache.
func (v *VoiceSink) UserChannel(guild, user string) (string, string, bool) {
	vs, err := v.session.State.VoiceState(guild, user)
	if err != nil || vs.ChannelID == "" {
		return "", "", false
	}

	name := vs.ChannelID
	if ch, err := v.session.State.Channel(vs.ChannelID); err == nil {
		name = ch.Name
	}
	return vs.ChannelID, name, true
}

// Join connects to channel, replacing any connection in guild. Other guilds
// keep playing while the handshake is in progress.
func (v *VoiceSink) Join(_ context.Context, guild, channel string) error {
	gl := v.guildLock(guild)
	gl.Lock()
	defer gl.Unlock()

	v.mu.Lock()
	old, ok := v.conns[guild]
	if ok && old.ChannelID == channel {
		v.mu.Unlock()
		return nil
	}
	if ok {
		v.stopLocked(guild)
		delete(v.conns, guild)
	}
	v.mu.Unlock()

	if ok {
		_ = old.Disconnect()
	}

	vc, err := v.join(guild, channel)
	if err != nil {
		return fmt.Errorf("unable to join voice channel: %w", err)
	}

	v.mu.Lock()
	v.conns[guild] = vc
	v.mu.Unlock()

	v.logger.Info("Joined voice channel", "guild", guild, "channel", channel)
	return nil
}

// Leave stops playback in guild and disconnects.
func (v *VoiceSink) Leave(_ context.Context, guild string) error {
	gl := v.guildLock(guild)
	gl.Lock()
	defer gl.Unlock()

	v.mu.Lock()
	vc, ok := v.conns[guild]
	if ok {
		v.stopLocked(guild)
		delete(v.conns, guild)
	}
	v.mu.Unlock()
	if !ok {
		return nil
	}

	v.logger.Info("Left voice channel", "guild", guild)
	return vc.Disconnect()
}

// Forget drops the connection of guild without disconnecting, for when
// Discord already ended it.
func (v *VoiceSink) Forget(guild string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.stopLocked(guild)
	delete(v.conns, guild)
}

// stopLocked cancels the playback of guild. v.mu must be held.
func (v *VoiceSink) stopLocked(guild string) {
	if cancel, ok := v.cancels[guild]; ok {
		cancel()
		delete(v.cancels, guild)
	}
}

// Play decodes payload and streams it to the guild's voice connection.
func (v *VoiceSink) Play(sink playback.SinkID, payload playback.Payload, done func(err error)) error {
	guild := string(sink)

	v.mu.Lock()
	vc, ok := v.conns[guild]
	v.mu.Unlock()
	if !ok {
		return playback.ErrSinkNotConnected
	}

	packets, err := v.encode(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	v.mu.Lock()
	v.stopLocked(guild)
	v.cancels[guild] = cancel
	v.mu.Unlock()

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		defer cancel()

		err := v.waitReady(ctx, vc)
		if err == nil {
			err = transmit(ctx, packets, vc.OpusSend, vc.Speaking)
		}
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		done(err)
	}()

	return nil
}

func (v *VoiceSink) encode(payload playback.Payload) ([][]byte, error) {
	r, err := payload.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close() //nolint:errcheck

	pcm, err := audio.DecodeMP3(r, SampleRate, Channels)
	if err != nil {
		return nil, err
	}

	enc, err := NewEncoder(v.bitrate)
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(pcm)
}

// waitReady waits for the voice websocket handshake of a fresh connection.
func (v *VoiceSink) waitReady(ctx context.Context, vc *discordgo.VoiceConnection) error {
	deadline := time.Now().Add(v.ready)
	for {
		vc.RLock()
		ready := vc.Ready
		vc.RUnlock()
		if ready {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("voice connection did not become ready")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(readyPoll):
		}
	}
}

// transmit sends packets to out, flagging the bot as speaking meanwhile.
func transmit(ctx context.Context, packets [][]byte, out chan<- []byte, speaking func(bool) error) error {
	if err := speaking(true); err != nil {
		return fmt.Errorf("unable to start speaking: %w", err)
	}
	defer func() { _ = speaking(false) }()

	timer := time.NewTimer(frameTimeout)
	defer timer.Stop()

	for _, p := range packets {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(frameTimeout)

		select {
		case out <- p:
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return ErrSendTimeout
		}
	}
	return nil
}

// Close stops all playback and leaves every channel.
func (v *VoiceSink) Close() error {
	v.mu.Lock()
	conns := v.conns
	for guild := range conns {
		v.stopLocked(guild)
	}
	v.conns = make(map[string]*discordgo.VoiceConnection)
	v.mu.Unlock()

	var errs []error
	for _, vc := range conns {
		if err := vc.Disconnect(); err != nil {
			errs = append(errs, err)
		}
	}

	v.wg.Wait()
	return errors.Join(errs...)
}
