// Package announce turns presence changes and chat messages into queued
// speech.
package announce

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/herald/internal/playback"
	"github.com/dgnsrekt/herald/internal/settings"
	"github.com/dgnsrekt/herald/internal/tts"
)

// PresenceLanguage is the language presence announcements are spoken in.
const PresenceLanguage = "en"

// Queue accepts items for playback. *playback.Scheduler implements it.
type Queue interface {
	Enqueue(sink playback.SinkID, item playback.Item) error
}

// Preferences resolves guild settings. *settings.Store implements it.
type Preferences interface {
	Get(guild string) settings.Guild
}

// Announcer renders speech and queues it on the guild's sink. Guild ids are
// used as sink ids.
type Announcer struct {
	renderer  tts.Renderer
	queue     Queue
	prefs     Preferences
	spool     *Spool
	connected func(sink playback.SinkID) bool
	logger    *log.Logger
}

// Option configures an Announcer.
type Option func(*Announcer)

// WithConnected makes Presence skip guilds whose sink is not connected,
// before anything is rendered.
func WithConnected(connected func(sink playback.SinkID) bool) Option {
	return func(a *Announcer) { a.connected = connected }
}

// New creates an announcer. spool may be nil when Speak is not used.
func New(renderer tts.Renderer, queue Queue, prefs Preferences, spool *Spool, opts ...Option) *Announcer {
	a := &Announcer{
		renderer: renderer,
		queue:    queue,
		prefs:    prefs,
		spool:    spool,
		logger:   log.WithPrefix("announce"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Announce renders text in lang and queues it on sink as an in-memory
// stream. The returned error follows playback.Scheduler.Enqueue: when
// playback.IsWarning reports true the item was still accepted.
func (a *Announcer) Announce(ctx context.Context, sink playback.SinkID, text, lang, requester string) (playback.Descriptor, error) {
	audio, err := a.renderer.Render(ctx, text, lang)
	if err != nil {
		return playback.Descriptor{}, fmt.Errorf("unable to render announcement: %w", err)
	}

	item, err := playback.NewItem(sink, playback.BytesPayload(audio),
		playback.WithLabel(text),
		playback.WithRequester(requester),
	)
	if err != nil {
		return playback.Descriptor{}, err
	}

	return item.Describe(), a.enqueue(item)
}

// Presence announces ev on its guild's sink. It reports false when the
// event is not announced.
func (a *Announcer) Presence(ctx context.Context, ev PresenceEvent) (bool, error) {
	text, ok := Describe(ev)
	if !ok {
		return false, nil
	}

	sink := playback.SinkID(ev.Guild)
	if a.connected != nil && !a.connected(sink) {
		a.logger.Debug("Not in voice, skipping announcement", "guild", ev.Guild, "text", text)
		return false, nil
	}

	a.logger.Info(text, "guild", ev.Guild)

	_, err := a.Announce(ctx, sink, text, PresenceLanguage, ev.Username)
	return true, err
}

// SpeakRequest is a message to read out in a guild.
type SpeakRequest struct {
	Guild    string
	AuthorID string
	Author   string
	Text     string
	SentAt   time.Time
}

// SpeakResult describes a queued message.
type SpeakResult struct {
	Item     playback.Descriptor
	Message  string // what is spoken
	FileName string
	Audio    []byte
}

// Message returns what is spoken for req under prefs. Markdown is reduced
// to plain text and the author is named when the guild asks for it.
func Message(req SpeakRequest, prefs settings.Guild) string {
	text := tts.SpeechText(req.Text)
	if text == "" || !prefs.IncludeUsername {
		return text
	}
	if prefs.Language == "ro" {
		return fmt.Sprintf("%s a spus, %s", req.Author, text)
	}
	return fmt.Sprintf("%s said, %s", req.Author, text)
}

// Speak renders req in the guild language, saves it to the spool and queues
// the spool file. The file is removed once played or dropped; the result
// carries a copy of the audio for attaching to a reply.
func (a *Announcer) Speak(ctx context.Context, req SpeakRequest) (SpeakResult, error) {
	if a.spool == nil {
		return SpeakResult{}, fmt.Errorf("speak: no spool directory configured")
	}
	if req.SentAt.IsZero() {
		req.SentAt = time.Now()
	}

	prefs := a.prefs.Get(req.Guild)
	message := Message(req, prefs)
	if message == "" {
		return SpeakResult{}, tts.ErrEmptyText
	}

	audio, err := a.renderer.Render(ctx, message, prefs.Language)
	if err != nil {
		return SpeakResult{}, fmt.Errorf("unable to render message: %w", err)
	}

	path, err := a.spool.Write(req.AuthorID, req.SentAt, audio)
	if err != nil {
		return SpeakResult{}, err
	}

	payload := playback.SpoolPayload(path)
	item, err := playback.NewItem(playback.SinkID(req.Guild), payload,
		playback.WithLabel(message),
		playback.WithRequester(req.Author),
		playback.WithSubmittedAt(req.SentAt),
	)
	if err != nil {
		payload.Release()
		return SpeakResult{}, err
	}

	result := SpeakResult{
		Item:     item.Describe(),
		Message:  message,
		FileName: filepath.Base(path),
		Audio:    audio,
	}
	return result, a.enqueue(item)
}

// enqueue hands item to the queue. Rejected items are released here.
func (a *Announcer) enqueue(item playback.Item) error {
	err := a.queue.Enqueue(item.Sink, item)
	if err == nil {
		return nil
	}
	if playback.IsWarning(err) {
		a.logger.Warn("Queued audio was dropped", "sink", item.Sink, "error", err)
		return err
	}

	item.Payload.Release()
	return fmt.Errorf("unable to queue %q: %w", item.Label, err)
}
