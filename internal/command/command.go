// Package command implements the chat commands of the bot.
package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/herald/internal/announce"
	"github.com/dgnsrekt/herald/internal/playback"
	"github.com/dgnsrekt/herald/internal/tts"
)

// DefaultPrefix starts every command.
const DefaultPrefix = "!"

// Voice controls the bot's voice connections.
type Voice interface {
	// Connected reports whether the bot is in a voice channel of guild.
	Connected(guild string) bool

	// UserChannel returns the voice channel user is connected to in guild.
	UserChannel(guild, user string) (id, name string, ok bool)

	Join(ctx context.Context, guild, channelID string) error
	Leave(ctx context.Context, guild string) error
}

// Reply sends responses to the channel a command came from.
type Reply interface {
	Send(text string) error
	SendFile(text, name string, data []byte) error
}

// Queue is the part of the playback scheduler commands use.
type Queue interface {
	Inspect(sink playback.SinkID) []playback.Descriptor
	DisconnectSink(sink playback.SinkID)
}

// Speaker reads messages out. *announce.Announcer implements it.
type Speaker interface {
	Speak(ctx context.Context, req announce.SpeakRequest) (announce.SpeakResult, error)
}

// Preferences changes guild settings. *settings.Store implements it.
type Preferences interface {
	SetLanguage(guild, lang string) (string, error)
	ToggleUsername(guild string) (bool, error)
}

// Message is an incoming chat message.
type Message struct {
	Guild    string
	AuthorID string
	Author   string
	Content  string
	SentAt   time.Time
}

// command is one registered command.
type command struct {
	usage string
	help  string
	run   func(ctx context.Context, msg Message, args string, reply Reply) error
}

// Router parses prefixed messages and runs the matching command.
type Router struct {
	prefix   string
	voice    Voice
	queue    Queue
	speaker  Speaker
	prefs    Preferences
	commands map[string]command
	logger   *log.Logger
	now      func() time.Time

	// Per-user command limiter
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
}

// Option configures a Router.
type Option func(*Router)

// WithPrefix sets the command prefix.
func WithPrefix(prefix string) Option {
	return func(r *Router) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithRateLimit allows each user burst commands, refilled at limit per
// second. rate.Inf disables limiting.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(r *Router) {
		r.limit = limit
		r.burst = burst
	}
}

// WithClock overrides the time source used for queue ages.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// New creates a router with every command registered.
func New(voice Voice, queue Queue, speaker Speaker, prefs Preferences, opts ...Option) *Router {
	r := &Router{
		prefix:   DefaultPrefix,
		voice:    voice,
		queue:    queue,
		speaker:  speaker,
		prefs:    prefs,
		logger:   log.WithPrefix("command"),
		now:      time.Now,
		limit:    rate.Every(2 * time.Second),
		burst:    3,
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.commands = map[string]command{
		"join":       {usage: "join", help: "Join your voice channel", run: r.join},
		"leave":      {usage: "leave", help: "Leave the voice channel and clear the queue", run: r.leave},
		"speak":      {usage: "speak <text>", help: "Read a message out and attach it as an MP3", run: r.speak},
		"queue":      {usage: "queue", help: "Show what is waiting to be played", run: r.showQueue},
		"setlang":    {usage: "setlang <code>", help: "Set the language messages are read in", run: r.setLang},
		"toggleuser": {usage: "toggleuser", help: "Toggle reading out who sent a message", run: r.toggleUser},
		"help":       {usage: "help", help: "Show this help", run: r.help},
	}

	return r
}

// Prefix returns the command prefix.
func (r *Router) Prefix() string {
	return r.prefix
}

// Handle runs the command in msg, if any. It reports whether msg was a
// known command. The error is only set when a reply could not be sent.
func (r *Router) Handle(ctx context.Context, msg Message, reply Reply) (bool, error) {
	name, args, ok := r.parse(msg.Content)
	if !ok {
		return false, nil
	}
	cmd, ok := r.commands[name]
	if !ok {
		return false, nil
	}

	if !r.allow(msg.AuthorID) {
		r.logger.Debug("Rate limited", "user", msg.Author, "command", name)
		return true, reply.Send("Slow down! Try again in a moment.")
	}

	r.logger.Debug("Running command", "guild", msg.Guild, "user", msg.Author, "command", name)
	return true, cmd.run(ctx, msg, args, reply)
}

// parse splits "!name args" into its parts.
func (r *Router) parse(content string) (name, args string, ok bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, r.prefix) {
		return "", "", false
	}
	content = strings.TrimPrefix(content, r.prefix)

	fields := strings.Fields(content)
	if len(fields) == 0 {
		return "", "", false
	}
	name = strings.ToLower(fields[0])
	args = strings.TrimSpace(strings.TrimPrefix(content, fields[0]))
	return name, args, true
}

func (r *Router) allow(user string) bool {
	if r.limit == rate.Inf {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.limiters[user]
	if !ok {
		l = rate.NewLimiter(r.limit, r.burst)
		r.limiters[user] = l
	}
	return l.Allow()
}

func (r *Router) join(ctx context.Context, msg Message, _ string, reply Reply) error {
	channel, name, ok := r.voice.UserChannel(msg.Guild, msg.AuthorID)
	if !ok {
		return reply.Send("You need to be in a voice channel for me to join!")
	}
	if r.voice.Connected(msg.Guild) {
		return reply.Send("I'm already in a voice channel!")
	}

	if err := r.voice.Join(ctx, msg.Guild, channel); err != nil {
		r.logger.Error("Failed to join voice channel", "guild", msg.Guild, "channel", name, "error", err)
		return reply.Send(fmt.Sprintf("Could not join %s.", name))
	}
	return reply.Send(fmt.Sprintf("Joined %s!", name))
}

func (r *Router) leave(ctx context.Context, msg Message, _ string, reply Reply) error {
	if !r.voice.Connected(msg.Guild) {
		return reply.Send("I'm not in a voice channel!")
	}

	// Clear first so the cancelled playback cannot start the next item.
	r.queue.DisconnectSink(playback.SinkID(msg.Guild))
	if err := r.voice.Leave(ctx, msg.Guild); err != nil {
		r.logger.Warn("Failed to leave voice channel", "guild", msg.Guild, "error", err)
	}

	return reply.Send("Disconnected from the voice channel!")
}

func (r *Router) speak(ctx context.Context, msg Message, args string, reply Reply) error {
	if args == "" {
		return reply.Send(fmt.Sprintf("Usage: `%s%s`", r.prefix, r.commands["speak"].usage))
	}

	if !r.voice.Connected(msg.Guild) {
		channel, name, ok := r.voice.UserChannel(msg.Guild, msg.AuthorID)
		if !ok {
			return reply.Send("You need to be in a voice channel for me to join and play audio!")
		}
		if err := r.voice.Join(ctx, msg.Guild, channel); err != nil {
			r.logger.Error("Failed to join voice channel", "guild", msg.Guild, "channel", name, "error", err)
			return reply.Send(fmt.Sprintf("Could not join %s.", name))
		}
	}

	res, err := r.speaker.Speak(ctx, announce.SpeakRequest{
		Guild:    msg.Guild,
		AuthorID: msg.AuthorID,
		Author:   msg.Author,
		Text:     args,
		SentAt:   msg.SentAt,
	})
	switch {
	case err == nil:
	case playback.IsWarning(err):
		// Queued but dropped before it could play; the attachment is still useful.
		r.logger.Warn("Message was not played", "guild", msg.Guild, "error", err)
	case errors.Is(err, playback.ErrQueueFull):
		return reply.Send("The queue is full, try again later.")
	case errors.Is(err, tts.ErrEmptyText):
		return reply.Send("There is nothing to say.")
	default:
		r.logger.Error("Error in speak command", "guild", msg.Guild, "user", msg.Author, "error", err)
		return reply.Send("Failed to process the command.")
	}

	return reply.SendFile("Your message has been added to the queue and saved as an MP3 file:", res.FileName, res.Audio)
}

func (r *Router) showQueue(_ context.Context, msg Message, _ string, reply Reply) error {
	items := r.queue.Inspect(playback.SinkID(msg.Guild))
	if len(items) == 0 {
		return reply.Send("The queue is currently empty.")
	}

	now := r.now()
	var b strings.Builder
	b.WriteString("Current Queue:")
	for i, d := range items {
		fmt.Fprintf(&b, "\n%d. %s", i+1, d.Label)

		var meta []string
		if d.Requester != "" {
			meta = append(meta, d.Requester)
		}
		if !d.SubmittedAt.IsZero() {
			meta = append(meta, humanize.RelTime(d.SubmittedAt, now, "ago", "from now"))
		}
		if len(meta) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(meta, ", "))
		}
	}
	return reply.Send(b.String())
}

func (r *Router) setLang(_ context.Context, msg Message, args string, reply Reply) error {
	lang := strings.TrimSpace(args)
	if lang == "" {
		return reply.Send(fmt.Sprintf("Usage: `%s%s`", r.prefix, r.commands["setlang"].usage))
	}

	code, err := r.prefs.SetLanguage(msg.Guild, lang)
	if code == "" {
		r.logger.Debug("Rejected language", "guild", msg.Guild, "language", lang, "error", err)
		return reply.Send(fmt.Sprintf("Invalid language code: `%s`. Please provide a valid language code (e.g., 'en', 'ro').", lang))
	}
	if err != nil {
		r.logger.Warn("Language set but not saved", "guild", msg.Guild, "error", err)
	}
	return reply.Send(fmt.Sprintf("Language has been set to `%s`.", code))
}

func (r *Router) toggleUser(_ context.Context, msg Message, _ string, reply Reply) error {
	on, err := r.prefs.ToggleUsername(msg.Guild)
	if err != nil {
		r.logger.Warn("Setting changed but not saved", "guild", msg.Guild, "error", err)
	}

	status := "disabled"
	if on {
		status = "enabled"
	}
	return reply.Send(fmt.Sprintf("Username inclusion in messages has been `%s`.", status))
}

func (r *Router) help(_ context.Context, _ Message, _ string, reply Reply) error {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Commands:")
	for _, name := range names {
		c := r.commands[name]
		fmt.Fprintf(&b, "\n`%s%s` %s", r.prefix, c.usage, c.help)
	}
	return reply.Send(b.String())
}
