// Package discord connects herald to Discord: presence changes and chat
// commands come in through a gateway session and queued audio goes out
// through voice connections.
package discord

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/herald/internal/announce"
	"github.com/dgnsrekt/herald/internal/command"
	"github.com/dgnsrekt/herald/internal/playback"
)

// Intents requested from the gateway. Message content is needed to read
// commands; members and voice states to announce presence.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildVoiceStates |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsMessageContent

// handlerTimeout bounds the work done for a single gateway event.
const handlerTimeout = 45 * time.Second

// NewSession creates a bot session for token.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}
	s.Identify.Intents = Intents
	return s, nil
}

// Presence receives voice state changes. *announce.Announcer implements it.
type Presence interface {
	Presence(ctx context.Context, ev announce.PresenceEvent) (bool, error)
}

// Disconnector drops the queue of a sink. *playback.Scheduler implements it.
type Disconnector interface {
	DisconnectSink(sink playback.SinkID)
}

// Bot routes gateway events to the announcer and the command router.
type Bot struct {
	session  *discordgo.Session
	voice    *VoiceSink
	presence Presence
	router   *command.Router
	queue    Disconnector
	logger   *log.Logger
	removers []func()
}

// NewBot wires the handlers. Call Open to connect.
func NewBot(session *discordgo.Session, voice *VoiceSink, presence Presence, router *command.Router, queue Disconnector) *Bot {
	return &Bot{
		session:  session,
		voice:    voice,
		presence: presence,
		router:   router,
		queue:    queue,
		logger:   log.WithPrefix("discord"),
	}
}

// Open registers the handlers and connects to the gateway.
func (b *Bot) Open() error {
	b.removers = append(b.removers,
		b.session.AddHandler(b.onReady),
		b.session.AddHandler(b.onVoiceStateUpdate),
		b.session.AddHandler(b.onMessageCreate),
	)
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("error opening connection to Discord: %w", err)
	}
	return nil
}

// Close leaves every voice channel and closes the gateway session.
func (b *Bot) Close() error {
	for _, remove := range b.removers {
		remove()
	}
	b.removers = nil

	if err := b.voice.Close(); err != nil {
		b.logger.Warn("Error leaving voice channels", "error", err)
	}
	return b.session.Close()
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info("Bot is ready", "user", r.User.Username, "guilds", len(r.Guilds))
	if err := s.UpdateListeningStatus(b.router.Prefix() + "help"); err != nil {
		b.logger.Debug("Unable to set status", "error", err)
	}
}

func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, vsu *discordgo.VoiceStateUpdate) {
	if s.State.User != nil && vsu.UserID == s.State.User.ID {
		// Kicked or moved out by someone else
		if vsu.ChannelID == "" && b.voice.Connected(vsu.GuildID) {
			b.logger.Info("Voice connection ended", "guild", vsu.GuildID)
			b.voice.Forget(vsu.GuildID)
			b.queue.DisconnectSink(playback.SinkID(vsu.GuildID))
		}
		return
	}

	ev := presenceEvent(vsu, b.lookupUser(s, vsu))

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	_, err := b.presence.Presence(ctx, ev)
	switch {
	case err == nil:
	case playback.IsWarning(err):
		b.logger.Warn("Presence announcement dropped", "guild", ev.Guild, "user", ev.Username, "error", err)
	default:
		b.logger.Error("Failed to announce presence", "guild", ev.Guild, "user", ev.Username, "error", err)
	}
}

// lookupUser finds the user behind a voice state update.
func (b *Bot) lookupUser(s *discordgo.Session, vsu *discordgo.VoiceStateUpdate) *discordgo.User {
	if vsu.Member != nil && vsu.Member.User != nil {
		return vsu.Member.User
	}
	if m, err := s.State.Member(vsu.GuildID, vsu.UserID); err == nil && m.User != nil {
		return m.User
	}
	u, err := s.User(vsu.UserID)
	if err != nil {
		b.logger.Debug("Unknown user", "user", vsu.UserID, "error", err)
		return nil
	}
	return u
}

// presenceEvent converts a gateway update. user may be nil when it could not
// be resolved, which leaves the event unannounced.
func presenceEvent(vsu *discordgo.VoiceStateUpdate, user *discordgo.User) announce.PresenceEvent {
	ev := announce.PresenceEvent{
		Guild:  vsu.GuildID,
		UserID: vsu.UserID,
	}
	if user != nil {
		ev.Username = user.Username
		ev.Bot = user.Bot
	}
	if vsu.VoiceState != nil {
		ev.After = announce.VoiceState{ChannelID: vsu.ChannelID, SelfDeaf: vsu.SelfDeaf}
	}
	if vsu.BeforeUpdate != nil {
		ev.Before = announce.VoiceState{ChannelID: vsu.BeforeUpdate.ChannelID, SelfDeaf: vsu.BeforeUpdate.SelfDeaf}
	}
	return ev
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	msg := commandMessage(m.Message)
	if _, err := b.router.Handle(ctx, msg, &channelReply{session: s, channel: m.ChannelID}); err != nil {
		b.logger.Error("Failed to reply", "guild", m.GuildID, "channel", m.ChannelID, "error", err)
	}
}

func commandMessage(m *discordgo.Message) command.Message {
	return command.Message{
		Guild:    m.GuildID,
		AuthorID: m.Author.ID,
		Author:   m.Author.Username,
		Content:  m.Content,
		SentAt:   m.Timestamp,
	}
}

// channelReply answers in a text channel.
type channelReply struct {
	session *discordgo.Session
	channel string
}

func (r *channelReply) Send(text string) error {
	_, err := r.session.ChannelMessageSend(r.channel, text)
	return err
}

func (r *channelReply) SendFile(text, name string, data []byte) error {
	_, err := r.session.ChannelMessageSendComplex(r.channel, &discordgo.MessageSend{
		Content: text,
		Files: []*discordgo.File{{
			Name:        name,
			ContentType: "audio/mpeg",
			Reader:      bytes.NewReader(data),
		}},
	})
	return err
}
