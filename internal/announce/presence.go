package announce

import "fmt"

// VoiceState is the part of a member's voice state announcements care about.
type VoiceState struct {
	ChannelID string `json:"channel_id,omitempty"`
	SelfDeaf  bool   `json:"self_deaf,omitempty"`
}

// InChannel reports whether the member is connected to a voice channel.
func (v VoiceState) InChannel() bool {
	return v.ChannelID != ""
}

// PresenceEvent is a voice state change of one guild member.
type PresenceEvent struct {
	Guild    string     `json:"guild"`
	UserID   string     `json:"user_id,omitempty"`
	Username string     `json:"username"`
	Bot      bool       `json:"bot,omitempty"`
	Before   VoiceState `json:"before"`
	After    VoiceState `json:"after"`
}

// Describe returns the sentence announcing ev, or false when ev is not worth
// announcing. Bots are never announced. Moving between channels is silent.
func Describe(ev PresenceEvent) (string, bool) {
	if ev.Bot || ev.Username == "" {
		return "", false
	}

	switch {
	case !ev.Before.InChannel() && ev.After.InChannel():
		return fmt.Sprintf("%s has joined.", ev.Username), true
	case ev.Before.InChannel() && !ev.After.InChannel():
		return fmt.Sprintf("%s has left.", ev.Username), true
	case ev.Before.SelfDeaf != ev.After.SelfDeaf:
		if ev.After.SelfDeaf {
			return fmt.Sprintf("%s has deafened.", ev.Username), true
		}
		return fmt.Sprintf("%s has undeafened.", ev.Username), true
	}
	return "", false
}
