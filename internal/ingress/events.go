package ingress

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dgnsrekt/herald/internal/announce"
	"github.com/dgnsrekt/herald/internal/playback"
)

// Event types accepted on /ws/events.
const (
	EventPresence = "presence"
	EventSay      = "say"
)

const eventTimeout = 45 * time.Second

// Event is a message pushed by an external watcher.
type Event struct {
	Type string `json:"type"`

	// presence
	Presence *announce.PresenceEvent `json:"presence,omitempty"`

	// say
	Sink      string `json:"sink,omitempty"`
	Text      string `json:"text,omitempty"`
	Language  string `json:"lang,omitempty"`
	Requester string `json:"requester,omitempty"`
}

// Ack answers one Event.
type Ack struct {
	OK      bool                 `json:"ok"`
	Queued  bool                 `json:"queued"`
	Item    *playback.Descriptor `json:"item,omitempty"`
	Warning string               `json:"warning,omitempty"`
	Error   string               `json:"error,omitempty"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade error", "error", err)
		return
	}
	defer conn.Close() //nolint:errcheck

	wsClients.Inc()
	defer wsClients.Dec()

	s.logger.Info("Event source connected", "remote", r.RemoteAddr)

	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("Event source read error", "remote", r.RemoteAddr, "error", err)
			}
			return
		}

		ack := s.handleEvent(r.Context(), ev)
		if err := conn.WriteJSON(ack); err != nil {
			s.logger.Warn("Event source write error", "remote", r.RemoteAddr, "error", err)
			return
		}
	}
}

// handleEvent dispatches ev and reports the outcome.
func (s *Server) handleEvent(ctx context.Context, ev Event) Ack {
	ctx, cancel := context.WithTimeout(ctx, eventTimeout)
	defer cancel()

	var (
		ack Ack
		err error
	)
	switch ev.Type {
	case EventPresence:
		if ev.Presence == nil || ev.Presence.Guild == "" {
			err = errors.New("presence event needs a guild")
			break
		}
		ack.Queued, err = s.announcer.Presence(ctx, *ev.Presence)

	case EventSay:
		if ev.Sink == "" || ev.Text == "" {
			err = errors.New("say event needs a sink and text")
			break
		}
		lang := ev.Language
		if lang == "" {
			lang = announce.PresenceLanguage
		}
		var d playback.Descriptor
		d, err = s.announcer.Announce(ctx, playback.SinkID(ev.Sink), ev.Text, lang, ev.Requester)
		if err == nil || playback.IsWarning(err) {
			ack.Queued = true
			ack.Item = &d
		}

	default:
		err = fmt.Errorf("unknown event type %q", ev.Type)
	}

	switch {
	case err == nil:
		ack.OK = true
	case playback.IsWarning(err):
		ack.OK = true
		ack.Warning = err.Error()
	default:
		ack.Error = err.Error()
	}

	kind, result := ev.Type, "ok"
	if kind != EventPresence && kind != EventSay {
		kind = "unknown"
	}
	if !ack.OK {
		result = "error"
	}
	wsEvents.WithLabelValues(kind, result).Inc()

	return ack
}
