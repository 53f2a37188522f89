package discordgw

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/session"
	"go.uber.org/zap"
)

// VoiceServerUpdate carries the new voice server endpoint/token for a
// guild, delivered whenever Discord (re)assigns one.
type VoiceServerUpdate struct {
	GuildID  discord.GuildID
	Token    string
	Endpoint string
}

// VoiceStateUpdate carries a guild member's voice state, including
// the bot's own — specifically, the session_id the voice websocket
// handshake needs.
type VoiceStateUpdate struct {
	GuildID   discord.GuildID
	ChannelID discord.ChannelID
	UserID    discord.UserID
	SessionID string
}

// Event is a duplicated parent-gateway event the voice coordinator
// may care about. Exactly one field is set: one of the two pointers
// is non-nil, or Reconnected is true.
type Event struct {
	VoiceServer *VoiceServerUpdate
	VoiceState  *VoiceStateUpdate
	Reconnected bool
}

// Liaison is the stateless adapter spec.md §4.6 describes: it
// duplicates the parent gateway's event stream to any number of
// subscribers and forwards Update Voice State commands, without
// holding any voice-session state of its own.
type Liaison struct {
	session *session.Session
	logger  *zap.Logger
	botID   atomic.Uint64

	mu   sync.Mutex
	subs []chan Event
}

// NewLiaison wires the liaison's handlers onto the parent session. It
// is provided once per application and shared by the voice
// coordinator; DuplicateEvents hands out independent fan-out channels
// per subscriber.
func NewLiaison(s *session.Session, logger *zap.Logger) *Liaison {
	l := &Liaison{session: s, logger: logger}

	s.AddHandler(func(e *gateway.VoiceServerUpdateEvent) {
		l.broadcast(Event{VoiceServer: &VoiceServerUpdate{
			GuildID:  e.GuildID,
			Token:    e.Token,
			Endpoint: e.Endpoint,
		}})
	})

	s.AddHandler(func(e *gateway.VoiceStateUpdateEvent) {
		l.broadcast(Event{VoiceState: &VoiceStateUpdate{
			GuildID:   e.GuildID,
			ChannelID: e.ChannelID,
			UserID:    e.UserID,
			SessionID: e.SessionID,
		}})
	})

	s.AddHandler(func(e *gateway.ReadyEvent) {
		l.botID.Store(uint64(e.User.ID))
		l.broadcast(Event{Reconnected: true})
	})

	return l
}

// BotUserID returns the bot's own user ID, as observed from the most
// recent Ready event. Zero until the parent gateway has connected at
// least once.
func (l *Liaison) BotUserID() discord.UserID {
	return discord.UserID(l.botID.Load())
}

// DuplicateEvents returns a new channel that receives every event the
// liaison observes from here on. The channel is never closed by the
// liaison; its owner stops reading once its voice session ends.
func (l *Liaison) DuplicateEvents() <-chan Event {
	ch := make(chan Event, 16)
	l.mu.Lock()
	l.subs = append(l.subs, ch)
	l.mu.Unlock()
	return ch
}

// broadcast fans an event out to every live subscriber. A subscriber
// that isn't keeping up drops the event rather than stalling the
// parent gateway's own handler dispatch.
func (l *Liaison) broadcast(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ch := range l.subs {
		select {
		case ch <- e:
		default:
			l.logger.Warn("discordgw: dropping event for slow voice subscriber")
		}
	}
}

// SendUpdateVoiceState asks the parent gateway to join, move, or
// leave a voice channel. A nil channelID disconnects.
func (l *Liaison) SendUpdateVoiceState(ctx context.Context, guildID discord.GuildID, channelID *discord.ChannelID, selfMute, selfDeaf bool) error {
	cmd := &gateway.UpdateVoiceStateCommand{
		GuildID:   guildID,
		SelfMute:  selfMute,
		SelfDeaf:  selfDeaf,
	}
	if channelID != nil {
		cmd.ChannelID = *channelID
	}
	return l.session.Gateway().Send(ctx, cmd)
}
