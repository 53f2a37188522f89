package voice

import (
	"context"

	"github.com/diamondburned/arikawa/v3/discord"

	"github.com/lucidwire/discordvoice/voicegateway"
	"github.com/lucidwire/discordvoice/voiceudp"
)

// Session is one guild's active voice connection, per spec.md §3's
// session descriptor: the guild/channel it belongs to, the ssrc
// Discord assigned it, and the websocket/UDP handles the broadcast
// sink and the owner use to drive it.
type Session struct {
	GuildID   discord.GuildID
	ChannelID discord.ChannelID
	SSRC      uint32

	gatewayHandle voicegateway.Handle
	udpHandle     voiceudp.Handle

	cancel context.CancelFunc
	done   <-chan struct{}
}

// Speak sends a Speaking update for this session's ssrc.
func (s *Session) Speak(ctx context.Context, flags voicegateway.SpeakingFlag) error {
	select {
	case s.gatewayHandle.Outbound <- voicegateway.Speaking(s.SSRC, flags):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
