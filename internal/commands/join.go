package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/session"
	"github.com/diamondburned/arikawa/v3/state"
	"go.uber.org/zap"

	"github.com/lucidwire/discordvoice/internal/voice"
)

// JoinCommand drives voice.Manager.Join from a slash command: it
// looks up the channel the invoking user is currently sitting in and
// asks the coordinator to join it.
type JoinCommand struct {
	logger  *zap.Logger
	manager *voice.Manager
	state   *state.State
}

// NewJoinCommand constructs the "join" command.
func NewJoinCommand(logger *zap.Logger, manager *voice.Manager, st *state.State) *JoinCommand {
	return &JoinCommand{logger: logger, manager: manager, state: st}
}

func (c *JoinCommand) Name() string { return "join" }

func (c *JoinCommand) Description() string { return "Join your current voice channel" }

func (c *JoinCommand) Options() []discord.CommandOption { return nil }

func (c *JoinCommand) Execute(ctx context.Context, s *session.Session, e *gateway.InteractionCreateEvent, _ *discord.CommandInteraction) error {
	if e.GuildID == 0 {
		return respondError(c.logger, s, e.ID, e.Token, "this command can only be used in a server")
	}

	channelID, err := c.userVoiceChannel(e.GuildID, e.SenderID())
	if err != nil {
		return respondError(c.logger, s, e.ID, e.Token, "join a voice channel first")
	}

	if err := respondText(s, e.ID, e.Token, "🔗 joining <#"+channelID.String()+">..."); err != nil {
		c.logger.Error("commands: failed to respond to join interaction", zap.Error(err))
		return err
	}

	guildID := e.GuildID
	textChannelID := e.ChannelID
	go func() {
		joinCtx := context.Background()
		if _, err := c.manager.Join(joinCtx, guildID, channelID); err != nil {
			c.logger.Error("commands: failed to join voice channel",
				zap.Error(err), zap.String("guild_id", guildID.String()))
			if _, sendErr := s.SendMessage(textChannelID, fmt.Sprintf("❌ failed to join: %s", err)); sendErr != nil {
				c.logger.Error("commands: failed to send join failure follow-up", zap.Error(sendErr))
			}
			return
		}
		if _, sendErr := s.SendMessage(textChannelID, "✅ connected"); sendErr != nil {
			c.logger.Error("commands: failed to send join success follow-up", zap.Error(sendErr))
		}
	}()

	return nil
}

func (c *JoinCommand) userVoiceChannel(guildID discord.GuildID, userID discord.UserID) (discord.ChannelID, error) {
	vs, err := c.state.VoiceState(guildID, userID)
	if err == nil && vs != nil {
		return vs.ChannelID, nil
	}

	states, err := c.state.VoiceStates(guildID)
	if err != nil {
		return 0, fmt.Errorf("commands: query guild voice states: %w", err)
	}
	for _, vs := range states {
		if vs.UserID == userID {
			return vs.ChannelID, nil
		}
	}

	return 0, errors.New("commands: user is not in a voice channel")
}
