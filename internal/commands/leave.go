package commands

import (
	"context"
	"errors"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/session"
	"go.uber.org/zap"

	"github.com/lucidwire/discordvoice/internal/voice"
)

// LeaveCommand drives voice.Manager.Leave from a slash command.
type LeaveCommand struct {
	logger  *zap.Logger
	manager *voice.Manager
}

// NewLeaveCommand constructs the "leave" command.
func NewLeaveCommand(logger *zap.Logger, manager *voice.Manager) *LeaveCommand {
	return &LeaveCommand{logger: logger, manager: manager}
}

func (c *LeaveCommand) Name() string { return "leave" }

func (c *LeaveCommand) Description() string { return "Leave the current voice channel" }

func (c *LeaveCommand) Options() []discord.CommandOption { return nil }

func (c *LeaveCommand) Execute(ctx context.Context, s *session.Session, e *gateway.InteractionCreateEvent, _ *discord.CommandInteraction) error {
	if e.GuildID == 0 {
		return respondError(c.logger, s, e.ID, e.Token, "this command can only be used in a server")
	}

	if err := c.manager.Leave(ctx, e.GuildID); err != nil {
		if errors.Is(err, voice.ErrNotJoined) {
			return respondError(c.logger, s, e.ID, e.Token, "not currently connected to a voice channel")
		}
		c.logger.Error("commands: failed to leave voice channel", zap.Error(err), zap.String("guild_id", e.GuildID.String()))
		return respondError(c.logger, s, e.ID, e.Token, "failed to leave voice channel")
	}

	return respondText(s, e.ID, e.Token, "👋 disconnected")
}
