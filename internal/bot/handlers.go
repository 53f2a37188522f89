package bot

import (
	"context"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/session"
	"github.com/diamondburned/arikawa/v3/utils/json/option"
	"go.uber.org/zap"

	"github.com/lucidwire/discordvoice/internal/commands"
)

func handleInteraction(ctx context.Context, s *session.Session, e *gateway.InteractionCreateEvent, cmdManager *commands.CommandManager, logger *zap.Logger) {
	data, ok := e.Data.(*discord.CommandInteraction)
	if !ok {
		logger.Debug("received unhandled interaction type", zap.Any("type", e.Data))
		return
	}

	logger.Info("received slash command", zap.String("command_name", data.Name))

	cmd, ok := cmdManager.Get(data.Name)
	if !ok {
		logger.Warn("unknown command", zap.String("command_name", data.Name))
		respondPlain(s, e, logger, "Command not found.")
		return
	}

	if err := cmd.Execute(ctx, s, e, data); err != nil {
		logger.Error("error executing command", zap.String("command_name", data.Name), zap.Error(err))
		respondPlain(s, e, logger, "An error occurred while executing the command.")
		return
	}

	logger.Info("command executed successfully", zap.String("command_name", data.Name))
}

func respondPlain(s *session.Session, e *gateway.InteractionCreateEvent, logger *zap.Logger, content string) {
	err := s.RespondInteraction(e.ID, e.Token, api.InteractionResponse{
		Type: api.MessageInteractionWithSource,
		Data: &api.InteractionResponseData{
			Content: option.NewNullableString(content),
		},
	})
	if err != nil {
		logger.Error("failed to send interaction response", zap.Error(err))
	}
}
