package bot

import (
	"context"
	"fmt"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/session"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/lucidwire/discordvoice/internal/commands"
	"github.com/lucidwire/discordvoice/internal/config"
)

// Bot wires the parent Discord session to the command manager: it
// adds the interaction handler and, on start, registers every slash
// command the commands.Module group provided.
type Bot struct {
	Session    *session.Session
	Config     *config.Config
	CmdManager *commands.CommandManager
	Logger     *zap.Logger
}

// NewBotParameters holds dependencies for NewBot.
type NewBotParameters struct {
	fx.In

	Cfg        *config.Config
	S          *session.Session
	Logger     *zap.Logger
	CmdManager *commands.CommandManager
}

// NewBot creates and initializes a new Bot.
func NewBot(params NewBotParameters) (*Bot, error) {
	if params.Cfg.Discord.ApplicationID == nil || *params.Cfg.Discord.ApplicationID == 0 {
		return nil, fmt.Errorf("application ID is not set or is zero in config")
	}

	b := &Bot{
		Session:    params.S,
		Config:     params.Cfg,
		CmdManager: params.CmdManager,
		Logger:     params.Logger,
	}

	params.S.AddHandler(func(e *gateway.InteractionCreateEvent) {
		handleInteraction(context.Background(), params.S, e, b.CmdManager, params.Logger)
	})

	return b, nil
}

// Start registers slash commands for every configured guild (or
// globally, if none are configured).
func (b *Bot) Start(ctx context.Context) error {
	var guildIDs []discord.GuildID
	for _, idStr := range b.Config.Discord.GuildIDs {
		sf, err := discord.ParseSnowflake(idStr)
		if err != nil {
			b.Logger.Error("failed to parse guild id", zap.String("guild_id", idStr), zap.Error(err))
			continue
		}
		guildIDs = append(guildIDs, discord.GuildID(sf))
	}

	if len(guildIDs) == 0 {
		b.Logger.Warn("no guild_ids configured, registering commands globally")
	}

	if err := b.CmdManager.RegisterCommands(guildIDs); err != nil {
		return fmt.Errorf("bot: register commands: %w", err)
	}

	return nil
}

// Stop runs bot-specific shutdown logic. Voice sessions are torn down
// by voice.Module's own OnStop hook, and the parent Discord session is
// closed by the discordgw lifecycle hook; this hook just logs.
func (b *Bot) Stop(_ context.Context) error {
	b.Logger.Info("stopping bot")
	return nil
}
