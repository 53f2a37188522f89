package commands

import (
	"fmt"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/session"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// CommandManager owns the set of registered slash commands, keyed by
// name, and knows how to register them with Discord for each
// configured guild.
type CommandManager struct {
	session *session.Session
	appID   discord.AppID
	logger  *zap.Logger

	commands map[string]Command
}

// NewCommandManagerParams holds dependencies for NewCommandManager.
type NewCommandManagerParams struct {
	fx.In
	Session  *session.Session
	AppID    discord.AppID
	Logger   *zap.Logger
	Commands []Command `group:"commands"`
}

// NewCommandManager builds a CommandManager from every Command the fx
// "commands" group provides.
func NewCommandManager(params NewCommandManagerParams) *CommandManager {
	m := &CommandManager{
		session:  params.Session,
		appID:    params.AppID,
		logger:   params.Logger,
		commands: make(map[string]Command, len(params.Commands)),
	}
	for _, c := range params.Commands {
		m.commands[c.Name()] = c
	}
	return m
}

// Get looks up a registered command by its slash-command name.
func (m *CommandManager) Get(name string) (Command, bool) {
	c, ok := m.commands[name]
	return c, ok
}

// RegisterCommands overwrites each configured guild's command set
// with the manager's full command list. An empty guildIDs registers
// the commands globally instead.
func (m *CommandManager) RegisterCommands(guildIDs []discord.GuildID) error {
	data := make([]api.CreateCommandData, 0, len(m.commands))
	for _, c := range m.commands {
		data = append(data, api.CreateCommandData{
			Name:        c.Name(),
			Description: c.Description(),
			Options:     c.Options(),
		})
	}

	if len(guildIDs) == 0 {
		if _, err := m.session.BulkOverwriteCommands(m.appID, data); err != nil {
			return fmt.Errorf("commands: register global commands: %w", err)
		}
		m.logger.Info("registered global slash commands", zap.Int("count", len(data)))
		return nil
	}

	for _, guildID := range guildIDs {
		if _, err := m.session.BulkOverwriteGuildCommands(m.appID, guildID, data); err != nil {
			return fmt.Errorf("commands: register guild %s commands: %w", guildID, err)
		}
		m.logger.Info("registered guild slash commands", zap.String("guild_id", guildID.String()), zap.Int("count", len(data)))
	}
	return nil
}
