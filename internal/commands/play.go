package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/session"
	"go.uber.org/zap"

	"github.com/lucidwire/discordvoice/internal/voice"
)

// PlayCommand drives voice.Manager.Play from a slash command. It
// takes a server-local path to a raw 48kHz/stereo/16-bit-LE PCM file;
// fetching and decoding audio from elsewhere is an external
// collaborator's job, not this example command's.
type PlayCommand struct {
	logger  *zap.Logger
	manager *voice.Manager
}

// NewPlayCommand constructs the "play" command.
func NewPlayCommand(logger *zap.Logger, manager *voice.Manager) *PlayCommand {
	return &PlayCommand{logger: logger, manager: manager}
}

func (c *PlayCommand) Name() string { return "play" }

func (c *PlayCommand) Description() string { return "Play a raw PCM file into every joined voice channel" }

func (c *PlayCommand) Options() []discord.CommandOption {
	return []discord.CommandOption{
		&discord.StringOption{
			OptionName:  "file",
			Description: "Server-local path to a 48kHz stereo 16-bit LE PCM file",
			Required:    true,
		},
	}
}

func (c *PlayCommand) Execute(ctx context.Context, s *session.Session, e *gateway.InteractionCreateEvent, data *discord.CommandInteraction) error {
	path, err := playFileOption(data)
	if err != nil {
		return respondError(c.logger, s, e.ID, e.Token, err.Error())
	}

	f, err := os.Open(path)
	if err != nil {
		return respondError(c.logger, s, e.ID, e.Token, "could not open the requested file")
	}

	if err := respondText(s, e.ID, e.Token, "▶️ starting playback..."); err != nil {
		c.logger.Error("commands: failed to respond to play interaction", zap.Error(err))
		f.Close()
		return err
	}

	textChannelID := e.ChannelID
	go func() {
		defer f.Close()
		if err := c.manager.Play(context.Background(), f); err != nil {
			c.logger.Error("commands: playback failed", zap.Error(err), zap.String("path", path))
			if _, sendErr := s.SendMessage(textChannelID, fmt.Sprintf("❌ playback failed: %s", err)); sendErr != nil {
				c.logger.Error("commands: failed to send playback failure follow-up", zap.Error(sendErr))
			}
			return
		}
		if _, sendErr := s.SendMessage(textChannelID, "⏹️ playback finished"); sendErr != nil {
			c.logger.Error("commands: failed to send playback finished follow-up", zap.Error(sendErr))
		}
	}()

	return nil
}

func playFileOption(data *discord.CommandInteraction) (string, error) {
	for _, opt := range data.Options {
		if opt.Name == "file" {
			return opt.String(), nil
		}
	}
	return "", errors.New("missing required \"file\" option")
}
