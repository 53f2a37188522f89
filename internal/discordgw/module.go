// Package discordgw provides the gateway liaison adapter: a thin,
// stateless wrapper around the parent Discord session/gateway that
// the voice coordinator uses to observe Voice Server/State Update
// events and to send Update Voice State, per spec.md §4.6.
package discordgw

import (
	"context"
	"errors"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/session"
	"github.com/diamondburned/arikawa/v3/state"
	"github.com/diamondburned/arikawa/v3/state/store/defaultstore"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/lucidwire/discordvoice/internal/config"
)

// Module provides the parent Discord session, its state wrapper, the
// application ID, and the voice gateway liaison.
var Module = fx.Module("discordgw",
	fx.Provide(
		NewSession,
		NewState,
		ProvideApplicationID,
		NewLiaison,
	),
)

// SessionParams holds dependencies for NewSession.
type SessionParams struct {
	fx.In
	Cfg    *config.Config
	LC     fx.Lifecycle
	Logger *zap.Logger
}

// SessionResult holds results from NewSession.
type SessionResult struct {
	fx.Out
	Session *session.Session
}

// NewSession creates and manages the parent Discord session.
func NewSession(params SessionParams) (SessionResult, error) {
	if params.Cfg.Discord.BotToken == "" {
		return SessionResult{}, errors.New("discord bot token is not set in config")
	}
	if params.Cfg.Discord.ApplicationID == nil {
		return SessionResult{}, errors.New("application ID is not set in config")
	}

	s := session.New("Bot " + params.Cfg.Discord.BotToken)
	s.AddIntents(gateway.IntentGuilds | gateway.IntentGuildMessages | gateway.IntentGuildIntegrations | gateway.IntentGuildVoiceStates | gateway.IntentGuildMembers)

	params.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			params.Logger.Info("opening discord session")
			return s.Open(ctx)
		},
		OnStop: func(ctx context.Context) error {
			params.Logger.Info("closing discord session")
			return s.Close()
		},
	})

	return SessionResult{Session: s}, nil
}

// StateParams holds dependencies for NewState.
type StateParams struct {
	fx.In
	Session *session.Session
	Logger  *zap.Logger
}

// StateResult holds results from NewState.
type StateResult struct {
	fx.Out
	State *state.State
}

// NewState creates a State wrapper around the Session, used by
// commands to look up a member's current voice channel.
func NewState(params StateParams) StateResult {
	cabinet := defaultstore.New()
	st := state.NewFromSession(params.Session, cabinet)
	params.Logger.Info("created discord state from session with default stores")
	return StateResult{State: st}
}

// ProvideApplicationID extracts the ApplicationID from config.
func ProvideApplicationID(cfg *config.Config, logger *zap.Logger) (discord.AppID, error) {
	if cfg.Discord.ApplicationID == nil || *cfg.Discord.ApplicationID == 0 {
		logger.Error("application id is not configured or is invalid in config")
		return 0, errors.New("application id is not configured or is invalid")
	}

	appID := discord.AppID(*cfg.Discord.ApplicationID)
	logger.Info("providing discord application id", zap.Stringer("appID", appID))
	return appID, nil
}
